// Package llm talks to the hosted language model used to read listing titles.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"gpu-hunter/pkg/httpx"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "x-ai/grok-4-fast:free"
)

var ErrEmptyResponse = errors.New("empty model response")

// Completer answers a free-text prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	Title       string
	Referer     string
	Temperature float64
	Timeout     time.Duration
}

// OpenRouter is a Completer backed by the OpenRouter chat completions API.
type OpenRouter struct {
	http        *resty.Client
	model       string
	temperature float64
}

func NewOpenRouter(opts Options) (*OpenRouter, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openrouter: api key is required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	client := httpx.NewClient("llm/openrouter", opts.Timeout)
	client.SetBaseURL(strings.TrimRight(opts.BaseURL, "/"))
	client.SetAuthToken(opts.APIKey)
	client.SetHeader("Content-Type", "application/json")
	if opts.Title != "" {
		client.SetHeader("X-Title", opts.Title)
	}
	if opts.Referer != "" {
		client.SetHeader("HTTP-Referer", opts.Referer)
	}

	return &OpenRouter{
		http:        client,
		model:       opts.Model,
		temperature: opts.Temperature,
	}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type reasoning struct {
	Effort  string `json:"effort"`
	Exclude bool   `json:"exclude"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
	Reasoning   reasoning `json:"reasoning"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Complete sends prompt as a single user message. Reasoning is requested at
// low effort and excluded from the answer.
func (c *OpenRouter) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	var out completionResponse
	var apiErr errorResponse

	res, err := c.http.R().
		SetContext(ctx).
		SetBody(completionRequest{
			Model:       c.model,
			Messages:    []message{{Role: "user", Content: prompt}},
			MaxTokens:   maxTokens,
			Temperature: c.temperature,
			Reasoning:   reasoning{Effort: "low", Exclude: true},
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("openrouter: %w", err)
	}
	if res.IsError() {
		if apiErr.Error.Message != "" {
			return "", fmt.Errorf("openrouter: http %d: %s", res.StatusCode(), apiErr.Error.Message)
		}
		return "", fmt.Errorf("openrouter: http %d", res.StatusCode())
	}

	if len(out.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
