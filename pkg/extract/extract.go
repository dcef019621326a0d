// Package extract asks the language model which GPU a listing title is about.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"gpu-hunter/pkg/llm"
	"gpu-hunter/pkg/logger"
	"gpu-hunter/pkg/models"
	"gpu-hunter/pkg/retry"
)

const (
	cacheKind = "extract"
	maxTokens = 500
	noneReply = "NONE"
)

var (
	errUnparseable = errors.New("no BRAND,MODEL token in answer")

	tokenRegex = regexp.MustCompile(`(?i)\b(RTX|GTX|RX|GEFORCE\w*|QUADRO\w*)\s*,\s*(\d{3,4})\b`)
)

// Cache stores normalized answers by listing title.
type Cache interface {
	Get(kind, key string) (string, bool)
	Set(kind, key, value string)
}

type Extractor struct {
	Model llm.Completer
	Retry retry.Policy
	Cache Cache
}

func New(model llm.Completer, cache Cache) *Extractor {
	return &Extractor{Model: model, Retry: retry.Default, Cache: cache}
}

// Extract returns the GPU tokens found in title. Any failure is soft: the
// error is logged and an empty list is returned.
func (e *Extractor) Extract(ctx context.Context, title string) []models.GpuToken {
	tokens, err := e.extract(ctx, title)
	if err != nil {
		log.Printf("[EXTRACT] %q: %v", title, err)
		return []models.GpuToken{}
	}
	return tokens
}

func (e *Extractor) extract(ctx context.Context, title string) ([]models.GpuToken, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return []models.GpuToken{}, nil
	}

	if e.Cache != nil {
		if cached, ok := e.Cache.Get(cacheKind, title); ok {
			logger.Dedup("[EXTRACT] cache hit")
			return ParseAnswer(cached)
		}
	}

	var tokens []models.GpuToken
	err := e.Retry.Do(ctx, "gpu extraction", func() error {
		answer, err := e.Model.Complete(ctx, Prompt(title), maxTokens)
		if err != nil {
			return err
		}
		if strings.TrimSpace(answer) == "" {
			return llm.ErrEmptyResponse
		}
		parsed, err := ParseAnswer(answer)
		if err != nil {
			return fmt.Errorf("%w: %q", err, answer)
		}
		tokens = parsed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrExtractionFailed, err)
	}

	if e.Cache != nil {
		e.Cache.Set(cacheKind, title, joinTokens(tokens))
	}
	return tokens, nil
}

// ParseAnswer reads the model answer. NONE, or an empty stored answer, is a
// valid answer with no token. Text that holds neither NONE nor any valid token
// is an error.
func ParseAnswer(answer string) ([]models.GpuToken, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return []models.GpuToken{}, nil
	}

	tokens := []models.GpuToken{}
	seen := make(map[models.GpuToken]struct{})
	sawNone := false

	for _, line := range strings.Split(answer, "\n") {
		line = strings.Trim(strings.TrimSpace(line), "`*.")
		if strings.EqualFold(line, noneReply) {
			sawNone = true
			continue
		}
		for _, m := range tokenRegex.FindAllStringSubmatch(line, -1) {
			token, err := models.NewGpuToken(m[1], m[2])
			if err != nil {
				continue
			}
			if _, dup := seen[token]; dup {
				continue
			}
			seen[token] = struct{}{}
			tokens = append(tokens, token)
		}
	}

	if len(tokens) == 0 && !sawNone {
		return nil, errUnparseable
	}
	return tokens, nil
}

func joinTokens(tokens []models.GpuToken) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.String()
	}
	return strings.Join(parts, "\n")
}

// Prompt builds the extraction prompt for a listing title.
func Prompt(title string) string {
	return fmt.Sprintf(`Extract the GPU model from this marketplace listing title.

The answer is used as a keyword search over a price catalog.
Format: BRAND,MODEL (for example RTX,3070 or GTX,970)
Valid brands: RTX, GTX, RX
Valid models: 3-4 digit numbers (for example 3070, 970, 570)

LISTING TITLE: %s

Return ONLY the GPU model, one per line, without explanation.
If the listing is not about a known GPU model, return: NONE

Answer:`, title)
}
