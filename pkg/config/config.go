// Package config assembles the run configuration from, in increasing
// priority: built-in defaults, config.json5, config.local.json5, the .env
// file and the process environment. Command line flags are applied on top by
// the commands themselves.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/titanous/json5"

	"gpu-hunter/pkg/llm"
	"gpu-hunter/pkg/market"
	"gpu-hunter/pkg/output"
	"gpu-hunter/pkg/pipeline"
	"gpu-hunter/pkg/retry"
)

const DefaultPath = "config.json5"

var ErrMissingAPIKey = errors.New("OPENROUTER_API_KEY is not set")

type Config struct {
	Query        string `json:"query"`
	Limit        int    `json:"limit"`
	ProcessLimit *int   `json:"process_limit"`
	ThrottleMS   *int   `json:"throttle_ms"`
	Output       string `json:"output"`
	CSV          string `json:"csv"`
	Verbose      bool   `json:"verbose"`

	Market    MarketConfig    `json:"market"`
	LLM       LLMConfig       `json:"llm"`
	Retry     RetryConfig     `json:"retry"`
	Cache     CacheConfig     `json:"cache"`
	Vinted    VintedConfig    `json:"vinted"`
	Leboncoin LeboncoinConfig `json:"leboncoin"`
	Telemetry TelemetryConfig `json:"telemetry"`
	Serve     ServeConfig     `json:"serve"`
}

type MarketConfig struct {
	Dir        string   `json:"dir"`
	Components []string `json:"components"`
	MinPrice   *float64 `json:"min_price"`
	MaxPrice   *float64 `json:"max_price"`
}

type LLMConfig struct {
	BaseURL        string   `json:"base_url"`
	APIKey         string   `json:"api_key"`
	Model          string   `json:"model"`
	Title          string   `json:"title"`
	Referer        string   `json:"referer"`
	Temperature    *float64 `json:"temperature"`
	TimeoutSeconds int      `json:"timeout_seconds"`
}

type RetryConfig struct {
	Attempts int `json:"attempts"`
	DelayMS  int `json:"delay_ms"`
}

type CacheConfig struct {
	Path       string `json:"path"`
	TTLMinutes int    `json:"ttl_minutes"`
	Disabled   bool   `json:"disabled"`
}

type VintedConfig struct {
	Enabled *bool   `json:"enabled"`
	BaseURL string  `json:"base_url"`
	RPS     float64 `json:"rps"`
}

type LeboncoinConfig struct {
	Enabled *bool  `json:"enabled"`
	BaseURL string `json:"base_url"`
	Browser bool   `json:"browser"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `json:"otlp_endpoint"`
	ServiceName  string `json:"service_name"`
}

type ServeConfig struct {
	Port string `json:"port"`
}

func boolPtr(v bool) *bool { return &v }

func Defaults() Config {
	processLimit := pipeline.DefaultProcessLimit
	throttle := int(pipeline.DefaultThrottle / time.Millisecond)
	temperature := 0.1

	return Config{
		Query:        pipeline.DefaultQuery,
		Limit:        pipeline.DefaultLimit,
		ProcessLimit: &processLimit,
		ThrottleMS:   &throttle,
		Output:       output.DefaultPath,
		Market: MarketConfig{
			Dir:        "./data",
			Components: []string{market.GraphicCard},
		},
		LLM: LLMConfig{
			BaseURL:        llm.DefaultBaseURL,
			Model:          llm.DefaultModel,
			Title:          "GPU Deal Hunter",
			Temperature:    &temperature,
			TimeoutSeconds: 60,
		},
		Retry: RetryConfig{
			Attempts: retry.Default.Attempts,
			DelayMS:  int(retry.Default.Delay / time.Millisecond),
		},
		Cache: CacheConfig{
			Path:       "./cache.db",
			TTLMinutes: 1440,
		},
		Vinted:    VintedConfig{Enabled: boolPtr(true), RPS: 2},
		Leboncoin: LeboncoinConfig{Enabled: boolPtr(true)},
		Telemetry: TelemetryConfig{ServiceName: "gpu-hunter"},
		Serve:     ServeConfig{Port: "9090"},
	}
}

// Load builds the configuration. A missing config file is not an error; the
// defaults are used. Pointer fields in the file replace the defaults as a
// whole, so an explicit 0 or false in the file is honored.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[CONFIG] could not read .env: %v", err)
	}

	cfg := Defaults()

	file, err := ReadConfig[Config](path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Printf("[CONFIG] no %s found, using defaults", path)
	case err != nil:
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	default:
		if err := mergo.Merge(&cfg, file, mergo.WithOverride, mergo.WithoutDereference); err != nil {
			return cfg, fmt.Errorf("config: merge %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func splitExt(f string) (string, string) {
	for i := len(f) - 1; i >= 0; i-- {
		if f[i] == '.' {
			return f[0:i], f[i+1:]
		}
	}
	return f, ""
}

// ReadConfig reads name and merges <name>.local.<ext> over it. It returns
// os.ErrNotExist when neither file exists.
func ReadConfig[T any](name string) (T, error) {
	var out T
	allNotFound := true

	dirname := filepath.Dir(name)
	prefixname, ext := splitExt(filepath.Base(name))

	defaultFile, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(defaultFile) > 0 {
		if err := json5.Unmarshal(defaultFile, &out); err != nil {
			return out, err
		}
		allNotFound = false
	}

	localFilepath := filepath.Join(dirname, fmt.Sprintf("%s.local.%s", prefixname, ext))
	localFile, err := os.ReadFile(localFilepath)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(localFile) > 0 {
		var override T
		if err := json5.Unmarshal(localFile, &override); err != nil {
			return out, err
		}
		if err := mergo.Merge(&out, override, mergo.WithOverride, mergo.WithoutDereference); err != nil {
			return out, err
		}
		log.Printf("[CONFIG] merged local overrides from %s", localFilepath)
		allNotFound = false
	}

	if allNotFound {
		return out, os.ErrNotExist
	}
	return out, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.LLM.APIKey, "OPENROUTER_API_KEY")
	setString(&cfg.LLM.Model, "GPU_HUNTER_MODEL")
	setString(&cfg.Query, "GPU_HUNTER_QUERY")
	setString(&cfg.Output, "GPU_HUNTER_OUTPUT")
	setString(&cfg.Market.Dir, "GPU_HUNTER_MARKET_DIR")
	setString(&cfg.Cache.Path, "CACHE_DB_PATH")
	setString(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.Serve.Port, "PORT")

	setInt(&cfg.Limit, "GPU_HUNTER_LIMIT")
	setInt(&cfg.Cache.TTLMinutes, "CACHE_TTL_MINUTES")
	if v, ok := envInt("GPU_HUNTER_PROCESS_LIMIT"); ok {
		cfg.ProcessLimit = &v
	}

	if v := os.Getenv("GPU_HUNTER_VERBOSE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Verbose = b
		}
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := envInt(key); ok {
		*dst = v
	}
}

func envInt(key string) (int, bool) {
	val := os.Getenv(key)
	if val == "" {
		return 0, false
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		log.Printf("[CONFIG] ignoring %s=%q: not a non-negative integer", key, val)
		return 0, false
	}
	return n, true
}

// Validate checks what a pipeline run needs.
func (c Config) Validate() error {
	if c.LLM.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Limit <= 0 {
		return fmt.Errorf("config: limit must be positive, got %d", c.Limit)
	}
	if c.Market.MinPrice != nil && c.Market.MaxPrice != nil && *c.Market.MinPrice > *c.Market.MaxPrice {
		return fmt.Errorf("config: market.min_price %.2f is above market.max_price %.2f", *c.Market.MinPrice, *c.Market.MaxPrice)
	}
	return nil
}

func (c Config) ProcessLimitValue() int {
	if c.ProcessLimit == nil {
		return pipeline.DefaultProcessLimit
	}
	return *c.ProcessLimit
}

func (c Config) Throttle() time.Duration {
	if c.ThrottleMS == nil {
		return pipeline.DefaultThrottle
	}
	return time.Duration(*c.ThrottleMS) * time.Millisecond
}

func (c Config) RetryPolicy() retry.Policy {
	p := retry.Policy{
		Attempts: c.Retry.Attempts,
		Delay:    time.Duration(c.Retry.DelayMS) * time.Millisecond,
	}
	if p.Attempts <= 0 {
		p.Attempts = retry.Default.Attempts
	}
	return p
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMinutes) * time.Minute
}

func (c Config) LLMOptions() llm.Options {
	opts := llm.Options{
		BaseURL: c.LLM.BaseURL,
		APIKey:  c.LLM.APIKey,
		Model:   c.LLM.Model,
		Title:   c.LLM.Title,
		Referer: c.LLM.Referer,
		Timeout: time.Duration(c.LLM.TimeoutSeconds) * time.Second,
	}
	if c.LLM.Temperature != nil {
		opts.Temperature = *c.LLM.Temperature
	}
	return opts
}

func (c Config) VintedEnabled() bool {
	return c.Vinted.Enabled == nil || *c.Vinted.Enabled
}

func (c Config) LeboncoinEnabled() bool {
	return c.Leboncoin.Enabled == nil || *c.Leboncoin.Enabled
}
