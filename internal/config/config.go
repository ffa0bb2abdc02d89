// Package config loads the outbound CLI configuration from defaults, an
// optional YAML file and OUTBOUND_* environment variables, in that order of
// increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kroma-labs/outbound/httpclient"
)

// EnvPrefix marks the environment variables read by Load. A double
// underscore separates nesting levels:
//
//	OUTBOUND_CLIENT__TIMEOUT=5s       -> client.timeout
//	OUTBOUND_RATE_LIMIT__BURST=20     -> rate_limit.burst
const EnvPrefix = "OUTBOUND_"

// Config is the complete CLI configuration.
type Config struct {
	Client    ClientConfig    `koanf:"client"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Chaos     ChaosConfig     `koanf:"chaos"`
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ClientConfig mirrors httpclient.ClientConfig plus the request defaults
// applied to every call.
type ClientConfig struct {
	BaseURL     string            `koanf:"base_url" validate:"omitempty,url"`
	Timeout     time.Duration     `koanf:"timeout" validate:"gt=0"`
	Retries     int               `koanf:"retries" validate:"gte=0,lte=20"`
	RetryDelay  time.Duration     `koanf:"retry_delay" validate:"gte=0"`
	Logging     bool              `koanf:"logging"`
	ServiceName string            `koanf:"service_name"`
	UserAgent   string            `koanf:"user_agent"`
	Headers     map[string]string `koanf:"headers"`
}

// RateLimitConfig enables client-side rate limiting when RequestsPerSecond
// is positive.
type RateLimitConfig struct {
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gte=0"`
	Burst             int     `koanf:"burst" validate:"gte=0"`
	Wait              bool    `koanf:"wait"`
}

// ChaosConfig enables fault injection. Intended for resilience drills.
type ChaosConfig struct {
	Enabled     bool          `koanf:"enabled"`
	Latency     time.Duration `koanf:"latency" validate:"gte=0"`
	ErrorRate   float64       `koanf:"error_rate" validate:"gte=0,lte=1"`
	TimeoutRate float64       `koanf:"timeout_rate" validate:"gte=0,lte=1"`
	StatusRate  float64       `koanf:"status_rate" validate:"gte=0,lte=1"`
	Status      int           `koanf:"status" validate:"omitempty,gte=400,lte=599"`
}

// LogConfig controls the CLI logger.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Pretty bool   `koanf:"pretty"`
}

// TelemetryConfig controls exporters started by the CLI.
type TelemetryConfig struct {
	// MetricsAddr serves Prometheus metrics when set, e.g. ":9464".
	MetricsAddr string `koanf:"metrics_addr" validate:"omitempty,hostname_port"`
	// Trace dumps spans to stderr.
	Trace bool `koanf:"trace"`
}

// Load reads configuration with priority:
// 1. Environment variables (highest priority)
// 2. The YAML file at path, when path is not empty
// 3. Default values (lowest priority)
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if err := k.Load(envprovider.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// envKey converts OUTBOUND_CLIENT__RETRY_DELAY to client.retry_delay.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"client.timeout":     httpclient.DefaultTimeout,
		"client.retries":     httpclient.DefaultRetries,
		"client.retry_delay": httpclient.DefaultRetryDelay,
		"client.logging":     false,
		"client.user_agent":  "outbound",

		"rate_limit.requests_per_second": 0,
		"rate_limit.burst":               1,
		"rate_limit.wait":                true,

		"chaos.enabled": false,

		"log.level":  "info",
		"log.pretty": true,

		"telemetry.metrics_addr": "",
		"telemetry.trace":        false,
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return newValidationError(verrs)
		}
		return err
	}
	return nil
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

// FieldError describes one invalid field.
type FieldError struct {
	Field string
	Rule  string
	Value any
}

func newValidationError(errs validator.ValidationErrors) *ValidationError {
	fields := make([]FieldError, 0, len(errs))
	for _, e := range errs {
		fields = append(fields, FieldError{
			Field: e.Namespace(),
			Rule:  e.Tag(),
			Value: e.Value(),
		})
	}
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s failed %q (value %v)", f.Field, f.Rule, f.Value))
	}
	return strings.Join(parts, "; ")
}

// ClientOptions translates the configuration into httpclient options.
// Callers append their own options, such as a logger, after these.
func (c *Config) ClientOptions() []httpclient.Option {
	opts := []httpclient.Option{
		httpclient.WithClientConfig(httpclient.ClientConfig{
			DefaultTimeout: c.Client.Timeout,
			DefaultRetries: c.Client.Retries,
			RetryDelay:     c.Client.RetryDelay,
			EnableLogging:  c.Client.Logging,
		}),
	}

	if c.Client.BaseURL != "" {
		opts = append(opts, httpclient.WithBaseURL(c.Client.BaseURL))
	}
	if len(c.Client.Headers) > 0 {
		opts = append(opts, httpclient.WithDefaultHeaders(c.Client.Headers))
	}
	if c.Client.ServiceName != "" {
		opts = append(opts, httpclient.WithServiceName(c.Client.ServiceName))
	}
	if c.Client.UserAgent != "" {
		opts = append(opts, httpclient.WithRequestInterceptor(
			httpclient.UserAgentInterceptor(c.Client.UserAgent),
		))
	}
	if c.RateLimit.RequestsPerSecond > 0 {
		opts = append(opts, httpclient.WithRateLimit(httpclient.RateLimitConfig{
			RequestsPerSecond: c.RateLimit.RequestsPerSecond,
			Burst:             c.RateLimit.Burst,
			WaitOnLimit:       c.RateLimit.Wait,
		}))
	}
	if c.Chaos.Enabled {
		opts = append(opts, httpclient.WithChaos(httpclient.ChaosConfig{
			Latency:     c.Chaos.Latency,
			ErrorRate:   c.Chaos.ErrorRate,
			TimeoutRate: c.Chaos.TimeoutRate,
			StatusRate:  c.Chaos.StatusRate,
			Status:      c.Chaos.Status,
		}))
	}

	return opts
}
