package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/aiatlas/internal/models"
	"github.com/starford/aiatlas/internal/resilience"
	"github.com/starford/aiatlas/internal/sse"
)

var (
	categoryIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
	extensionPattern  = regexp.MustCompile(`^\.[A-Za-z0-9]+$`)
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Notes   NotesConfig       `yaml:"notes"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Events  EventsConfig      `yaml:"events"`
	Backend BackendConfig     `yaml:"backend"`
	Metrics MetricsConfig     `yaml:"metrics"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Notes.Validate(); err != nil {
		return fmt.Errorf("notes: %w", err)
	}
	if err := c.Events.Validate(); err != nil {
		return fmt.Errorf("events: %w", err)
	}
	if err := c.Backend.Validate(); err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	return c.Metrics.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel        slog.Level    `yaml:"log_level"`
	HTTP            HTTPConfig    `yaml:"http"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.ShutdownTimeout, validation.Required, validation.Min(time.Millisecond)),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// NotesConfig describes the corpus on disk.
//
// Categories are scanned in the order listed; each one maps to the
// subdirectory of Root named after its ID.
type NotesConfig struct {
	Root          string            `yaml:"root"`
	Extension     string            `yaml:"extension"`
	CacheTTL      time.Duration     `yaml:"cache_ttl"`
	Watch         bool              `yaml:"watch"`
	DefaultAuthor string            `yaml:"default_author"`
	RelatedLimit  int               `yaml:"related_limit"`
	Categories    []models.Category `yaml:"categories"`
}

// Validate validates the notes configuration.
func (c *NotesConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.Extension, validation.Required, validation.Match(extensionPattern)),
		validation.Field(&c.CacheTTL, validation.Min(time.Duration(0))),
		validation.Field(&c.RelatedLimit, validation.Min(0)),
		validation.Field(&c.Categories, validation.Required),
	); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Categories))
	for i := range c.Categories {
		cat := &c.Categories[i]
		if err := validation.ValidateStruct(cat,
			validation.Field(&cat.ID, validation.Required, validation.Match(categoryIDPattern)),
			validation.Field(&cat.Name, validation.Required),
		); err != nil {
			return fmt.Errorf("categories[%d]: %w", i, err)
		}
		if seen[cat.ID] {
			return fmt.Errorf("categories[%d]: duplicate id %q", i, cat.ID)
		}
		seen[cat.ID] = true
	}
	return nil
}

// SQLiteConfig holds the search mirror database configuration. An empty
// Path disables the mirror and the search endpoint.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Enabled reports whether the search mirror is configured.
func (c *SQLiteConfig) Enabled() bool {
	return c.Path != ""
}

// EventsConfig tunes the server-sent events stream.
type EventsConfig struct {
	RefreshThrottle time.Duration `yaml:"refresh_throttle"`
	Heartbeat       time.Duration `yaml:"heartbeat"`
	// History is how many events are kept for clients resuming with
	// Last-Event-ID.
	History int `yaml:"history"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RefreshThrottle, validation.Min(time.Duration(0))),
		validation.Field(&c.Heartbeat, validation.Min(time.Duration(0))),
		validation.Field(&c.History, validation.Min(0), validation.Max(10000)),
	)
}

// BackendConfig points at the external backend that records visitor stats
// and serves the LLM demo endpoints.
type BackendConfig struct {
	Enabled bool          `yaml:"enabled"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	// ProxyPrefixes are paths under /api forwarded to the backend as is.
	ProxyPrefixes []string        `yaml:"proxy_prefixes"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
	Retry         RetryConfig     `yaml:"retry"`
	Breaker       BreakerConfig   `yaml:"breaker"`
}

// Validate validates the backend configuration.
func (c *BackendConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required, is.URL),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.ProxyPrefixes, validation.Each(validation.Required, validation.Match(regexp.MustCompile(`^/[a-z0-9/-]+$`)))),
		validation.Field(&c.RateLimit),
		validation.Field(&c.Breaker),
	)
}

// Resilience converts the retry and breaker settings.
func (c *BackendConfig) Resilience() resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:    c.Retry.MaxAttempts,
		RetryInitialBackoff: c.Retry.InitialBackoff,
		RetryMaxBackoff:     c.Retry.MaxBackoff,

		BreakerEnabled:      c.Breaker.Enabled,
		BreakerMinRequests:  c.Breaker.MinRequests,
		BreakerFailureRatio: c.Breaker.FailureRatio,
		BreakerOpenTimeout:  c.Breaker.OpenTimeout,
	}
}

// RateLimitConfig limits proxied backend calls. RPS 0 disables the limit.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Validate validates the rate limit configuration.
func (c RateLimitConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.RPS, validation.Min(0.0)),
		validation.Field(&c.Burst, validation.Min(0)),
	)
}

// RetryConfig configures retries of idempotent backend calls.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// BreakerConfig configures the backend circuit breaker.
type BreakerConfig struct {
	Enabled      bool          `yaml:"enabled"`
	MinRequests  uint32        `yaml:"min_requests"`
	FailureRatio float64       `yaml:"failure_ratio"`
	OpenTimeout  time.Duration `yaml:"open_timeout"`
}

// Validate validates the breaker configuration.
func (c BreakerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.FailureRatio, validation.Min(0.0), validation.Max(1.0)),
	)
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Validate validates the metrics configuration.
func (c *MetricsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required, validation.Match(regexp.MustCompile(`^/`))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	def := resilience.DefaultConfig()
	return &Config{
		App: ApplicationConfig{
			LogLevel:        slog.LevelInfo,
			HTTP:            HTTPConfig{Port: 8080},
			ShutdownTimeout: 10 * time.Second,
		},
		Notes: NotesConfig{
			Root:       "./content/notes",
			Extension:  ".md",
			CacheTTL:   time.Minute,
			Watch:      true,
			Categories: models.DefaultCategories(),
		},
		SQLite: SQLiteConfig{
			Path: "./aiatlas.db",
		},
		Events: EventsConfig{
			RefreshThrottle: 2 * time.Second,
			Heartbeat:       30 * time.Second,
			History:         sse.DefaultHistory,
		},
		Backend: BackendConfig{
			Enabled:       true,
			URL:           "http://localhost:8090",
			Timeout:       30 * time.Second,
			ProxyPrefixes: []string{"/prompt-optimizer", "/concept-explainer", "/visitor-stats"},
			RateLimit:     RateLimitConfig{RPS: 5, Burst: 10},
			Retry: RetryConfig{
				MaxAttempts:    def.RetryMaxAttempts,
				InitialBackoff: def.RetryInitialBackoff,
				MaxBackoff:     def.RetryMaxBackoff,
			},
			Breaker: BreakerConfig{
				Enabled:      def.BreakerEnabled,
				MinRequests:  def.BreakerMinRequests,
				FailureRatio: def.BreakerFailureRatio,
				OpenTimeout:  def.BreakerOpenTimeout,
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
