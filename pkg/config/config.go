// Package config loads the relay configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-training/cvgen-relay/pkg/store"

	"github.com/caarlos0/env/v11"
)

// Config is constructed once at startup and passed to every component.
type Config struct {
	Env         string `env:"ENV" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL"`
	Port        string `env:"PORT" envDefault:"3000"`
	DebugErrors bool   `env:"DEBUG_ERRORS"`

	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	RedirectURI  string   `env:"REDIRECT_URI"`
	Scopes       []string `env:"SCOPES" envSeparator:"," envDefault:"read:user,public_repo"`
	GitHubWebURL string   `env:"GITHUB_WEB_URL" envDefault:"https://github.com"`
	GitHubAPIURL string   `env:"GITHUB_API_URL" envDefault:"https://api.github.com/"`

	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`

	FrontendURL     string   `env:"FRONTEND_URL" envDefault:"https://simoxdev1173.github.io/cvGen/#/generate"`
	AllowedOrigins  []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"https://simoxdev1173.github.io"`
	CookieCrossSite bool     `env:"COOKIE_CROSS_SITE"`

	SessionSecret string        `env:"SESSION_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	Store         string `env:"STORE" envDefault:"memory"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"`
}

// Prefix is prepended to every environment variable name.
const Prefix = "CVGEN_"

var (
	// ErrMissingCredentials is returned when the provider client id or secret is absent.
	ErrMissingCredentials = errors.New("client id and client secret must be provided")
	// ErrMissingSessionSecret is returned when no session signing secret is configured.
	ErrMissingSessionSecret = errors.New("session secret must be provided")
)

// minSecretLength is the shortest accepted session signing secret in bytes.
const minSecretLength = 32

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	cfg, err := Parse(env.Options{Prefix: Prefix})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads the environment with the given options without validating.
func Parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.AllowedOrigins = normalizeOrigins(cfg.AllowedOrigins)
	return &cfg, nil
}

// Validate checks that required identity-provider credentials and secrets are present.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ClientID) == "" || strings.TrimSpace(c.ClientSecret) == "" {
		return ErrMissingCredentials
	}
	if c.SessionSecret == "" {
		return ErrMissingSessionSecret
	}
	if len(c.SessionSecret) < minSecretLength {
		return fmt.Errorf("session secret must be at least %d bytes", minSecretLength)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive, got %s", c.SessionTTL)
	}
	if t := store.ParseStoreType(c.Store); !t.IsValid() {
		return fmt.Errorf("unsupported store type %q, want memory or redis", c.Store)
	}
	if _, err := url.Parse(c.FrontendURL); err != nil {
		return fmt.Errorf("invalid frontend url: %w", err)
	}
	if c.CookieCrossSite && !c.IsProduction() {
		return errors.New("cross-site cookies require a production (secure) deployment")
	}
	return nil
}

// IsProduction reports whether the relay runs in production posture.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Addr returns the listen address derived from Port.
func (c *Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}
