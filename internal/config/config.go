// Package config loads service configuration from the environment.
//
// All values are read once at startup. A missing or malformed value is a
// deployment error: callers are expected to fail fast and never retry.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/GogiGunia/Toolidol/internal/token"
)

// ErrMissing indicates a required configuration value is absent or empty.
var ErrMissing = errors.New("config: required value missing")

// Config holds every runtime setting of the API process.
type Config struct {
	HTTPAddr string `env:"TOOLIDOL_HTTP_ADDR" envDefault:":8080"`
	PGDSN    string `env:"TOOLIDOL_PG_DSN"`

	// Token signing.
	SigningKey string        `env:"TOOLIDOL_AUTH_SIGNING_KEY"`
	Issuer     string        `env:"TOOLIDOL_AUTH_ISSUER" envDefault:"toolidol"`
	Audience   string        `env:"TOOLIDOL_AUTH_AUDIENCE" envDefault:"toolidol-web"`
	ClockSkew  time.Duration `env:"TOOLIDOL_AUTH_CLOCK_SKEW" envDefault:"5s"`

	// Kind-specific expiry windows, kept as strings so a malformed value
	// is reported by TokenTTL with the offending kind in the message.
	AccessTokenTTL        string `env:"TOOLIDOL_AUTH_ACCESS_TTL" envDefault:"15m"`
	RefreshTokenTTL       string `env:"TOOLIDOL_AUTH_REFRESH_TTL" envDefault:"336h"`
	PasswordResetTokenTTL string `env:"TOOLIDOL_AUTH_PASSWORD_RESET_TTL" envDefault:"1h"`

	// Facebook Graph API integration.
	FacebookAppID       string `env:"TOOLIDOL_FB_APP_ID"`
	FacebookAppSecret   string `env:"TOOLIDOL_FB_APP_SECRET"`
	FacebookGraphAPIURL string `env:"TOOLIDOL_FB_GRAPH_URL" envDefault:"https://graph.facebook.com/v19.0"`

	// Master key for envelope encryption of stored provider tokens.
	DataProtectionKey string `env:"TOOLIDOL_DATA_PROTECTION_KEY"`

	MigrationsDir string `env:"TOOLIDOL_MIGRATIONS_DIR"`
}

// Load parses the environment and validates values the security core
// cannot run without.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if strings.TrimSpace(cfg.SigningKey) == "" {
		return Config{}, fmt.Errorf("%w: TOOLIDOL_AUTH_SIGNING_KEY", ErrMissing)
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return Config{}, fmt.Errorf("%w: TOOLIDOL_AUTH_ISSUER", ErrMissing)
	}
	if strings.TrimSpace(cfg.Audience) == "" {
		return Config{}, fmt.Errorf("%w: TOOLIDOL_AUTH_AUDIENCE", ErrMissing)
	}
	return cfg, nil
}

// TokenTTL resolves the expiry window configured for the given token kind.
func (c Config) TokenTTL(kind token.Kind) (time.Duration, error) {
	var raw string
	switch kind {
	case token.KindAccess:
		raw = c.AccessTokenTTL
	case token.KindRefresh:
		raw = c.RefreshTokenTTL
	case token.KindPasswordReset:
		raw = c.PasswordResetTokenTTL
	default:
		return 0, fmt.Errorf("config: unsupported token kind %q", kind)
	}
	if strings.TrimSpace(raw) == "" {
		return 0, fmt.Errorf("%w: expiration for token kind %q", ErrMissing, kind)
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: expiration for token kind %q is not a duration: %w", kind, err)
	}
	if ttl <= 0 {
		return 0, fmt.Errorf("config: expiration for token kind %q must be positive", kind)
	}
	return ttl, nil
}

// TokenConfig builds the signing parameters consumed by the token service.
func (c Config) TokenConfig() (token.Config, error) {
	ttls := make(map[token.Kind]time.Duration, 3)
	for _, kind := range []token.Kind{token.KindAccess, token.KindRefresh, token.KindPasswordReset} {
		ttl, err := c.TokenTTL(kind)
		if err != nil {
			return token.Config{}, err
		}
		ttls[kind] = ttl
	}
	return token.Config{
		SigningKey: []byte(c.SigningKey),
		Issuer:     c.Issuer,
		Audience:   c.Audience,
		ClockSkew:  c.ClockSkew,
		TTLs:       ttls,
	}, nil
}
