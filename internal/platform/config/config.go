// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, Mailer) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/crypto/bcrypt"
)

// minJWTSecretLength is the smallest HS256 key accepted (256 bits).
const minJWTSecretLength = 32

// # Configuration Schema

// Config holds all runtime configuration for the SKPD portal API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis)
	RedisURL string `env:"REDIS_URL,required,notEmpty"`

	// Access token signing (HS256)
	JWTSecret   string `env:"JWT_SECRET,required,notEmpty"`
	JWTIssuer   string `env:"JWT_ISSUER"   envDefault:"skpd-portal"`
	JWTAudience string `env:"JWT_AUDIENCE" envDefault:"skpd-portal-web"`

	// Session lifetimes
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL"  envDefault:"30m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`

	// BcryptCost is the work factor for password and decoy hashes.
	BcryptCost int `env:"BCRYPT_COST" envDefault:"12"`

	// OtpLoginRequired forces an emailed one-time code for every account.
	OtpLoginRequired bool `env:"OTP_LOGIN_REQUIRED" envDefault:"false"`

	// Outbound mail (OTP delivery)
	SMTPHost        string        `env:"SMTP_HOST"`
	SMTPPort        int           `env:"SMTP_PORT"         envDefault:"587"`
	SMTPUser        string        `env:"SMTP_USER"`
	SMTPPass        string        `env:"SMTP_PASS"`
	SMTPFrom        string        `env:"SMTP_FROM"`
	SMTPFromName    string        `env:"SMTP_FROM_NAME"    envDefault:"SKPD Kabupaten Merauke"`
	SMTPSecure      bool          `env:"SMTP_SECURE"       envDefault:"true"`
	MailSendTimeout time.Duration `env:"MAIL_SEND_TIMEOUT" envDefault:"10s"`

	// AuditBufferSize is how many audit events may wait for the background writer.
	AuditBufferSize int `env:"AUDIT_BUFFER_SIZE" envDefault:"256"`

	// Tenant resolution cache
	TenantCacheTTL time.Duration `env:"TENANT_CACHE_TTL" envDefault:"5m"`

	// Error reporting
	SentryDSN string `env:"SENTRY_DSN"`

	// Cross-Origin Resource Sharing (comma-separated list of exact origins)
	ExtraOrigins string `env:"EXTRA_ORIGINS"`

	// TrustedProxies lists the CIDRs (or bare IPs) of reverse proxies whose
	// X-Real-IP, X-Forwarded-For and X-Forwarded-Host headers are honoured.
	// Empty means the socket address is the client.
	TrustedProxies string `env:"TRUSTED_PROXIES"`

	trustedProxies []netip.Prefix
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate rejects settings that would weaken the auth core.
func (c *Config) validate() error {
	if len(c.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("config: JWT_SECRET must be at least %d bytes", minJWTSecretLength)
	}

	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("config: BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("config: token lifetimes must be positive")
	}

	if c.RefreshTokenTTL <= c.AccessTokenTTL {
		return fmt.Errorf("config: REFRESH_TOKEN_TTL must exceed ACCESS_TOKEN_TTL")
	}

	prefixes, err := parsePrefixes(c.TrustedProxies)
	if err != nil {
		return fmt.Errorf("config: TRUSTED_PROXIES: %w", err)
	}
	c.trustedProxies = prefixes

	return nil
}

// parsePrefixes reads a comma-separated list of CIDRs. A bare address is
// taken as a single-host prefix.
func parsePrefixes(raw string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if !strings.Contains(entry, "/") {
			addr, err := netip.ParseAddr(entry)
			if err != nil {
				return nil, err
			}
			addr = addr.Unmap()
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}

		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return nil, err
		}
		prefixes = append(prefixes, prefix.Masked())
	}
	return prefixes, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// MailEnabled reports whether an SMTP relay is configured.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != ""
}

// AllowedOrigins returns the trimmed, non-empty entries of EXTRA_ORIGINS.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.ExtraOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// TrustedProxyPrefixes returns the parsed TRUSTED_PROXIES list.
func (c *Config) TrustedProxyPrefixes() []netip.Prefix {
	return c.trustedProxies
}
