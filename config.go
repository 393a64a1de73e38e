package goSession

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MrEthical07/goSession/jwt"
)

// Config is the complete engine configuration. Start from [DefaultConfig] and
// fill in the secrets; [Builder.Build] validates it.
type Config struct {
	JWT       JWTConfig
	Session   SessionConfig
	Password  PasswordConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Cookie    CookieConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the credential signer. Both credential classes are
// HS256 with distinct secrets.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	Audience      string
	KeyVersion    string
	Leeway        time.Duration

	// PreviousKeys are accepted for verification only, keyed by version.
	PreviousKeys map[string]jwt.KeySet
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures the refresh session store.
type SessionConfig struct {
	RedisPrefix string
	// CredentialHashSecret keys the HMAC fingerprint stored for each refresh credential.
	CredentialHashSecret []byte
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig configures argon2id hashing for sign-up and sign-in.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	Pepper      []byte
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateRule limits one route to MaxRequests per fixed Window per client.
type RateRule struct {
	Route       string
	Window      time.Duration
	MaxRequests int
}

// Rate limiter backends.
const (
	RateBackendMemory = "memory"
	RateBackendRedis  = "redis"
)

// RateLimitConfig configures the per-route request gate.
type RateLimitConfig struct {
	Enabled bool
	// Backend is "memory" (process-local) or "redis" (shared across replicas).
	Backend     string
	RedisPrefix string
	Rules       []RateRule
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig shapes the refresh credential cookie set by the HTTP layer.
type CookieConfig struct {
	Name     string
	Path     string
	MaxAge   time.Duration
	Secure   bool
	SameSite http.SameSite
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a configuration with every non-secret field set.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  jwt.DefaultAccessTTL,
			RefreshTTL: jwt.DefaultRefreshTTL,
			KeyVersion: jwt.DefaultKeyVersion,
		},
		Session: SessionConfig{
			RedisPrefix: "rt",
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			Backend:     RateBackendMemory,
			RedisPrefix: "rl",
			Rules: []RateRule{
				{Route: "auth-signup", Window: time.Minute, MaxRequests: 10},
				{Route: "auth-signin", Window: time.Minute, MaxRequests: 10},
				{Route: "auth-refresh", Window: time.Minute, MaxRequests: 30},
				{Route: "auth-logout", Window: time.Minute, MaxRequests: 20},
			},
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Cookie: CookieConfig{
			Name:     "refresh_token",
			Path:     "/api/auth",
			MaxAge:   7 * 24 * time.Hour,
			Secure:   true,
			SameSite: http.SameSiteStrictMode,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessSecret = cloneBytes(cfg.JWT.AccessSecret)
	out.JWT.RefreshSecret = cloneBytes(cfg.JWT.RefreshSecret)
	if cfg.JWT.PreviousKeys != nil {
		out.JWT.PreviousKeys = make(map[string]jwt.KeySet, len(cfg.JWT.PreviousKeys))
		for version, keys := range cfg.JWT.PreviousKeys {
			out.JWT.PreviousKeys[version] = jwt.KeySet{
				AccessSecret:  cloneBytes(keys.AccessSecret),
				RefreshSecret: cloneBytes(keys.RefreshSecret),
			}
		}
	}
	out.Session.CredentialHashSecret = cloneBytes(cfg.Session.CredentialHashSecret)
	out.Password.Pepper = cloneBytes(cfg.Password.Pepper)
	out.RateLimit.Rules = append([]RateRule(nil), cfg.RateLimit.Rules...)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks cross-field constraints. It fails on the first violation.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must exceed AccessTTL")
	}
	if len(c.JWT.AccessSecret) == 0 {
		return errors.New("JWT AccessSecret is required")
	}
	if len(c.JWT.RefreshSecret) == 0 {
		return errors.New("JWT RefreshSecret is required")
	}
	if string(c.JWT.AccessSecret) == string(c.JWT.RefreshSecret) {
		return errors.New("JWT AccessSecret and RefreshSecret must differ")
	}
	if c.JWT.Issuer == "" {
		return errors.New("JWT Issuer is required")
	}
	if c.JWT.Audience == "" {
		return errors.New("JWT Audience is required")
	}
	if c.JWT.KeyVersion == "" {
		return errors.New("JWT KeyVersion is required")
	}
	if c.JWT.Leeway < 0 {
		return errors.New("JWT Leeway must be >= 0")
	}

	// Session
	if len(c.Session.CredentialHashSecret) == 0 {
		return errors.New("Session CredentialHashSecret is required")
	}
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix is required")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.Backend != RateBackendMemory && c.RateLimit.Backend != RateBackendRedis {
			return fmt.Errorf("unsupported RateLimit Backend %q", c.RateLimit.Backend)
		}
		for _, r := range c.RateLimit.Rules {
			if r.Route == "" || r.Window <= 0 || r.MaxRequests <= 0 {
				return fmt.Errorf("invalid RateLimit rule for route %q", r.Route)
			}
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Cookie
	if c.Cookie.Name == "" {
		return errors.New("Cookie Name is required")
	}
	if c.Cookie.MaxAge < 0 {
		return errors.New("Cookie MaxAge must be >= 0")
	}

	return nil
}
