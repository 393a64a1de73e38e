// Package config loads sessiond process configuration from the environment and
// an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	goSession "github.com/MrEthical07/goSession"
	"github.com/spf13/viper"
)

// Store backends.
const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config holds process configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the listen address of the HTTP server.
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// LogLevel is a zap level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// StoreBackend is "redis" or "memory".
	StoreBackend string `mapstructure:"STORE_BACKEND"`
	// RedisURL is parsed with redis.ParseURL.
	RedisURL      string `mapstructure:"REDIS_URL"`
	SessionPrefix string `mapstructure:"SESSION_PREFIX"`

	AccessTokenSecret      string `mapstructure:"ACCESS_TOKEN_SECRET"`
	RefreshTokenSecret     string `mapstructure:"REFRESH_TOKEN_SECRET"`
	RefreshTokenHashSecret string `mapstructure:"REFRESH_TOKEN_HASH_SECRET"`
	JWTIssuer              string `mapstructure:"JWT_ISSUER"`
	JWTAudience            string `mapstructure:"JWT_AUDIENCE"`
	JWTKeyVersion          string `mapstructure:"JWT_KEY_VERSION"`

	PasswordPepper string `mapstructure:"PASSWORD_PEPPER"`

	RefreshCookieName string `mapstructure:"REFRESH_COOKIE_NAME"`
	// TrustProxy keys rate limits and audit IPs by forwarding headers.
	TrustProxy bool `mapstructure:"TRUST_PROXY"`
	// CookieInsecure drops the Secure attribute; for local HTTP development only.
	CookieInsecure bool `mapstructure:"COOKIE_INSECURE"`

	// RateLimitBackend is "memory" or "redis".
	RateLimitBackend string `mapstructure:"RATE_LIMIT_BACKEND"`
	AuditEnabled     bool   `mapstructure:"AUDIT_ENABLED"`
	MetricsEnabled   bool   `mapstructure:"METRICS_ENABLED"`
}

var requiredKeys = []string{
	"ACCESS_TOKEN_SECRET",
	"REFRESH_TOKEN_SECRET",
	"REFRESH_TOKEN_HASH_SECRET",
	"JWT_ISSUER",
	"JWT_AUDIENCE",
}

func missingFile(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound)
}

// Load reads .env (if present) from the working directory, then the environment.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is [Load] with an explicit env file path. A missing file is ignored
// but an unreadable or malformed one is an error; environment variables
// override its values.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil && !missingFile(err) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_BACKEND", StoreRedis)
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("SESSION_PREFIX", "rt")
	v.SetDefault("ACCESS_TOKEN_SECRET", "")
	v.SetDefault("REFRESH_TOKEN_SECRET", "")
	v.SetDefault("REFRESH_TOKEN_HASH_SECRET", "")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")
	v.SetDefault("JWT_KEY_VERSION", "v1")
	v.SetDefault("PASSWORD_PEPPER", "")
	v.SetDefault("REFRESH_COOKIE_NAME", "refresh_token")
	v.SetDefault("COOKIE_INSECURE", false)
	v.SetDefault("TRUST_PROXY", false)
	v.SetDefault("RATE_LIMIT_BACKEND", goSession.RateBackendMemory)
	v.SetDefault("AUDIT_ENABLED", true)
	v.SetDefault("METRICS_ENABLED", true)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	var missing []string
	for _, key := range requiredKeys {
		if strings.TrimSpace(v.GetString(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("config: %s required", strings.Join(missing, ", "))
	}

	if cfg.StoreBackend != StoreRedis && cfg.StoreBackend != StoreMemory {
		return nil, fmt.Errorf("config: STORE_BACKEND must be %q or %q", StoreRedis, StoreMemory)
	}
	if cfg.StoreBackend == StoreMemory && cfg.RateLimitBackend == goSession.RateBackendRedis {
		return nil, errors.New("config: RATE_LIMIT_BACKEND=redis requires STORE_BACKEND=redis")
	}

	return &cfg, nil
}

// EngineConfig maps the process configuration onto the engine configuration.
// Credential lifetimes keep the engine's fixed defaults. The result still
// needs [goSession.Config.Validate], which Build runs.
func (c *Config) EngineConfig() goSession.Config {
	cfg := goSession.DefaultConfig()
	cfg.JWT.AccessSecret = []byte(c.AccessTokenSecret)
	cfg.JWT.RefreshSecret = []byte(c.RefreshTokenSecret)
	cfg.JWT.Issuer = c.JWTIssuer
	cfg.JWT.Audience = c.JWTAudience
	cfg.JWT.KeyVersion = c.JWTKeyVersion
	cfg.Session.RedisPrefix = c.SessionPrefix
	cfg.Session.CredentialHashSecret = []byte(c.RefreshTokenHashSecret)
	cfg.Password.Pepper = []byte(c.PasswordPepper)
	cfg.RateLimit.Backend = c.RateLimitBackend
	cfg.Audit.Enabled = c.AuditEnabled
	cfg.Metrics.Enabled = c.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = c.MetricsEnabled
	cfg.Cookie.Name = c.RefreshCookieName
	cfg.Cookie.Secure = !c.CookieInsecure
	cfg.Cookie.MaxAge = cfg.JWT.RefreshTTL
	return cfg
}
