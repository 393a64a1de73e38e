package goSession

import (
	"net/http"

	"github.com/MrEthical07/goSession/internal/security"
)

// SecurityReport is a redacted summary of the security-relevant settings.
type SecurityReport = security.Report

// SecurityReport summarizes c without exposing any secret material.
func (c Config) SecurityReport() SecurityReport {
	previous := make([]string, 0, len(c.JWT.PreviousKeys))
	for version := range c.JWT.PreviousKeys {
		previous = append(previous, version)
	}
	return security.BuildReport(security.ReportInput{
		KeyVersion:          c.JWT.KeyVersion,
		PreviousKeyVersions: previous,
		AccessTTL:           c.JWT.AccessTTL,
		RefreshTTL:          c.JWT.RefreshTTL,
		Leeway:              c.JWT.Leeway,
		Password: security.PasswordReport{
			Memory:      c.Password.Memory,
			Time:        c.Password.Time,
			Parallelism: c.Password.Parallelism,
			SaltLength:  c.Password.SaltLength,
			KeyLength:   c.Password.KeyLength,
			Peppered:    len(c.Password.Pepper) > 0,
		},
		AccessSecretLen:  len(c.JWT.AccessSecret),
		RefreshSecretLen: len(c.JWT.RefreshSecret),
		HashSecretLen:    len(c.Session.CredentialHashSecret),
		RateLimitEnabled: c.RateLimit.Enabled,
		RateLimitRules:   len(c.RateLimit.Rules),
		RateLimitBackend: c.RateLimit.Backend,
		AuditEnabled:     c.Audit.Enabled,
		MetricsEnabled:   c.Metrics.Enabled,
		CookieSecure:     c.Cookie.Secure,
		CookieSameSite:   sameSiteName(c.Cookie.SameSite),
	})
}

func sameSiteName(s http.SameSite) string {
	switch s {
	case http.SameSiteStrictMode:
		return "Strict"
	case http.SameSiteLaxMode:
		return "Lax"
	case http.SameSiteNoneMode:
		return "None"
	default:
		return "Default"
	}
}
