package security

import (
	"sort"
	"time"
)

// minSecretBytes is the HS256 key length below which a secret is flagged weak.
const minSecretBytes = 32

type PasswordReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	Peppered    bool
}

// Report is a redacted summary of the security-relevant configuration.
// It never carries secret material.
type Report struct {
	SigningAlgorithm    string
	KeyVersion          string
	PreviousKeyVersions []string
	AccessTTL           time.Duration
	RefreshTTL          time.Duration
	Leeway              time.Duration
	Argon2              PasswordReport
	RateLimitingActive  bool
	RateLimitBackend    string
	AuditEnabled        bool
	MetricsEnabled      bool
	CookieSecure        bool
	CookieSameSite      string
	Warnings            []string
}

type ReportInput struct {
	KeyVersion          string
	PreviousKeyVersions []string
	AccessTTL           time.Duration
	RefreshTTL          time.Duration
	Leeway              time.Duration
	Password            PasswordReport
	AccessSecretLen     int
	RefreshSecretLen    int
	HashSecretLen       int
	RateLimitEnabled    bool
	RateLimitRules      int
	RateLimitBackend    string
	AuditEnabled        bool
	MetricsEnabled      bool
	CookieSecure        bool
	CookieSameSite      string
}

func BuildReport(input ReportInput) Report {
	previous := append([]string(nil), input.PreviousKeyVersions...)
	sort.Strings(previous)

	r := Report{
		SigningAlgorithm:    "HS256",
		KeyVersion:          input.KeyVersion,
		PreviousKeyVersions: previous,
		AccessTTL:           input.AccessTTL,
		RefreshTTL:          input.RefreshTTL,
		Leeway:              input.Leeway,
		Argon2:              input.Password,
		RateLimitingActive:  input.RateLimitEnabled && input.RateLimitRules > 0,
		RateLimitBackend:    input.RateLimitBackend,
		AuditEnabled:        input.AuditEnabled,
		MetricsEnabled:      input.MetricsEnabled,
		CookieSecure:        input.CookieSecure,
		CookieSameSite:      input.CookieSameSite,
	}

	if input.AccessSecretLen < minSecretBytes {
		r.Warnings = append(r.Warnings, "access signing secret shorter than 32 bytes")
	}
	if input.RefreshSecretLen < minSecretBytes {
		r.Warnings = append(r.Warnings, "refresh signing secret shorter than 32 bytes")
	}
	if input.HashSecretLen < minSecretBytes {
		r.Warnings = append(r.Warnings, "credential hash secret shorter than 32 bytes")
	}
	if !input.Password.Peppered {
		r.Warnings = append(r.Warnings, "password pepper not configured")
	}
	if !r.RateLimitingActive {
		r.Warnings = append(r.Warnings, "rate limiting disabled")
	}
	if input.RateLimitEnabled && input.RateLimitBackend == "memory" {
		r.Warnings = append(r.Warnings, "in-memory rate limiting is per process")
	}
	if !input.CookieSecure {
		r.Warnings = append(r.Warnings, "refresh cookie sent without Secure")
	}
	return r
}
