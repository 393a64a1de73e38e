package goSession

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigNeedsSecrets(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("default config without secrets must not validate")
	}
	cfg = testConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config: %v", err)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"refresh ttl", func(c *Config) { c.JWT.RefreshTTL = c.JWT.AccessTTL }, "RefreshTTL"},
		{"same secrets", func(c *Config) { c.JWT.RefreshSecret = c.JWT.AccessSecret }, "must differ"},
		{"issuer", func(c *Config) { c.JWT.Issuer = "" }, "Issuer"},
		{"audience", func(c *Config) { c.JWT.Audience = "" }, "Audience"},
		{"hash secret", func(c *Config) { c.Session.CredentialHashSecret = nil }, "CredentialHashSecret"},
		{"rate backend", func(c *Config) { c.RateLimit.Backend = "etcd" }, "Backend"},
		{"rate rule", func(c *Config) { c.RateLimit.Rules = []RateRule{{Route: "x", Window: time.Minute}} }, "rule"},
		{"audit buffer", func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 }, "BufferSize"},
		{"cookie name", func(c *Config) { c.Cookie.Name = "" }, "Cookie"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestWithConfigDeepCopies(t *testing.T) {
	cfg := testConfig()
	b := New().WithConfig(cfg)
	cfg.JWT.AccessSecret[0] = 'X'
	cfg.RateLimit.Rules[0].MaxRequests = 999
	if b.config.JWT.AccessSecret[0] == 'X' {
		t.Fatal("builder aliased caller secret")
	}
	if b.config.RateLimit.Rules[0].MaxRequests == 999 {
		t.Fatal("builder aliased caller rules")
	}
}

func TestSecurityReportRedactsAndWarns(t *testing.T) {
	cfg := testConfig()
	cfg.Session.CredentialHashSecret = []byte("tiny-secret")
	cfg.Cookie.Secure = false

	report := cfg.SecurityReport()
	if report.KeyVersion != "v1" || report.SigningAlgorithm != "HS256" {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.CookieSameSite != "Strict" {
		t.Fatalf("same site = %q", report.CookieSameSite)
	}
	if !report.Argon2.Peppered {
		t.Fatal("pepper should be reported as configured")
	}
	joined := strings.Join(report.Warnings, "|")
	if !strings.Contains(joined, "credential hash secret") || !strings.Contains(joined, "Secure") {
		t.Fatalf("expected hash secret and cookie warnings, got %v", report.Warnings)
	}
	if strings.Contains(joined, "tiny-secret") {
		t.Fatal("report leaked secret material")
	}
}
