//go:build integration
// +build integration

package test

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/httpapi"
	"github.com/MrEthical07/goSession/internal/users"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type harness struct {
	engine *goSession.Engine
	server *httptest.Server
	rdb    redis.UniversalClient
	mr     *miniredis.Miniredis
	prefix string
}

// newRedisClient connects to REDIS_URL when set and to miniredis otherwise.
func newRedisClient(t *testing.T) (redis.UniversalClient, *miniredis.Miniredis) {
	t.Helper()

	if raw := os.Getenv("REDIS_URL"); raw != "" {
		opts, err := redis.ParseURL(raw)
		if err != nil {
			t.Fatalf("parse REDIS_URL: %v", err)
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			t.Skipf("redis unavailable: %v", err)
		}
		t.Cleanup(func() { _ = rdb.Close() })
		return rdb, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return rdb, mr
}

func newHarness(t *testing.T, mutate func(*goSession.Config)) *harness {
	t.Helper()
	rdb, mr := newRedisClient(t)

	cfg := goSession.DefaultConfig()
	cfg.JWT.AccessSecret = []byte("integration-access-secret-0123456789")
	cfg.JWT.RefreshSecret = []byte("integration-refresh-secret-012345678")
	cfg.JWT.Issuer = "gosession-integration"
	cfg.JWT.Audience = "gosession-integration"
	cfg.Session.CredentialHashSecret = []byte("integration-hash-secret-0123456789")
	// Unique per test so a shared REDIS_URL does not leak state across tests.
	cfg.Session.RedisPrefix = "it" + strings.ReplaceAll(t.Name(), "/", "-")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.RateLimit.Enabled = false
	cfg.Metrics.Enabled = true
	if mutate != nil {
		mutate(&cfg)
	}

	engine, err := goSession.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserDirectory(users.NewDirectory()).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	server := httptest.NewTLSServer(httpapi.NewRouter(engine, httpapi.Options{}))
	t.Cleanup(server.Close)

	return &harness{engine: engine, server: server, rdb: rdb, mr: mr, prefix: cfg.Session.RedisPrefix}
}

// client returns a TLS client with its own cookie jar, so the Secure refresh
// cookie round-trips.
func (h *harness) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	c := h.server.Client()
	c.Jar = jar
	return c
}

func (h *harness) post(t *testing.T, c *http.Client, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, h.server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (h *harness) refreshCookie(t *testing.T, c *http.Client) *http.Cookie {
	t.Helper()
	u, _ := url.Parse(h.server.URL + "/api/auth/refresh")
	for _, ck := range c.Jar.Cookies(u) {
		if ck.Name == "refresh_token" {
			return ck
		}
	}
	return nil
}

func (h *harness) signUp(t *testing.T, c *http.Client, email string) {
	t.Helper()
	resp := h.post(t, c, "/api/auth/signup", `{"email":"`+email+`","name":"Test","password":"correct-horse"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status = %d", resp.StatusCode)
	}
}
