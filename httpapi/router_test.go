package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/users"
	"github.com/MrEthical07/goSession/session"
)

func testEngine(t *testing.T, mutate func(*goSession.Config)) *goSession.Engine {
	t.Helper()
	cfg := goSession.DefaultConfig()
	cfg.JWT.AccessSecret = []byte("access-secret-0123456789abcdef")
	cfg.JWT.RefreshSecret = []byte("refresh-secret-0123456789abcdef")
	cfg.JWT.Issuer = "gosession-test"
	cfg.JWT.Audience = "gosession-clients"
	cfg.Session.CredentialHashSecret = []byte("hash-secret-0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	if mutate != nil {
		mutate(&cfg)
	}

	engine, err := goSession.New().
		WithConfig(cfg).
		WithStore(session.NewMemoryStore()).
		WithUserDirectory(users.NewDirectory()).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func do(t *testing.T, h http.Handler, method, path, body string, cookie *http.Cookie, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func responseCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAuthFlowAndReplay(t *testing.T) {
	router := NewRouter(testEngine(t, nil), Options{})

	rec := do(t, router, http.MethodPost, "/api/auth/signup", `{"email":"ada@example.com","name":"Ada","password":"correct-horse-battery"}`, nil, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup: status %d body %s", rec.Code, rec.Body)
	}
	var account struct {
		User   goSession.User `json:"user"`
		Tokens struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
		} `json:"tokens"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&account); err != nil {
		t.Fatalf("decode signup: %v", err)
	}
	if account.User.Email != "ada@example.com" || account.Tokens.AccessToken == "" {
		t.Fatalf("unexpected signup body: %+v", account)
	}
	if account.Tokens.RefreshToken != "" {
		t.Fatal("refresh credential must only travel in the cookie")
	}

	rec = do(t, router, http.MethodPost, "/api/auth/signup", `{"email":"ada@example.com","name":"Ada","password":"correct-horse-battery"}`, nil, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate signup: status %d", rec.Code)
	}

	rec = do(t, router, http.MethodPost, "/api/auth/signin", `{"email":"ada@example.com","password":"correct-horse-battery"}`, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("signin: status %d body %s", rec.Code, rec.Body)
	}
	token1 := responseCookie(t, rec, "refresh_token")
	if token1 == nil || !token1.HttpOnly || !token1.Secure || token1.SameSite != http.SameSiteStrictMode || token1.Path != "/api/auth" {
		t.Fatalf("unexpected refresh cookie: %+v", token1)
	}
	if token1.MaxAge != int((7 * 24 * time.Hour).Seconds()) {
		t.Fatalf("unexpected cookie max age %d", token1.MaxAge)
	}

	rec = do(t, router, http.MethodPost, "/api/auth/refresh", "", token1, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: status %d body %s", rec.Code, rec.Body)
	}
	token2 := responseCookie(t, rec, "refresh_token")
	if token2 == nil || token2.Value == token1.Value {
		t.Fatal("refresh did not rotate the cookie")
	}
	var access map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&access); err != nil || access["access_token"] == "" {
		t.Fatalf("refresh body: %v %v", access, err)
	}

	for _, cookie := range []*http.Cookie{token1, token2} {
		rec = do(t, router, http.MethodPost, "/api/auth/refresh", "", cookie, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("replay: status %d", rec.Code)
		}
		cleared := responseCookie(t, rec, "refresh_token")
		if cleared == nil || cleared.MaxAge >= 0 {
			t.Fatalf("replay must clear the cookie: %+v", cleared)
		}
		if strings.Contains(rec.Body.String(), "reuse") {
			t.Fatal("401 body must be opaque")
		}
	}
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	router := NewRouter(testEngine(t, nil), Options{})

	rec := do(t, router, http.MethodPost, "/api/auth/signin", `{"email":"nobody@example.com","password":"whatever-password"}`, nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", rec.Code)
	}
	var body struct {
		StatusCode int    `json:"statusCode"`
		Message    string `json:"message"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body.StatusCode != 401 || body.Message != "Invalid credentials" {
		t.Fatalf("unexpected body %+v (%v)", body, err)
	}

	rec = do(t, router, http.MethodPost, "/api/auth/signin", `{"email":""}`, nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing fields: status %d", rec.Code)
	}
}

func TestLogoutAlwaysSucceeds(t *testing.T) {
	router := NewRouter(testEngine(t, nil), Options{})

	for _, cookie := range []*http.Cookie{nil, {Name: "refresh_token", Value: "garbage"}} {
		rec := do(t, router, http.MethodPost, "/api/auth/logout", "", cookie, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("logout: status %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"success":true`) {
			t.Fatalf("logout body: %s", rec.Body)
		}
		if c := responseCookie(t, rec, "refresh_token"); c == nil || c.MaxAge >= 0 {
			t.Fatal("logout must clear the cookie")
		}
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	router := NewRouter(testEngine(t, nil), Options{})

	rec := do(t, router, http.MethodPost, "/api/auth/signup", `{"email":"bo@example.com","name":"Bo","password":"correct-horse-battery"}`, nil, nil)
	cookie := responseCookie(t, rec, "refresh_token")
	if cookie == nil {
		t.Fatal("signup did not set a cookie")
	}
	if rec := do(t, router, http.MethodPost, "/api/auth/logout", "", cookie, nil); rec.Code != http.StatusOK {
		t.Fatalf("logout: status %d", rec.Code)
	}
	if rec := do(t, router, http.MethodPost, "/api/auth/refresh", "", cookie, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: status %d", rec.Code)
	}
}

func TestRefreshRateLimited(t *testing.T) {
	engine := testEngine(t, func(cfg *goSession.Config) {
		cfg.RateLimit.Rules = []goSession.RateRule{{Route: RouteRefresh, Window: time.Minute, MaxRequests: 3}}
	})
	router := NewRouter(engine, Options{TrustProxy: true})
	header := map[string]string{"X-Forwarded-For": "198.51.100.4"}

	for i := 0; i < 3; i++ {
		if rec := do(t, router, http.MethodPost, "/api/auth/refresh", "", nil, header); rec.Code != http.StatusUnauthorized {
			t.Fatalf("hit #%d: status %d", i+1, rec.Code)
		}
	}
	rec := do(t, router, http.MethodPost, "/api/auth/refresh", "", nil, header)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}

	other := map[string]string{"X-Forwarded-For": "198.51.100.5"}
	if rec := do(t, router, http.MethodPost, "/api/auth/refresh", "", nil, other); rec.Code == http.StatusTooManyRequests {
		t.Fatal("limit leaked across clients")
	}
}

func TestRefreshRateLimitIgnoresForwardedForByDefault(t *testing.T) {
	engine := testEngine(t, func(cfg *goSession.Config) {
		cfg.RateLimit.Rules = []goSession.RateRule{{Route: RouteRefresh, Window: time.Minute, MaxRequests: 3}}
	})
	router := NewRouter(engine, Options{})

	limited := 0
	for i := 0; i < 10; i++ {
		forged := map[string]string{"X-Forwarded-For": fmt.Sprintf("198.51.100.%d", i)}
		if rec := do(t, router, http.MethodPost, "/api/auth/refresh", "", nil, forged); rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited != 7 {
		t.Fatalf("forged X-Forwarded-For bypassed the limit: %d of 10 limited, want 7", limited)
	}
}

func TestMeRequiresAccessCredential(t *testing.T) {
	engine := testEngine(t, nil)
	router := NewRouter(engine, Options{})

	if rec := do(t, router, http.MethodGet, "/api/auth/me", "", nil, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: status %d", rec.Code)
	}

	rec := do(t, router, http.MethodPost, "/api/auth/signup", `{"email":"cy@example.com","name":"Cy","password":"correct-horse-battery"}`, nil, nil)
	var account struct {
		User   goSession.User `json:"user"`
		Tokens struct {
			AccessToken string `json:"access_token"`
		} `json:"tokens"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&account); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = do(t, router, http.MethodGet, "/api/auth/me", "", nil, map[string]string{"Authorization": "Bearer " + account.Tokens.AccessToken})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), account.User.ID) {
		t.Fatalf("me: status %d body %s", rec.Code, rec.Body)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("gosession_refresh_success_total 0\n"))
	})
	router := NewRouter(testEngine(t, nil), Options{MetricsHandler: metrics})

	if rec := do(t, router, http.MethodGet, "/healthz", "", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz: status %d", rec.Code)
	}
	rec := do(t, router, http.MethodGet, "/metrics", "", nil, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "gosession_refresh_success_total") {
		t.Fatalf("metrics: status %d body %s", rec.Code, rec.Body)
	}
}
