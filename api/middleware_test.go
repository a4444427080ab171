package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storedesk-admin/config"
)

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t)
	rr := env.get("/healthz", "")
	for _, h := range []string{"Content-Security-Policy", "X-Content-Type-Options", "X-Frame-Options", "Referrer-Policy"} {
		if rr.Header().Get(h) == "" {
			t.Fatalf("missing %s", h)
		}
	}
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Fatal("HSTS must only be sent with TLS")
	}
}

func TestClientIPHonoursTrustedProxies(t *testing.T) {
	s := &Server{cfg: &config.AppConfig{Security: config.SecurityConfig{TrustedProxies: []string{"10.0.0.0/8"}}}}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.1.2.3")
	if ip := s.clientIP(req); ip != "203.0.113.7" {
		t.Fatalf("expected forwarded ip, got %s", ip)
	}
	req.RemoteAddr = "198.51.100.1:5555"
	if ip := s.clientIP(req); ip != "198.51.100.1" {
		t.Fatalf("untrusted peer must not be able to spoof, got %s", ip)
	}
}

func TestLimiterRefills(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l := newLimiter(2, time.Minute)
	l.now = func() time.Time { return now }
	if !l.allow("a") || !l.allow("a") {
		t.Fatal("first two attempts must pass")
	}
	if l.allow("a") {
		t.Fatal("third attempt must be limited")
	}
	if !l.allow("b") {
		t.Fatal("other keys are independent")
	}
	now = now.Add(time.Minute)
	if !l.allow("a") {
		t.Fatal("bucket must refill after the window")
	}
}

func TestLoginRateLimited(t *testing.T) {
	env := newTestEnv(t)
	var last int
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"cashier01","password":"nope-nope-1"}`))
		last = env.do(req, "").Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("sixth attempt must be limited, got %d", last)
	}
}

func TestSafeNext(t *testing.T) {
	s := &Server{cfg: &config.AppConfig{Access: config.AccessConfig{SafeRoute: "/dashboard"}}}
	cases := map[string]string{
		"":                      "/dashboard",
		"/dashboard/pos":        "/dashboard/pos",
		"//evil.example":        "/dashboard",
		"https://evil.example/": "/dashboard",
		"/\\evil":               "/dashboard",
		"/login?next=/x":        "/dashboard",
	}
	for in, want := range cases {
		if got := s.safeNext(in); got != want {
			t.Fatalf("safeNext(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWantsJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/navigation", nil)
	if !wantsJSON(req) {
		t.Fatal("api paths are json")
	}
	req = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Accept", "text/html,application/json;q=0.9")
	if wantsJSON(req) {
		t.Fatal("browser navigation is html")
	}
	req.Header.Set("Accept", "application/json")
	if !wantsJSON(req) {
		t.Fatal("explicit json accept is json")
	}
}
