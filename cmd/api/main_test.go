package main

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fairshare/fairshare/internal/config"
	"github.com/fairshare/fairshare/internal/repository/memory"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()

	cfg := &config.Config{
		AppEnv:             "test",
		StoreBackend:       config.BackendMemory,
		StoreTimeout:       time.Second,
		ProvisionMode:      config.ProvisionModeAtomic,
		RateLimitEnabled:   true,
		RateLimitRPS:       10,
		RateLimitBurst:     20,
		MaxRequestBodySize: 1024,
	}
	return setupRouter(deps{
		cfg:      cfg,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		store:    memory.New(),
		registry: prometheus.NewRegistry(),
	})
}

func TestRouter_ProvisionAndRead(t *testing.T) {
	r := newRouter(t)

	body := `{"userName":"Alice","userEmail":"alice@example.com","groupName":"Trip"}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/groups:provision", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("provision status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}

	for _, path := range []string{
		"/groups", "/groups/1", "/groups/1/members",
		"/users", "/users/1", "/users/by-email?email=alice%40example.com", "/users/orphans",
		"/healthz", "/readyz",
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d", path, rec.Code)
		}
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `fairshare_provisions_total{result="success"} 1`) {
		t.Errorf("metrics missing provision counter:\n%s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `route="/groups/{id}"`) {
		t.Error("metrics should label requests by route pattern")
	}
}

func TestRouter_BodyLimitAndFallbacks(t *testing.T) {
	r := newRouter(t)

	big := `{"userName":"` + strings.Repeat("a", 2048) + `"}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(big)))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized body status = %d, want 413", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/groups", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("PATCH /groups = %d, want 405", rec.Code)
	}
}

func TestRedactURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"postgres://app:secret@db:5432/fairshare", "postgres://app@db:5432/fairshare"},
		{"redis://:secret@cache:6379/0", "redis://redacted@cache:6379/0"},
		{"redis://cache:6379", "redis://cache:6379"},
	}

	for _, tt := range tests {
		if got := redactURL(tt.in); got != tt.want {
			t.Errorf("redactURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeError(t *testing.T) {
	dsn := "postgres://app:secret@db:5432/fairshare"
	err := errors.New("dial " + dsn + " failed: password=hunter2")

	got := sanitizeError(err, dsn)
	if strings.Contains(got, "secret") || strings.Contains(got, "hunter2") {
		t.Errorf("sanitizeError leaked a secret: %q", got)
	}
	if sanitizeError(nil) != "" {
		t.Error("nil error should sanitize to empty string")
	}
}

func TestParseLogLevel(t *testing.T) {
	if parseLogLevel("DEBUG") != slog.LevelDebug {
		t.Error("expected debug level")
	}
	if parseLogLevel("bogus") != slog.LevelInfo {
		t.Error("unknown levels should default to info")
	}
}
