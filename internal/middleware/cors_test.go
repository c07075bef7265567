package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serveCORS(origins []string, method, origin string) *httptest.ResponseRecorder {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = origins

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(method, "/groups", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	CORS(cfg)(next).ServeHTTP(rec, req)
	return rec
}

func TestCORS_OriginMatching(t *testing.T) {
	app := []string{"https://app.fairshare.test"}
	wildcard := []string{"*.fairshare.test"}

	tests := []struct {
		name      string
		origins   []string
		origin    string
		method    string
		wantCode  int
		wantAllow string
	}{
		{"nothing configured", nil, "https://app.fairshare.test", http.MethodGet, http.StatusOK, ""},
		{"exact match", app, "https://app.fairshare.test", http.MethodGet, http.StatusOK, "https://app.fairshare.test"},
		{"match ignores case", []string{"HTTPS://APP.FAIRSHARE.TEST"}, "https://app.fairshare.test", http.MethodGet, http.StatusOK, "https://app.fairshare.test"},
		{"unknown origin passes through without header", app, "https://other.test", http.MethodGet, http.StatusOK, ""},
		{"unknown origin preflight is forbidden", app, "https://other.test", http.MethodOptions, http.StatusForbidden, ""},
		{"allowed preflight", app, "https://app.fairshare.test", http.MethodOptions, http.StatusNoContent, "https://app.fairshare.test"},
		{"subdomain wildcard", wildcard, "https://admin.fairshare.test", http.MethodPost, http.StatusOK, "https://admin.fairshare.test"},
		{"wildcard rejects lookalike", wildcard, "https://notfairshare.test", http.MethodPost, http.StatusOK, ""},
		{"same-origin request", app, "", http.MethodGet, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveCORS(tt.origins, tt.method, tt.origin)

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
		})
	}
}

func TestCORS_PreflightAdvertisesIdempotencyKey(t *testing.T) {
	rec := serveCORS([]string{"https://app.fairshare.test"}, http.MethodOptions, "https://app.fairshare.test")

	if got := rec.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Idempotency-Key") {
		t.Errorf("Access-Control-Allow-Headers = %q, want Idempotency-Key allowed", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodDelete) {
		t.Errorf("Access-Control-Allow-Methods = %q, want DELETE", got)
	}
	if rec.Header().Get("Access-Control-Max-Age") != "86400" {
		t.Errorf("Access-Control-Max-Age = %q", rec.Header().Get("Access-Control-Max-Age"))
	}
	if rec.Header().Get("Vary") != "Origin" {
		t.Errorf("Vary = %q, want Origin", rec.Header().Get("Vary"))
	}
}

func TestCORS_ExposesRetryAfter(t *testing.T) {
	rec := serveCORS([]string{"https://app.fairshare.test"}, http.MethodPost, "https://app.fairshare.test")

	if got := rec.Header().Get("Access-Control-Expose-Headers"); !strings.Contains(got, "Retry-After") {
		t.Errorf("Access-Control-Expose-Headers = %q, want Retry-After", got)
	}
}
