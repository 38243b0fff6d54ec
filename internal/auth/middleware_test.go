package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func protectedHandler(t *testing.T, wantSubject string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil {
			t.Error("expected claims in context")
		} else if claims.Subject != wantSubject {
			t.Errorf("Subject = %q, want %q", claims.Subject, wantSubject)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_ValidToken(t *testing.T) {
	ts := newTestTokenService()
	token, err := ts.IssueAccessToken("operator-1", "admin")
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	handler := Middleware(ts)(protectedHandler(t, "operator-1"))

	req := httptest.NewRequest("GET", "/api/v1/telemetry/status", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestMiddleware_MissingHeader(t *testing.T) {
	ts := newTestTokenService()
	handler := Middleware(ts)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/v1/telemetry/status", http.NoBody)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("content-type = %q, want %q", ct, "application/problem+json")
	}
}

func TestMiddleware_InvalidToken(t *testing.T) {
	ts := newTestTokenService()
	handler := Middleware(ts)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/v1/telemetry/status", http.NoBody)
	req.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestMiddleware_ExpiredToken(t *testing.T) {
	ts := NewTokenService([]byte("test-secret-key-32bytes-long!!"), -1*time.Second)
	token, _ := ts.IssueAccessToken("operator-1", "viewer")

	handler := Middleware(ts)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/v1/telemetry/status", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestMiddleware_SkipsNonAPIPaths(t *testing.T) {
	ts := newTestTokenService()
	handler := Middleware(ts)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		req := httptest.NewRequest("GET", path, http.NoBody)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want %d (no auth required)", path, w.Code, http.StatusOK)
		}
	}
}

func TestMiddleware_SkipsWebSocketPaths(t *testing.T) {
	ts := newTestTokenService()
	handler := Middleware(ts)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/v1/ws/events", http.NoBody)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d (WS auth handled by handler)", w.Code, http.StatusOK)
	}
}

func TestClaimsFromContext_Unauthenticated(t *testing.T) {
	req := httptest.NewRequest("GET", "/", http.NoBody)
	if c := ClaimsFromContext(req.Context()); c != nil {
		t.Errorf("expected nil claims, got %+v", c)
	}
}
