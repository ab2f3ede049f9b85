package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func testSecConfig() SecConfig {
	return SecConfig{
		AllowedOrigins: []string{"https://app.example.com"},
		RPS:            1000,
		Burst:          1000,
		BackendKeys:    map[string]struct{}{"backend-key": {}},
		FrontendKeys:   map[string]struct{}{"frontend-key": {}},
		AdminKeys:      map[string]struct{}{"admin-key": {}},
	}
}

func gatewayHandler(cfg SecConfig) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return Gateway(cfg)(ok)
}

func TestGatewayRejectsMissingKey(t *testing.T) {
	h := gatewayHandler(testSecConfig())
	req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestGatewayRejectsUnknownKey(t *testing.T) {
	h := gatewayHandler(testSecConfig())
	req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
	req.Header.Set("X-API-Key", "bogus")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestGatewayAcceptsBearerAndSetsRole(t *testing.T) {
	h := gatewayHandler(testSecConfig())
	req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
	req.Header.Set("Authorization", "Bearer frontend-key")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	if got := req.Header.Get("X-Role-Name"); got != "frontend" {
		t.Fatalf("role = %q", got)
	}
}

func TestGatewayFrontendScopedToChatSurface(t *testing.T) {
	h := gatewayHandler(testSecConfig())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("X-API-Key", "frontend-key")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("frontend /metrics = %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("X-API-Key", "admin-key")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("admin /metrics = %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/mail", nil)
	req.Header.Set("X-API-Key", "frontend-key")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("frontend /v1/mail = %d", rr.Code)
	}
}

func TestGatewayOpenPaths(t *testing.T) {
	h := gatewayHandler(testSecConfig())
	for _, path := range []string{"/healthz", "/readyz", "/v1/guest/conversations"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s = %d", path, rr.Code)
		}
	}
	// Guest surface is read-only: a write still needs a key.
	req := httptest.NewRequest(http.MethodPost, "/v1/guest/conversations", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("guest POST = %d", rr.Code)
	}
}

func TestGatewayRateLimit(t *testing.T) {
	cfg := testSecConfig()
	cfg.RPS = 1
	cfg.Burst = 2
	h := gatewayHandler(cfg)
	codes := map[int]int{}
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
		req.Header.Set("X-API-Key", "frontend-key")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes[rr.Code]++
	}
	if codes[http.StatusTooManyRequests] == 0 {
		t.Fatalf("no request was rate limited: %v", codes)
	}
	if codes[http.StatusOK] == 0 {
		t.Fatalf("every request was rate limited: %v", codes)
	}
}

func TestGatewayIPWhitelist(t *testing.T) {
	cfg := testSecConfig()
	cfg.IPWhitelist = []string{"10.0.0.1"}
	h := gatewayHandler(cfg)
	req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
	req.Header.Set("X-API-Key", "frontend-key")
	req.RemoteAddr = "192.0.2.9:1234"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestGatewayCORSPreflight(t *testing.T) {
	h := gatewayHandler(testSecConfig())
	req := httptest.NewRequest(http.MethodOptions, "/v1/conversations", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("allow-origin = %q", got)
	}
}

func TestGatewayCORSUnknownOrigin(t *testing.T) {
	h := gatewayHandler(testSecConfig())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("allow-origin = %q", got)
	}
}
