package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"nocaflow/pkg/config"
)

func sign(key, userID string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil))
}

func withSigningKeys(t *testing.T, keys ...string) {
	t.Helper()
	set := map[string]struct{}{}
	for _, k := range keys {
		set[k] = struct{}{}
	}
	config.SetRuntime(&config.RuntimeConfig{SigningKeys: set})
	t.Cleanup(func() { config.SetRuntime(nil) })
}

func signedUserHandler() (http.Handler, *string) {
	var seen string
	h := RequireSignedUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	return h, &seen
}

func TestRequireSignedUserAcceptsValidSignature(t *testing.T) {
	withSigningKeys(t, "secret-1")
	h, seen := signedUserHandler()

	req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
	req.Header.Set("X-Role-Name", "frontend")
	req.Header.Set("X-User-ID", "alice")
	req.Header.Set("X-User-Signature", sign("secret-1", "alice"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	if *seen != "alice" {
		t.Fatalf("context user = %q", *seen)
	}
}

func TestRequireSignedUserRejectsBadSignature(t *testing.T) {
	withSigningKeys(t, "secret-1")
	h, _ := signedUserHandler()

	req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
	req.Header.Set("X-Role-Name", "frontend")
	req.Header.Set("X-User-ID", "alice")
	req.Header.Set("X-User-Signature", sign("wrong-secret", "alice"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestRequireSignedUserFrontendNeedsHeaders(t *testing.T) {
	withSigningKeys(t, "secret-1")
	h, _ := signedUserHandler()

	req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
	req.Header.Set("X-Role-Name", "frontend")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestRequireSignedUserBackendMaySkipSignature(t *testing.T) {
	withSigningKeys(t, "secret-1")
	h, seen := signedUserHandler()

	req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
	req.Header.Set("X-Role-Name", "backend")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if *seen != "" {
		t.Fatalf("context user = %q", *seen)
	}
}

func TestRequireSignedUserNoKeysConfigured(t *testing.T) {
	config.SetRuntime(nil)
	h, _ := signedUserHandler()

	req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
	req.Header.Set("X-Role-Name", "frontend")
	req.Header.Set("X-User-ID", "alice")
	req.Header.Set("X-User-Signature", "deadbeef")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestResolveUserPrefersVerifiedIdentity(t *testing.T) {
	withSigningKeys(t, "secret-1")
	var gotUser string
	var gotStatus int
	h := RequireSignedUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotStatus, _ = ResolveUser(r)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/conversations?user=alice", nil)
	req.Header.Set("X-Role-Name", "frontend")
	req.Header.Set("X-User-ID", "alice")
	req.Header.Set("X-User-Signature", sign("secret-1", "alice"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if gotUser != "alice" || gotStatus != 0 {
		t.Fatalf("user = %q status = %d", gotUser, gotStatus)
	}

	// A conflicting query param is a hard failure, not a fallback.
	req = httptest.NewRequest(http.MethodGet, "/v1/conversations?user=mallory", nil)
	req.Header.Set("X-Role-Name", "frontend")
	req.Header.Set("X-User-ID", "alice")
	req.Header.Set("X-User-Signature", sign("secret-1", "alice"))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if gotStatus != http.StatusForbidden {
		t.Fatalf("conflict status = %d", gotStatus)
	}
}

func TestResolveUserBackendHeaderAndQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
	req.Header.Set("X-Role-Name", "backend")
	req.Header.Set("X-User-ID", "alice")
	user, status, _ := ResolveUser(req)
	if user != "alice" || status != 0 {
		t.Fatalf("user = %q status = %d", user, status)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/conversations?user=bob", nil)
	req.Header.Set("X-Role-Name", "backend")
	user, status, _ = ResolveUser(req)
	if user != "bob" || status != 0 {
		t.Fatalf("user = %q status = %d", user, status)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
	req.Header.Set("X-Role-Name", "backend")
	_, status, _ = ResolveUser(req)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d", status)
	}
}

func TestResolveUserFrontendWithoutSignature(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/conversations?user=alice", nil)
	req.Header.Set("X-Role-Name", "frontend")
	_, status, _ := ResolveUser(req)
	if status != http.StatusUnauthorized {
		t.Fatalf("status = %d", status)
	}
}
