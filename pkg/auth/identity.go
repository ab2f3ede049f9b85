package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"nocaflow/pkg/config"
	"nocaflow/pkg/logger"
	"nocaflow/pkg/utils"
)

// Role is the resolved caller role for a request.
type Role int

const (
	RoleUnauth Role = iota
	RoleFrontend
	RoleBackend
	RoleAdmin
)

// SecConfig drives authentication, CORS and rate limiting. Shared by
// gateway.go and limiter.go.
type SecConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
	IPWhitelist    []string
	BackendKeys    map[string]struct{}
	FrontendKeys   map[string]struct{}
	AdminKeys      map[string]struct{}
}

type ctxUserKey struct{}

// RequireSignedUser verifies the X-User-ID / X-User-Signature header pair
// against the configured signing keys and injects the verified user id
// into the request context. Only the conversation surface acts on behalf
// of a chat user; probes, docs, metrics, the guest routes and the mail
// relay authenticate by other means and pass through untouched. Backend
// and admin callers may omit the signature; when one is present it is
// still verified.
func RequireSignedUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !userScoped(r) {
			next.ServeHTTP(w, r)
			return
		}
		role := r.Header.Get("X-Role-Name")
		userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		sig := strings.TrimSpace(r.Header.Get("X-User-Signature"))

		if (role == "backend" || role == "admin") && sig == "" {
			next.ServeHTTP(w, r)
			return
		}
		if sig == "" || userID == "" {
			logger.Warn("missing_signature_headers", "path", r.URL.Path, "remote", r.RemoteAddr)
			utils.JSONError(w, http.StatusUnauthorized, "missing signature headers")
			return
		}

		keys := config.GetSigningKeys()
		if len(keys) == 0 {
			logger.Error("no_signing_keys_configured")
			utils.JSONError(w, http.StatusInternalServerError, "server misconfigured: no signing secrets available")
			return
		}
		ok := false
		for k := range keys {
			mac := hmac.New(sha256.New, []byte(k))
			mac.Write([]byte(userID))
			expected := hex.EncodeToString(mac.Sum(nil))
			if hmac.Equal([]byte(expected), []byte(sig)) {
				ok = true
				break
			}
		}
		if !ok {
			logger.Warn("invalid_signature", "user", userID)
			utils.JSONError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userScoped reports whether the route needs a verified chat user.
func userScoped(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/v1/conversations")
}

// UserIDFromContext returns the signature-verified user id or "".
func UserIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(ctxUserKey{}).(string); ok {
		return s
	}
	return ""
}

func validateUserID(id string) (bool, string) {
	if id == "" {
		return false, "user required"
	}
	if len(id) > 128 {
		return false, "user id too long"
	}
	return true, ""
}

// ResolveUser is the canonical resolver handlers call to learn who is
// acting. A signature-verified id wins and any conflicting id from
// header or query is a 403. Without a signature, backend/admin callers
// may name the user via X-User-ID or the user query param; frontend
// callers get a 401.
func ResolveUser(r *http.Request) (string, int, string) {
	if id := UserIDFromContext(r.Context()); id != "" {
		if q := strings.TrimSpace(r.URL.Query().Get("user")); q != "" && q != id {
			return "", http.StatusForbidden, "user mismatch between signature and query param"
		}
		if h := strings.TrimSpace(r.Header.Get("X-User-ID")); h != "" && h != id {
			return "", http.StatusForbidden, "user mismatch between signature and header"
		}
		return id, 0, ""
	}

	role := r.Header.Get("X-Role-Name")
	if role == "backend" || role == "admin" {
		for _, candidate := range []string{
			strings.TrimSpace(r.Header.Get("X-User-ID")),
			strings.TrimSpace(r.URL.Query().Get("user")),
		} {
			if candidate == "" {
				continue
			}
			if ok, msg := validateUserID(candidate); !ok {
				return "", http.StatusBadRequest, msg
			}
			return candidate, 0, ""
		}
		return "", http.StatusBadRequest, "user required for backend requests"
	}
	return "", http.StatusUnauthorized, "missing or invalid user signature"
}
