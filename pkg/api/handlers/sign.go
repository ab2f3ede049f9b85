package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"nocaflow/pkg/logger"
	"nocaflow/pkg/utils"
)

// RegisterSigning registers the user-signature endpoint. Backends call
// it to mint the X-User-Signature value their frontends attach; the
// caller's own API key is the signing secret.
func RegisterSigning(r *mux.Router) {
	r.HandleFunc("/_sign", signHandler).Methods(http.MethodPost)
}

func signHandler(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Role-Name") != "backend" {
		logger.Warn("sign_forbidden", "role", r.Header.Get("X-Role-Name"), "remote", r.RemoteAddr)
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	authz := r.Header.Get("Authorization")
	var key string
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		key = strings.TrimSpace(authz[7:])
	}
	if key == "" {
		key = r.Header.Get("X-API-Key")
	}
	if key == "" {
		utils.JSONError(w, http.StatusUnauthorized, "missing api key")
		return
	}

	var payload struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.UserID == "" {
		utils.JSONError(w, http.StatusBadRequest, "userId required")
		return
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(payload.UserID))
	sig := hex.EncodeToString(mac.Sum(nil))
	utils.JSONWrite(w, http.StatusOK, map[string]string{
		"userId":    payload.UserID,
		"signature": sig,
	})
}
