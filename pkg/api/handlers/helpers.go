package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"nocaflow/pkg/auth"
	"nocaflow/pkg/chat"
	"nocaflow/pkg/config"
	"nocaflow/pkg/guest"
	"nocaflow/pkg/subscribe"
	"nocaflow/pkg/utils"
	"nocaflow/pkg/view"
)

// Deps carries the wired services; Register stores them for the
// package-level handler funcs.
type Deps struct {
	Chat    *chat.Service
	Hub     *subscribe.Hub
	Guest   *guest.Source
	Locales config.LocaleConfig
}

var (
	svc       *chat.Service
	hub       *subscribe.Hub
	guestSrc  *guest.Source
	localeCfg config.LocaleConfig
)

// Register mounts every conversation, message, guest and signing route
// onto the given (already /v1-prefixed) router.
func Register(r *mux.Router, d Deps) {
	svc = d.Chat
	hub = d.Hub
	guestSrc = d.Guest
	localeCfg = d.Locales

	RegisterConversations(r)
	RegisterMessages(r)
	RegisterGuest(r)
	RegisterSigning(r)
}

// requestLocale resolves the display locale from the locale query param,
// falling back to the configured default.
func requestLocale(r *http.Request) view.Locale {
	code := r.URL.Query().Get("locale")
	if code == "" {
		code = localeCfg.Default
	}
	return view.ResolveLocale(code)
}

// viewer resolves the acting user or writes the error response and
// returns false.
func viewer(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, status, msg := auth.ResolveUser(r)
	if status != 0 {
		utils.JSONError(w, status, msg)
		return "", false
	}
	return id, true
}

// writeChatError maps dispatcher errors onto HTTP statuses.
func writeChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		utils.JSONError(w, http.StatusBadRequest, "message text required")
	case errors.Is(err, chat.ErrNoParticipants):
		utils.JSONError(w, http.StatusBadRequest, "participants required")
	case errors.Is(err, chat.ErrInvalid):
		utils.JSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrNotFound):
		utils.JSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, chat.ErrNotParticipant):
		utils.JSONError(w, http.StatusForbidden, "not a participant")
	case errors.Is(err, chat.ErrNotSender):
		utils.JSONError(w, http.StatusForbidden, "only the sender may modify a message")
	case errors.Is(err, chat.ErrBlocked):
		utils.JSONError(w, http.StatusForbidden, "conversation is blocked")
	case errors.Is(err, chat.ErrUnsupportedType):
		utils.JSONError(w, http.StatusUnsupportedMediaType, "only images and PDF documents are accepted")
	case errors.Is(err, chat.ErrTooLarge):
		utils.JSONError(w, http.StatusRequestEntityTooLarge, "attachment too large")
	default:
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
	}
}

func queryInt(r *http.Request, name string, def int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func queryDuration(r *http.Request, name string) time.Duration {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0
	}
	return d
}
