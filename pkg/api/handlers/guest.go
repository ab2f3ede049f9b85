package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"nocaflow/pkg/guest"
	"nocaflow/pkg/models"
	"nocaflow/pkg/utils"
	"nocaflow/pkg/view"
)

// RegisterGuest registers the unauthenticated read-only demo surface.
// It serves the same decorated shapes as the live endpoints, backed by
// seeded data, so a client can browse without an account.
func RegisterGuest(r *mux.Router) {
	r.HandleFunc("/guest/conversations", guestConversations).Methods(http.MethodGet)
	r.HandleFunc("/guest/conversations/{id}/messages", guestMessages).Methods(http.MethodGet)
}

func guestConversations(w http.ResponseWriter, r *http.Request) {
	views := view.DecorateConversations(
		guestSrc.Conversations(),
		guestSrc.MessagesByConversation(),
		guest.UserID,
		r.URL.Query().Get("q"),
		requestLocale(r),
	)
	utils.JSONWrite(w, http.StatusOK, map[string]any{"conversations": views, "guest": true})
}

func guestMessages(w http.ResponseWriter, r *http.Request) {
	convID := mux.Vars(r)["id"]
	msgs, err := guestSrc.Messages(convID)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "not found")
		return
	}
	var c *models.Conversation
	for _, gc := range guestSrc.Conversations() {
		if gc.ID == convID {
			cc := gc
			c = &cc
			break
		}
	}
	if c == nil {
		utils.JSONError(w, http.StatusNotFound, "not found")
		return
	}
	query := r.URL.Query().Get("q")
	views, matches := view.DecorateMessages(c, msgs, guest.UserID, query, time.Now(), requestLocale(r))
	out := map[string]any{"messages": views, "guest": true}
	if query != "" {
		out["matches"] = matches
	}
	utils.JSONWrite(w, http.StatusOK, out)
}
