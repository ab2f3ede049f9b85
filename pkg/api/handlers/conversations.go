package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"nocaflow/pkg/logger"
	"nocaflow/pkg/models"
	"nocaflow/pkg/store"
	"nocaflow/pkg/utils"
	"nocaflow/pkg/view"
)

// RegisterConversations registers the conversation list and action routes.
func RegisterConversations(r *mux.Router) {
	r.HandleFunc("/conversations", createConversation).Methods(http.MethodPost)
	r.HandleFunc("/conversations", listConversations).Methods(http.MethodGet)
	r.HandleFunc("/conversations/stream", streamConversations).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}", getConversation).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/view", getConversationView).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/block", blockConversation).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}/unblock", unblockConversation).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}/read", markConversationRead).Methods(http.MethodPost)
}

// createConversation handles POST /conversations. The participant set is
// canonicalized with the caller included; an existing conversation with
// the same set is returned with 200 instead of creating a duplicate.
func createConversation(w http.ResponseWriter, r *http.Request) {
	user, ok := viewer(w, r)
	if !ok {
		return
	}
	var body struct {
		Participants []string `json:"participants"`
		Name         string   `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	c, created, err := svc.StartConversation(r.Context(), user, body.Participants, body.Name)
	if err != nil {
		writeChatError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	utils.JSONWrite(w, status, c)
}

// listConversations handles GET /conversations?q=&locale=. The list is
// decorated for the caller: derived names and avatars, unread counts,
// newest first, optionally filtered by the q substring.
func listConversations(w http.ResponseWriter, r *http.Request) {
	user, ok := viewer(w, r)
	if !ok {
		return
	}
	views, err := decoratedList(user, r.URL.Query().Get("q"), requestLocale(r))
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]any{"conversations": views})
}

func decoratedList(user, query string, loc view.Locale) ([]view.ConversationView, error) {
	convs, err := store.ListConversations(user)
	if err != nil {
		return nil, err
	}
	msgsByConv := make(map[string][]models.Message, len(convs))
	for _, c := range convs {
		msgs, err := store.ListMessages(c.ID)
		if err != nil {
			logger.Warn("conversation_messages_unreadable", "conversation", c.ID, "err", err.Error())
			continue
		}
		msgsByConv[c.ID] = msgs
	}
	return view.DecorateConversations(convs, msgsByConv, user, query, loc), nil
}

func getConversation(w http.ResponseWriter, r *http.Request) {
	user, ok := viewer(w, r)
	if !ok {
		return
	}
	c, err := store.GetConversation(mux.Vars(r)["id"])
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "not found")
		return
	}
	if !hasParticipant(c.Participants, user) {
		utils.JSONError(w, http.StatusForbidden, "not a participant")
		return
	}
	utils.JSONWrite(w, http.StatusOK, c)
}

// getConversationView returns the single decorated entry for one
// conversation, the same shape the list serves.
func getConversationView(w http.ResponseWriter, r *http.Request) {
	user, ok := viewer(w, r)
	if !ok {
		return
	}
	c, err := store.GetConversation(mux.Vars(r)["id"])
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "not found")
		return
	}
	if !hasParticipant(c.Participants, user) {
		utils.JSONError(w, http.StatusForbidden, "not a participant")
		return
	}
	msgs, err := store.ListMessages(c.ID)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := view.DecorateConversations(
		[]models.Conversation{c},
		map[string][]models.Message{c.ID: msgs},
		user, "", requestLocale(r),
	)
	utils.JSONWrite(w, http.StatusOK, views[0])
}

func blockConversation(w http.ResponseWriter, r *http.Request) {
	user, ok := viewer(w, r)
	if !ok {
		return
	}
	if err := svc.Block(r.Context(), mux.Vars(r)["id"], user); err != nil {
		writeChatError(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "blocked"})
}

func unblockConversation(w http.ResponseWriter, r *http.Request) {
	user, ok := viewer(w, r)
	if !ok {
		return
	}
	if err := svc.Unblock(r.Context(), mux.Vars(r)["id"], user); err != nil {
		writeChatError(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "unblocked"})
}

// markConversationRead stamps the caller on every unread message and on
// the conversation's last-message read set.
func markConversationRead(w http.ResponseWriter, r *http.Request) {
	user, ok := viewer(w, r)
	if !ok {
		return
	}
	if err := svc.MarkRead(r.Context(), mux.Vars(r)["id"], user); err != nil {
		writeChatError(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "read"})
}

func hasParticipant(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
