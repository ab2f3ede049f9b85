package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"nocaflow/pkg/logger"
	"nocaflow/pkg/store"
	"nocaflow/pkg/utils"
	"nocaflow/pkg/view"
)

// RegisterMessages registers message CRUD and attachment routes.
func RegisterMessages(r *mux.Router) {
	r.HandleFunc("/conversations/{id}/messages", createMessage).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}/messages", listMessages).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/messages/{msgID}", updateMessage).Methods(http.MethodPut)
	r.HandleFunc("/conversations/{id}/messages/{msgID}", deleteMessage).Methods(http.MethodDelete)
	r.HandleFunc("/conversations/{id}/attachments", createAttachment).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}/messages/stream", streamMessages).Methods(http.MethodGet)
}

// createMessage handles POST /conversations/{id}/messages. With
// ephemeral=1 the message carries an expiry; ttl is an optional Go
// duration, clamped server-side.
func createMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := viewer(w, r)
	if !ok {
		return
	}
	convID := mux.Vars(r)["id"]
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if r.URL.Query().Get("ephemeral") == "1" {
		msg, err := svc.SendEphemeral(r.Context(), convID, user, body.Text, queryDuration(r, "ttl"))
		if err != nil {
			writeChatError(w, err)
			return
		}
		utils.JSONWrite(w, http.StatusCreated, msg)
		return
	}
	msg, err := svc.SendMessage(r.Context(), convID, user, body.Text)
	if err != nil {
		writeChatError(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusCreated, msg)
}

// listMessages handles GET /conversations/{id}/messages?q=&limit=&locale=.
// Messages come back decorated: sender names, mine flags, relative time
// labels and read receipts. With q set, matching text is wrapped in
// <mark> tags and the matching message ids are returned alongside.
func listMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := viewer(w, r)
	if !ok {
		return
	}
	convID := mux.Vars(r)["id"]
	c, err := store.GetConversation(convID)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "not found")
		return
	}
	if !hasParticipant(c.Participants, user) {
		utils.JSONError(w, http.StatusForbidden, "not a participant")
		return
	}
	msgs, err := store.ListMessages(convID, queryInt(r, "limit", 0))
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	query := r.URL.Query().Get("q")
	views, matches := view.DecorateMessages(&c, msgs, user, query, time.Now(), requestLocale(r))
	out := map[string]any{"messages": views}
	if query != "" {
		out["matches"] = matches
	}
	utils.JSONWrite(w, http.StatusOK, out)

	// Viewing the stream counts as reading it. Off the request path so
	// the response never waits on the write-back.
	if len(view.UnreadFrom(msgs, user)) > 0 {
		go func() {
			if err := svc.MarkRead(context.Background(), convID, user); err != nil {
				logger.Warn("mark_read_failed", "conversation", convID, "user", user, "err", err.Error())
			}
		}()
	}
}

func updateMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := viewer(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	msg, err := svc.EditMessage(r.Context(), vars["id"], vars["msgID"], user, body.Text)
	if err != nil {
		writeChatError(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, msg)
}

func deleteMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := viewer(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	if err := svc.DeleteMessage(r.Context(), vars["id"], vars["msgID"], user); err != nil {
		writeChatError(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// createAttachment handles POST /conversations/{id}/attachments. The
// payload is the raw file body; its Content-Type decides acceptance and
// the X-File-Name header carries the display name. Anything that is not
// an image or a PDF is refused with 415 before any write happens.
func createAttachment(w http.ResponseWriter, r *http.Request) {
	user, ok := viewer(w, r)
	if !ok {
		return
	}
	convID := mux.Vars(r)["id"]
	mediaType := r.Header.Get("Content-Type")
	name := r.Header.Get("X-File-Name")
	if name == "" {
		name = "attachment"
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	msg, err := svc.AttachFile(r.Context(), convID, user, name, mediaType, data)
	if err != nil {
		writeChatError(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusCreated, msg)
}
