package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"nocaflow/pkg/logger"
	"nocaflow/pkg/store"
	"nocaflow/pkg/subscribe"
	"nocaflow/pkg/utils"
	"nocaflow/pkg/view"
)

const keepAliveInterval = 25 * time.Second

// streamConversations handles GET /conversations/stream: a server-sent
// event stream that pushes the caller's full decorated conversation
// list on connect and again after every relevant change.
func streamConversations(w http.ResponseWriter, r *http.Request) {
	user, ok := viewer(w, r)
	if !ok {
		return
	}
	loc := requestLocale(r)
	query := r.URL.Query().Get("q")

	serveSSE(w, r, subscribe.UserTopic(user), func() (any, error) {
		views, err := decoratedList(user, query, loc)
		if err != nil {
			return nil, err
		}
		return map[string]any{"conversations": views}, nil
	})
}

// streamMessages handles GET /conversations/{id}/messages/stream: pushes the full
// decorated message snapshot of one conversation on connect and after
// every change.
func streamMessages(w http.ResponseWriter, r *http.Request) {
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
	loc := requestLocale(r)

	serveSSE(w, r, subscribe.ConvTopic(convID), func() (any, error) {
		cur, err := store.GetConversation(convID)
		if err != nil {
			return nil, err
		}
		msgs, err := store.ListMessages(convID)
		if err != nil {
			return nil, err
		}
		views, _ := view.DecorateMessages(&cur, msgs, user, "", time.Now(), loc)
		return map[string]any{"messages": views}, nil
	})
}

// serveSSE runs the event loop shared by both streams: write one
// snapshot immediately, then one per hub signal, with keep-alive
// comments in between. Signals coalesce, so each write reflects the
// latest state regardless of how many changes happened.
func serveSSE(w http.ResponseWriter, r *http.Request, topic string, snapshot func() (any, error)) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.JSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := hub.Subscribe(r.Context(), topic)
	defer sub.Close()

	write := func() bool {
		data, err := snapshot()
		if err != nil {
			logger.Warn("sse_snapshot_failed", "topic", topic, "err", err.Error())
			return false
		}
		b, err := json.Marshal(data)
		if err != nil {
			return false
		}
		if _, err := w.Write([]byte("data: ")); err != nil {
			return false
		}
		if _, err := w.Write(append(b, '\n', '\n')); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}
	if !write() {
		return
	}

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case _, open := <-sub.C:
			if !open {
				return
			}
			if !write() {
				return
			}
		case <-keepAlive.C:
			if _, err := w.Write([]byte(": keep-alive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
