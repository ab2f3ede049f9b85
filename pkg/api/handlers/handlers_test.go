package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"nocaflow/pkg/chat"
	"nocaflow/pkg/config"
	"nocaflow/pkg/guest"
	"nocaflow/pkg/models"
	"nocaflow/pkg/store"
	"nocaflow/pkg/subscribe"
)

type stubBlobs struct{}

func (stubBlobs) Put(_ context.Context, id, _ string, _ []byte) (string, error) {
	return "https://blobs.test/" + id, nil
}

// newTestRouter wires the real store and dispatcher behind the /v1
// routes, the way the app does at startup.
func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	r := mux.NewRouter()
	Register(r.PathPrefix("/v1").Subrouter(), Deps{
		Chat:    chat.NewService(chat.PebbleBackend{}, stubBlobs{}, subscribe.NewHub(), config.ChatConfig{}),
		Hub:     subscribe.NewHub(),
		Guest:   guest.NewSource(time.Now()),
		Locales: config.LocaleConfig{Default: "en"},
	})
	return r
}

// do issues a request as a backend caller acting on behalf of user.
func do(t *testing.T, h http.Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Role-Name", "backend")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rr.Body.String())
	}
}

func TestCreateConversationDedupes(t *testing.T) {
	r := newTestRouter(t)

	rr := do(t, r, http.MethodPost, "/v1/conversations", "alice",
		map[string]any{"participants": []string{"bob"}})
	if rr.Code != http.StatusCreated {
		t.Fatalf("first create = %d: %s", rr.Code, rr.Body.String())
	}
	var first models.Conversation
	decode(t, rr, &first)

	// Same pair again, from the other side: returns the existing record.
	rr = do(t, r, http.MethodPost, "/v1/conversations", "bob",
		map[string]any{"participants": []string{"alice"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("second create = %d", rr.Code)
	}
	var second models.Conversation
	decode(t, rr, &second)
	if second.ID != first.ID {
		t.Fatalf("dedupe failed: %q vs %q", first.ID, second.ID)
	}
}

func TestMessageLifecycle(t *testing.T) {
	r := newTestRouter(t)

	rr := do(t, r, http.MethodPost, "/v1/conversations", "alice",
		map[string]any{"participants": []string{"bob"}})
	var c models.Conversation
	decode(t, rr, &c)

	rr = do(t, r, http.MethodPost, "/v1/conversations/"+c.ID+"/messages", "alice",
		map[string]any{"text": "hello bob"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("send = %d: %s", rr.Code, rr.Body.String())
	}
	var msg models.Message
	decode(t, rr, &msg)

	// Blank text never lands.
	rr = do(t, r, http.MethodPost, "/v1/conversations/"+c.ID+"/messages", "alice",
		map[string]any{"text": "   "})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("blank send = %d", rr.Code)
	}

	// An outsider sees neither the conversation nor its messages.
	rr = do(t, r, http.MethodGet, "/v1/conversations/"+c.ID+"/messages", "mallory", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("outsider list = %d", rr.Code)
	}

	rr = do(t, r, http.MethodGet, "/v1/conversations/"+c.ID+"/messages?locale=en", "bob", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list = %d", rr.Code)
	}
	var listed struct {
		Messages []map[string]any `json:"messages"`
	}
	decode(t, rr, &listed)
	if len(listed.Messages) != 1 {
		t.Fatalf("messages = %d", len(listed.Messages))
	}
	if mine, _ := listed.Messages[0]["mine"].(bool); mine {
		t.Fatal("bob did not send this message")
	}

	rr = do(t, r, http.MethodPut, "/v1/conversations/"+c.ID+"/messages/"+msg.ID, "bob",
		map[string]any{"text": "hijacked"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("foreign edit = %d", rr.Code)
	}

	rr = do(t, r, http.MethodPut, "/v1/conversations/"+c.ID+"/messages/"+msg.ID, "alice",
		map[string]any{"text": "hello again"})
	if rr.Code != http.StatusOK {
		t.Fatalf("edit = %d: %s", rr.Code, rr.Body.String())
	}

	rr = do(t, r, http.MethodDelete, "/v1/conversations/"+c.ID+"/messages/"+msg.ID, "alice", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete = %d", rr.Code)
	}
	rr = do(t, r, http.MethodGet, "/v1/conversations/"+c.ID+"/messages", "alice", nil)
	decode(t, rr, &listed)
	if len(listed.Messages) != 0 {
		t.Fatalf("deleted message still listed: %v", listed.Messages)
	}
}

func TestSearchReturnsMatches(t *testing.T) {
	r := newTestRouter(t)

	rr := do(t, r, http.MethodPost, "/v1/conversations", "alice",
		map[string]any{"participants": []string{"bob"}})
	var c models.Conversation
	decode(t, rr, &c)

	for _, text := range []string{"the report is ready", "lunch?", "updated Report attached"} {
		rr = do(t, r, http.MethodPost, "/v1/conversations/"+c.ID+"/messages", "alice",
			map[string]any{"text": text})
		if rr.Code != http.StatusCreated {
			t.Fatalf("send = %d", rr.Code)
		}
	}

	rr = do(t, r, http.MethodGet, "/v1/conversations/"+c.ID+"/messages?q=report", "bob", nil)
	var out struct {
		Messages []struct {
			Text string `json:"text"`
		} `json:"messages"`
		Matches []string `json:"matches"`
	}
	decode(t, rr, &out)
	if len(out.Matches) != 2 {
		t.Fatalf("matches = %v", out.Matches)
	}
	if !strings.Contains(out.Messages[0].Text, "<mark>report</mark>") {
		t.Fatalf("text = %q", out.Messages[0].Text)
	}
}

func TestAttachmentTypeGate(t *testing.T) {
	r := newTestRouter(t)

	rr := do(t, r, http.MethodPost, "/v1/conversations", "alice",
		map[string]any{"participants": []string{"bob"}})
	var c models.Conversation
	decode(t, rr, &c)

	attach := func(mediaType, name string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/conversations/"+c.ID+"/attachments",
			bytes.NewReader([]byte("payload")))
		req.Header.Set("X-Role-Name", "backend")
		req.Header.Set("X-User-ID", "alice")
		req.Header.Set("Content-Type", mediaType)
		req.Header.Set("X-File-Name", name)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr
	}

	if rr := attach("image/png", "photo.png"); rr.Code != http.StatusCreated {
		t.Fatalf("png = %d: %s", rr.Code, rr.Body.String())
	}
	if rr := attach("application/pdf", "doc.pdf"); rr.Code != http.StatusCreated {
		t.Fatalf("pdf = %d", rr.Code)
	}
	if rr := attach("application/zip", "archive.zip"); rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("zip = %d", rr.Code)
	}
	if rr := attach("text/plain", "notes.txt"); rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("txt = %d", rr.Code)
	}
}

func TestBlockGate(t *testing.T) {
	r := newTestRouter(t)

	rr := do(t, r, http.MethodPost, "/v1/conversations", "alice",
		map[string]any{"participants": []string{"bob"}})
	var c models.Conversation
	decode(t, rr, &c)

	if rr := do(t, r, http.MethodPost, "/v1/conversations/"+c.ID+"/block", "alice", nil); rr.Code != http.StatusOK {
		t.Fatalf("block = %d", rr.Code)
	}
	rr = do(t, r, http.MethodPost, "/v1/conversations/"+c.ID+"/messages", "bob",
		map[string]any{"text": "hello?"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("blocked send = %d", rr.Code)
	}
	if rr := do(t, r, http.MethodPost, "/v1/conversations/"+c.ID+"/unblock", "alice", nil); rr.Code != http.StatusOK {
		t.Fatalf("unblock = %d", rr.Code)
	}
	rr = do(t, r, http.MethodPost, "/v1/conversations/"+c.ID+"/messages", "bob",
		map[string]any{"text": "hello again"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("send after unblock = %d", rr.Code)
	}
}

func TestMarkReadAndUnreadCounts(t *testing.T) {
	r := newTestRouter(t)

	rr := do(t, r, http.MethodPost, "/v1/conversations", "alice",
		map[string]any{"participants": []string{"bob"}})
	var c models.Conversation
	decode(t, rr, &c)

	do(t, r, http.MethodPost, "/v1/conversations/"+c.ID+"/messages", "alice",
		map[string]any{"text": "one"})
	do(t, r, http.MethodPost, "/v1/conversations/"+c.ID+"/messages", "alice",
		map[string]any{"text": "two"})

	var list struct {
		Conversations []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			UnreadCount int    `json:"unread_count"`
		} `json:"conversations"`
	}
	rr = do(t, r, http.MethodGet, "/v1/conversations", "bob", nil)
	decode(t, rr, &list)
	if len(list.Conversations) != 1 || list.Conversations[0].UnreadCount != 2 {
		t.Fatalf("list = %+v", list.Conversations)
	}

	if rr := do(t, r, http.MethodPost, "/v1/conversations/"+c.ID+"/read", "bob", nil); rr.Code != http.StatusOK {
		t.Fatalf("read = %d", rr.Code)
	}
	rr = do(t, r, http.MethodGet, "/v1/conversations", "bob", nil)
	decode(t, rr, &list)
	if list.Conversations[0].UnreadCount != 0 {
		t.Fatalf("unread after read = %d", list.Conversations[0].UnreadCount)
	}
}

func TestGuestSurface(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/guest/conversations", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("guest list = %d", rr.Code)
	}
	var list struct {
		Guest         bool `json:"guest"`
		Conversations []struct {
			ID string `json:"id"`
		} `json:"conversations"`
	}
	decode(t, rr, &list)
	if !list.Guest || len(list.Conversations) == 0 {
		t.Fatalf("list = %+v", list)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/guest/conversations/"+list.Conversations[0].ID+"/messages", nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("guest messages = %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/guest/conversations/no-such/messages", nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown guest conv = %d", rr.Code)
	}
}

func TestSignEndpoint(t *testing.T) {
	r := newTestRouter(t)

	body := bytes.NewBufferString(`{"userId":"alice"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/_sign", body)
	req.Header.Set("X-Role-Name", "backend")
	req.Header.Set("X-API-Key", "backend-key")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("sign = %d: %s", rr.Code, rr.Body.String())
	}
	var out map[string]string
	decode(t, rr, &out)
	if out["userId"] != "alice" || len(out["signature"]) != 64 {
		t.Fatalf("out = %v", out)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/_sign", bytes.NewBufferString(`{"userId":"alice"}`))
	req.Header.Set("X-Role-Name", "frontend")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("frontend sign = %d", rr.Code)
	}
}

func TestMessageStreamRouteSendsSnapshot(t *testing.T) {
	r := newTestRouter(t)

	rr := do(t, r, http.MethodPost, "/v1/conversations", "alice",
		map[string]any{"participants": []string{"bob"}})
	var c models.Conversation
	decode(t, rr, &c)
	do(t, r, http.MethodPost, "/v1/conversations/"+c.ID+"/messages", "alice",
		map[string]any{"text": "first"})

	// A canceled context makes the stream return after the initial snapshot.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet,
		"/v1/conversations/"+c.ID+"/messages/stream", nil).WithContext(ctx)
	req.Header.Set("X-Role-Name", "backend")
	req.Header.Set("X-User-ID", "alice")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("stream = %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	body := rr.Body.String()
	if !strings.HasPrefix(body, "data: ") || !strings.Contains(body, "first") {
		t.Fatalf("snapshot body = %q", body)
	}
}
