package mailer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"nocaflow/pkg/config"
)

const validBody = `{"to":"dest@example.com","fromEmail":"sender@example.com","subject":"Hi","htmlContent":"<p>Hello</p>"}`

func newTestMailer(t *testing.T, providerStatus int) (*Mailer, *httptest.Server) {
	t.Helper()
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(providerStatus)
		if providerStatus == http.StatusOK {
			json.NewEncoder(w).Encode(map[string]string{"id": "prov-123"})
		}
	}))
	t.Cleanup(provider.Close)
	m := New(config.MailConfig{
		ProviderURL: provider.URL,
		APIKey:      "secret-token",
		PerMinute:   5,
	})
	return m, provider
}

func post(m *Mailer, token, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/v1/mail", strings.NewReader(body))
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	m.ServeHTTP(w, r)
	return w
}

func TestMissingOrBadTokenUnauthorized(t *testing.T) {
	m, _ := newTestMailer(t, http.StatusOK)

	if w := post(m, "", validBody); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", w.Code)
	}
	if w := post(m, "wrong", validBody); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d", w.Code)
	}
}

func TestInvalidBodyBadRequest(t *testing.T) {
	m, _ := newTestMailer(t, http.StatusOK)

	bodies := []string{
		`not json`,
		`{}`,
		`{"to":"dest@example.com"}`,
		`{"to":"not-an-address","fromEmail":"s@example.com","subject":"x","htmlContent":"y"}`,
		`{"to":"dest@example.com","fromEmail":"s@example.com","subject":"","htmlContent":"y"}`,
	}
	for _, b := range bodies {
		if w := post(m, "secret-token", b); w.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status %d, want 400", b, w.Code)
		}
	}
}

func TestRateLimitPerToken(t *testing.T) {
	m, _ := newTestMailer(t, http.StatusOK)

	for i := 0; i < 5; i++ {
		if w := post(m, "secret-token", validBody); w.Code != http.StatusOK {
			t.Fatalf("send %d: status %d", i, w.Code)
		}
	}
	if w := post(m, "secret-token", validBody); w.Code != http.StatusTooManyRequests {
		t.Fatalf("sixth send: status %d, want 429", w.Code)
	}
}

func TestProviderFailureBadGateway(t *testing.T) {
	m, _ := newTestMailer(t, http.StatusInternalServerError)

	if w := post(m, "secret-token", validBody); w.Code != http.StatusBadGateway {
		t.Fatalf("status %d, want 502", w.Code)
	}
}

func TestSuccessReturnsProviderID(t *testing.T) {
	m, _ := newTestMailer(t, http.StatusOK)

	w := post(m, "secret-token", validBody)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var out map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out["id"] != "prov-123" {
		t.Fatalf("id = %q", out["id"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	m, _ := newTestMailer(t, http.StatusOK)
	r := httptest.NewRequest(http.MethodGet, "/v1/mail", nil)
	w := httptest.NewRecorder()
	m.ServeHTTP(w, r)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status %d", w.Code)
	}
}
