package mailer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"nocaflow/pkg/config"
	"nocaflow/pkg/logger"
	"nocaflow/pkg/utils"
)

// SendRequest is the accepted body for the outbound mail endpoint.
type SendRequest struct {
	To             string `json:"to"`
	FromEmail      string `json:"fromEmail"`
	Subject        string `json:"subject"`
	HTMLContent    string `json:"htmlContent"`
	NewContactName string `json:"newContactName,omitempty"`
}

// limiterPool keeps one token-bucket limiter per bearer token.
type limiterPool struct {
	mu        sync.Mutex
	m         map[string]*rate.Limiter
	perMinute int
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.m == nil {
		p.m = make(map[string]*rate.Limiter)
	}
	if l, ok := p.m[key]; ok {
		return l
	}
	per := p.perMinute
	if per <= 0 {
		per = 5
	}
	l := rate.NewLimiter(rate.Every(time.Minute/time.Duration(per)), per)
	p.m[key] = l
	return l
}

func (p *limiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

// Mailer relays validated send requests to the configured provider with
// bearer auth and a per-token rate limit in front.
type Mailer struct {
	cfg     config.MailConfig
	client  *http.Client
	limiter *limiterPool
}

func New(cfg config.MailConfig) *Mailer {
	timeout := cfg.Timeout.Duration()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Mailer{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		limiter: &limiterPool{perMinute: cfg.PerMinute},
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (req *SendRequest) validate() error {
	if strings.TrimSpace(req.To) == "" {
		return fmt.Errorf("missing field: to")
	}
	if _, err := mail.ParseAddress(req.To); err != nil {
		return fmt.Errorf("invalid recipient address")
	}
	if strings.TrimSpace(req.FromEmail) == "" {
		return fmt.Errorf("missing field: fromEmail")
	}
	if _, err := mail.ParseAddress(req.FromEmail); err != nil {
		return fmt.Errorf("invalid sender address")
	}
	if strings.TrimSpace(req.Subject) == "" {
		return fmt.Errorf("missing field: subject")
	}
	if strings.TrimSpace(req.HTMLContent) == "" {
		return fmt.Errorf("missing field: htmlContent")
	}
	return nil
}

// ServeHTTP handles POST /v1/mail.
func (m *Mailer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.JSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	token := bearerToken(r)
	if token == "" || token != m.cfg.APIKey {
		utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := req.validate(); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !m.limiter.Allow(token) {
		logger.Warn("mail_rate_limited", "to", req.To)
		utils.JSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	id, err := m.relay(r, req)
	if err != nil {
		logger.Error("mail_relay_failed", "to", req.To, "err", err.Error())
		utils.JSONError(w, http.StatusBadGateway, "mail provider unavailable")
		return
	}
	logger.Info("mail_sent", "to", req.To, "id", id)
	utils.JSONWrite(w, http.StatusOK, map[string]string{"id": id})
}

func (m *Mailer) relay(r *http.Request, req SendRequest) (string, error) {
	const op = "mailer.relay"

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	preq, err := http.NewRequestWithContext(r.Context(), http.MethodPost, m.cfg.ProviderURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	preq.Header.Set("Content-Type", "application/json")
	preq.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)

	resp, err := m.client.Do(preq)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%s: provider status %d", op, resp.StatusCode)
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.ID == "" {
		// Providers without a body still count as sent.
		return utils.GenMessageID(), nil
	}
	return out.ID, nil
}
