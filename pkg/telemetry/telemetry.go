package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"nocaflow/pkg/state"
)

// Low-overhead request telemetry. Slow requests always get a one-line
// record; full span traces are recorded only for sampled requests.

type ctxKeyType struct{}

var (
	writerOnce    sync.Once
	writerCh      chan []byte
	requestCtr    uint64
	spanCtr       uint64
	sampleRate    = 0.001
	slowThreshold = 200 * time.Millisecond
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nocaflow_http_requests_total",
		Help: "HTTP requests served, by method and status class.",
	}, []string{"method", "class"})
	httpDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nocaflow_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	})
)

// Span is one timed operation inside a sampled request, in milliseconds
// relative to request start.
type Span struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id,omitempty"`
	Op       string `json:"op"`
	StartMs  int64  `json:"start_ms"`
	Duration int64  `json:"duration_ms"`
}

// Trace holds the per-request spans and metadata.
type Trace struct {
	RequestID string `json:"request_id"`
	Op        string `json:"op"`
	Duration  int64  `json:"duration_ms"`
	Status    int    `json:"status"`
	Spans     []Span `json:"spans,omitempty"`

	startTime time.Time
	mu        sync.Mutex
	spanStack []string
}

// initWriter starts the background writer that appends records to
// telemetry.jsonl under the state directory.
func initWriter() {
	writerCh = make(chan []byte, 1024)
	go func() {
		dir := filepath.Join("data", "state", "telemetry")
		if state.PathsVar.State != "" {
			dir = filepath.Join(state.PathsVar.State, "telemetry")
		}
		_ = os.MkdirAll(dir, 0o755)
		f, err := os.OpenFile(filepath.Join(dir, "telemetry.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return
		}
		defer f.Close()
		for b := range writerCh {
			_, _ = f.Write(append(b, '\n'))
		}
	}()
}

// Middleware records request timing, prometheus counters and sampled
// span traces.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := genRequestID()

		var tr *Trace
		if shouldSample(r) {
			tr = &Trace{RequestID: reqID, Op: r.URL.Path, startTime: start}
			rootID := genSpanID()
			tr.Spans = append(tr.Spans, Span{ID: rootID, Op: tr.Op})
			tr.spanStack = append(tr.spanStack, rootID)
			r = r.WithContext(context.WithValue(r.Context(), ctxKeyType{}, tr))
		}

		srw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(srw, r)

		dur := time.Since(start)
		httpRequests.WithLabelValues(r.Method, statusClass(srw.status)).Inc()
		httpDuration.Observe(dur.Seconds())

		if tr != nil {
			tr.mu.Lock()
			tr.Status = srw.status
			tr.Duration = dur.Milliseconds()
			b := renderTrace(tr)
			tr.mu.Unlock()
			enqueue(b)
			return
		}
		if dur > slowThreshold {
			enqueue([]byte(fmt.Sprintf("SLOW %s op=%s duration_ms=%d status=%d", reqID, r.URL.Path, dur.Milliseconds(), srw.status)))
		}
	})
}

func enqueue(b []byte) {
	writerOnce.Do(initWriter)
	select {
	case writerCh <- b:
	default:
		// drop rather than block the request path
	}
}

func statusClass(code int) string {
	switch {
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// StartSpan returns an end function. When the request is not sampled the
// returned function is a no-op.
func StartSpan(ctx context.Context, name string) func() {
	tr, ok := ctx.Value(ctxKeyType{}).(*Trace)
	if !ok {
		return func() {}
	}
	startRel := time.Since(tr.startTime).Milliseconds()
	id := genSpanID()

	tr.mu.Lock()
	parent := ""
	if len(tr.spanStack) > 0 {
		parent = tr.spanStack[len(tr.spanStack)-1]
	}
	tr.Spans = append(tr.Spans, Span{ID: id, ParentID: parent, Op: name, StartMs: startRel})
	tr.spanStack = append(tr.spanStack, id)
	idx := len(tr.Spans) - 1
	tr.mu.Unlock()

	return func() {
		endRel := time.Since(tr.startTime).Milliseconds()
		tr.mu.Lock()
		if idx < len(tr.Spans) {
			tr.Spans[idx].Duration = endRel - tr.Spans[idx].StartMs
		}
		if len(tr.spanStack) > 0 {
			tr.spanStack = tr.spanStack[:len(tr.spanStack)-1]
		}
		tr.mu.Unlock()
	}
}

func renderTrace(t *Trace) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "REQUEST %s op=%s duration_ms=%d status=%d\n", t.RequestID, t.Op, t.Duration, t.Status)

	children := make(map[string][]Span)
	for _, sp := range t.Spans {
		children[sp.ParentID] = append(children[sp.ParentID], sp)
	}
	var printSpan func(id string, depth int)
	printSpan = func(id string, depth int) {
		list := children[id]
		sort.SliceStable(list, func(i, j int) bool { return list[i].StartMs < list[j].StartMs })
		for _, sp := range list {
			fmt.Fprintf(&b, "%s- %s id=%s start_ms=%d duration_ms=%d\n",
				strings.Repeat("  ", depth), sp.Op, sp.ID, sp.StartMs, sp.Duration)
			printSpan(sp.ID, depth+1)
		}
	}
	printSpan("", 1)
	return []byte(b.String())
}

// shouldSample answers the sampling decision; `X-Debug-Telemetry: 1`
// forces a full trace.
func shouldSample(r *http.Request) bool {
	if r.Header.Get("X-Debug-Telemetry") == "1" {
		return true
	}
	if sampleRate <= 0 {
		return false
	}
	denom := int64(1 / sampleRate)
	if denom <= 1 {
		return true
	}
	n := int64(atomic.AddUint64(&requestCtr, 1))
	return n%denom == 0
}

func genRequestID() string {
	n := atomic.AddUint64(&requestCtr, 1)
	return fmt.Sprintf("r-%s-%d", time.Now().Format("20060102T150405"), n)
}

func genSpanID() string {
	return fmt.Sprintf("s-%d", atomic.AddUint64(&spanCtr, 1))
}

// SetSampleRate sets the approximate full-trace sampling rate (0..1).
func SetSampleRate(r float64) {
	if r < 0 {
		r = 0
	}
	if r > 1 {
		r = 1
	}
	sampleRate = r
}

// SetSlowThreshold sets the duration above which non-sampled requests
// still get a one-line record.
func SetSlowThreshold(d time.Duration) {
	if d < 0 {
		d = 0
	}
	slowThreshold = d
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush lets SSE handlers stream through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
