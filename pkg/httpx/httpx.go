package httpx

import (
	"context"
	"io"
	"net/http"
)

// Request is the transport-neutral request handed to probe handlers.
// Handlers should use Request.Ctx for cancellation.
type Request struct {
	Ctx        context.Context
	Method     string
	Path       string
	Header     http.Header
	Body       io.ReadCloser
	RemoteAddr string
	// Raw holds the underlying transport request (*http.Request or
	// *fasthttp.RequestCtx) as an escape hatch.
	Raw interface{}
}

// ResponseWriter is the subset of http.ResponseWriter semantics the
// adapters guarantee.
type ResponseWriter interface {
	Header() http.Header
	Write([]byte) (int, error)
	WriteHeader(status int)
}

// HandlerFunc is the handler signature shared across adapters.
type HandlerFunc func(w ResponseWriter, r *Request)
