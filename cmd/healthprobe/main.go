// Command healthprobe runs a minimal standalone liveness endpoint next
// to the main server, for load balancers that probe a separate port. It
// serves the same handler over fasthttp (default, leanest) or net/http.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"

	"nocaflow/pkg/httpx"
)

func main() {
	addr := flag.String("addr", ":8081", "listen address")
	ver := flag.String("version", "dev", "version string to report")
	transport := flag.String("transport", "fasthttp", "transport: fasthttp or nethttp")
	flag.Parse()

	h := func(w httpx.ResponseWriter, r *httpx.Request) {
		switch r.Path {
		case "/health", "/healthz":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(fmt.Sprintf("{\"status\":\"ok\",\"version\":\"%s\"}", *ver)))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}

	fmt.Printf("health probe (%s) listening on %s\n", *transport, *addr)
	switch *transport {
	case "nethttp":
		srv := &http.Server{
			Addr:         *addr,
			Handler:      httpx.NetHTTPAdapter(h),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		}
		if err := srv.ListenAndServe(); err != nil {
			fmt.Printf("net/http server exit: %v\n", err)
		}
	default:
		srv := &fasthttp.Server{
			Handler:            httpx.FastHTTPAdapter(h),
			Name:               "nocaflow-healthprobe",
			ReadTimeout:        5 * time.Second,
			WriteTimeout:       5 * time.Second,
			MaxRequestBodySize: 1 << 20,
		}
		if err := srv.ListenAndServe(*addr); err != nil {
			fmt.Printf("fasthttp server exit: %v\n", err)
		}
	}
}
