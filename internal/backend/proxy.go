package backend

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"

	"github.com/starford/aiatlas/internal/resilience"
)

// Proxy returns a reverse proxy to the backend. Responses are flushed as they
// arrive so streamed completions reach the browser immediately. Every request
// goes through the "proxy" circuit breaker; an open breaker answers 503.
func (c *Client) Proxy() http.Handler {
	const op = "proxy"
	base := c.base
	transport := &resilience.Transport{Executor: c.exec, Operation: op}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(base)
			pr.SetXForwarded()
		},
		Transport:     transport,
		FlushInterval: -1,
		ModifyResponse: func(resp *http.Response) error {
			if resp.StatusCode >= 500 {
				c.rec.BackendCall(op, "status_5xx")
			} else {
				c.rec.BackendCall(op, "ok")
			}
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			switch {
			case resilience.IsCircuitOpen(err):
				c.rec.BackendCall(op, "circuit_open")
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "backend unavailable"})
			case errors.Is(err, context.Canceled):
				// Client went away; nothing to answer.
			default:
				c.rec.BackendCall(op, "error")
				c.logger.Error("proxy: backend request failed",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()))
				writeJSON(w, http.StatusBadGateway, map[string]string{"error": "backend request failed"})
			}
		},
	}
}
