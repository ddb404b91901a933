package backend

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starford/aiatlas/internal/resilience"
)

// maxStatsBody bounds the accepted stats payload.
const maxStatsBody = 64 << 10

type statsResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// StatsHandler serves POST /api/stats/record. The payload is forwarded to the
// backend. Only a backend that answers with a non-2xx status surfaces as 503;
// every other failure is logged and reported to the caller as success so
// page tracking never breaks the page.
func (c *Client) StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload json.RawMessage
		if err := json.NewDecoder(io.LimitReader(r.Body, maxStatsBody)).Decode(&payload); err != nil {
			c.logger.Warn("stats: invalid payload", slog.String("error", err.Error()))
			writeJSON(w, http.StatusOK, statsResponse{Success: true})
			return
		}

		err := c.RecordVisit(r.Context(), payload, Visit{
			UserAgent:    r.UserAgent(),
			ForwardedFor: clientIP(r),
		})

		var se *resilience.StatusError
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, statsResponse{Success: true})
		case errors.As(err, &se):
			c.logger.Warn("stats: backend rejected record",
				slog.Int("status", se.StatusCode),
				slog.String("body", se.Body))
			writeJSON(w, http.StatusServiceUnavailable, statsResponse{
				Success: false,
				Message: "visitor stats service temporarily unavailable",
			})
		default:
			c.logger.Error("stats: forward failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusOK, statsResponse{Success: true})
		}
	}
}

// clientIP picks the forwarded client address, falling back to X-Real-IP.
func clientIP(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); v != "" {
		return v
	}
	if v := strings.TrimSpace(r.Header.Get("X-Real-IP")); v != "" {
		return v
	}
	return "unknown"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}
