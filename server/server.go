// Package server exposes the HTTP surface: liveness from the heartbeat file,
// a status summary for operators, and Prometheus metrics. It injects
// correlation IDs into request contexts for consistent logging.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/roomwarden/bot"
	"github.com/onnwee/roomwarden/moderation"
	"github.com/onnwee/roomwarden/store"
	"github.com/onnwee/roomwarden/telemetry"
)

// defaultStaleAfter is how old the heartbeat may be before the process is
// reported unhealthy. Two missed heartbeat intervals.
const defaultStaleAfter = 2 * time.Minute

// Source aggregates everything the HTTP handlers report on. Archive may be
// nil when archiving is disabled.
type Source struct {
	RoomID        string
	HeartbeatPath string
	StaleAfter    time.Duration

	Bot     *bot.Bot
	Ledger  *moderation.Ledger
	Archive *store.Archive
}

type statusResponse struct {
	Connected           bool    `json:"connected"`
	RoomID              string  `json:"room_id"`
	HeartbeatAgeSeconds float64 `json:"heartbeat_age_seconds"`
	UsersWithViolations int     `json:"users_with_violations"`
	ViolationsTotal     int     `json:"violations_total"`
	PlaylistDepth       int     `json:"playlist_depth"`
	ArchivedMessages    int     `json:"archived_messages"`
}

// NewMux returns the HTTP handler with all routes.
func NewMux(src Source) http.Handler {
	if src.StaleAfter <= 0 {
		src.StaleAfter = defaultStaleAfter
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", src.handleHealthz)
	mux.HandleFunc("/status", src.handleStatus)

	// Correlation ID injector and tracing middleware.
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corr := r.Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.New().String()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-ID", corr)

		ctx, span := telemetry.StartSpan(ctx, "http-server", r.Method+" "+r.URL.Path)
		defer span.End()

		telemetry.LoggerWithCorr(ctx).Debug("request start",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("component", "http"))

		mux.ServeHTTP(w, r.WithContext(ctx))
	})
}

// handleHealthz reports liveness from heartbeat freshness: a bot that stopped
// writing heartbeats is as dead as a crashed one.
func (s Source) handleHealthz(w http.ResponseWriter, r *http.Request) {
	hb, err := store.ReadHeartbeat(s.HeartbeatPath)
	if err != nil {
		http.Error(w, "no heartbeat", http.StatusServiceUnavailable)
		return
	}
	if hb.Age(time.Now()) > s.StaleAfter {
		http.Error(w, "heartbeat stale", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s Source) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{RoomID: s.RoomID}

	if hb, err := store.ReadHeartbeat(s.HeartbeatPath); err == nil {
		resp.HeartbeatAgeSeconds = hb.Age(time.Now()).Seconds()
	}
	if s.Bot != nil {
		st := s.Bot.Status()
		resp.Connected = st.Connected
		resp.PlaylistDepth = st.PlaylistDepth
	}
	if s.Ledger != nil {
		resp.UsersWithViolations, resp.ViolationsTotal = s.Ledger.Totals()
	}
	if s.Archive != nil {
		if n, err := s.Archive.MessageCount(r.Context(), s.RoomID); err == nil {
			resp.ArchivedMessages = n
		} else {
			slog.Warn("archive count failed", slog.Any("err", err))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("status encode failed", slog.Any("err", err))
	}
}
