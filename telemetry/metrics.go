// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	PollCycles       prometheus.Counter
	EventsProcessed  prometheus.Counter
	RepliesSent      prometheus.Counter
	Reconnects       prometheus.Counter
	Violations       *prometheus.CounterVec
	CommandsHandled  *prometheus.CounterVec
	ProviderFailures *prometheus.CounterVec
	RoomActions      *prometheus.CounterVec

	// Histograms (seconds)
	SnapshotDuration prometheus.Observer

	// Gauges
	PlaylistDepthGauge prometheus.Gauge
	ConnectedGauge     prometheus.Gauge // 1=connected,0=disconnected
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		PollCycles = promauto.NewCounter(prometheus.CounterOpts{Name: "roomwarden_poll_cycles_total", Help: "Number of polling cycles executed"})
		EventsProcessed = promauto.NewCounter(prometheus.CounterOpts{Name: "roomwarden_events_processed_total", Help: "Number of fresh message events processed"})
		RepliesSent = promauto.NewCounter(prometheus.CounterOpts{Name: "roomwarden_replies_sent_total", Help: "Number of outgoing message segments sent"})
		Reconnects = promauto.NewCounter(prometheus.CounterOpts{Name: "roomwarden_reconnects_total", Help: "Number of reconnect attempts after lost connectivity"})
		Violations = promauto.NewCounterVec(prometheus.CounterOpts{Name: "roomwarden_violations_total", Help: "Moderation violations by type"}, []string{"type"})
		CommandsHandled = promauto.NewCounterVec(prometheus.CounterOpts{Name: "roomwarden_commands_handled_total", Help: "Slash commands handled by kind"}, []string{"command"})
		ProviderFailures = promauto.NewCounterVec(prometheus.CounterOpts{Name: "roomwarden_provider_failures_total", Help: "External provider failures by provider"}, []string{"provider"})
		RoomActions = promauto.NewCounterVec(prometheus.CounterOpts{Name: "roomwarden_room_actions_total", Help: "Escalation room actions by kind"}, []string{"action"})
		SnapshotDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "roomwarden_snapshot_fetch_duration_seconds", Help: "Room snapshot fetch duration seconds", Buckets: prometheus.DefBuckets})
		PlaylistDepthGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "roomwarden_playlist_depth", Help: "Current number of queued tracks"})
		ConnectedGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "roomwarden_connected", Help: "Room connectivity connected=1 disconnected=0"})
	})
}

func IncPollCycles() { if PollCycles != nil { PollCycles.Inc() } }

func IncEventsProcessed() { if EventsProcessed != nil { EventsProcessed.Inc() } }

func IncRepliesSent() { if RepliesSent != nil { RepliesSent.Inc() } }

func IncReconnects() { if Reconnects != nil { Reconnects.Inc() } }

// IncViolations counts one moderation violation of the given type.
func IncViolations(kind string) { if Violations != nil { Violations.WithLabelValues(kind).Inc() } }

// IncCommandsHandled counts one handled slash command.
func IncCommandsHandled(command string) { if CommandsHandled != nil { CommandsHandled.WithLabelValues(command).Inc() } }

// IncProviderFailures counts one exhausted provider call.
func IncProviderFailures(provider string) { if ProviderFailures != nil { ProviderFailures.WithLabelValues(provider).Inc() } }

// IncRoomActions counts one escalation action (kick or ban).
func IncRoomActions(action string) { if RoomActions != nil { RoomActions.WithLabelValues(action).Inc() } }

// SetPlaylistDepth records the current queued track count.
func SetPlaylistDepth(n int) { if PlaylistDepthGauge != nil { PlaylistDepthGauge.Set(float64(n)) } }

// SetConnected sets gauge to 1 if connected else 0.
func SetConnected(connected bool) {
	if ConnectedGauge == nil {
		return
	}
	if connected {
		ConnectedGauge.Set(1)
	} else {
		ConnectedGauge.Set(0)
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil { obs.Observe(d.Seconds()) }
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}
var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context { return context.WithValue(ctx, corrKey, id) }

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok { return s }
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" { return slog.Default().With(slog.String("corr", id)) }
	return slog.Default()
}
