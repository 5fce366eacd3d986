// Package bot contains the polling reconciliation loop and everything it
// composes: event deduplication, command parsing and handling, the playlist,
// and the outbound sender. The loop is single-threaded; AI calls and delayed
// warnings run as fire-and-forget tasks that only ever write through the
// serialized sender.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/onnwee/roomwarden/drrr"
	"github.com/onnwee/roomwarden/moderation"
	"github.com/onnwee/roomwarden/providers"
	"github.com/onnwee/roomwarden/store"
	"github.com/onnwee/roomwarden/telemetry"
)

// RoomClient is the transport to the chat service.
type RoomClient interface {
	Join(ctx context.Context, roomID string) error
	GetSnapshot(ctx context.Context, roomID string) (*drrr.Snapshot, error)
	PostMessage(ctx context.Context, text, optionalURL, optionalTo string) error
	PostMusic(ctx context.Context, title, trackURL string) error
	Kick(ctx context.Context, userID string) error
	Ban(ctx context.Context, userID string) error
	Unban(ctx context.Context, userID, userName string) error
	Leave(ctx context.Context) error
}

// fetchFailureLimit is how many consecutive snapshot failures trigger a
// reconnect.
const fetchFailureLimit = 3

// Options are the reconciler's knobs. Zero durations fall back to defaults.
type Options struct {
	RoomID  string
	BotName string
	Models  []string

	PollInterval      time.Duration
	KeepAliveInterval time.Duration
	HangInterval      time.Duration
	AutoPlayInterval  time.Duration
	HeartbeatInterval time.Duration

	JoinAttempts uint64
	JoinDelay    time.Duration

	AutoPlay      bool
	HeartbeatPath string
}

func (o *Options) applyDefaults() {
	if o.BotName == "" {
		o.BotName = "AI机器人"
	}
	if len(o.Models) == 0 {
		o.Models = []string{"V3", "R1"}
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 3 * time.Second
	}
	if o.KeepAliveInterval <= 0 {
		o.KeepAliveInterval = 3 * time.Minute
	}
	if o.HangInterval <= 0 {
		o.HangInterval = 20 * time.Minute
	}
	if o.AutoPlayInterval <= 0 {
		o.AutoPlayInterval = 5 * time.Minute
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = time.Minute
	}
	if o.JoinAttempts == 0 {
		o.JoinAttempts = 3
	}
	if o.JoinDelay <= 0 {
		o.JoinDelay = 5 * time.Second
	}
}

// Bot is the polling reconciler. It joins a room, then on a fixed interval
// fetches a snapshot, welcomes newcomers, and runs every fresh message
// through the moderation policy and command handler.
type Bot struct {
	room     RoomClient
	sender   *Sender
	handler  *Handler
	policy   *moderation.Policy
	dedup    *Deduplicator
	playlist *Playlist
	state    *State
	archive  *store.Archive
	opts     Options

	users         map[string]string
	fetchFailures int
	now           func() time.Time

	// status is a mirror of the loop-owned state safe to read from the
	// HTTP server's goroutines.
	statusMu sync.Mutex
	status   Status
}

// Status is a point-in-time summary for the HTTP status endpoint.
type Status struct {
	Connected     bool
	PlaylistDepth int
}

// New assembles a bot. archive may be nil to disable message archiving.
func New(room RoomClient, ai providers.AIProvider, music providers.MusicProvider, tts providers.TTSProvider, policy *moderation.Policy, archive *store.Archive, opts Options) *Bot {
	opts.applyDefaults()
	b := &Bot{
		room:     room,
		sender:   NewSender(room),
		policy:   policy,
		dedup:    NewDeduplicator(),
		playlist: &Playlist{},
		state:    NewState(opts.Models[0]),
		archive:  archive,
		opts:     opts,
		users:    make(map[string]string),
		now:      time.Now,
	}
	b.state.AutoPlayEnabled = opts.AutoPlay
	b.handler = NewHandler(b.sender, room, ai, music, tts, b.playlist, b.state, policy, opts.Models, b.lookupUser)
	return b
}

// Status returns the latest mirrored state summary.
func (b *Bot) Status() Status {
	b.statusMu.Lock()
	defer b.statusMu.Unlock()
	return b.status
}

func (b *Bot) mirrorStatus() {
	b.statusMu.Lock()
	b.status = Status{Connected: b.state.Connected, PlaylistDepth: b.playlist.Len()}
	b.statusMu.Unlock()
}

func (b *Bot) lookupUser(name string) (string, bool) {
	id, ok := b.users[name]
	return id, ok
}

// Run joins the room and polls until ctx is cancelled. Failing to join after
// the configured attempts is fatal; everything after that degrades and
// retries in place.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.join(ctx); err != nil {
		return fmt.Errorf("join room %s: %w", b.opts.RoomID, err)
	}
	b.state.Connected = true
	telemetry.SetConnected(true)
	b.mirrorStatus()
	slog.Info("joined room", slog.String("room_id", b.opts.RoomID), slog.String("bot", b.opts.BotName))

	if err := b.sender.Send(ctx, b.opts.BotName+"已上线"); err != nil {
		slog.Warn("online announcement failed", slog.Any("err", err))
	}

	// Self-message timers count from the join, not from zero; only the
	// heartbeat fires on the first tick.
	start := b.now()
	b.state.lastKeepAlive = start
	b.state.lastHangRoom = start
	b.state.lastAutoPlay = start

	ticker := time.NewTicker(b.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			b.shutdown()
			return nil
		case <-ticker.C:
			b.tick(ctx)
		}
	}
}

func (b *Bot) join(ctx context.Context) error {
	op := func() error { return b.room.Join(ctx, b.opts.RoomID) }
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(b.opts.JoinDelay), b.opts.JoinAttempts-1),
		ctx,
	)
	return backoff.Retry(op, bo)
}

func (b *Bot) tick(ctx context.Context) {
	now := b.now()
	telemetry.IncPollCycles()
	ctx = telemetry.WithCorrelation(ctx, uuid.NewString())
	ctx, span := telemetry.StartSpan(ctx, "roomwarden/bot", "tick")
	defer span.End()

	b.runTimers(ctx, now)

	var (
		snap *drrr.Snapshot
		err  error
	)
	telemetry.TimeFunc(telemetry.SnapshotDuration, func() {
		snap, err = b.room.GetSnapshot(ctx, b.opts.RoomID)
	})
	if err != nil {
		b.fetchFailures++
		slog.Warn("snapshot fetch failed",
			slog.Int("consecutive", b.fetchFailures),
			slog.Any("err", err))
		if b.fetchFailures >= fetchFailureLimit {
			b.reconnect(ctx)
		}
		return
	}
	b.fetchFailures = 0

	if !b.present(snap) {
		slog.Warn("own identity missing from room, rejoining")
		b.reconnect(ctx)
		return
	}

	b.welcomeNewUsers(ctx, snap)
	b.processTalks(ctx, snap.Talks, now)
	b.mirrorStatus()
}

// runTimers fires the interval-gated side effects: heartbeat, keep-alive,
// hang-room message, and auto-play.
func (b *Bot) runTimers(ctx context.Context, now time.Time) {
	if b.opts.HeartbeatPath != "" && due(b.state.lastHeartbeat, b.opts.HeartbeatInterval, now) {
		b.state.lastHeartbeat = now
		hb := store.Heartbeat{Timestamp: now.Unix(), RoomID: b.opts.RoomID, Connected: b.state.Connected}
		if err := store.WriteHeartbeat(b.opts.HeartbeatPath, hb); err != nil {
			slog.Error("heartbeat write failed", slog.Any("err", err))
		}
	}
	if due(b.state.lastKeepAlive, b.opts.KeepAliveInterval, now) {
		b.state.lastKeepAlive = now
		if err := b.sender.Send(ctx, "/me 保持活跃..."); err != nil {
			slog.Warn("keep-alive failed", slog.Any("err", err))
		}
	}
	if b.state.HangEnabled && due(b.state.lastHangRoom, b.opts.HangInterval, now) {
		b.state.lastHangRoom = now
		if err := b.sender.Send(ctx, "/me 挂房测试信息"); err != nil {
			slog.Warn("hang message failed", slog.Any("err", err))
		}
	}
	if b.state.AutoPlayEnabled && b.playlist.Len() > 0 && due(b.state.lastAutoPlay, b.opts.AutoPlayInterval, now) {
		b.state.lastAutoPlay = now
		b.handler.playNext(ctx)
	}
}

func (b *Bot) present(snap *drrr.Snapshot) bool {
	for _, u := range snap.Users {
		if u.Name == b.opts.BotName {
			return true
		}
	}
	return false
}

func (b *Bot) welcomeNewUsers(ctx context.Context, snap *drrr.Snapshot) {
	current := make(map[string]struct{}, len(snap.Users))
	b.users = make(map[string]string, len(snap.Users))
	for _, u := range snap.Users {
		current[u.ID] = struct{}{}
		b.users[u.Name] = u.ID
		if u.Name == b.opts.BotName {
			continue
		}
		if _, seen := b.state.prevUsers[u.ID]; seen || b.state.Welcomed(u.ID) {
			continue
		}
		slog.Info("welcoming user", slog.String("user", u.Name))
		if err := b.sender.Send(ctx, fmt.Sprintf("/me ようこそ %s！お疲れ様です！", u.Name)); err != nil {
			slog.Warn("welcome failed", slog.String("user", u.Name), slog.Any("err", err))
		}
		b.state.MarkWelcomed(u.ID)
	}
	b.state.prevUsers = current
}

func (b *Bot) processTalks(ctx context.Context, talks []drrr.Talk, now time.Time) {
	fresh := b.dedup.FilterNew(talks)
	for _, t := range fresh {
		if t.Type != "message" {
			continue
		}
		if t.From.Name == b.opts.BotName {
			continue
		}
		telemetry.IncEventsProcessed()
		slog.Info("message received",
			slog.String("user", t.From.Name),
			slog.String("body", t.Message))

		if b.archive != nil {
			m := store.ArchivedMessage{
				RoomID:   b.opts.RoomID,
				UserID:   t.From.ID,
				UserName: t.From.Name,
				Body:     t.Message,
				SentAt:   time.Unix(t.Time, 0),
			}
			if err := b.archive.RecordMessage(ctx, m); err != nil {
				slog.Error("archive write failed", slog.Any("err", err))
			}
		}

		d := b.policy.Evaluate(t.From.Name, t.From.ID, t.Message, now)
		if d.Kind != moderation.Allow {
			b.handler.HandleViolation(ctx, t.From.Name, t.From.ID, d)
			continue
		}
		b.handler.Dispatch(ctx, t.From.Name, t.From.ID, t.Message)
	}
}

// reconnect re-joins the room keeping the welcomed and seen sets, so a brief
// drop does not re-greet everyone or replay handled events.
func (b *Bot) reconnect(ctx context.Context) {
	b.state.Connected = false
	telemetry.SetConnected(false)
	b.mirrorStatus()
	telemetry.IncReconnects()
	if err := b.join(ctx); err != nil {
		// Leave the failure count as is; the next failed fetch lands back here.
		slog.Error("rejoin failed", slog.Any("err", err))
		return
	}
	slog.Info("rejoined room", slog.String("room_id", b.opts.RoomID))
	b.state.Connected = true
	b.fetchFailures = 0
	telemetry.SetConnected(true)
	b.mirrorStatus()
}

// shutdown flushes durable state. The heartbeat is written with Connected
// false so supervision knows this was a clean exit, not a stall.
func (b *Bot) shutdown() {
	slog.Info("shutting down")
	b.state.Connected = false
	telemetry.SetConnected(false)
	b.mirrorStatus()
	if err := b.policy.Ledger().Flush(); err != nil {
		slog.Error("ledger flush failed", slog.Any("err", err))
	}
	if b.opts.HeartbeatPath != "" {
		hb := store.Heartbeat{Timestamp: b.now().Unix(), RoomID: b.opts.RoomID, Connected: false}
		if err := store.WriteHeartbeat(b.opts.HeartbeatPath, hb); err != nil {
			slog.Error("final heartbeat write failed", slog.Any("err", err))
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.room.Leave(ctx); err != nil {
		slog.Warn("leave room failed", slog.Any("err", err))
	}
}
