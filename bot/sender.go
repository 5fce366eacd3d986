package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/roomwarden/telemetry"
)

// outbound is the slice of the room client the sender needs.
type outbound interface {
	PostMessage(ctx context.Context, text, optionalURL, optionalTo string) error
	PostMusic(ctx context.Context, title, trackURL string) error
}

// segmentDelay spaces multi-part sends so the transport, which guarantees
// no ordering across rapid consecutive posts, delivers them in sequence.
const segmentDelay = time.Second

// Sender serializes all outgoing room traffic. The polling loop and its
// background tasks (delayed warnings, AI replies) all write through here, so
// a segmented message is never interleaved with another sender's parts.
type Sender struct {
	mu    sync.Mutex
	room  outbound
	sleep func(time.Duration)
}

// NewSender wraps the room client's outbound half.
func NewSender(room outbound) *Sender {
	return &Sender{room: room, sleep: time.Sleep}
}

// Send splits text into transport-sized segments and posts them in order.
// Individual segment failures are logged and do not stop later segments.
func (s *Sender) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	parts := segments(text)
	for i, part := range parts {
		if err := s.room.PostMessage(ctx, part, "", ""); err != nil {
			slog.Error("post message failed", slog.Int("segment", i+1), slog.Int("segments", len(parts)), slog.Any("err", err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		telemetry.IncRepliesSent()
		if i < len(parts)-1 {
			s.sleep(segmentDelay)
		}
	}
	return firstErr
}

// SendMusic shares a playable track.
func (s *Sender) SendMusic(ctx context.Context, title, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room.PostMusic(ctx, title, url)
}
