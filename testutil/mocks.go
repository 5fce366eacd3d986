// Package testutil provides in-memory fakes for the room transport and the
// external providers, used across package tests.
package testutil

import (
	"context"
	"sync"

	"github.com/onnwee/roomwarden/drrr"
	"github.com/onnwee/roomwarden/providers"
)

// FakeRoom is a scripted in-memory room transport. Snapshot errors and join
// errors are consumed in order; the last snapshot repeats once the script
// runs out. Recorded state is mutex-guarded since background send tasks run
// off the polling goroutine.
type FakeRoom struct {
	mu sync.Mutex

	JoinErrs     []error
	SnapshotErrs []error
	Snapshots    []*drrr.Snapshot

	JoinCalls int
	Messages  []string
	MusicSent [][2]string
	Kicked    []string
	Banned    []string
	Unbanned  []string
	Left      bool
}

// PushSnapshot appends a snapshot to the script.
func (f *FakeRoom) PushSnapshot(s *drrr.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Snapshots = append(f.Snapshots, s)
}

func (f *FakeRoom) Join(ctx context.Context, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.JoinCalls++
	if len(f.JoinErrs) > 0 {
		err := f.JoinErrs[0]
		f.JoinErrs = f.JoinErrs[1:]
		return err
	}
	return nil
}

func (f *FakeRoom) GetSnapshot(ctx context.Context, roomID string) (*drrr.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.SnapshotErrs) > 0 {
		err := f.SnapshotErrs[0]
		f.SnapshotErrs = f.SnapshotErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(f.Snapshots) == 0 {
		return &drrr.Snapshot{}, nil
	}
	s := f.Snapshots[0]
	if len(f.Snapshots) > 1 {
		f.Snapshots = f.Snapshots[1:]
	}
	return s, nil
}

func (f *FakeRoom) PostMessage(ctx context.Context, text, optionalURL, optionalTo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Messages = append(f.Messages, text)
	return nil
}

func (f *FakeRoom) PostMusic(ctx context.Context, title, trackURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MusicSent = append(f.MusicSent, [2]string{title, trackURL})
	return nil
}

func (f *FakeRoom) Kick(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Kicked = append(f.Kicked, userID)
	return nil
}

func (f *FakeRoom) Ban(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Banned = append(f.Banned, userID)
	return nil
}

func (f *FakeRoom) Unban(ctx context.Context, userID, userName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Unbanned = append(f.Unbanned, userName)
	return nil
}

func (f *FakeRoom) Leave(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Left = true
	return nil
}

// SentMessages returns a copy of everything posted so far.
func (f *FakeRoom) SentMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Messages))
	copy(out, f.Messages)
	return out
}

// ScriptedAI returns canned replies (or errors) in order and records every
// prompt it was asked. The last script entry repeats.
type ScriptedAI struct {
	mu      sync.Mutex
	Replies []string
	Errs    []error

	Models  []string
	Prompts []string
}

func (s *ScriptedAI) Generate(ctx context.Context, model, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Models = append(s.Models, model)
	s.Prompts = append(s.Prompts, prompt)
	if len(s.Errs) > 0 {
		err := s.Errs[0]
		if len(s.Errs) > 1 {
			s.Errs = s.Errs[1:]
		}
		if err != nil {
			return "", err
		}
	}
	if len(s.Replies) == 0 {
		return "ok", nil
	}
	reply := s.Replies[0]
	if len(s.Replies) > 1 {
		s.Replies = s.Replies[1:]
	}
	return reply, nil
}

// CallCount returns how many times Generate was invoked.
func (s *ScriptedAI) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Prompts)
}

// ScriptedMusic returns a fixed track or error for every search.
type ScriptedMusic struct {
	Track   providers.Track
	Err     error
	Queries []string
}

func (s *ScriptedMusic) Search(ctx context.Context, query string) (providers.Track, error) {
	s.Queries = append(s.Queries, query)
	if s.Err != nil {
		return providers.Track{}, s.Err
	}
	return s.Track, nil
}

// ScriptedTTS returns a fixed link or error for every synthesis.
type ScriptedTTS struct {
	Link string
	Err  error
}

func (s *ScriptedTTS) Synthesize(ctx context.Context, text string) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	return s.Link, nil
}
