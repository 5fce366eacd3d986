package bot

import "time"

// State aggregates all mutable bot flags and counters. It is owned by the
// polling loop; background tasks never touch it. Welcomed users and the seen
// set live only for the process lifetime, so a restart re-greets the room.
type State struct {
	AIEnabled       bool
	AIManageEnabled bool
	CurrentModel    string
	HangEnabled     bool
	AutoPlayEnabled bool

	Connected bool

	lastKeepAlive time.Time
	lastHangRoom  time.Time
	lastAutoPlay  time.Time
	lastHeartbeat time.Time

	welcomed  map[string]struct{}
	prevUsers map[string]struct{}
}

// NewState returns the startup state: AI chat off, room management on, hang
// messages on, auto-play off.
func NewState(defaultModel string) *State {
	return &State{
		AIManageEnabled: true,
		HangEnabled:     true,
		CurrentModel:    defaultModel,
		welcomed:        make(map[string]struct{}),
		prevUsers:       make(map[string]struct{}),
	}
}

// Welcomed reports whether the user id has already been greeted.
func (s *State) Welcomed(id string) bool {
	_, ok := s.welcomed[id]
	return ok
}

// MarkWelcomed records that the user id has been greeted.
func (s *State) MarkWelcomed(id string) {
	s.welcomed[id] = struct{}{}
}

// due reports whether interval has elapsed since last. A zero last fires
// immediately.
func due(last time.Time, interval time.Duration, now time.Time) bool {
	return last.IsZero() || now.Sub(last) >= interval
}
