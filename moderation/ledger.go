package moderation

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Ledger is the durable per-user violation counter. Counts only grow within
// a process lifetime; there is no decay. Every increment is flushed to disk
// before it is reported so a restart never loses a recorded violation.
type Ledger struct {
	mu     sync.Mutex
	path   string
	counts map[string]int
}

// OpenLedger loads the violation table from path, or starts empty when the
// file is missing. A corrupt file is logged and treated as empty rather than
// failing startup.
func OpenLedger(path string) *Ledger {
	l := &Ledger{path: path, counts: make(map[string]int)}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("violation ledger unreadable, starting empty", slog.String("path", path), slog.Any("err", err))
		}
		return l
	}
	if err := json.Unmarshal(data, &l.counts); err != nil {
		slog.Warn("violation ledger corrupt, starting empty", slog.String("path", path), slog.Any("err", err))
		l.counts = make(map[string]int)
	}
	return l
}

// RecordViolation increments the counter for userKey, flushes the table, and
// returns the new count. A flush failure is logged; the in-memory count still
// advances so escalation decisions stay consistent within the process.
func (l *Ledger) RecordViolation(userKey string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[userKey]++
	n := l.counts[userKey]
	if err := l.flushLocked(); err != nil {
		slog.Error("violation ledger flush failed", slog.Any("err", err))
	}
	return n
}

// Count returns the current violation count for userKey.
func (l *Ledger) Count(userKey string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[userKey]
}

// Totals returns the number of tracked users and the sum of all violations.
func (l *Ledger) Totals() (users, violations int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, n := range l.counts {
		violations += n
	}
	return len(l.counts), violations
}

// Flush writes the full table to disk. Called on shutdown; increments flush
// themselves as they happen.
func (l *Ledger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flushLocked()
}

func (l *Ledger) flushLocked() error {
	data, err := json.MarshalIndent(l.counts, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal violations: %w", err)
	}
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger dir: %w", err)
		}
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write violations: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("replace violations: %w", err)
	}
	return nil
}
