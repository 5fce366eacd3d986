package bot

import (
	"fmt"

	"github.com/onnwee/roomwarden/drrr"
)

// Dedup cap and post-truncation size. When the seen set grows past the cap
// the oldest half is forgotten; a forgotten event re-sent later is treated
// as new, which is an accepted imprecision.
const (
	dedupCap  = 1000
	dedupKeep = 500
)

// Deduplicator filters a room's event feed down to events not yet processed.
// The feed is always a full recent-event snapshot, never a delta, so every
// poll re-presents events the bot has already handled.
type Deduplicator struct {
	seen  map[string]struct{}
	order []string
}

// NewDeduplicator returns an empty deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{})}
}

// eventKey fingerprints a talk by body, sender id, and timestamp. Two
// semantically different events with the same fingerprint collide and the
// later one is dropped; this matches the upstream feed's own granularity.
func eventKey(t drrr.Talk) string {
	return fmt.Sprintf("%s_%s_%d", t.Message, t.From.ID, t.Time)
}

// FilterNew returns the subsequence of talks not seen before, in input
// order, and marks them seen. After the batch the seen set is truncated to
// the most recent entries if it grew past the cap.
func (d *Deduplicator) FilterNew(talks []drrr.Talk) []drrr.Talk {
	var fresh []drrr.Talk
	for _, t := range talks {
		key := eventKey(t)
		if _, ok := d.seen[key]; ok {
			continue
		}
		d.seen[key] = struct{}{}
		d.order = append(d.order, key)
		fresh = append(fresh, t)
	}
	if len(d.order) > dedupCap {
		drop := d.order[:len(d.order)-dedupKeep]
		for _, key := range drop {
			delete(d.seen, key)
		}
		d.order = append([]string(nil), d.order[len(d.order)-dedupKeep:]...)
	}
	return fresh
}

// Len returns the current size of the seen set.
func (d *Deduplicator) Len() int { return len(d.order) }
