package moderation

import "time"

// repeatTTL is how long a sent message body counts toward repeat detection.
const repeatTTL = 5 * time.Minute

type repeatEntry struct {
	body string
	at   time.Time
}

// RepeatDetector flags users who send the same message body too many times
// within a short period.
type RepeatDetector struct {
	limit   int
	history map[string][]repeatEntry
}

// NewRepeatDetector returns a detector that flags the message after the same
// body has already been recorded limit times in the last five minutes.
func NewRepeatDetector(limit int) *RepeatDetector {
	return &RepeatDetector{
		limit:   limit,
		history: make(map[string][]repeatEntry),
	}
}

// CheckAndRecord prunes expired history for userKey, counts prior occurrences
// of body, records the new entry, and reports whether the prior count reached
// the limit. The current message does not count toward its own total.
func (rd *RepeatDetector) CheckAndRecord(userKey string, now time.Time, body string) bool {
	kept := rd.history[userKey][:0]
	for _, e := range rd.history[userKey] {
		if now.Sub(e.at) < repeatTTL {
			kept = append(kept, e)
		}
	}
	repeats := 0
	for _, e := range kept {
		if e.body == body {
			repeats++
		}
	}
	rd.history[userKey] = append(kept, repeatEntry{body: body, at: now})
	return repeats >= rd.limit
}
