package moderation

import "time"

// RateLimiter counts messages per user key over a sliding window. A hit is
// always recorded, even when the user is already over the limit, so a user
// who keeps spamming stays limited until their old hits age out.
type RateLimiter struct {
	limit  int
	window time.Duration
	hits   map[string][]time.Time
}

// NewRateLimiter returns a limiter allowing up to limit messages per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
	}
}

// CheckAndRecord prunes expired hits for userKey, records a hit at now, and
// reports whether the user is over the limit.
func (rl *RateLimiter) CheckAndRecord(userKey string, now time.Time) bool {
	kept := rl.hits[userKey][:0]
	for _, t := range rl.hits[userKey] {
		if now.Sub(t) < rl.window {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	rl.hits[userKey] = kept
	return len(kept) > rl.limit
}
