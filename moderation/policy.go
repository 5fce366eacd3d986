package moderation

import "time"

// DecisionKind classifies the outcome of evaluating one message.
type DecisionKind int

const (
	// Allow means the message passed all checks (or the sender is admin).
	Allow DecisionKind = iota
	// RateLimited means the sender exceeded the message rate.
	RateLimited
	// Repeating means the sender re-sent the same body too many times.
	Repeating
	// Flagged means the body matched a disallowed keyword.
	Flagged
)

// Decision is the outcome of Policy.Evaluate. Count carries the sender's
// violation total after recording (zero for Allow); Reason carries the
// matched keyword for Flagged decisions.
type Decision struct {
	Kind   DecisionKind
	Count  int
	Reason string
}

// RoomAction is the escalation a caller should apply for a decision.
type RoomAction int

const (
	ActionNone RoomAction = iota
	ActionBan
	ActionKick
)

// Escalation maps a violation count to the room action the bot should take:
// five or more violations gets the user kicked, three or four gets a ban,
// fewer gets a warning only.
func Escalation(count int) RoomAction {
	switch {
	case count >= 5:
		return ActionKick
	case count >= 3:
		return ActionBan
	default:
		return ActionNone
	}
}

// UserKey derives the composite moderation key for a user. Name and id are
// combined so counters follow the (name, id) pair rather than the id alone.
func UserKey(name, id string) string {
	return name + "_" + id
}

// Policy combines the rate limiter, repeat detector, content filter, and
// violation ledger into a single per-message evaluation.
type Policy struct {
	AdminName string

	rate   *RateLimiter
	repeat *RepeatDetector
	filter *ContentFilter
	ledger *Ledger
}

// NewPolicy assembles a policy over the given components. adminName is the
// single identity exempt from every check.
func NewPolicy(adminName string, rate *RateLimiter, repeat *RepeatDetector, filter *ContentFilter, ledger *Ledger) *Policy {
	return &Policy{
		AdminName: adminName,
		rate:      rate,
		repeat:    repeat,
		filter:    filter,
		ledger:    ledger,
	}
}

// IsAdmin reports whether name is the configured admin identity.
func (p *Policy) IsAdmin(name string) bool {
	return name != "" && name == p.AdminName
}

// Ledger exposes the underlying violation ledger (for shutdown flush and
// status reporting).
func (p *Policy) Ledger() *Ledger { return p.ledger }

// Evaluate runs the checks in order: admin bypass, rate limit, repeat
// detection, content filter. The first failing check records exactly one
// violation and short-circuits the rest; the rate check is never invoked for
// the admin, so admin traffic does not consume window slots.
func (p *Policy) Evaluate(name, id, body string, now time.Time) Decision {
	if p.IsAdmin(name) {
		return Decision{Kind: Allow}
	}
	key := UserKey(name, id)
	if p.rate.CheckAndRecord(key, now) {
		return Decision{Kind: RateLimited, Count: p.ledger.RecordViolation(key)}
	}
	if p.repeat.CheckAndRecord(key, now, body) {
		return Decision{Kind: Repeating, Count: p.ledger.RecordViolation(key)}
	}
	if flagged, reason := p.filter.Classify(body); flagged {
		return Decision{Kind: Flagged, Count: p.ledger.RecordViolation(key), Reason: reason}
	}
	return Decision{Kind: Allow}
}
