// Package moderation implements the per-user chat moderation pipeline:
// a sliding-window rate limiter, a repeat-message detector, a keyword
// content filter, a durable violation ledger, and the policy that combines
// them into a single accept/reject decision per incoming message.
//
// All checks are keyed by a composite user key (display name + id) so that
// a user rejoining under the same name but a new id is bucketed separately.
// The components are owned by the polling loop and are not safe for
// concurrent use except where noted (the ledger serializes internally).
package moderation
