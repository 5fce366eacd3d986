package drrr

// User is a room participant as reported by the room snapshot.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Talk is one entry in the room's recent-event feed. Type is "message" for
// ordinary chat; joins, leaves, and music posts arrive with their own types.
type Talk struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	From    User   `json:"from"`
	Time    int64  `json:"time"`
}

// Snapshot is the full recent state of a room: who is present and the
// trailing event feed. The service offers no delta push; callers must diff
// consecutive snapshots themselves.
type Snapshot struct {
	Users []User `json:"users"`
	Talks []Talk `json:"talks"`
}

// snapshotEnvelope matches the service's JSON response shape.
type snapshotEnvelope struct {
	Room Snapshot `json:"room"`
}
