package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ArchivedMessage is one processed chat message as stored in the archive.
type ArchivedMessage struct {
	RoomID   string
	UserID   string
	UserName string
	Body     string
	SentAt   time.Time
}

// Archive persists every processed message-kind event to sqlite so an
// operator can reconstruct what the bot saw after the fact. It is write-heavy
// and read-rarely; failures here are logged by callers and never stop the
// polling loop.
type Archive struct {
	db *sql.DB
}

// OpenArchive opens (creating if needed) the archive database at path.
func OpenArchive(path string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			user_name TEXT NOT NULL,
			body TEXT NOT NULL,
			sent_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create messages table: %w", err)
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_messages_room_sent ON messages(room_id, sent_at)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create messages index: %w", err)
	}
	return &Archive{db: db}, nil
}

// Close closes the underlying database.
func (a *Archive) Close() error { return a.db.Close() }

// RecordMessage appends one message to the archive.
func (a *Archive) RecordMessage(ctx context.Context, m ArchivedMessage) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO messages (room_id, user_id, user_name, body, sent_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.RoomID, m.UserID, m.UserName, m.Body, m.SentAt.Unix())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// RecentMessages returns up to limit messages for a room, newest first.
func (a *Archive) RecentMessages(ctx context.Context, roomID string, limit int) ([]ArchivedMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT room_id, user_id, user_name, body, sent_at
		FROM messages
		WHERE room_id = ?
		ORDER BY sent_at DESC, id DESC
		LIMIT ?
	`, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []ArchivedMessage
	for rows.Next() {
		var m ArchivedMessage
		var sentAt int64
		if err := rows.Scan(&m.RoomID, &m.UserID, &m.UserName, &m.Body, &sentAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.SentAt = time.Unix(sentAt, 0)
		out = append(out, m)
	}
	return out, rows.Err()
}

// MessageCount returns the number of archived messages for a room.
func (a *Archive) MessageCount(ctx context.Context, roomID string) (int, error) {
	var n int
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE room_id = ?`, roomID).Scan(&n)
	return n, err
}
