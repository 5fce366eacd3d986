// Package store holds the bot's durable state files: the heartbeat record
// watched by external supervision, and a sqlite archive of processed chat
// messages for operator forensics.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Heartbeat is the liveness record overwritten on a fixed interval. External
// watchdogs restart the bot when Timestamp goes stale.
type Heartbeat struct {
	Timestamp int64  `json:"timestamp"`
	RoomID    string `json:"room_id"`
	Connected bool   `json:"connected"`
}

// WriteHeartbeat replaces the heartbeat file at path.
func WriteHeartbeat(path string, hb Heartbeat) error {
	data, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("marshal heartbeat: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create heartbeat dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write heartbeat: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace heartbeat: %w", err)
	}
	return nil
}

// ReadHeartbeat loads the heartbeat file at path.
func ReadHeartbeat(path string) (Heartbeat, error) {
	var hb Heartbeat
	data, err := os.ReadFile(path)
	if err != nil {
		return hb, err
	}
	if err := json.Unmarshal(data, &hb); err != nil {
		return hb, fmt.Errorf("decode heartbeat: %w", err)
	}
	return hb, nil
}

// Age returns how stale the heartbeat is relative to now.
func (hb Heartbeat) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(hb.Timestamp, 0))
}
