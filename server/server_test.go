package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/onnwee/roomwarden/moderation"
	"github.com/onnwee/roomwarden/store"
)

func writeHeartbeat(t *testing.T, dir string, ts time.Time, connected bool) string {
	t.Helper()
	path := filepath.Join(dir, "bot_heartbeat.json")
	hb := store.Heartbeat{Timestamp: ts.Unix(), RoomID: "room-1", Connected: connected}
	if err := store.WriteHeartbeat(path, hb); err != nil {
		t.Fatalf("write heartbeat: %v", err)
	}
	return path
}

func TestHealthzFreshHeartbeat(t *testing.T) {
	path := writeHeartbeat(t, t.TempDir(), time.Now(), true)
	mux := NewMux(Source{RoomID: "room-1", HeartbeatPath: path})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Error("no correlation id header")
	}
}

func TestHealthzStaleHeartbeat(t *testing.T) {
	path := writeHeartbeat(t, t.TempDir(), time.Now().Add(-10*time.Minute), true)
	mux := NewMux(Source{RoomID: "room-1", HeartbeatPath: path})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestHealthzMissingHeartbeat(t *testing.T) {
	mux := NewMux(Source{RoomID: "room-1", HeartbeatPath: filepath.Join(t.TempDir(), "nope.json")})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestStatusReportsLedgerAndHeartbeat(t *testing.T) {
	dir := t.TempDir()
	path := writeHeartbeat(t, dir, time.Now(), true)

	ledger := moderation.OpenLedger(filepath.Join(dir, "violations.json"))
	ledger.RecordViolation("alice_u1")
	ledger.RecordViolation("alice_u1")
	ledger.RecordViolation("bob_u2")

	mux := NewMux(Source{RoomID: "room-1", HeartbeatPath: path, Ledger: ledger})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		RoomID              string  `json:"room_id"`
		HeartbeatAgeSeconds float64 `json:"heartbeat_age_seconds"`
		UsersWithViolations int     `json:"users_with_violations"`
		ViolationsTotal     int     `json:"violations_total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RoomID != "room-1" {
		t.Errorf("room_id = %q", resp.RoomID)
	}
	if resp.UsersWithViolations != 2 || resp.ViolationsTotal != 3 {
		t.Errorf("violations = %d users / %d total, want 2/3", resp.UsersWithViolations, resp.ViolationsTotal)
	}
	if resp.HeartbeatAgeSeconds > 60 {
		t.Errorf("heartbeat age = %f", resp.HeartbeatAgeSeconds)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mux := NewMux(Source{RoomID: "room-1", HeartbeatPath: filepath.Join(t.TempDir(), "hb.json")})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
