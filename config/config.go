// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For required credentials (room id and session cookie), use ValidateRoomReady.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	// Room
	RoomID    string
	Cookie    string
	BaseURL   string
	AdminName string
	BotName   string

	// Providers
	AIAPIKey    string
	AIBaseURL   string
	AIModels    []string
	MusicAPIURL string
	TTSAPIURL   string

	// Moderation
	RateLimit   int
	RateWindow  time.Duration
	RepeatLimit int

	// Loop timing
	PollInterval      time.Duration
	KeepAliveInterval time.Duration
	HangInterval      time.Duration
	AutoPlayInterval  time.Duration
	HeartbeatInterval time.Duration
	AutoPlay          bool

	// Storage
	DataDir        string
	ViolationsPath string
	HeartbeatPath  string
	ArchivePath    string

	// HTTP
	HTTPAddr string
}

// Load reads environment variables and applies defaults. It doesn't fail if room
// credentials are missing; use ValidateRoomReady() before joining. Missing optional
// variables fall back to defaults (e.g., public provider endpoints).
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.RoomID = os.Getenv("DRRR_ROOM_ID")
	cfg.Cookie = os.Getenv("DRRR_COOKIE")
	cfg.BaseURL = os.Getenv("DRRR_BASE_URL")
	cfg.AdminName = os.Getenv("ADMIN_NAME")
	if cfg.AdminName == "" {
		cfg.AdminName = "52Hertz"
	}
	cfg.BotName = os.Getenv("BOT_NAME")
	if cfg.BotName == "" {
		cfg.BotName = "AI机器人"
	}

	// Providers
	cfg.AIAPIKey = os.Getenv("AI_API_KEY")
	cfg.AIBaseURL = os.Getenv("AI_BASE_URL")
	cfg.AIModels = []string{"V3", "R1"}
	cfg.MusicAPIURL = os.Getenv("MUSIC_API_URL")
	if cfg.MusicAPIURL == "" {
		cfg.MusicAPIURL = "https://api.suyanw.cn/api/QQ_Music.php"
	}
	cfg.TTSAPIURL = os.Getenv("TTS_API_URL")
	if cfg.TTSAPIURL == "" {
		cfg.TTSAPIURL = "https://api.suyanw.cn/api/tts.php"
	}

	// Moderation
	var err error
	if cfg.RateLimit, err = intEnv("RATE_LIMIT", 5); err != nil {
		return nil, err
	}
	if cfg.RateWindow, err = durationEnv("RATE_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	if cfg.RepeatLimit, err = intEnv("REPEAT_LIMIT", 3); err != nil {
		return nil, err
	}

	// Loop timing
	if cfg.PollInterval, err = durationEnv("POLL_INTERVAL", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.KeepAliveInterval, err = durationEnv("KEEPALIVE_INTERVAL", 3*time.Minute); err != nil {
		return nil, err
	}
	if cfg.HangInterval, err = durationEnv("HANG_INTERVAL", 20*time.Minute); err != nil {
		return nil, err
	}
	if cfg.AutoPlayInterval, err = durationEnv("AUTOPLAY_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.HeartbeatInterval, err = durationEnv("HEARTBEAT_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	cfg.AutoPlay = os.Getenv("AUTOPLAY") == "1" || os.Getenv("AUTOPLAY") == "true"

	// Storage
	cfg.DataDir = os.Getenv("DATA_DIR")
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	cfg.ViolationsPath = filepath.Join(cfg.DataDir, "user_violations.json")
	cfg.HeartbeatPath = filepath.Join(cfg.DataDir, "bot_heartbeat.json")
	cfg.ArchivePath = filepath.Join(cfg.DataDir, "messages.db")

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	return cfg, nil
}

// ValidateRoomReady checks required fields before the bot may join a room.
func (c *Config) ValidateRoomReady() error {
	if c.RoomID == "" || c.Cookie == "" {
		return fmt.Errorf("missing room env: require DRRR_ROOM_ID, DRRR_COOKIE")
	}
	return nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s (duration): %w", key, err)
	}
	return d, nil
}
