// Package drrr contains a minimal client for the DRRR chat-room HTTP JSON
// API: joining a room, reading room snapshots, posting messages and music,
// and the moderation calls (kick/ban/unban). Authentication is a pre-issued
// session cookie supplied by external login tooling.
package drrr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://drrr.com"

// requestTimeout bounds every room call so the polling loop can never hang
// on a dead connection.
const requestTimeout = 30 * time.Second

// Client talks to the chat service. The zero value is not usable; use New.
type Client struct {
	BaseURL    string
	Cookie     string
	HTTPClient *http.Client
}

// New returns a client authenticated with the given session cookie.
func New(cookie string) *Client {
	return &Client{
		BaseURL: defaultBaseURL,
		Cookie:  cookie,
		HTTPClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

func (c *Client) base() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return defaultBaseURL
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// Join enters the room. The service joins on a plain page fetch for an
// authenticated session; success is any 200 response.
func (c *Client) Join(ctx context.Context, roomID string) error {
	if roomID == "" {
		return fmt.Errorf("room id empty")
	}
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.base()+"/room/?id="+url.QueryEscape(roomID), nil)
	req.Header.Set("Cookie", c.Cookie)
	resp, err := c.http().Do(req)
	if err != nil {
		return fmt.Errorf("join room: %w", err)
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("join room: status %d", resp.StatusCode)
	}
	return nil
}

// GetSnapshot fetches the current room state.
func (c *Client) GetSnapshot(ctx context.Context, roomID string) (*Snapshot, error) {
	if roomID == "" {
		return nil, fmt.Errorf("room id empty")
	}
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.base()+"/room/?id="+url.QueryEscape(roomID)+"&api=json", nil)
	req.Header.Set("Cookie", c.Cookie)
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	defer closeBody(resp)
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("room not found")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get snapshot: status %d", resp.StatusCode)
	}
	var env snapshotEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &env.Room, nil
}

// PostMessage sends a chat message. optionalURL attaches a link; optionalTo
// addresses the message to a specific user id (a whisper).
func (c *Client) PostMessage(ctx context.Context, text, optionalURL, optionalTo string) error {
	form := url.Values{"message": {text}}
	if optionalURL != "" {
		form.Set("url", optionalURL)
	}
	if optionalTo != "" {
		form.Set("to", optionalTo)
	}
	return c.postForm(ctx, form)
}

// PostMusic shares a playable track in the room.
func (c *Client) PostMusic(ctx context.Context, title, trackURL string) error {
	return c.postForm(ctx, url.Values{
		"music": {"music"},
		"name":  {title},
		"url":   {trackURL},
	})
}

// Kick removes a user from the room.
func (c *Client) Kick(ctx context.Context, userID string) error {
	return c.postForm(ctx, url.Values{"kick": {userID}})
}

// Ban bans a user from the room.
func (c *Client) Ban(ctx context.Context, userID string) error {
	return c.postForm(ctx, url.Values{"ban": {userID}})
}

// Unban lifts a ban. The service wants both the id and the display name.
func (c *Client) Unban(ctx context.Context, userID, userName string) error {
	return c.postForm(ctx, url.Values{
		"unban":    {userID},
		"userName": {userName},
	})
}

// Leave exits the current room.
func (c *Client) Leave(ctx context.Context) error {
	return c.postForm(ctx, url.Values{"leave": {"leave"}})
}

func (c *Client) postForm(ctx context.Context, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base()+"/room/?ajax=1&api=json", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Cookie", c.Cookie)
	resp, err := c.http().Do(req)
	if err != nil {
		return fmt.Errorf("room post: %w", err)
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("room post: status %d", resp.StatusCode)
	}
	// The service sometimes answers 200 with a lounge redirect when the
	// session has silently left the room; surface that as an error so the
	// reconciler can reconnect.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return nil
	}
	var redirect struct {
		Redirect string `json:"redirect"`
	}
	if json.Unmarshal(body, &redirect) == nil && redirect.Redirect == "lounge" {
		return fmt.Errorf("room post: redirected to lounge")
	}
	return nil
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		slog.Warn("failed to close response body", slog.Any("err", err))
	}
}
