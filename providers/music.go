package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// lightTimeout bounds the music and TTS calls, which answer quickly or not
// at all.
const lightTimeout = 10 * time.Second

// Track is a search result ready to be shared in the room.
type Track struct {
	Title string
	URL   string
}

// MusicProvider searches for a playable track by name.
type MusicProvider interface {
	Search(ctx context.Context, query string) (Track, error)
}

// MusicClient searches the song API. Single attempt, no retries: search is
// interactive and the user can simply re-issue the command.
type MusicClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewMusicClient returns a client for the given search endpoint base URL.
func NewMusicClient(baseURL string) *MusicClient {
	return &MusicClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: lightTimeout},
	}
}

// Search looks up the first match for query.
func (c *MusicClient) Search(ctx context.Context, query string) (Track, error) {
	q := url.Values{"msg": {query}, "n": {"1"}}
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+q.Encode(), nil)
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Track{}, &Error{Kind: KindNetwork, Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return Track{}, &Error{Kind: KindBadStatus, Status: resp.StatusCode}
	}
	var body struct {
		Code int `json:"code"`
		Data struct {
			Title  string `json:"title"`
			Singer string `json:"singer"`
			URL    string `json:"url"`
		} `json:"data"`
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Track{}, &Error{Kind: KindMalformed, Err: err}
	}
	if body.Code != 200 {
		return Track{}, &Error{Kind: KindBadStatus, Status: body.Code, Err: fmt.Errorf("search failed: %s", body.Text)}
	}
	if body.Data.URL == "" {
		return Track{}, &Error{Kind: KindEmptyResponse}
	}
	title := body.Data.Title
	if body.Data.Singer != "" {
		title = body.Data.Title + " - " + body.Data.Singer
	}
	return Track{Title: title, URL: body.Data.URL}, nil
}
