package providers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
)

// TTSProvider renders text to a hosted audio clip and returns its URL.
type TTSProvider interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// TTSClient calls the text-to-speech API. Single attempt, same as music.
type TTSClient struct {
	BaseURL    string
	Voice      string
	HTTPClient *http.Client
}

// NewTTSClient returns a client using the default voice.
func NewTTSClient(baseURL string) *TTSClient {
	return &TTSClient{
		BaseURL:    baseURL,
		Voice:      "素颜",
		HTTPClient: &http.Client{Timeout: lightTimeout},
	}
}

// Synthesize converts text to speech and returns the audio file link.
func (c *TTSClient) Synthesize(ctx context.Context, text string) (string, error) {
	q := url.Values{"text": {text}, "voice": {c.Voice}}
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+q.Encode(), nil)
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", &Error{Kind: KindNetwork, Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return "", &Error{Kind: KindBadStatus, Status: resp.StatusCode}
	}
	var body struct {
		Code int `json:"code"`
		Data struct {
			FileLink string `json:"file_link"`
		} `json:"data"`
		Msg string `json:"msg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &Error{Kind: KindMalformed, Err: err}
	}
	if body.Code != 200 || body.Data.FileLink == "" {
		return "", &Error{Kind: KindEmptyResponse}
	}
	return body.Data.FileLink, nil
}
