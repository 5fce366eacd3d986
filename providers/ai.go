// Package providers contains clients for the external text-generation,
// music-search, and text-to-speech services the bot relays to. Each client
// carries its own bounded timeout; the AI path additionally retries with a
// fixed backoff before giving up with a classified failure.
package providers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
)

// aiTimeout is the per-attempt bound for generation calls; the upstream can
// legitimately take close to a minute on long prompts.
const aiTimeout = 70 * time.Second

// AIProvider generates a reply for a prompt using the named model.
type AIProvider interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// OpenAIProvider backs AIProvider with an OpenAI-compatible chat-completion
// endpoint.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider returns a provider for the given API key and base URL.
// An empty baseURL uses the default OpenAI endpoint.
func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg)}
}

// Generate performs a single chat-completion call and classifies any failure.
func (p *OpenAIProvider) Generate(ctx context.Context, model, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, aiTimeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &Error{Kind: KindTimeout, Err: err}
		}
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &Error{Kind: KindBadStatus, Status: apiErr.HTTPStatusCode, Err: err}
		}
		var unmarshalErr *openai.RequestError
		if errors.As(err, &unmarshalErr) {
			return "", &Error{Kind: KindBadStatus, Status: unmarshalErr.HTTPStatusCode, Err: err}
		}
		return "", &Error{Kind: KindNetwork, Err: err}
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", &Error{Kind: KindEmptyResponse}
	}
	return resp.Choices[0].Message.Content, nil
}

// RetryingAI wraps an AIProvider with the bot's retry policy: up to Attempts
// calls with a constant Delay between them. Every failure class is retried;
// the error from the final attempt is returned so the caller can name the
// failure in chat.
type RetryingAI struct {
	Provider AIProvider
	Attempts uint64
	Delay    time.Duration
}

// NewRetryingAI applies the default policy of 3 attempts 5 seconds apart.
func NewRetryingAI(p AIProvider) *RetryingAI {
	return &RetryingAI{Provider: p, Attempts: 3, Delay: 5 * time.Second}
}

// Generate retries the wrapped provider until it succeeds or attempts are
// exhausted.
func (r *RetryingAI) Generate(ctx context.Context, model, prompt string) (string, error) {
	attempts := r.Attempts
	if attempts == 0 {
		attempts = 1
	}
	var out string
	op := func() error {
		var err error
		out, err = r.Provider.Generate(ctx, model, prompt)
		return err
	}
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.Delay), attempts-1),
		ctx,
	)
	if err := backoff.Retry(op, bo); err != nil {
		return "", err
	}
	return out, nil
}
