// Package openrouter implements the roast generation client against an
// OpenRouter-compatible chat-completions endpoint. A local inference
// server exposing the same wire shape works unchanged via BaseURL.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/roasting-id/roasting-service/internal/roast"
)

const (
	defaultBaseURL        = "https://openrouter.ai/api/v1"
	defaultModel          = "deepseek/deepseek-chat"
	defaultMaxAttempts    = 3
	defaultMaxOutputRunes = 2000
)

// Config controls the client.
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	MaxAttempts    int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	Timeout        time.Duration
	MaxOutputRunes int
	// RPS caps outbound calls to the provider across all in-flight
	// requests; zero means no cap.
	RPS float64
}

// Client calls the chat-completions endpoint with bounded retries.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// New builds a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = 250 * time.Millisecond
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxOutputRunes <= 0 {
		cfg.MaxOutputRunes = defaultMaxOutputRunes
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate builds the prompt, calls the provider and validates the
// returned roast text. An invalid-but-successful response earns one
// extra attempt with a stricter prompt before failing.
func (c *Client) Generate(ctx context.Context, startup roast.Startup) (string, error) {
	text, err := c.complete(ctx, BuildPrompt(startup))
	if err != nil {
		return "", err
	}
	if c.validText(text) {
		return strings.TrimSpace(text), nil
	}

	c.logger.Warn("model returned invalid roast text, retrying with strict prompt",
		zap.String("url", startup.URL), zap.Int("len", len(text)))

	text, err = c.complete(ctx, BuildStrictPrompt(startup))
	if err != nil {
		return "", err
	}
	if !c.validText(text) {
		return "", &roast.GenerationError{
			Kind: roast.GenerationInvalidResponse,
			Err:  fmt.Errorf("roast text empty or over %d runes", c.cfg.MaxOutputRunes),
		}
	}
	return strings.TrimSpace(text), nil
}

// complete performs one logical completion with bounded retries on
// retryable failures (network errors, 429 and 5xx).
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	backoff := c.cfg.BackoffInitial

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", &roast.GenerationError{Kind: roast.GenerationProviderError, Err: ctx.Err()}
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > c.cfg.BackoffMax {
				backoff = c.cfg.BackoffMax
			}
		}

		text, retryable, err := c.callOnce(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
		c.logger.Debug("provider call failed, will retry",
			zap.Int("attempt", attempt), zap.Error(err))
	}
	var genErr *roast.GenerationError
	if errors.As(lastErr, &genErr) {
		return "", lastErr
	}
	return "", &roast.GenerationError{Kind: roast.GenerationProviderError, Err: lastErr}
}

// callOnce returns the completion text, whether a failure is retryable,
// and the error.
func (c *Client) callOnce(ctx context.Context, prompt string) (string, bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", false, &roast.GenerationError{Kind: roast.GenerationProviderError, Err: fmt.Errorf("provider rate wait: %w", err)}
	}

	body, err := json.Marshal(chatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    []message{{Role: "user", Content: prompt}},
		MaxTokens:   2048,
		Temperature: 0.9,
	})
	if err != nil {
		return "", false, &roast.GenerationError{Kind: roast.GenerationProviderError, Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", false, &roast.GenerationError{Kind: roast.GenerationProviderError, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	req.Header.Set("X-Title", "Roasting Startup Indonesia")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network-level failures are retryable.
		return "", true, &roast.GenerationError{Kind: roast.GenerationProviderError, Err: fmt.Errorf("provider request: %w", err)}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", true, &roast.GenerationError{
			Kind: roast.GenerationProviderError,
			Err:  fmt.Errorf("provider returned %d", resp.StatusCode),
		}
	default:
		return "", false, &roast.GenerationError{
			Kind: roast.GenerationInvalidResponse,
			Err:  fmt.Errorf("provider returned %d", resp.StatusCode),
		}
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", false, &roast.GenerationError{Kind: roast.GenerationInvalidResponse, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(completion.Choices) == 0 {
		return "", false, &roast.GenerationError{Kind: roast.GenerationInvalidResponse, Err: errors.New("no choices in response")}
	}
	return completion.Choices[0].Message.Content, false, nil
}

func (c *Client) validText(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	return len([]rune(trimmed)) <= c.cfg.MaxOutputRunes
}
