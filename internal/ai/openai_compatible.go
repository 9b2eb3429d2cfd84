package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

var (
	ErrEmptyChoices  = errors.New("empty llm choices")
	ErrNotConfigured = errors.New("llm client not configured")
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
	// BackoffBase scales the retry delay: attempt² × BackoffBase.
	BackoffBase time.Duration
	Logger      *slog.Logger
	Limiter     *RateLimiter
}

// OpenAICompatibleClient talks to any /chat/completions endpoint.
type OpenAICompatibleClient struct {
	httpClient *http.Client
	cfg        ChatConfig
	logger     *slog.Logger
}

func NewOpenAICompatibleClient(cfg ChatConfig) *OpenAICompatibleClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAICompatibleClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     logger,
	}
}

func (c *OpenAICompatibleClient) Model() string { return c.cfg.Model }

// Complete sends messages and returns the first choice's content. Calls are
// throttled by the configured limiter and retried on transient failures.
func (c *OpenAICompatibleClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	if c.cfg.BaseURL == "" || c.cfg.Model == "" {
		return "", ErrNotConfigured
	}
	if c.cfg.Limiter != nil {
		if err := c.cfg.Limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("llm rate limit wait failed: %w", err)
		}
	}

	reqBody := map[string]interface{}{
		"model":    c.cfg.Model,
		"messages": messages,
		"stream":   false,
	}
	if c.cfg.Temperature > 0 {
		reqBody["temperature"] = c.cfg.Temperature
	}
	if c.cfg.MaxTokens > 0 {
		reqBody["max_tokens"] = c.cfg.MaxTokens
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal llm request failed: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	resp, err := doWithRetry(ctx, c.httpClient, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}
		return req, nil
	}, retryPolicy{maxRetries: c.cfg.MaxRetries, base: c.cfg.BackoffBase}, c.logger)
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read llm response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("llm response status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse llm json failed: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrEmptyChoices
	}
	return parsed.Choices[0].Message.Content, nil
}
