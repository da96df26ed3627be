package orclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/skald-dev/skald/src/aisdk"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultTimeout = 30 * time.Second
	modelCacheTTL  = time.Hour
)

// Client talks to the OpenRouter API. OpenRouter fronts many vendors behind
// one OpenAI-compatible endpoint, so a single wire format serves every model
// it routes.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	// streamClient carries no client-wide timeout; streams are bounded by
	// the caller's context.
	streamClient *http.Client
	logger       *slog.Logger
	retryCount   int
	retryDelay   time.Duration
	siteURL      string
	siteName     string

	modelCache *modelCache
}

var _ aisdk.Provider = (*Client)(nil)

// NewClient creates an OpenRouter client from the given config.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		httpClient:   httpClient,
		streamClient: &http.Client{Transport: httpClient.Transport},
		logger:       logger.With("provider", "openrouter"),
		retryCount:   cfg.RetryCount,
		retryDelay:   cfg.RetryDelay,
		siteURL:      cfg.SiteURL,
		siteName:     cfg.SiteName,
	}
	c.modelCache = newModelCache(c, modelCacheTTL)
	return c, nil
}

// GetModels lists the models OpenRouter currently routes.
func (c *Client) GetModels(ctx context.Context) ([]*aisdk.ModelInfo, error) {
	return c.modelCache.GetModelList(ctx)
}

// Model returns a client bound to the named model. The model's profile comes
// from the live model list when reachable, and falls back to a permissive
// local profile so a listing outage never blocks chat.
func (c *Client) Model(ctx context.Context, name string) (aisdk.ModelClient, error) {
	if name == "" {
		return nil, fmt.Errorf("openrouter: model name is required")
	}

	info, err := c.modelCache.GetModel(ctx, name)
	if err != nil {
		c.logger.Debug("model lookup failed, using local profile", "model", name, "error", err)
		info = fallbackModelInfo(name)
	}
	return &ModelClient{client: c, info: info}, nil
}

func (c *Client) createChatCompletion(ctx context.Context, req *aisdk.ChatCompletionRequest) (*aisdk.ChatCompletionResponse, error) {
	wire := buildWireRequest(req, false)

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("openrouter: marshal request: %w", err)
	}

	resp, err := c.doRequestWithRetry(ctx, http.MethodPost, "/chat/completions", body, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var wireResp wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wireResp); err != nil {
		return nil, fmt.Errorf("openrouter: decode response: %w", err)
	}

	out := wireResp.toResponse()
	if len(out.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	if out.Usage != nil {
		c.logger.Debug("completion usage",
			"model", out.Model,
			"prompt_tokens", out.Usage.PromptTokens,
			"completion_tokens", out.Usage.CompletionTokens,
			"total_tokens", out.Usage.TotalTokens)
	}
	return out, nil
}

// newRequest builds an authenticated API request. The optional ranking
// headers attribute traffic to the app on openrouter.ai leaderboards.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.siteURL != "" {
		req.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.siteName != "" {
		req.Header.Set("X-Title", c.siteName)
	}
	return req, nil
}

// doRequestWithRetry sends the request, retrying transient failures. The
// caller owns the response body on success. Stream requests use the untimed
// client and announce the SSE accept type; their retries only cover failures
// before the first byte of the stream.
func (c *Client) doRequestWithRetry(ctx context.Context, method, path string, body []byte, stream bool) (*http.Response, error) {
	httpClient := c.httpClient
	if stream {
		httpClient = c.streamClient
	}

	var lastErr error
	for attempt := 1; attempt <= c.retryCount+1; attempt++ {
		if attempt > 1 {
			delay := retryDelayFor(lastErr, attempt-1, c.retryDelay)
			c.logger.Debug("retrying request", "path", path, "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := c.newRequest(ctx, method, path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		if stream {
			req.Header.Set("Accept", "text/event-stream")
		}

		resp, err := httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("openrouter: request failed: %w", err)
			continue
		}

		if resp.StatusCode >= 400 {
			apiErr := c.handleError(resp)
			if !apiErr.Retryable() {
				return nil, apiErr
			}
			lastErr = apiErr
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

// handleError drains an error response into an APIError. The body is closed.
func (c *Client) handleError(resp *http.Response) *APIError {
	defer resp.Body.Close()

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
		RequestID:  resp.Header.Get("X-Request-Id"),
	}

	if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds > 0 {
		apiErr.RetryAfter = time.Duration(seconds) * time.Second
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apiErr
	}

	var wire errorResponse
	if err := json.Unmarshal(body, &wire); err != nil || wire.Error.Message == "" {
		if len(body) > 0 {
			apiErr.Message = string(body)
		}
		return apiErr
	}

	apiErr.Message = wire.Error.Message
	apiErr.Type = wire.Error.Type
	apiErr.Param = wire.Error.Param
	apiErr.Code = codeString(wire.Error.Code)
	return apiErr
}

// codeString flattens the error code field, which OpenRouter serves as
// either a string or a number depending on the upstream vendor.
func codeString(code any) string {
	switch v := code.(type) {
	case string:
		return v
	case float64:
		return strconv.Itoa(int(v))
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func fallbackModelInfo(name string) *aisdk.ModelInfo {
	return &aisdk.ModelInfo{
		ID:                  name,
		Name:                name,
		Provider:            "openrouter",
		SupportedParameters: []string{"temperature", "top_p", "top_k", "max_tokens"},
	}
}
