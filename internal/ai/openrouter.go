package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// Client talks to an OpenRouter-compatible chat completions endpoint.
type Client struct {
	httpRuntime
	apiKey  string
	baseURL string
}

// NewClient builds a client with the given timeout and retry behavior.
// Zero values select 60s, 3 attempts, 500ms base and 4s max delay.
func NewClient(apiKey string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *Client {
	return NewClientWithBaseURL(apiKey, httpTimeout, retryMax, baseDelay, maxDelay, "")
}

// NewClientWithBaseURL is NewClient against a custom endpoint.
func NewClientWithBaseURL(apiKey string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration, baseURL string) *Client {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	if retryMax <= 0 {
		retryMax = 3
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 4 * time.Second
	}
	if baseURL == "" {
		baseURL = openRouterBaseURL
	}
	return &Client{
		httpRuntime: newHTTPRuntime(httpTimeout, retryPolicy{attempts: retryMax, baseDelay: baseDelay, maxDelay: maxDelay}, nil),
		apiKey:      apiKey,
		baseURL:     baseURL,
	}
}

// WithLogger sets the logger used for retry diagnostics.
func (c *Client) WithLogger(log *zap.Logger) *Client {
	if log != nil {
		c.log = log
	}
	return c
}

func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, errors.New("api key is missing (set DATAGLIMPSE_API_KEY)")
	}
	if err := validate(req); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)
	header.Set("HTTP-Referer", "https://github.com/KaramelBytes/dataglimpse")
	header.Set("X-Title", "DataGlimpse")

	resp, err := c.post(ctx, c.baseURL+"/chat/completions", header, payload,
		func(err error) error { return fmt.Errorf("http request: %w", err) },
		classifyAPIError)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	out.RequestID = extractRequestID(resp)
	return &out, nil
}

func validate(req GenerateRequest) error {
	if req.Model == "" {
		return errors.New("model cannot be empty")
	}
	if len(req.Messages) == 0 {
		return errors.New("messages cannot be empty")
	}
	return nil
}
