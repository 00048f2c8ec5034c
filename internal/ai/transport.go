package ai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// httpRuntime holds what the OpenRouter and Ollama clients share.
type httpRuntime struct {
	httpClient *http.Client
	policy     retryPolicy
	log        *zap.Logger
}

func newHTTPRuntime(timeout time.Duration, policy retryPolicy, log *zap.Logger) httpRuntime {
	if log == nil {
		log = zap.NewNop()
	}
	if policy.attempts <= 0 {
		policy.attempts = 1
	}
	return httpRuntime{httpClient: &http.Client{Timeout: timeout}, policy: policy, log: log}
}

// post sends payload to endpoint, retrying network timeouts, 429s and 5xx
// responses. The caller closes the returned body. netErr wraps transport
// failures; classify maps final non-2xx responses.
func (h httpRuntime) post(ctx context.Context, endpoint string, header http.Header, payload []byte,
	netErr func(error) error, classify func(*APIError, *http.Response) error,
) (*http.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= h.policy.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header = header.Clone()
		req.Header.Set("Content-Type", "application/json")

		resp, err := h.httpClient.Do(req)
		last := attempt == h.policy.attempts
		if err != nil {
			if !isRetryableNetErr(err) || last {
				return nil, netErr(err)
			}
			lastErr = err
			h.log.Debug("runtime request failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
			if err := sleep(ctx, h.policy.delay(attempt, 0)); err != nil {
				return nil, err
			}
			continue
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}
		apiErr := readAPIError(resp)
		resp.Body.Close()
		if !isRetryableStatus(resp.StatusCode) || last {
			return nil, classify(apiErr, resp)
		}
		lastErr = apiErr
		ra, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		h.log.Debug("runtime returned retryable status",
			zap.Int("attempt", attempt), zap.Int("status", resp.StatusCode), zap.Duration("retry_after", ra))
		if err := sleep(ctx, h.policy.delay(attempt, ra)); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}
