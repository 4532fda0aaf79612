package llm

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/spherical/pdf-diff/internal/domain"
)

// RetryConfig bounds how often and how long a transcription request is retried.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig allows three retries starting at one second.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{MaxRetries: 3, InitialBackoff: time.Second, MaxBackoff: 30 * time.Second}
}

func shouldRetry(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError && status != http.StatusNotImplemented
}

// calculateBackoff doubles InitialBackoff per attempt up to MaxBackoff.
func calculateBackoff(attempt int, cfg *RetryConfig) time.Duration {
	d := cfg.InitialBackoff
	for i := 0; i < attempt && d < cfg.MaxBackoff; i++ {
		d *= 2
	}
	if d > cfg.MaxBackoff {
		d = cfg.MaxBackoff
	}
	return d
}

// retryAfter reads a Retry-After header given in seconds, capped at MaxBackoff.
func retryAfter(resp *http.Response, cfg *RetryConfig) (time.Duration, bool) {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs < 0 {
		return 0, false
	}
	d := time.Duration(secs) * time.Second
	if d > cfg.MaxBackoff {
		d = cfg.MaxBackoff
	}
	return d, true
}

// send performs do until it yields a 200 or a non-transient status. Responses
// other than 200 that are not retried are returned to the caller unread.
func (c *Client) send(ctx context.Context, do func() (*http.Response, error)) (*http.Response, error) {
	cfg := c.retry
	var lastErr error

	for attempt := 0; ; attempt++ {
		resp, err := do()
		wait := calculateBackoff(attempt, cfg)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
		case resp.StatusCode == http.StatusOK || !shouldRetry(resp.StatusCode):
			return resp, nil
		default:
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			if d, ok := retryAfter(resp, cfg); ok {
				wait = d
			}
			resp.Body.Close()
		}

		if attempt >= cfg.MaxRetries {
			return nil, domain.APIError(fmt.Sprintf("transcription failed after %d attempts", attempt+1), lastErr)
		}

		c.logger.Warn().
			Int("attempt", attempt+1).
			Dur("wait", wait).
			Err(lastErr).
			Msg("Transcription request failed, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
