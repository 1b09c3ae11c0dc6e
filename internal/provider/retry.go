package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

const (
	retryAttempts  = 4
	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 8 * time.Second
)

// statusError is a non-2xx answer from the API, kept around so the final
// error names the last status the provider gave us.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.code, e.body)
}

// transientStatus reports whether a status is worth another attempt.
func transientStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

// doWithRetry runs the request up to retryAttempts times, backing off between
// attempts. Network errors, 5xx, and 429 retry; everything else is returned
// to the caller as-is. A Retry-After header on a 429 overrides the computed
// delay.
func doWithRetry(ctx context.Context, client *http.Client, buildReq func() (*http.Request, error), logger *slog.Logger) (*http.Response, error) {
	var lastErr error

	for attempt := 1; attempt <= retryAttempts; attempt++ {
		req, err := buildReq()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := client.Do(req)
		if err == nil && !transientStatus(resp.StatusCode) {
			return resp, nil
		}

		var wait time.Duration
		if err != nil {
			lastErr = err
		} else {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			wait = retryAfter(resp)
			resp.Body.Close()
			lastErr = &statusError{code: resp.StatusCode, body: string(body)}
		}
		if attempt == retryAttempts {
			break
		}

		if wait == 0 {
			wait = backoffDelay(attempt)
		}
		logger.Warn("provider request failed, retrying",
			"attempt", attempt,
			"of", retryAttempts,
			"wait", wait,
			"cause", lastErr,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	return nil, fmt.Errorf("provider gave up after %d attempts: %w", retryAttempts, lastErr)
}

// backoffDelay doubles per attempt up to the cap, with up to 50% jitter.
func backoffDelay(attempt int) time.Duration {
	d := retryBaseDelay << (attempt - 1)
	if d > retryMaxDelay {
		d = retryMaxDelay
	}
	return d + time.Duration(rand.Int63n(int64(d/2 + 1)))
}

// retryAfter reads a whole-seconds Retry-After header, as rate limiters send.
func retryAfter(resp *http.Response) time.Duration {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs <= 0 || secs > 60 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
