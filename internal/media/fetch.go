// Package media retrieves message attachments and stores them as photo
// files. Fetch failures are expected to be non-fatal for the record that owns
// the photo; callers log and continue.
package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	fetchTimeout = 30 * time.Second
	maxPhotoSize = 10 << 20 // 10MB
)

// HTTPFetcher downloads attachment bytes over HTTP. Twilio-style media URLs
// require basic auth with the account credentials.
type HTTPFetcher struct {
	client   *http.Client
	username string
	password string
}

type FetcherConfig struct {
	Username string // optional basic-auth user (account SID)
	Password string // optional basic-auth password (auth token)
}

func NewHTTPFetcher(cfg FetcherConfig) *HTTPFetcher {
	return &HTTPFetcher{
		client:   &http.Client{Timeout: fetchTimeout},
		username: cfg.Username,
		password: cfg.Password,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("media: new request: %w", err)
	}
	if f.username != "" {
		req.SetBasicAuth(f.username, f.password)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("media: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("media: fetch %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoSize))
	if err != nil {
		return nil, "", fmt.Errorf("media: read body: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}
