package access

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Fetcher retrieves the permission payload for one session token.
type Fetcher interface {
	Fetch(ctx context.Context, token string) (*MeResponse, error)
}

type FetcherFunc func(ctx context.Context, token string) (*MeResponse, error)

func (f FetcherFunc) Fetch(ctx context.Context, token string) (*MeResponse, error) {
	return f(ctx, token)
}

const maxMeBody = 1 << 20

// HTTPFetcher calls the access-control endpoint with the session token as a
// bearer credential.
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFetcher uses client when non-nil, otherwise a client with timeout.
func NewHTTPFetcher(baseURL string, timeout time.Duration, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPFetcher{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, token string) (*MeResponse, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+MePath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxMeBody))
		return nil, fmt.Errorf("access-control endpoint status %d", resp.StatusCode)
	}
	var out MeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxMeBody)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode access-control payload: %w", err)
	}
	if strings.TrimSpace(out.Role) == "" {
		return nil, fmt.Errorf("access-control payload without role")
	}
	return &out, nil
}
