package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/habedi/portal/auth"
)

// HTTPRefresher implements auth.Refresher against the backend's refresh endpoint.
type HTTPRefresher struct {
	URL        string
	HTTPClient *http.Client
}

// NewHTTPRefresher returns a refresher posting to url. A nil httpClient gets a 30s timeout client.
func NewHTTPRefresher(url string, httpClient *http.Client) *HTTPRefresher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPRefresher{URL: url, HTTPClient: httpClient}
}

// PerformTokenRefresh posts {"refreshToken": ...} and reads {"token", "refreshToken"} back.
func (r *HTTPRefresher) PerformTokenRefresh(ctx context.Context, refreshToken string) (auth.Pair, error) {
	payload, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return auth.Pair{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(payload))
	if err != nil {
		return auth.Pair{}, fmt.Errorf("failed to create token refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := r.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return auth.Pair{}, fmt.Errorf("failed to post token refresh: %w", err)
	}
	defer closeResponseBody(resp)

	body, err := readResponseBody(resp)
	if err != nil {
		return auth.Pair{}, fmt.Errorf("failed to read token refresh response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return auth.Pair{}, fmt.Errorf("token refresh failed with status %d: %s", resp.StatusCode, preview(body))
	}

	var pair auth.Pair
	if err := json.Unmarshal(body, &pair); err != nil {
		return auth.Pair{}, fmt.Errorf("failed to parse token refresh response: %w", err)
	}
	return pair, nil
}
