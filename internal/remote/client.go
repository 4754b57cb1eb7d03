package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/verdantlabs/leafsense/internal/diagnose"
)

const defaultTimeout = 30 * time.Second

// maxResponseBytes caps how much of a reply is read. Verdicts are a
// few kilobytes; anything near the cap is a broken or hostile server.
const maxResponseBytes = 1 << 20

// #region client
// Client talks to the cloud analysis service over HTTP. The response
// must satisfy the full verdict schema or the call fails; callers fall
// back to the local engine on any error.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient builds a client for the service at baseURL. The key is
// optional; without one the request is sent unauthenticated.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}
// #endregion client

// #region analyze
// Analyze submits one crop scan and returns the cloud verdict.
func (c *Client) Analyze(ctx context.Context, req Request) (diagnose.Analysis, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return diagnose.Analysis{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/analyze", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return diagnose.Analysis{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return diagnose.Analysis{}, fmt.Errorf("cloud analyze: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return diagnose.Analysis{}, fmt.Errorf("cloud analyze: status %d", resp.StatusCode)
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes))
	dec.DisallowUnknownFields()
	var wire wireAnalysis
	if err := dec.Decode(&wire); err != nil {
		return diagnose.Analysis{}, fmt.Errorf("decode response: %w", err)
	}

	a, err := wire.toAnalysis()
	if err != nil {
		return diagnose.Analysis{}, fmt.Errorf("invalid response: %w", err)
	}
	return a, nil
}
// #endregion analyze
