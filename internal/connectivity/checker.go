package connectivity

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

const (
	probeTimeout  = 5 * time.Second
	probeCacheTTL = 30 * time.Second
)

// #region checker
// Checker is the boolean connectivity signal consumed by the analysis
// and sync paths. Implementations must be safe for concurrent use.
type Checker interface {
	Online(ctx context.Context) bool
}

// #endregion checker

// #region http-checker
// HTTPChecker probes the cloud service health endpoint. Any 2xx reply
// counts as online; everything else, including transport errors, is
// offline. A probe result is reused for a short interval; the next
// call after the interval lapses probes again.
type HTTPChecker struct {
	url  string
	http *http.Client
	ttl  time.Duration

	mu      sync.Mutex
	last    bool
	checked time.Time
}

// NewHTTPChecker probes the health endpoint under baseURL.
func NewHTTPChecker(baseURL string) *HTTPChecker {
	return &HTTPChecker{
		url:  fmt.Sprintf("%s/health", baseURL),
		http: &http.Client{Timeout: probeTimeout},
		ttl:  probeCacheTTL,
	}
}

// Online reports whether the health probe succeeded, reusing a cached
// result when it is still fresh.
func (c *HTTPChecker) Online(ctx context.Context) bool {
	c.mu.Lock()
	if !c.checked.IsZero() && time.Since(c.checked) < c.ttl {
		online := c.last
		c.mu.Unlock()
		return online
	}
	c.mu.Unlock()

	online := c.probe(ctx)

	c.mu.Lock()
	c.last = online
	c.checked = time.Now()
	c.mu.Unlock()
	return online
}

func (c *HTTPChecker) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// #endregion http-checker

// #region static
// Static is a fixed connectivity signal for tests and forced-offline
// runs.
type Static bool

// Online returns the fixed signal.
func (s Static) Online(context.Context) bool {
	return bool(s)
}

// #endregion static
