package deploy

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HealthChecker probes a deployed service until it answers, or the
// retry budget runs out.
type HealthChecker interface {
	Probe(ctx context.Context, baseURL, path string, timeout time.Duration, retries int) error
}

// HTTPHealthCheck probes over plain HTTP. Any status under 500
// counts as alive; auth walls in front of a healthy service should
// not fail a deployment.
type HTTPHealthCheck struct {
	Client *http.Client
}

func NewHTTPHealthCheck() *HTTPHealthCheck {
	return &HTTPHealthCheck{Client: &http.Client{}}
}

func (h *HTTPHealthCheck) Probe(ctx context.Context, baseURL, path string, timeout time.Duration, retries int) error {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if retries < 1 {
		retries = 1
	}
	url := probeURL(baseURL, path)

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(timeout / time.Duration(retries)):
			}
		}
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		req, err := http.NewRequest("GET", url, nil)
		if err != nil {
			cancel()
			return err
		}
		resp, err := h.Client.Do(req.WithContext(attemptCtx))
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()
		if resp.StatusCode < 500 {
			return nil
		}
		lastErr = fmt.Errorf("%s answered %d", url, resp.StatusCode)
	}
	return fmt.Errorf("probe of %s exhausted %d attempts: %v", url, retries, lastErr)
}

func probeURL(baseURL, path string) string {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

var _ HealthChecker = &HTTPHealthCheck{}
