package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	svcmetrics "MarketBrain/internal/service/metrics"
	xhttp "MarketBrain/pkg/http"
)

const sourceName = "analysis"

// HTTPServiceBase holds the client shared by the remote analysis clients.
type HTTPServiceBase struct {
	baseURL string
	client  *xhttp.Client
}

// NewHTTPServiceBase builds a JSON client for baseURL. attempts below 1 means a single try.
func NewHTTPServiceBase(baseURL string, timeout time.Duration, attempts int) *HTTPServiceBase {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPServiceBase{
		baseURL: baseURL,
		client: xhttp.NewClient(baseURL,
			xhttp.WithTimeout(timeout),
			xhttp.WithRetry(attempts, 50*time.Millisecond),
		),
	}
}

// PostJSON posts payload to path under baseURL and decodes JSON into dest.
// Failed tries are retried inside the client.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return errors.New("analysis http client not initialized")
	}
	began := time.Now()
	err := b.client.PostJSON(ctx, path, payload, dest)
	svcmetrics.Observe(sourceName, began, err)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}
