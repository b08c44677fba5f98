// Package retry wraps dskit's backoff helper behind a single combinator,
// the generic "retry an outbound call with back-off and budget" helper
// the design notes call for. Modeled on
// vintage-maeve-mimir/pkg/compactor/compactor.go:compactUserWithRetries,
// the one place in the retrieval pack that retries an operation with
// dskit/backoff rather than hand-rolled sleep math.
package retry

import (
	"context"
	"time"

	"github.com/grafana/dskit/backoff"
)

// Config bounds a retry loop: an initial backoff, a cap on the backoff
// interval, and a budget on the number of attempts. MaxRetries == 0
// means retry forever (bounded only by ctx).
type Config struct {
	MinBackoff time.Duration
	MaxBackoff time.Duration
	MaxRetries int
}

// Do calls attempt until it succeeds, the budget is exhausted, or ctx is
// done. It returns the last error seen, or nil on success.
func Do(ctx context.Context, cfg Config, attempt func() error) error {
	b := backoff.New(ctx, backoff.Config{
		MinBackoff: cfg.MinBackoff,
		MaxBackoff: cfg.MaxBackoff,
		MaxRetries: cfg.MaxRetries,
	})

	var lastErr error
	for b.Ongoing() {
		lastErr = attempt()
		if lastErr == nil {
			return nil
		}
		b.Wait()
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return lastErr
}
