package page

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultPollInterval is how often drivers re-check a wait condition.
const DefaultPollInterval = 100 * time.Millisecond

// Poll runs probe immediately and then every interval until it reports done.
// When timeout elapses first, Poll returns ErrTimeout, or the last probe
// error if every probe in the final stretch failed. Cancellation of ctx
// itself returns ctx.Err().
func Poll(ctx context.Context, timeout, interval time.Duration, probe func(ctx context.Context) (bool, error)) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		done, err := probe(waitCtx)
		switch {
		case err == nil && done:
			return nil
		case err != nil && !errors.Is(err, context.DeadlineExceeded):
			lastErr = err
		default:
			lastErr = nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return err
			}
			if lastErr != nil {
				return fmt.Errorf("wait budget %s spent retrying: %w", timeout, lastErr)
			}
			return fmt.Errorf("%w after %s", ErrTimeout, timeout)
		case <-ticker.C:
		}
	}
}
