package driver

import (
	"context"
	"errors"
	"time"

	"github.com/jmylchreest/promoscout/pkg/page"
)

// waitFor polls query until it returns an element, a visible one when
// visible is set. Running out of time is page.ErrTimeout.
func waitFor(ctx context.Context, timeout time.Duration, visible bool, query func(context.Context) ([]page.Element, error)) (page.Element, error) {
	var found page.Element
	err := page.Poll(ctx, timeout, page.DefaultPollInterval, func(ctx context.Context) (bool, error) {
		els, err := query(ctx)
		if err != nil {
			return false, err
		}
		for _, el := range els {
			if !visible {
				found = el
				return true, nil
			}
			ok, err := el.Visible(ctx)
			if err != nil {
				if errors.Is(err, page.ErrDetached) {
					continue
				}
				return false, err
			}
			if ok {
				found = el
				return true, nil
			}
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// normalize maps an engine error raised while ctx was still live to the
// page sentinels: a spent operation deadline is page.ErrTimeout.
func normalize(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(page.ErrTimeout, err)
	}
	return err
}

// budget returns the time left before ctx's deadline, capped at limit.
func budget(ctx context.Context, limit time.Duration) time.Duration {
	if d, ok := ctx.Deadline(); ok {
		if left := time.Until(d); left < limit {
			return left
		}
	}
	return limit
}
