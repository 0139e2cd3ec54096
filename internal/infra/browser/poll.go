package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// VisibilityFunc reports whether an element is currently visible.
type VisibilityFunc func(ctx context.Context) (bool, error)

// PollProbe polls check for at most window.
//
// The result is PresencePresent as soon as check sees the element,
// PresenceAbsent when the window elapses and the last evaluation succeeded,
// and PresenceIndeterminate (with an error) when the page never answered or
// the last evaluation failed.
func PollProbe(ctx context.Context, window, interval time.Duration, check VisibilityFunc) (Presence, error) {
	probeCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	answered := false
	for {
		visible, err := check(probeCtx)
		switch {
		case err == nil && visible:
			return PresencePresent, nil
		case err == nil:
			answered = true
			lastErr = nil
		case probeCtx.Err() == nil:
			lastErr = err
		}

		select {
		case <-probeCtx.Done():
			if err := ctx.Err(); err != nil {
				return PresenceIndeterminate, err
			}
			if lastErr != nil {
				return PresenceIndeterminate, fmt.Errorf("probe failed: %w", lastErr)
			}
			if !answered {
				return PresenceIndeterminate, errors.New("probe window elapsed before the page answered")
			}
			return PresenceAbsent, nil
		case <-ticker.C:
		}
	}
}

// PollVisible polls check until it reports the element visible. Evaluation
// errors are tolerated while the page is settling; when timeout elapses the
// error wraps context.DeadlineExceeded and mentions the last failure.
func PollVisible(ctx context.Context, timeout, interval time.Duration, check VisibilityFunc) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		visible, err := check(waitCtx)
		if err == nil && visible {
			return nil
		}
		if err != nil && waitCtx.Err() == nil {
			lastErr = err
		}

		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return err
			}
			if lastErr != nil {
				return fmt.Errorf("not visible within %s (last error: %v): %w", timeout, lastErr, context.DeadlineExceeded)
			}
			return fmt.Errorf("not visible within %s: %w", timeout, context.DeadlineExceeded)
		case <-ticker.C:
		}
	}
}
