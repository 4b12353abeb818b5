package retry

import (
	"context"
	"errors"
	"time"

	errs "PairLink/tools/errs"
)

// Policy controls the exponential-backoff runner. Zero values fall back
// to the defaults below.
type Policy struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	AttemptTimeout time.Duration
}

const (
	defaultMaxAttempts    = 3
	defaultInitialDelay   = 500 * time.Millisecond
	defaultAttemptTimeout = 10 * time.Second
)

func (p *Policy) setDefaults() {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = defaultInitialDelay
	}
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = defaultAttemptTimeout
	}
}

// Do runs op under exponential backoff: delay initial*2^attempt between
// attempts. Permission-denied and validation errors are terminal and
// returned immediately; every attempt races a per-attempt timeout, and
// exceeding it counts as a retryable failure.
func Do(ctx context.Context, op func(context.Context) error, p Policy) error {
	p.setDefaults()

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		err := runOnce(ctx, op, p.AttemptTimeout)
		if err == nil {
			return nil
		}
		if errs.ErrPermissionDenied.Is(err) || errs.IsValidation(err) {
			return err
		}
		lastErr = err
		if attempt == p.MaxAttempts-1 {
			break
		}
		delay := p.InitialDelay << uint(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errs.Wrap(ctx.Err())
		case <-timer.C:
		}
	}
	return lastErr
}

// DoTransient retries op with a fixed delay, but only while the failure
// classifies as transient (network down, backend unavailable, timeout).
// Any other error is returned as-is. Used by the presence subsystem.
func DoTransient(ctx context.Context, op func(context.Context) error, attempts int, delay time.Duration) error {
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !errs.IsTransient(err) {
			return err
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errs.Wrap(ctx.Err())
		case <-timer.C:
		}
	}
	return lastErr
}

func runOnce(ctx context.Context, op func(context.Context) error, timeout time.Duration) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- op(tctx) }()

	select {
	case err := <-done:
		if errors.Is(err, context.DeadlineExceeded) {
			return errs.ErrOperationTimedOut.WrapMsg("attempt deadline exceeded")
		}
		return err
	case <-tctx.Done():
		if ctx.Err() != nil {
			return errs.Wrap(ctx.Err())
		}
		return errs.ErrOperationTimedOut.WrapMsg("attempt deadline exceeded")
	}
}
