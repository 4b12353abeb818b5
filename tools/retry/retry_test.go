package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "PairLink/tools/errs"
)

var fastPolicy = Policy{
	MaxAttempts:    3,
	InitialDelay:   time.Millisecond,
	AttemptTimeout: time.Second,
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errs.ErrNetworkUnavailable.Wrap()
		}
		return nil
	}, fastPolicy)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return errs.ErrBackendTransientFailure.Wrap()
	}, fastPolicy)
	if !errors.Is(err, errs.ErrBackendTransientFailure) {
		t.Fatalf("want last failure back, got %v", err)
	}
	if calls != fastPolicy.MaxAttempts {
		t.Errorf("calls = %d, want %d", calls, fastPolicy.MaxAttempts)
	}
}

func TestDoPermissionDeniedIsTerminal(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return errs.ErrPermissionDenied.Wrap()
	}, fastPolicy)
	if !errors.Is(err, errs.ErrPermissionDenied) {
		t.Fatalf("want permission denied, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry)", calls)
	}
}

func TestDoValidationIsTerminal(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return errs.ErrAlreadyPartnered.Wrap()
	}, fastPolicy)
	if !errors.Is(err, errs.ErrAlreadyPartnered) {
		t.Fatalf("want already-partnered, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry)", calls)
	}
}

func TestDoAttemptTimeoutClassifies(t *testing.T) {
	p := Policy{MaxAttempts: 2, InitialDelay: time.Millisecond, AttemptTimeout: 10 * time.Millisecond}
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	}, p)
	if !errors.Is(err, errs.ErrOperationTimedOut) {
		t.Fatalf("want timeout classification, got %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (timeouts are retryable)", calls)
	}
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errs.ErrNetworkUnavailable.Wrap()
	}, fastPolicy)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoTransientStopsOnNonTransient(t *testing.T) {
	calls := 0
	err := DoTransient(context.Background(), func(context.Context) error {
		calls++
		return errs.ErrInvalidOrExpiredCode.Wrap()
	}, 5, time.Millisecond)
	if !errors.Is(err, errs.ErrInvalidOrExpiredCode) {
		t.Fatalf("want the non-transient error back, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoTransientRetriesTransient(t *testing.T) {
	calls := 0
	err := DoTransient(context.Background(), func(context.Context) error {
		calls++
		if calls < 4 {
			return errs.ErrOperationTimedOut.Wrap()
		}
		return nil
	}, 5, time.Millisecond)
	if err != nil {
		t.Fatalf("DoTransient: %v", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
}
