package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func TestRunRetriesTransientFailure(t *testing.T) {
	runner := NewRunner(Policy{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 2,
		BreakerEnabled:    false,
	})

	attempts := 0
	errTransient := errors.New("transient")
	err := runner.Run(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTransient
		}
		return nil
	}, func(err error) Verdict {
		return Verdict{Retry: errors.Is(err, errTransient), Record: true}
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRunStopsOnPermanentFailure(t *testing.T) {
	runner := NewRunner(Policy{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 2,
		BreakerEnabled:    false,
	})

	attempts := 0
	errPermanent := errors.New("permanent")
	err := runner.Run(context.Background(), "op", func(context.Context) error {
		attempts++
		return errPermanent
	}, func(error) Verdict {
		return Verdict{Retry: false, Record: false}
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestRunOpensCircuitAfterFailures(t *testing.T) {
	runner := NewRunner(Policy{
		MaxAttempts:          1,
		InitialBackoff:       1 * time.Millisecond,
		MaxBackoff:           1 * time.Millisecond,
		BackoffMultiplier:    2,
		BreakerEnabled:       true,
		BreakerMinRequests:   2,
		BreakerFailureRatio:  0.5,
		BreakerOpenTimeout:   50 * time.Millisecond,
		BreakerHalfOpenCalls: 1,
	})

	errTransient := errors.New("transient")
	classify := func(error) Verdict {
		return Verdict{Retry: false, Record: true}
	}

	for i := 0; i < 2; i++ {
		err := runner.Run(context.Background(), "op", func(context.Context) error {
			return errTransient
		}, classify)
		if !errors.Is(err, errTransient) {
			t.Fatalf("expected transient error on iteration %d, got %v", i, err)
		}
	}

	err := runner.Run(context.Background(), "op", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classify)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
}
