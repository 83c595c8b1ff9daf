package session

import (
	"context"
	"errors"
	"time"
)

// ErrWaitTimeout is returned by Wait when the predicate never became true
// within the allowed window.
var ErrWaitTimeout = errors.New("wait deadline exceeded")

// Clock abstracts time so poll loops are testable without real sleeping.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NewClock returns the wall clock.
func NewClock() Clock { return realClock{} }

// Wait evaluates predicate every interval until it reports done, the timeout
// elapses, or ctx is cancelled. The predicate runs immediately on entry, so a
// condition that already holds never sleeps.
func Wait(ctx context.Context, clock Clock, interval, timeout time.Duration, predicate func(ctx context.Context) (bool, error)) error {
	deadline := clock.Now().Add(timeout)
	for {
		done, err := predicate(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if !clock.Now().Add(interval).Before(deadline) {
			return ErrWaitTimeout
		}
		if err := clock.Sleep(ctx, interval); err != nil {
			return err
		}
	}
}
