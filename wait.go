package cc1101

import (
	"context"
	"errors"
	"time"
)

// ErrWaitExpired is returned by a Waiter when its bound is reached before the
// condition holds.
var ErrWaitExpired = errors.New("wait expired")

// Waiter polls a hardware condition until it holds.
type Waiter interface {
	// Wait returns nil once cond reports true, ErrWaitExpired when the bound
	// is reached, ctx.Err() if the context ends first, or the error returned
	// by cond.
	Wait(ctx context.Context, cond func() (bool, error)) error
}

// Poll checks a condition every Interval until Timeout has elapsed.
type Poll struct {
	Timeout time.Duration
	// Interval between checks. Zero spins.
	Interval time.Duration
}

func (p Poll) Wait(ctx context.Context, cond func() (bool, error)) error {
	deadline := time.Now().Add(p.Timeout)
	for {
		ok, err := cond()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !time.Now().Before(deadline) {
			return ErrWaitExpired
		}
		if p.Interval > 0 {
			if err := sleep(ctx, p.Interval); err != nil {
				return err
			}
		}
	}
}

// Attempts checks a condition at most n times without sleeping.
type Attempts int

func (n Attempts) Wait(ctx context.Context, cond func() (bool, error)) error {
	for i := 0; i < int(n); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := cond()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return ErrWaitExpired
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
