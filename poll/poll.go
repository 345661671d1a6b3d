// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package poll waits for a condition on a remote venue with a bounded number
// of checks. Every cross-venue wait (confirmation, randomness fulfillment,
// commitment propagation) is expressed as a [Predicate] polled by [Until].
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	ErrExhausted     = errors.New("poll attempts exhausted")
	ErrInvalidPolicy = errors.New("invalid poll policy")

	errNotYet = errors.New("condition not yet satisfied")
)

// Predicate reports whether the awaited condition holds. A returned error
// aborts polling immediately.
type Predicate func(ctx context.Context) (bool, error)

// Policy bounds a wait.
type Policy struct {
	// Grace is slept once before the first check. It is a floor on the wait,
	// not a substitute for polling.
	Grace time.Duration `json:"grace" yaml:"grace" env:"GRACE"`
	// Interval is the delay between the first and second checks.
	Interval time.Duration `json:"interval" yaml:"interval" env:"INTERVAL"`
	// Multiplier grows the delay after every failed check. Values <= 1 keep
	// the delay constant.
	Multiplier float64 `json:"multiplier" yaml:"multiplier" env:"MULTIPLIER"`
	// MaxInterval caps the delay when Multiplier > 1. Zero means no cap.
	MaxInterval time.Duration `json:"maxInterval" yaml:"maxInterval" env:"MAX_INTERVAL"`
	// MaxAttempts is the total number of checks, including the first.
	MaxAttempts int `json:"maxAttempts" yaml:"maxAttempts" env:"MAX_ATTEMPTS"`
}

// Budget is the longest a wait under p can take, ignoring the time spent
// evaluating the predicate.
func (p Policy) Budget() time.Duration {
	total := p.Grace
	next := p.Interval
	for i := 1; i < p.MaxAttempts; i++ {
		total += next
		if p.Multiplier > 1 {
			next = time.Duration(float64(next) * p.Multiplier)
			if p.MaxInterval > 0 && next > p.MaxInterval {
				next = p.MaxInterval
			}
		}
	}
	return total
}

func (p Policy) Verify() error {
	switch {
	case p.MaxAttempts <= 0:
		return fmt.Errorf("%w: max attempts must be positive (got %d)", ErrInvalidPolicy, p.MaxAttempts)
	case p.Interval < 0 || p.Grace < 0 || p.MaxInterval < 0:
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidPolicy)
	default:
		return nil
	}
}

func (p Policy) backOff() backoff.BackOff {
	var b backoff.BackOff
	if p.Multiplier > 1 {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = p.Interval
		eb.RandomizationFactor = 0
		eb.Multiplier = p.Multiplier
		eb.MaxInterval = p.MaxInterval
		if eb.MaxInterval == 0 {
			eb.MaxInterval = time.Duration(1<<63 - 1)
		}
		eb.MaxElapsedTime = 0
		eb.Reset()
		b = eb
	} else {
		b = backoff.NewConstantBackOff(p.Interval)
	}
	return backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1))
}

type config struct {
	newTimer func() backoff.Timer
	notify   func(attempt int, err error, next time.Duration)
}

type Option func(*config)

// WithTimer replaces the wall-clock timer used for every delay.
func WithTimer(newTimer func() backoff.Timer) Option {
	return func(c *config) {
		c.newTimer = newTimer
	}
}

// WithNotify registers a callback invoked after every unsuccessful check.
func WithNotify(f func(attempt int, err error, next time.Duration)) Option {
	return func(c *config) {
		c.notify = f
	}
}

// Until checks [pred] until it holds, it fails, [ctx] is done, or
// [p.MaxAttempts] checks have been made. It returns the number of checks
// made. Exhausting the budget returns [ErrExhausted].
func Until(ctx context.Context, p Policy, pred Predicate, opts ...Option) (int, error) {
	if err := p.Verify(); err != nil {
		return 0, err
	}
	c := &config{newTimer: newWallTimer}
	for _, opt := range opts {
		opt(c)
	}

	if p.Grace > 0 {
		t := c.newTimer()
		t.Start(p.Grace)
		select {
		case <-ctx.Done():
			t.Stop()
			return 0, ctx.Err()
		case <-t.C():
		}
	}

	attempts := 0
	op := func() error {
		attempts++
		ok, err := pred(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return errNotYet
		}
		return nil
	}
	var notify backoff.Notify
	if c.notify != nil {
		notify = func(err error, next time.Duration) {
			c.notify(attempts, err, next)
		}
	}

	err := backoff.RetryNotifyWithTimer(op, backoff.WithContext(p.backOff(), ctx), notify, c.newTimer())
	switch {
	case err == nil:
		return attempts, nil
	case errors.Is(err, errNotYet):
		return attempts, fmt.Errorf("%w: condition unmet after %d attempts", ErrExhausted, attempts)
	default:
		return attempts, err
	}
}

// wallTimer mirrors the timer backoff uses by default.
type wallTimer struct {
	timer *time.Timer
}

func newWallTimer() backoff.Timer {
	return &wallTimer{}
}

func (t *wallTimer) C() <-chan time.Time {
	return t.timer.C
}

func (t *wallTimer) Start(duration time.Duration) {
	if t.timer == nil {
		t.timer = time.NewTimer(duration)
	} else {
		t.timer.Reset(duration)
	}
}

func (t *wallTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}
