// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package polltest

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var _ backoff.Timer = (*Timer)(nil)

// Timer fires as soon as it is started and records every requested delay,
// so waits can be asserted without sleeping.
type Timer struct {
	lock      sync.Mutex
	durations []time.Duration
	hook      func(time.Duration)
	c         chan time.Time
}

func NewTimer() *Timer {
	return &Timer{c: make(chan time.Time, 1)}
}

// Factory returns a constructor that hands out t for every wait.
func (t *Timer) Factory() func() backoff.Timer {
	return func() backoff.Timer {
		return t
	}
}

func (t *Timer) Start(d time.Duration) {
	t.lock.Lock()
	t.durations = append(t.durations, d)
	hook := t.hook
	t.lock.Unlock()

	if hook != nil {
		hook(d)
	}

	select {
	case t.c <- time.Time{}:
	default:
	}
}

func (*Timer) Stop() {}

func (t *Timer) C() <-chan time.Time {
	return t.c
}

// Durations returns every delay requested so far.
func (t *Timer) Durations() []time.Duration {
	t.lock.Lock()
	defer t.lock.Unlock()

	return append([]time.Duration(nil), t.durations...)
}

// Total is the sum of every delay requested so far.
func (t *Timer) Total() time.Duration {
	var total time.Duration
	for _, d := range t.Durations() {
		total += d
	}
	return total
}

// OnStart registers [f] to run on every requested delay before the timer
// fires. Tests use it to move simulated time forward.
func (t *Timer) OnStart(f func(time.Duration)) *Timer {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.hook = f
	return t
}
