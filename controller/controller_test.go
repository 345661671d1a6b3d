// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package controller

import (
	"context"
	"testing"
	"time"

	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/erstate/account"
	"github.com/ava-labs/erstate/bridge"
	"github.com/ava-labs/erstate/codec"
	"github.com/ava-labs/erstate/commitment"
	"github.com/ava-labs/erstate/consts"
	"github.com/ava-labs/erstate/crypto/ed25519"
	"github.com/ava-labs/erstate/ledger"
	"github.com/ava-labs/erstate/oracle"
	"github.com/ava-labs/erstate/oracle/vrf"
	"github.com/ava-labs/erstate/poll"
	"github.com/ava-labs/erstate/poll/polltest"
	"github.com/ava-labs/erstate/trace"
	"github.com/ava-labs/erstate/venue"
	"github.com/ava-labs/erstate/venue/venuetest"
)

// world is a base ledger and rollup whose clock moves one slot every time a
// controller waits.
type world struct {
	*venuetest.Network

	t        *testing.T
	bridge   *bridge.Bridge
	provider *vrf.Provider
	base     *venue.LocalClient
	rollup   *venue.LocalClient
	timer    *polltest.Timer
	net      *Network

	bridgeOff bool
	oracleOff bool
	onTick    func()
}

func newWorld(t *testing.T) *world {
	require := require.New(t)

	n := venuetest.NewNetwork(t)
	b, err := bridge.New(bridge.Config{Lag: 2}, n.Base, n.Rollup, logging.NoLog{}, prometheus.NewRegistry())
	require.NoError(err)
	metrics, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(err)

	w := &world{
		Network:  n,
		t:        t,
		bridge:   b,
		provider: vrf.New(logging.NoLog{}, n.Oracle, n.Queue),
		timer:    polltest.NewTimer(),
	}
	w.timer.OnStart(func(time.Duration) { w.tick() })

	opts := []poll.Option{poll.WithTimer(w.timer.Factory())}
	confirm := poll.Policy{Interval: time.Second, MaxAttempts: 5}
	w.base = venue.NewLocalClient(n.Base, ledger.Confirmed, confirm, opts...)
	w.rollup = venue.NewLocalClient(n.Rollup, ledger.Confirmed, confirm, opts...)
	w.net = &Network{
		Log:     logging.NoLog{},
		Tracer:  trace.Noop(),
		Metrics: metrics,
		Base:    w.base,
		Rollup:  w.rollup,
		Monitor: commitment.New(logging.NoLog{}, poll.Policy{
			Grace:       5 * time.Second,
			Interval:    time.Second,
			MaxAttempts: 10,
		}, opts...),
		Oracle: oracle.New(logging.NoLog{}, n.Queue, poll.Policy{
			Interval:    time.Second,
			MaxAttempts: 30,
		}, opts...),
		Deriver:     n.Base.Deriver(),
		Validator:   n.Validator.Address(),
		Propagation: poll.Policy{Interval: time.Second, MaxAttempts: 10},
		PollOptions: opts,
	}
	return w
}

func (w *world) tick() {
	ctx := context.Background()
	w.Base.Advance()
	w.Rollup.Advance()
	if !w.bridgeOff {
		_, err := w.bridge.Step(ctx)
		require.NoError(w.t, err)
	}
	if !w.oracleOff {
		_, err := w.provider.Fulfill(ctx, w.base)
		require.NoError(w.t, err)
		_, err = w.provider.Fulfill(ctx, w.rollup)
		require.NoError(w.t, err)
	}
	if w.onTick != nil {
		w.onTick()
	}
}

func (w *world) controller(owner ed25519.PrivateKey) *Controller {
	c, err := New(w.net, owner)
	require.NoError(w.t, err)
	return c
}

// delegated returns a controller whose account is active on the rollup.
func (w *world) delegated() *Controller {
	require := require.New(w.t)
	ctx := context.Background()

	c := w.controller(venuetest.Key(w.t))
	require.NoError(c.Initialize(ctx))
	require.NoError(c.Delegate(ctx))
	require.Equal(ActiveRollup, c.Phase())
	return c
}

func requireStep(t *testing.T, err error, stage Stage, v ledger.Venue) {
	t.Helper()
	var se *StepError
	require.ErrorAs(t, err, &se)
	require.Equal(t, stage, se.Stage)
	require.Equal(t, v, se.Venue)
}

func TestLifecycle(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	w := newWorld(t)
	owner := venuetest.Key(t)
	c := w.controller(owner)

	require.NoError(c.Initialize(ctx))
	require.Equal(ActiveBase, c.Phase())

	require.NoError(c.Update(ctx, 42))
	a, err := c.Fetch(ctx)
	require.NoError(err)
	require.Equal(int64(42), a.Data)
	require.Equal(owner.Address(), a.Owner)

	require.NoError(c.Delegate(ctx))
	require.Equal(ActiveRollup, c.Phase())
	a, err = c.FetchFrom(ctx, ledger.Rollup)
	require.NoError(err)
	require.Equal(owner.Address(), a.Owner)
	require.Equal(int64(42), a.Data)

	r, err := c.RequestRandomness(ctx, 0)
	require.NoError(err)
	require.GreaterOrEqual(r.Value, consts.MinRandomValue)
	require.LessOrEqual(r.Value, consts.MaxRandomValue)
	require.Equal(uint64(1), r.Round)

	require.NoError(c.UpdateCommit(ctx, 43))
	require.Equal(ActiveRollup, c.Phase())
	a, err = c.FetchFrom(ctx, ledger.Base)
	require.NoError(err)
	require.Equal(int64(43), a.Data)
	require.Equal(r, a.Random)
	require.True(a.IsDelegated())

	require.NoError(c.Undelegate(ctx))
	require.Equal(ActiveBase, c.Phase())
	a, err = c.Fetch(ctx)
	require.NoError(err)
	require.Equal(int64(43), a.Data)
	require.Equal(account.Undelegated, a.Delegation)
	_, err = c.FetchFrom(ctx, ledger.Rollup)
	require.ErrorIs(err, ledger.ErrNotFound)

	r, err = c.RequestRandomness(ctx, 3)
	require.NoError(err)
	require.Equal(uint64(2), r.Round)

	require.NoError(c.Close(ctx))
	require.Equal(Closed, c.Phase())

	require.ErrorIs(c.Update(ctx, 1), ledger.ErrAccountClosed)
	require.ErrorIs(c.Close(ctx), ledger.ErrAccountClosed)
	_, err = c.Fetch(ctx)
	require.ErrorIs(err, ledger.ErrNotFound)

	// A controller that only knows the venues agrees.
	resumed := w.controller(owner)
	p, err := resumed.Sync(ctx)
	require.NoError(err)
	require.Equal(Closed, p)
	require.ErrorIs(resumed.Initialize(ctx), ledger.ErrAccountClosed)
}

func TestRepeatedDelegation(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	w := newWorld(t)
	owner := venuetest.Key(t)
	c := w.controller(owner)

	require.NoError(c.Initialize(ctx))
	require.NoError(c.Update(ctx, 9))
	for i := 0; i < 2; i++ {
		value := int64(10 + i)
		round := uint64(i + 1)

		require.NoError(c.Delegate(ctx), "cycle %d", i)
		require.Equal(ActiveRollup, c.Phase())
		a, err := c.FetchFrom(ctx, ledger.Rollup)
		require.NoError(err)
		require.Equal(owner.Address(), a.Owner)
		require.Equal(value-1, a.Data)
		require.Equal(round-1, a.Random.Round)

		require.NoError(c.Update(ctx, value))
		r, err := c.RequestRandomness(ctx, uint8(i))
		require.NoError(err)
		require.Equal(round, r.Round)

		require.NoError(c.Undelegate(ctx), "cycle %d", i)
		require.Equal(ActiveBase, c.Phase())
		a, err = c.FetchFrom(ctx, ledger.Base)
		require.NoError(err)
		require.Equal(value, a.Data)
		require.Equal(r, a.Random)
		require.Equal(account.Undelegated, a.Delegation)
		require.Equal(codec.EmptyAddress, a.Validator)
		_, err = c.FetchFrom(ctx, ledger.Rollup)
		require.ErrorIs(err, ledger.ErrNotFound)

		// The base ledger owns the account again.
		require.NoError(c.Update(ctx, value))
	}

	require.NoError(c.Close(ctx))
	require.Equal(Closed, c.Phase())
	_, err := c.FetchFrom(ctx, ledger.Base)
	require.ErrorIs(err, ledger.ErrAccountClosed)
}

func TestInitializeTwice(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	w := newWorld(t)
	owner := venuetest.Key(t)

	c := w.controller(owner)
	require.NoError(c.Initialize(ctx))
	err := c.Initialize(ctx)
	require.ErrorIs(err, ledger.ErrAlreadyInitialized)
	requireStep(t, err, StageCheck, ledger.Base)

	// A second controller only learns from the venue.
	other := w.controller(owner)
	err = other.Initialize(ctx)
	require.ErrorIs(err, ledger.ErrAlreadyInitialized)
	require.ErrorIs(err, ledger.ErrSubmission)
	requireStep(t, err, StageSubmit, ledger.Base)
	require.Equal(Uninitialized, other.Phase())
}

func TestWrongVenue(t *testing.T) {
	ops := map[string]ledger.Operation{
		"Update":            ledger.Update,
		"RequestRandomness": ledger.RequestRandomness,
		"UpdateCommit":      ledger.UpdateCommit,
	}
	for name, op := range ops {
		t.Run(name+"OnBaseWhileDelegated", func(t *testing.T) {
			w := newWorld(t)
			c := w.delegated()
			err := c.IssueOn(context.Background(), ledger.Base, op, ledger.Args{Queue: w.Queue})
			require.ErrorIs(t, err, ledger.ErrWrongVenue)
			requireStep(t, err, StageCheck, ledger.Base)
			require.Equal(t, ActiveRollup, c.Phase())
		})
		t.Run(name+"OnRollupWhileUndelegated", func(t *testing.T) {
			w := newWorld(t)
			c := w.controller(venuetest.Key(t))
			require.NoError(t, c.Initialize(context.Background()))
			err := c.IssueOn(context.Background(), ledger.Rollup, op, ledger.Args{Queue: w.Queue})
			require.ErrorIs(t, err, ledger.ErrWrongVenue)
			require.Equal(t, ActiveBase, c.Phase())
		})
	}
}

func TestVenueRejectsWrongVenue(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	w := newWorld(t)
	owner := venuetest.Key(t)
	c := w.controller(owner)
	require.NoError(c.Initialize(ctx))
	require.NoError(c.Delegate(ctx))

	// A stale controller still believes the base ledger owns the account.
	stale := w.controller(owner)
	stale.setPhase(ActiveBase)
	err := stale.Update(ctx, 7)
	require.ErrorIs(err, ledger.ErrWrongVenue)
	require.ErrorIs(err, ledger.ErrSubmission)
	requireStep(t, err, StageSubmit, ledger.Base)
}

func TestDelegateRace(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	w := newWorld(t)
	owner := venuetest.Key(t)

	first := w.controller(owner)
	require.NoError(first.Initialize(ctx))
	second := w.controller(owner)
	p, err := second.Sync(ctx)
	require.NoError(err)
	require.Equal(ActiveBase, p)

	require.NoError(first.Delegate(ctx))
	err = second.Delegate(ctx)
	require.ErrorIs(err, ledger.ErrInvalidState)
	requireStep(t, err, StageSubmit, ledger.Base)
	require.Equal(ActiveBase, second.Phase())
}

func TestFulfillmentTimeout(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	w := newWorld(t)
	c := w.delegated()
	w.oracleOff = true

	before := len(w.timer.Durations())
	_, err := c.RequestRandomness(ctx, 0)
	require.ErrorIs(err, ledger.ErrFulfillmentTimeout)
	requireStep(t, err, StageFulfillment, ledger.Rollup)
	require.Len(w.timer.Durations()[before:], 29)
	require.Equal(ActiveRollup, c.Phase())

	a, err := c.Fetch(ctx)
	require.NoError(err)
	require.Zero(a.Random.Value)
	require.Len(w.Rollup.PendingRandomness(), 1)
}

func TestCommitmentTimeoutThenSync(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	w := newWorld(t)
	c := w.controller(venuetest.Key(t))
	require.NoError(c.Initialize(ctx))

	w.bridgeOff = true
	err := c.Delegate(ctx)
	require.ErrorIs(err, ledger.ErrCommitmentTimeout)
	requireStep(t, err, StageCommitment, ledger.Base)
	require.Equal(Delegating, c.Phase())

	err = c.Update(ctx, 1)
	require.ErrorIs(err, ledger.ErrInvalidState)
	requireStep(t, err, StageCheck, 0)

	p, err := c.Sync(ctx)
	require.NoError(err)
	require.Equal(Delegating, p)

	w.bridgeOff = false
	w.tick()
	p, err = c.Sync(ctx)
	require.NoError(err)
	require.Equal(ActiveRollup, p)
	require.NoError(c.Update(ctx, 5))
}

func TestUndelegateTimeoutThenSync(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	w := newWorld(t)
	c := w.delegated()

	w.bridgeOff = true
	err := c.Undelegate(ctx)
	require.ErrorIs(err, ledger.ErrCommitmentTimeout)
	require.Equal(Undelegating, c.Phase())

	w.bridgeOff = false
	w.tick()
	p, err := c.Sync(ctx)
	require.NoError(err)
	require.Equal(ActiveBase, p)
	require.NoError(c.Update(ctx, 9))
}

func TestCloseRequiresUndelegated(t *testing.T) {
	require := require.New(t)
	w := newWorld(t)
	c := w.delegated()

	err := c.Close(context.Background())
	require.ErrorIs(err, ledger.ErrInvalidState)
	require.Equal(ActiveRollup, c.Phase())
}

func TestUndelegateFromBase(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	w := newWorld(t)
	c := w.controller(venuetest.Key(t))
	require.NoError(c.Initialize(ctx))

	err := c.Undelegate(ctx)
	require.ErrorIs(err, ledger.ErrInvalidState)
	require.Equal(ActiveBase, c.Phase())
}

func TestBusy(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	w := newWorld(t)
	c := w.controller(venuetest.Key(t))
	require.NoError(c.Initialize(ctx))

	var concurrent error
	w.onTick = func() {
		if concurrent == nil {
			concurrent = c.Update(ctx, 1)
		}
	}
	require.NoError(c.Delegate(ctx))
	require.ErrorIs(concurrent, ErrBusy)
	require.ErrorIs(concurrent, ledger.ErrInvalidState)
}

func TestStepErrorMessage(t *testing.T) {
	require := require.New(t)
	w := newWorld(t)
	c := w.controller(venuetest.Key(t))

	err := c.Update(context.Background(), 1)
	require.ErrorIs(err, ledger.ErrNotFound)
	require.Contains(err.Error(), "update failed at check")
	require.Contains(err.Error(), "(op update)")
	require.Contains(err.Error(), "phase uninitialized")
}

func TestNetworkVerify(t *testing.T) {
	w := newWorld(t)

	tests := map[string]struct {
		mutate      func(*Network)
		expectedErr error
	}{
		"Valid": {
			mutate: func(*Network) {},
		},
		"SwappedClients": {
			mutate: func(n *Network) {
				n.Base, n.Rollup = n.Rollup, n.Base
			},
			expectedErr: ErrMissingClient,
		},
		"NoValidator": {
			mutate: func(n *Network) {
				n.Validator = codec.EmptyAddress
			},
			expectedErr: ledger.ErrMalformed,
		},
		"UnboundedPropagation": {
			mutate: func(n *Network) {
				n.Propagation.MaxAttempts = 0
			},
			expectedErr: poll.ErrInvalidPolicy,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			n := *w.net
			tt.mutate(&n)
			require.ErrorIs(t, n.Verify(), tt.expectedErr)
		})
	}
}
