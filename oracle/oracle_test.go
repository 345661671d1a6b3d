// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle_test

import (
	"context"
	"testing"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/erstate/account"
	"github.com/ava-labs/erstate/codec"
	"github.com/ava-labs/erstate/consts"
	"github.com/ava-labs/erstate/ledger"
	"github.com/ava-labs/erstate/oracle"
	"github.com/ava-labs/erstate/oracle/vrf"
	"github.com/ava-labs/erstate/poll"
	"github.com/ava-labs/erstate/poll/polltest"
	"github.com/ava-labs/erstate/venue"
	"github.com/ava-labs/erstate/venue/venuetest"
)

var fulfillmentPolicy = poll.Policy{Interval: time.Second, MaxAttempts: 30}

// staticClient serves one fixed account and accepts every transaction.
type staticClient struct {
	account *account.StateAccount
	fetches int
}

func (*staticClient) Venue() ledger.Venue { return ledger.Rollup }

func (*staticClient) Submit(context.Context, *ledger.Transaction) (ids.ID, error) {
	return ids.GenerateTestID(), nil
}

func (*staticClient) Confirm(_ context.Context, txID ids.ID) (*ledger.Result, error) {
	return &ledger.Result{TxID: txID, Venue: ledger.Rollup, Level: ledger.Confirmed}, nil
}

func (c *staticClient) FetchAccount(context.Context, codec.Address) (*account.StateAccount, error) {
	c.fetches++
	return c.account.Copy(), nil
}

func (*staticClient) LatestFinalityMarker(context.Context) (uint64, error) {
	return 0, nil
}

func TestIsFulfilled(t *testing.T) {
	tests := map[string]struct {
		observed account.Randomness
		baseline account.Randomness
		expected bool
	}{
		"NeverFulfilled": {},
		"Fresh": {
			observed: account.Randomness{Value: 17, Round: 1},
			expected: true,
		},
		"StaleValue": {
			observed: account.Randomness{Value: 17, Round: 1},
			baseline: account.Randomness{Value: 17, Round: 1},
		},
		"SameValueNewRound": {
			observed: account.Randomness{Value: 17, Round: 2},
			baseline: account.Randomness{Value: 17, Round: 1},
			expected: true,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tt.expected, oracle.IsFulfilled(tt.observed, tt.baseline))
		})
	}
}

func TestFulfillmentTimeout(t *testing.T) {
	tests := map[string]account.Randomness{
		"NeverFulfilled": {},
		// A value present before the request is not a fulfillment of it.
		"PreviouslyFulfilled": {Value: 9, Round: 4},
	}
	for name, existing := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			ctx := context.Background()
			timer := polltest.NewTimer()
			lc := &staticClient{account: &account.StateAccount{Random: existing}}
			c := oracle.New(logging.NoLog{}, codec.EmptyAddress, fulfillmentPolicy, poll.WithTimer(timer.Factory()))

			req, err := c.Request(ctx, lc, venuetest.Key(t), codec.CreateAddress(ids.GenerateTestID()), 0)
			require.NoError(err)
			require.Equal(existing, req.Baseline)

			_, err = c.AwaitFulfillment(ctx, lc, req)
			require.ErrorIs(err, ledger.ErrFulfillmentTimeout)
			require.Equal(1+30, lc.fetches)
			require.Equal(29*time.Second, timer.Total())
		})
	}
}

func TestRequestAndFulfill(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	n := venuetest.NewNetwork(t)
	owner := venuetest.Key(t)
	addr := n.Address(owner)
	_, err := n.Base.Submit(ctx, venuetest.Tx(t, ledger.Initialize, addr, ledger.Args{}, owner))
	require.NoError(err)

	provider := vrf.New(logging.NoLog{}, n.Oracle, n.Queue)
	lc := venue.NewLocalClient(n.Base, ledger.Confirmed, poll.Policy{MaxAttempts: 1})
	timer := polltest.NewTimer()
	fulfilled := 0
	timer.OnStart(func(time.Duration) {
		count, err := provider.Fulfill(ctx, lc)
		require.NoError(err)
		fulfilled += count
	})
	c := oracle.New(logging.NoLog{}, n.Queue, fulfillmentPolicy, poll.WithTimer(timer.Factory()))

	var last account.Randomness
	for i := uint64(1); i <= 3; i++ {
		req, err := c.Request(ctx, lc, owner, addr, 0)
		require.NoError(err)
		require.Equal(last, req.Baseline)

		got, err := c.AwaitFulfillment(ctx, lc, req)
		require.NoError(err)
		require.Equal(i, got.Round)
		require.GreaterOrEqual(got.Value, consts.MinRandomValue)
		require.LessOrEqual(got.Value, consts.MaxRandomValue)
		last = got
	}
	require.Equal(3, fulfilled)
	require.Empty(n.Base.PendingRandomness())
}
