// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package venue_test

import (
	"context"
	"sync"
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/erstate/account"
	"github.com/ava-labs/erstate/codec"
	"github.com/ava-labs/erstate/consts"
	"github.com/ava-labs/erstate/crypto/ed25519"
	"github.com/ava-labs/erstate/ledger"
	"github.com/ava-labs/erstate/venue"
	"github.com/ava-labs/erstate/venue/venuetest"
)

type fixture struct {
	*venuetest.Network
	owner ed25519.PrivateKey
	addr  codec.Address
}

func newFixture(t *testing.T) *fixture {
	n := venuetest.NewNetwork(t)
	owner := venuetest.Key(t)
	return &fixture{Network: n, owner: owner, addr: n.Address(owner)}
}

func (f *fixture) submit(t *testing.T, v ledger.Venue, op ledger.Operation, args ledger.Args) (ids.ID, error) {
	return f.submitAs(t, v, op, args, f.owner)
}

func (f *fixture) submitAs(t *testing.T, v ledger.Venue, op ledger.Operation, args ledger.Args, signer ledger.Signer) (ids.ID, error) {
	return f.Venue(v).Submit(context.Background(), venuetest.Tx(t, op, f.addr, args, signer))
}

// delegate initializes the account and moves it to the rollup.
func (f *fixture) delegate(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	_, err := f.submit(t, ledger.Base, ledger.Initialize, ledger.Args{})
	require.NoError(err)
	txID, err := f.submit(t, ledger.Base, ledger.Delegate, ledger.Args{Validator: f.Validator.Address()})
	require.NoError(err)
	snapshot, err := f.Base.Account(ctx, f.addr)
	require.NoError(err)
	_, err = f.Rollup.Clone(ctx, txID, f.addr, snapshot)
	require.NoError(err)
}

func TestInitialize(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.submit(t, ledger.Base, ledger.Initialize, ledger.Args{})
	require.NoError(err)

	a, err := f.Base.Account(ctx, f.addr)
	require.NoError(err)
	require.Equal(f.owner.Address(), a.Owner)
	require.Zero(a.Data)
	require.Zero(a.Random.Value)
	require.Equal(account.Undelegated, a.Delegation)

	_, err = f.submit(t, ledger.Base, ledger.Initialize, ledger.Args{})
	require.ErrorIs(err, ledger.ErrSubmission)
	require.ErrorIs(err, ledger.ErrAlreadyInitialized)

	_, err = f.Rollup.Account(ctx, f.addr)
	require.ErrorIs(err, ledger.ErrNotFound)
}

func TestInitializeRejected(t *testing.T) {
	tests := map[string]struct {
		venue       ledger.Venue
		signer      func(*fixture) ledger.Signer
		expectedErr error
	}{
		"OnRollup": {
			venue:       ledger.Rollup,
			signer:      func(f *fixture) ledger.Signer { return f.owner },
			expectedErr: ledger.ErrWrongVenue,
		},
		"NotDerivedFromSigner": {
			venue:       ledger.Base,
			signer:      func(f *fixture) ledger.Signer { return f.Oracle },
			expectedErr: ledger.ErrUnauthorized,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.submitAs(t, tt.venue, ledger.Initialize, ledger.Args{}, tt.signer(f))
			require.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func TestUpdateOnBase(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.submit(t, ledger.Base, ledger.Update, ledger.Args{Value: 1})
	require.ErrorIs(err, ledger.ErrNotFound)

	_, err = f.submit(t, ledger.Base, ledger.Initialize, ledger.Args{})
	require.NoError(err)
	_, err = f.submit(t, ledger.Base, ledger.Update, ledger.Args{Value: 42})
	require.NoError(err)
	_, err = f.submit(t, ledger.Base, ledger.Update, ledger.Args{Value: -7})
	require.NoError(err)

	a, err := f.Base.Account(ctx, f.addr)
	require.NoError(err)
	require.Equal(int64(-7), a.Data)

	_, err = f.submitAs(t, ledger.Base, ledger.Update, ledger.Args{Value: 1}, venuetest.Key(t))
	require.ErrorIs(err, ledger.ErrUnauthorized)
}

func TestRejectsTamperedTransaction(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	tx := venuetest.Tx(t, ledger.Initialize, f.addr, ledger.Args{}, f.owner)
	tx.Args.Value = 9
	_, err := f.Base.Submit(context.Background(), tx)
	require.ErrorIs(err, ledger.ErrSubmission)
	require.ErrorIs(err, ledger.ErrInvalidSignature)
}

func TestRejectsDuplicateTransaction(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.submit(t, ledger.Base, ledger.Initialize, ledger.Args{})
	require.NoError(err)
	tx := venuetest.Tx(t, ledger.Update, f.addr, ledger.Args{Value: 3}, f.owner)
	_, err = f.Base.Submit(ctx, tx)
	require.NoError(err)
	_, err = f.Base.Submit(ctx, tx)
	require.ErrorIs(err, ledger.ErrInvalidState)
}

func TestDelegatedAuthority(t *testing.T) {
	f := newFixture(t)
	f.delegate(t)

	tests := map[string]struct {
		venue       ledger.Venue
		op          ledger.Operation
		args        ledger.Args
		expectedErr error
	}{
		"UpdateOnBase": {
			venue:       ledger.Base,
			op:          ledger.Update,
			args:        ledger.Args{Value: 1},
			expectedErr: ledger.ErrWrongVenue,
		},
		"RequestRandomnessOnBase": {
			venue:       ledger.Base,
			op:          ledger.RequestRandomness,
			args:        ledger.Args{Queue: f.Queue},
			expectedErr: ledger.ErrWrongVenue,
		},
		"CommitOnBase": {
			venue:       ledger.Base,
			op:          ledger.Commit,
			expectedErr: ledger.ErrWrongVenue,
		},
		"UndelegateOnBase": {
			venue:       ledger.Base,
			op:          ledger.Undelegate,
			expectedErr: ledger.ErrWrongVenue,
		},
		"DelegateAgain": {
			venue:       ledger.Base,
			op:          ledger.Delegate,
			args:        ledger.Args{Validator: f.Validator.Address()},
			expectedErr: ledger.ErrInvalidState,
		},
		"CloseWhileDelegated": {
			venue:       ledger.Base,
			op:          ledger.Close,
			expectedErr: ledger.ErrInvalidState,
		},
		"DelegateOnRollup": {
			venue:       ledger.Rollup,
			op:          ledger.Delegate,
			args:        ledger.Args{Validator: f.Validator.Address()},
			expectedErr: ledger.ErrWrongVenue,
		},
		"CloseOnRollup": {
			venue:       ledger.Rollup,
			op:          ledger.Close,
			expectedErr: ledger.ErrWrongVenue,
		},
		"UpdateOnRollup": {
			venue: ledger.Rollup,
			op:    ledger.Update,
			args:  ledger.Args{Value: 5},
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.submit(t, tt.venue, tt.op, tt.args)
			require.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func TestUndelegatedAuthority(t *testing.T) {
	f := newFixture(t)
	_, err := f.submit(t, ledger.Base, ledger.Initialize, ledger.Args{})
	require.NoError(t, err)

	tests := map[string]struct {
		venue       ledger.Venue
		op          ledger.Operation
		expectedErr error
	}{
		"UpdateCommitOnBase": {
			venue:       ledger.Base,
			op:          ledger.UpdateCommit,
			expectedErr: ledger.ErrInvalidState,
		},
		"UndelegateOnBase": {
			venue:       ledger.Base,
			op:          ledger.Undelegate,
			expectedErr: ledger.ErrInvalidState,
		},
		"UpdateOnRollup": {
			venue:       ledger.Rollup,
			op:          ledger.Update,
			expectedErr: ledger.ErrWrongVenue,
		},
		"CommitOnRollup": {
			venue:       ledger.Rollup,
			op:          ledger.Commit,
			expectedErr: ledger.ErrWrongVenue,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.submit(t, tt.venue, tt.op, ledger.Args{})
			require.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func TestConcurrentDelegate(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	_, err := f.submit(t, ledger.Base, ledger.Initialize, ledger.Args{})
	require.NoError(err)

	const n = 8
	var (
		wg   sync.WaitGroup
		errs = make([]error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.submit(t, ledger.Base, ledger.Delegate, ledger.Args{Validator: f.Validator.Address()})
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
			continue
		}
		require.ErrorIs(err, ledger.ErrInvalidState)
	}
	require.Equal(1, accepted)
}

func TestCommitRoundTrip(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	f.delegate(t)

	txID, err := f.submit(t, ledger.Rollup, ledger.UpdateCommit, ledger.Args{Value: 43})
	require.NoError(err)
	rollupCopy, err := f.Rollup.Account(ctx, f.addr)
	require.NoError(err)

	_, err = f.Base.ApplyCommit(ctx, txID, f.addr, rollupCopy, false)
	require.NoError(err)
	base, err := f.Base.Account(ctx, f.addr)
	require.NoError(err)
	require.Equal(int64(43), base.Data)
	require.True(base.IsDelegated())

	txID, err = f.submit(t, ledger.Rollup, ledger.Undelegate, ledger.Args{})
	require.NoError(err)
	_, err = f.Rollup.Account(ctx, f.addr)
	require.ErrorIs(err, ledger.ErrNotFound)

	targetTx, err := f.Base.ApplyCommit(ctx, txID, f.addr, rollupCopy, true)
	require.NoError(err)
	again, err := f.Base.ApplyCommit(ctx, txID, f.addr, rollupCopy, true)
	require.NoError(err)
	require.Equal(targetTx, again)

	base, err = f.Base.Account(ctx, f.addr)
	require.NoError(err)
	require.Equal(account.Undelegated, base.Delegation)
	require.True(base.Validator.Empty())

	_, err = f.submit(t, ledger.Base, ledger.Update, ledger.Args{Value: 44})
	require.NoError(err)
}

func TestCloneRejectsForeignValidator(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	snapshot := &account.StateAccount{
		Owner:      f.owner.Address(),
		Delegation: account.Delegated,
		Validator:  codec.CreateAddress(ids.GenerateTestID()),
	}
	_, err := f.Rollup.Clone(context.Background(), ids.GenerateTestID(), f.addr, snapshot)
	require.ErrorIs(err, ledger.ErrUnauthorized)
}

func TestRandomness(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	f.delegate(t)

	_, err := f.submit(t, ledger.Rollup, ledger.RequestRandomness, ledger.Args{Queue: codec.CreateAddress(ids.GenerateTestID())})
	require.ErrorIs(err, ledger.ErrUnauthorized)

	reqID, err := f.submit(t, ledger.Rollup, ledger.RequestRandomness, ledger.Args{Queue: f.Queue, Seed: 7})
	require.NoError(err)
	pending := f.Rollup.PendingRandomness()
	require.Len(pending, 1)
	require.Equal(reqID, pending[0].ID)
	require.Equal(f.addr, pending[0].Account)
	for _, b := range pending[0].Seed {
		require.Equal(uint8(7), b)
	}

	var randomness [consts.RandomnessLen]byte
	randomness[0] = 41
	args := ledger.Args{Request: reqID, Randomness: randomness}

	_, err = f.submit(t, ledger.Rollup, ledger.ConsumeRandomness, args)
	require.ErrorIs(err, ledger.ErrUnauthorized)
	_, err = f.submitAs(t, ledger.Rollup, ledger.ConsumeRandomness, ledger.Args{Request: ids.GenerateTestID()}, f.Oracle)
	require.ErrorIs(err, ledger.ErrInvalidState)

	_, err = f.submitAs(t, ledger.Rollup, ledger.ConsumeRandomness, args, f.Oracle)
	require.NoError(err)
	require.Empty(f.Rollup.PendingRandomness())

	a, err := f.Rollup.Account(ctx, f.addr)
	require.NoError(err)
	require.Equal(account.Randomness{Value: 42, Round: 1}, a.Random)

	_, err = f.submitAs(t, ledger.Rollup, ledger.ConsumeRandomness, args, f.Oracle)
	require.ErrorIs(err, ledger.ErrInvalidState)
}

func TestDelegateDropsBaseRequests(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	_, err := f.submit(t, ledger.Base, ledger.Initialize, ledger.Args{})
	require.NoError(err)
	reqID, err := f.submit(t, ledger.Base, ledger.RequestRandomness, ledger.Args{Queue: f.Queue})
	require.NoError(err)
	require.Len(f.Base.PendingRandomness(), 1)

	_, err = f.submit(t, ledger.Base, ledger.Delegate, ledger.Args{Validator: f.Validator.Address()})
	require.NoError(err)
	require.Empty(f.Base.PendingRandomness())

	_, err = f.submitAs(t, ledger.Base, ledger.ConsumeRandomness, ledger.Args{Request: reqID}, f.Oracle)
	require.ErrorIs(err, ledger.ErrWrongVenue)
}

func TestClose(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.submit(t, ledger.Base, ledger.Initialize, ledger.Args{})
	require.NoError(err)
	_, err = f.submit(t, ledger.Base, ledger.Close, ledger.Args{})
	require.NoError(err)

	_, err = f.Base.Account(ctx, f.addr)
	require.ErrorIs(err, ledger.ErrNotFound)
	require.ErrorIs(err, ledger.ErrAccountClosed)

	for _, op := range []ledger.Operation{ledger.Initialize, ledger.Update, ledger.Close} {
		_, err = f.submit(t, ledger.Base, op, ledger.Args{})
		require.ErrorIs(err, ledger.ErrAccountClosed, op.String())
	}
}

func TestStatusLevels(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	owner := venuetest.Key(t)
	v := venuetest.New(t, venue.Config{
		Venue:         ledger.Base,
		ConfirmDepth:  1,
		FinalizeDepth: 3,
	})
	addr := v.Deriver().Derive(owner.Address())

	_, err := v.Status(ctx, ids.GenerateTestID())
	require.ErrorIs(err, ledger.ErrNotFound)

	txID, err := v.Submit(ctx, venuetest.Tx(t, ledger.Initialize, addr, ledger.Args{}, owner))
	require.NoError(err)

	expected := []ledger.Level{ledger.Processed, ledger.Confirmed, ledger.Confirmed, ledger.Finalized}
	for i, level := range expected {
		r, err := v.Status(ctx, txID)
		require.NoError(err)
		require.Equal(level, r.Level, "slot %d", i)
		require.Zero(r.Slot)
		v.Advance()
	}
	require.Equal(uint64(1), v.FinalizedSlot())
}

func TestListener(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	var events []*venue.Event
	f.Base.AddListener(venue.ListenerFunc(func(e *venue.Event) {
		events = append(events, e)
	}))

	initTx, err := f.submit(t, ledger.Base, ledger.Initialize, ledger.Args{})
	require.NoError(err)
	_, err = f.submit(t, ledger.Base, ledger.Update, ledger.Args{Value: 2})
	require.NoError(err)
	_, err = f.submit(t, ledger.Base, ledger.Close, ledger.Args{})
	require.NoError(err)

	require.Len(events, 3)
	require.Equal(initTx, events[0].TxID)
	require.Equal(ledger.Close, events[2].Op)
	require.Equal(int64(2), events[2].Account.Data)
}

func TestConfigVerify(t *testing.T) {
	tests := map[string]struct {
		cfg         venue.Config
		expectedErr error
	}{
		"Base": {
			cfg: venue.Config{Venue: ledger.Base},
		},
		"RollupWithoutIdentity": {
			cfg:         venue.Config{Venue: ledger.Rollup},
			expectedErr: venue.ErrInvalidConfig,
		},
		"FinalizeBeforeConfirm": {
			cfg:         venue.Config{Venue: ledger.Base, ConfirmDepth: 2, FinalizeDepth: 1},
			expectedErr: venue.ErrInvalidConfig,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, tt.cfg.Verify(), tt.expectedErr)
		})
	}
}
