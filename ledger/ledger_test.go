// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/erstate/codec"
	"github.com/ava-labs/erstate/crypto/ed25519"
	"github.com/ava-labs/erstate/poll"
	"github.com/ava-labs/erstate/poll/polltest"
)

func TestRemoteError(t *testing.T) {
	require := require.New(t)

	local := fmt.Errorf("%w: %w: account is delegated", ErrSubmission, ErrWrongVenue)
	codes := ErrorCodes(local)
	require.Equal([]string{"wrong_venue", "submission_rejected"}, codes)

	remote := RemoteError(local.Error(), codes)
	require.ErrorIs(remote, ErrSubmission)
	require.ErrorIs(remote, ErrWrongVenue)
	require.NotErrorIs(remote, ErrInvalidState)
	require.Equal(local.Error(), remote.Error())

	// The message is never matched against sentinel texts.
	other := RemoteError("key not found: already initialized", nil)
	require.NotErrorIs(other, ErrNotFound)
	require.NotErrorIs(other, ErrAlreadyInitialized)
	require.Equal("key not found: already initialized", other.Error())

	unknown := RemoteError("bad", []string{"disk_full", "not_found"})
	require.ErrorIs(unknown, ErrNotFound)

	require.Empty(ErrorCodes(errors.New("invalid signature")))
	require.Nil(ErrorCodes(nil))
}

func TestTransactionSignVerify(t *testing.T) {
	require := require.New(t)
	priv, err := ed25519.GeneratePrivateKey()
	require.NoError(err)

	tx := NewTransaction(Update, codec.CreateAddress(ids.GenerateTestID()), Args{Value: 42})
	require.NoError(tx.Sign(priv))
	require.Equal(priv.Address(), tx.Signer)
	require.NoError(tx.Verify())

	id, err := tx.ID()
	require.NoError(err)

	tx.Args.Value = 43
	require.ErrorIs(tx.Verify(), ErrInvalidSignature)
	tampered, err := tx.ID()
	require.NoError(err)
	require.NotEqual(id, tampered)
}

func TestTransactionMarshal(t *testing.T) {
	require := require.New(t)
	priv, err := ed25519.GeneratePrivateKey()
	require.NoError(err)

	tx := NewTransaction(ConsumeRandomness, codec.CreateAddress(ids.GenerateTestID()), Args{
		Request:    ids.GenerateTestID(),
		Randomness: [32]byte{1, 2, 3},
	})
	require.NoError(tx.Sign(priv))

	b, err := tx.Marshal()
	require.NoError(err)
	parsed, err := UnmarshalTransaction(b)
	require.NoError(err)
	require.Equal(tx, parsed)
	require.NoError(parsed.Verify())

	_, err = UnmarshalTransaction(b[:len(b)-1])
	require.ErrorIs(err, ErrMalformed)
}

func TestTransactionVerifyMalformed(t *testing.T) {
	require := require.New(t)
	priv, err := ed25519.GeneratePrivateKey()
	require.NoError(err)

	tx := NewTransaction(Operation(99), codec.CreateAddress(ids.GenerateTestID()), Args{})
	require.NoError(tx.Sign(priv))
	require.ErrorIs(tx.Verify(), ErrMalformed)

	tx = NewTransaction(Close, codec.EmptyAddress, Args{})
	require.NoError(tx.Sign(priv))
	require.ErrorIs(tx.Verify(), ErrMalformed)
}

func TestOperationText(t *testing.T) {
	require := require.New(t)
	for op := range operationNames {
		b, err := op.MarshalText()
		require.NoError(err)
		var parsed Operation
		require.NoError(parsed.UnmarshalText(b))
		require.Equal(op, parsed)
	}
	var op Operation
	require.ErrorIs(op.UnmarshalText([]byte("transfer")), ErrMalformed)
}

func TestAwaitLevel(t *testing.T) {
	txID := ids.GenerateTestID()
	policy := poll.Policy{Interval: time.Second, MaxAttempts: 3}

	tests := map[string]struct {
		statuses    []error
		levels      []Level
		expectedErr error
	}{
		"ConfirmedAfterProcessed": {
			statuses: []error{nil, nil},
			levels:   []Level{Processed, Confirmed},
		},
		"UnknownThenFinalized": {
			statuses: []error{ErrNotFound, nil},
			levels:   []Level{0, Finalized},
		},
		"NeverConfirmed": {
			statuses:    []error{nil, nil, nil},
			levels:      []Level{Processed, Processed, Processed},
			expectedErr: ErrConfirmationTimeout,
		},
		"StatusFailure": {
			statuses:    []error{ErrMalformed},
			levels:      []Level{0},
			expectedErr: ErrMalformed,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			calls := 0
			status := func(context.Context, ids.ID) (*Result, error) {
				i := calls
				calls++
				if err := tt.statuses[i]; err != nil {
					return nil, err
				}
				return &Result{TxID: txID, Level: tt.levels[i]}, nil
			}

			timer := polltest.NewTimer()
			r, err := AwaitLevel(context.Background(), policy, Confirmed, txID, status, poll.WithTimer(timer.Factory()))
			require.ErrorIs(err, tt.expectedErr)
			if tt.expectedErr == nil {
				require.GreaterOrEqual(r.Level, Confirmed)
			}
			require.Len(tt.statuses, calls)
		})
	}
}
