// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package commitment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/erstate/ledger"
	"github.com/ava-labs/erstate/poll"
	"github.com/ava-labs/erstate/poll/polltest"
)

var errBoom = errors.New("boom")

// sourceFunc adapts a function to a ProofSource on the rollup.
type sourceFunc func(ctx context.Context, txID ids.ID) (*ledger.CommitmentProof, error)

func (sourceFunc) Venue() ledger.Venue { return ledger.Rollup }

func (f sourceFunc) CommitmentSignature(ctx context.Context, txID ids.ID) (*ledger.CommitmentProof, error) {
	return f(ctx, txID)
}

// after returns a source whose proof appears on the [n]th check.
func after(n int, checks *int) sourceFunc {
	return func(_ context.Context, txID ids.ID) (*ledger.CommitmentProof, error) {
		*checks++
		if *checks < n {
			return nil, ledger.ErrNotFound
		}
		return &ledger.CommitmentProof{SourceTx: txID, Source: ledger.Rollup, Target: ledger.Base}, nil
	}
}

func TestAwaitCommitment(t *testing.T) {
	policy := poll.Policy{
		Grace:       5 * time.Second,
		Interval:    time.Second,
		Multiplier:  2,
		MaxInterval: 4 * time.Second,
		MaxAttempts: 5,
	}
	tests := map[string]struct {
		source            func(checks *int) sourceFunc
		expectedErr       error
		expectedChecks    int
		expectedDurations []time.Duration
	}{
		"ImmediatelyAfterGrace": {
			source:            func(c *int) sourceFunc { return after(1, c) },
			expectedChecks:    1,
			expectedDurations: []time.Duration{5 * time.Second},
		},
		"AfterBackoff": {
			source:         func(c *int) sourceFunc { return after(3, c) },
			expectedChecks: 3,
			expectedDurations: []time.Duration{
				5 * time.Second,
				time.Second,
				2 * time.Second,
			},
		},
		"Timeout": {
			source:         func(c *int) sourceFunc { return after(100, c) },
			expectedErr:    ledger.ErrCommitmentTimeout,
			expectedChecks: 5,
			expectedDurations: []time.Duration{
				5 * time.Second,
				time.Second,
				2 * time.Second,
				4 * time.Second,
				4 * time.Second,
			},
		},
		"SourceError": {
			source: func(c *int) sourceFunc {
				return func(context.Context, ids.ID) (*ledger.CommitmentProof, error) {
					*c++
					return nil, errBoom
				}
			},
			expectedErr:       errBoom,
			expectedChecks:    1,
			expectedDurations: []time.Duration{5 * time.Second},
		},
		"MismatchedProof": {
			source: func(c *int) sourceFunc {
				return func(context.Context, ids.ID) (*ledger.CommitmentProof, error) {
					*c++
					return &ledger.CommitmentProof{SourceTx: ids.GenerateTestID(), Source: ledger.Rollup}, nil
				}
			},
			expectedErr:       ErrProofMismatch,
			expectedChecks:    1,
			expectedDurations: []time.Duration{5 * time.Second},
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			timer := polltest.NewTimer()
			m := New(logging.NoLog{}, policy, poll.WithTimer(timer.Factory()))
			txID := ids.GenerateTestID()

			checks := 0
			proof, err := m.AwaitCommitment(context.Background(), txID, tt.source(&checks))
			require.ErrorIs(err, tt.expectedErr)
			require.Equal(tt.expectedChecks, checks)
			require.Equal(tt.expectedDurations, timer.Durations())
			if tt.expectedErr == nil {
				require.Equal(txID, proof.SourceTx)
			}
		})
	}
}

func TestAwaitCommitmentCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := New(logging.NoLog{}, poll.Policy{Grace: time.Hour, MaxAttempts: 1})
	checks := 0
	_, err := m.AwaitCommitment(ctx, ids.GenerateTestID(), after(1, &checks))
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, checks)
}
