// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package commitment waits for proof that a transaction on one venue has
// taken effect on the other.
package commitment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/logging"
	"go.uber.org/zap"

	"github.com/ava-labs/erstate/ledger"
	"github.com/ava-labs/erstate/poll"
)

var ErrProofMismatch = errors.New("commitment proof does not match transaction")

// ProofSource serves commitment proofs for transactions that originated on
// its venue.
type ProofSource interface {
	Venue() ledger.Venue
	CommitmentSignature(ctx context.Context, txID ids.ID) (*ledger.CommitmentProof, error)
}

type Monitor struct {
	log    logging.Logger
	policy poll.Policy
	opts   []poll.Option
}

// New returns a monitor that waits [policy.Grace] before its first check and
// then polls within the rest of [policy].
func New(log logging.Logger, policy poll.Policy, opts ...poll.Option) *Monitor {
	return &Monitor{
		log:    log,
		policy: policy,
		opts:   opts,
	}
}

// AwaitCommitment returns the proof for [txID] once [src] reports one. It
// fails with [ledger.ErrCommitmentTimeout] when the budget is spent.
func (m *Monitor) AwaitCommitment(ctx context.Context, txID ids.ID, src ProofSource) (*ledger.CommitmentProof, error) {
	var proof *ledger.CommitmentProof
	opts := append([]poll.Option{poll.WithNotify(func(attempt int, _ error, next time.Duration) {
		m.log.Debug("commitment pending",
			zap.Stringer("txID", txID),
			zap.Stringer("source", src.Venue()),
			zap.Int("attempt", attempt),
			zap.Duration("next", next),
		)
	})}, m.opts...)
	attempts, err := poll.Until(ctx, m.policy, func(ctx context.Context) (bool, error) {
		p, err := src.CommitmentSignature(ctx, txID)
		if errors.Is(err, ledger.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if p.SourceTx != txID || p.Source != src.Venue() {
			return false, fmt.Errorf("%w: got %s on %s", ErrProofMismatch, p.SourceTx, p.Source)
		}
		proof = p
		return true, nil
	}, opts...)
	switch {
	case err == nil:
		m.log.Debug("observed commitment",
			zap.Stringer("txID", txID),
			zap.Stringer("targetTx", proof.TargetTx),
			zap.Int("attempts", attempts),
		)
		return proof, nil
	case errors.Is(err, poll.ErrExhausted), errors.Is(err, context.DeadlineExceeded):
		return nil, fmt.Errorf("%w: %s on %s after %d attempts: %w", ledger.ErrCommitmentTimeout, txID, src.Venue(), attempts, err)
	default:
		return nil, err
	}
}
