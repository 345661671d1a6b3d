// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/erstate/account"
	"github.com/ava-labs/erstate/codec"
	"github.com/ava-labs/erstate/poll"
)

// Client submits operations to, and reads accounts from, a single venue.
// Implementations hold no account state between calls.
type Client interface {
	Venue() Venue

	// Submit fails with [ErrSubmission] if the venue rejects tx.
	Submit(ctx context.Context, tx *Transaction) (ids.ID, error)
	// Confirm waits until txID reaches the configured [Level] or fails with
	// [ErrConfirmationTimeout].
	Confirm(ctx context.Context, txID ids.ID) (*Result, error)
	// FetchAccount fails with [ErrNotFound] if the account does not exist on
	// this venue.
	FetchAccount(ctx context.Context, addr codec.Address) (*account.StateAccount, error)
	// LatestFinalityMarker is the latest finalized slot of the venue.
	LatestFinalityMarker(ctx context.Context) (uint64, error)
}

// StatusFunc reads the current status of a transaction. It returns
// [ErrNotFound] while the venue has not seen the transaction.
type StatusFunc func(ctx context.Context, txID ids.ID) (*Result, error)

// AwaitLevel polls status until txID reaches level.
func AwaitLevel(
	ctx context.Context,
	policy poll.Policy,
	level Level,
	txID ids.ID,
	status StatusFunc,
	opts ...poll.Option,
) (*Result, error) {
	var last *Result
	attempts, err := poll.Until(ctx, policy, func(ctx context.Context) (bool, error) {
		r, err := status(ctx, txID)
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		last = r
		return r.Level >= level, nil
	}, opts...)
	switch {
	case err == nil:
		return last, nil
	case errors.Is(err, poll.ErrExhausted), errors.Is(err, context.DeadlineExceeded):
		return nil, fmt.Errorf("%w: tx %s not %s after %d attempts: %w", ErrConfirmationTimeout, txID, level, attempts, err)
	default:
		return nil, err
	}
}
