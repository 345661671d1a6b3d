// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package venue

import (
	"context"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/erstate/account"
	"github.com/ava-labs/erstate/codec"
	"github.com/ava-labs/erstate/ledger"
	"github.com/ava-labs/erstate/poll"
)

var _ ledger.Client = (*LocalClient)(nil)

// LocalClient talks to a [Venue] in the same process.
type LocalClient struct {
	v      *Venue
	level  ledger.Level
	policy poll.Policy
	opts   []poll.Option
}

// NewLocalClient returns a client whose Confirm waits for [level] under
// [policy].
func NewLocalClient(v *Venue, level ledger.Level, policy poll.Policy, opts ...poll.Option) *LocalClient {
	return &LocalClient{
		v:      v,
		level:  level,
		policy: policy,
		opts:   opts,
	}
}

func (c *LocalClient) Venue() ledger.Venue {
	return c.v.Venue()
}

func (c *LocalClient) Submit(ctx context.Context, tx *ledger.Transaction) (ids.ID, error) {
	return c.v.Submit(ctx, tx)
}

func (c *LocalClient) Confirm(ctx context.Context, txID ids.ID) (*ledger.Result, error) {
	return ledger.AwaitLevel(ctx, c.policy, c.level, txID, c.v.Status, c.opts...)
}

func (c *LocalClient) FetchAccount(ctx context.Context, addr codec.Address) (*account.StateAccount, error) {
	return c.v.Account(ctx, addr)
}

func (c *LocalClient) LatestFinalityMarker(context.Context) (uint64, error) {
	return c.v.FinalizedSlot(), nil
}

func (c *LocalClient) CommitmentSignature(ctx context.Context, txID ids.ID) (*ledger.CommitmentProof, error) {
	return c.v.Commitment(ctx, txID)
}

func (c *LocalClient) PendingRandomness(context.Context) ([]*RandomnessRequest, error) {
	return c.v.PendingRandomness(), nil
}
