// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package oracle requests randomness for an account and observes its
// fulfillment through the account state.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/logging"
	"go.uber.org/zap"

	"github.com/ava-labs/erstate/account"
	"github.com/ava-labs/erstate/codec"
	"github.com/ava-labs/erstate/ledger"
	"github.com/ava-labs/erstate/poll"
)

// Request is a confirmed randomness request.
type Request struct {
	TxID    ids.ID        `json:"txId"`
	Venue   ledger.Venue  `json:"venue"`
	Account codec.Address `json:"account"`
	// Baseline is the randomness the account held before the request.
	Baseline account.Randomness `json:"baseline"`
	Result   *ledger.Result     `json:"result"`
}

type Client struct {
	log    logging.Logger
	queue  codec.Address
	policy poll.Policy
	opts   []poll.Option
}

// New returns a client that requests randomness from [queue] and waits for
// fulfillment under [policy].
func New(log logging.Logger, queue codec.Address, policy poll.Policy, opts ...poll.Option) *Client {
	return &Client{
		log:    log,
		queue:  queue,
		policy: policy,
		opts:   opts,
	}
}

func (c *Client) Queue() codec.Address {
	return c.queue
}

// IsFulfilled reports whether [observed] was written by a fulfillment that
// happened after [baseline] was read.
func IsFulfilled(observed, baseline account.Randomness) bool {
	return observed.Value > 0 && observed.Round > baseline.Round
}

// Request records the current randomness of [addr] as the baseline and
// submits a request through [lc].
func (c *Client) Request(
	ctx context.Context,
	lc ledger.Client,
	signer ledger.Signer,
	addr codec.Address,
	seed uint8,
) (*Request, error) {
	a, err := lc.FetchAccount(ctx, addr)
	if err != nil {
		return nil, err
	}
	tx := ledger.NewTransaction(ledger.RequestRandomness, addr, ledger.Args{
		Queue: c.queue,
		Seed:  seed,
	})
	if err := tx.Sign(signer); err != nil {
		return nil, err
	}
	txID, err := lc.Submit(ctx, tx)
	if err != nil {
		return nil, err
	}
	r, err := lc.Confirm(ctx, txID)
	if err != nil {
		return nil, err
	}
	c.log.Debug("requested randomness",
		zap.Stringer("account", addr),
		zap.Stringer("txID", txID),
		zap.Stringer("venue", lc.Venue()),
		zap.Uint64("baselineRound", a.Random.Round),
	)
	return &Request{
		TxID:     txID,
		Venue:    lc.Venue(),
		Account:  addr,
		Baseline: a.Random,
		Result:   r,
	}, nil
}

// AwaitFulfillment polls the account until a fulfillment newer than the
// request baseline appears. It fails with [ledger.ErrFulfillmentTimeout]
// once the poll budget is spent.
func (c *Client) AwaitFulfillment(ctx context.Context, lc ledger.Client, req *Request) (account.Randomness, error) {
	var observed account.Randomness
	opts := append([]poll.Option{poll.WithNotify(func(attempt int, _ error, next time.Duration) {
		c.log.Debug("randomness not yet fulfilled",
			zap.Stringer("account", req.Account),
			zap.Int("attempt", attempt),
			zap.Duration("next", next),
		)
	})}, c.opts...)
	attempts, err := poll.Until(ctx, c.policy, func(ctx context.Context) (bool, error) {
		a, err := lc.FetchAccount(ctx, req.Account)
		if err != nil {
			return false, err
		}
		observed = a.Random
		return IsFulfilled(observed, req.Baseline), nil
	}, opts...)
	switch {
	case err == nil:
		return observed, nil
	case errors.Is(err, poll.ErrExhausted), errors.Is(err, context.DeadlineExceeded):
		return account.Randomness{}, fmt.Errorf("%w: request %s unfulfilled after %d attempts: %w", ledger.ErrFulfillmentTimeout, req.TxID, attempts, err)
	default:
		return account.Randomness{}, err
	}
}
