// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package plan

import (
	"context"
	"fmt"
	"sync"

	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/neilotoole/errgroup"
	"go.uber.org/zap"

	"github.com/ava-labs/erstate/codec"
	"github.com/ava-labs/erstate/controller"
	"github.com/ava-labs/erstate/ledger"
)

// Outcome is the result of one account's run.
type Outcome struct {
	Account   codec.Address `json:"account"   yaml:"account"`
	Responses []*Response   `json:"responses" yaml:"responses"`
}

// RunMany runs [p] for every owner, at most [parallelism] at a time. Each
// account's steps run in order; accounts never wait on each other. It
// returns the outcome of every account that finished before the first
// failure.
func RunMany(
	ctx context.Context,
	log logging.Logger,
	n *controller.Network,
	owners []ledger.Signer,
	p *Plan,
	parallelism int,
) ([]*Outcome, error) {
	if err := p.Verify(); err != nil {
		return nil, err
	}
	if parallelism <= 0 {
		parallelism = len(owners)
	}
	var (
		l        sync.Mutex
		outcomes = make([]*Outcome, len(owners))
	)
	g, gctx := errgroup.WithContextN(ctx, parallelism, len(owners))
	for i, owner := range owners {
		i, owner := i, owner
		g.Go(func() error {
			c, err := controller.New(n, owner)
			if err != nil {
				return err
			}
			responses, err := Run(gctx, log, c, p)
			if err != nil {
				return fmt.Errorf("account %s: %w", c.Address(), err)
			}
			l.Lock()
			outcomes[i] = &Outcome{
				Account:   c.Address(),
				Responses: responses,
			}
			l.Unlock()
			log.Info("plan finished",
				zap.String("plan", p.Name),
				zap.Stringer("account", c.Address()),
			)
			return nil
		})
	}
	err := g.Wait()
	finished := make([]*Outcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o != nil {
			finished = append(finished, o)
		}
	}
	return finished, err
}
