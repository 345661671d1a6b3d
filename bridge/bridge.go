// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bridge relays delegation and commitment events between a base
// ledger and a rollup.
package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ava-labs/erstate/codec"
	"github.com/ava-labs/erstate/ledger"
	"github.com/ava-labs/erstate/venue"
)

var _ venue.Listener = (*Bridge)(nil)

type Config struct {
	// Lag is the number of source slots an event waits before it is relayed.
	Lag uint64 `json:"lag" yaml:"lag"`
}

type Bridge struct {
	cfg    Config
	log    logging.Logger
	base   *venue.Venue
	rollup *venue.Venue

	relayed *prometheus.CounterVec
	dropped prometheus.Counter

	stepL sync.Mutex

	queueL sync.Mutex
	queue  []*venue.Event
}

// New subscribes a bridge to both venues.
func New(
	cfg Config,
	base *venue.Venue,
	rollup *venue.Venue,
	log logging.Logger,
	registerer prometheus.Registerer,
) (*Bridge, error) {
	if base.Venue() != ledger.Base || rollup.Venue() != ledger.Rollup {
		return nil, ledger.ErrWrongVenue
	}
	b := &Bridge{
		cfg:    cfg,
		log:    log,
		base:   base,
		rollup: rollup,
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bridge",
			Name:      "relayed",
			Help:      "number of relayed events",
		}, []string{"op"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bridge",
			Name:      "dropped",
			Help:      "number of events that could not be relayed",
		}),
	}
	if err := registerer.Register(b.relayed); err != nil {
		return nil, err
	}
	if err := registerer.Register(b.dropped); err != nil {
		return nil, err
	}
	base.AddListener(b)
	rollup.AddListener(b)
	return b, nil
}

func (b *Bridge) Accepted(e *venue.Event) {
	switch {
	case e.Venue == ledger.Base && e.Op == ledger.Delegate:
	case e.Venue == ledger.Rollup && (e.Op == ledger.UpdateCommit || e.Op == ledger.Commit || e.Op == ledger.Undelegate):
	default:
		return
	}

	b.queueL.Lock()
	defer b.queueL.Unlock()

	b.queue = append(b.queue, e)
}

func (b *Bridge) source(e *venue.Event) *venue.Venue {
	if e.Venue == ledger.Base {
		return b.base
	}
	return b.rollup
}

func (b *Bridge) ready(e *venue.Event) bool {
	return e.Slot+b.cfg.Lag <= b.source(e).Slot()
}

// Step relays every queued event that has waited [Config.Lag] slots. Events
// of one account are relayed in acceptance order. It returns the number of
// events relayed.
func (b *Bridge) Step(ctx context.Context) (int, error) {
	b.stepL.Lock()
	defer b.stepL.Unlock()

	b.queueL.Lock()
	var (
		ready []*venue.Event
		held  = map[codec.Address]struct{}{}
		rest  = b.queue[:0:0]
	)
	for _, e := range b.queue {
		if _, ok := held[e.Address]; ok || !b.ready(e) {
			held[e.Address] = struct{}{}
			rest = append(rest, e)
			continue
		}
		ready = append(ready, e)
	}
	b.queue = rest
	b.queueL.Unlock()

	relayed := 0
	for _, e := range ready {
		if err := ctx.Err(); err != nil {
			return relayed, err
		}
		if err := b.relay(ctx, e); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return relayed, err
			}
			b.dropped.Inc()
			b.log.Warn("dropping bridge event",
				zap.Stringer("txID", e.TxID),
				zap.Stringer("op", e.Op),
				zap.Stringer("account", e.Address),
				zap.Error(err),
			)
			continue
		}
		b.relayed.WithLabelValues(e.Op.String()).Inc()
		relayed++
	}
	return relayed, nil
}

func (b *Bridge) relay(ctx context.Context, e *venue.Event) error {
	var (
		target   *venue.Venue
		targetTx ids.ID
		err      error
	)
	switch e.Op {
	case ledger.Delegate:
		target = b.rollup
		if e.Account.Validator != b.rollup.Config().Identity {
			b.log.Debug("ignoring delegation to another validator",
				zap.Stringer("account", e.Address),
				zap.Stringer("validator", e.Account.Validator),
			)
			return nil
		}
		targetTx, err = b.rollup.Clone(ctx, e.TxID, e.Address, e.Account)
	default:
		target = b.base
		targetTx, err = b.base.ApplyCommit(ctx, e.TxID, e.Address, e.Account, e.Op == ledger.Undelegate)
	}
	if err != nil {
		return err
	}
	return b.source(e).RecordCommitment(&ledger.CommitmentProof{
		SourceTx: e.TxID,
		Source:   e.Venue,
		TargetTx: targetTx,
		Target:   target.Venue(),
		Slot:     target.Slot(),
	})
}

// Pending is the number of queued events.
func (b *Bridge) Pending() int {
	b.queueL.Lock()
	defer b.queueL.Unlock()

	return len(b.queue)
}

// Run steps the bridge every [interval] until [ctx] is done.
func (b *Bridge) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := b.Step(ctx); err != nil && ctx.Err() == nil {
				return err
			}
		}
	}
}
