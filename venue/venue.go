// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package venue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/ava-labs/erstate/account"
	"github.com/ava-labs/erstate/codec"
	"github.com/ava-labs/erstate/consts"
	"github.com/ava-labs/erstate/ledger"
	"github.com/ava-labs/erstate/lockmap"
)

var ErrInvalidConfig = errors.New("invalid venue config")

type Config struct {
	Venue ledger.Venue `json:"venue" yaml:"venue"`
	// Program derives the address of every account created on this venue.
	Program codec.Address `json:"program" yaml:"program"`
	// Identity is the validator a rollup runs as. Delegations naming another
	// validator are never cloned onto it.
	Identity codec.Address `json:"identity" yaml:"identity"`
	// Oracle is the only signer allowed to fulfill randomness requests.
	Oracle codec.Address `json:"oracle" yaml:"oracle"`
	// Queue is the oracle queue randomness requests must name.
	Queue codec.Address `json:"queue" yaml:"queue"`

	// ConfirmDepth and FinalizeDepth are the number of slots that must pass
	// before an accepted transaction reaches Confirmed and Finalized.
	ConfirmDepth  uint64 `json:"confirmDepth" yaml:"confirmDepth"`
	FinalizeDepth uint64 `json:"finalizeDepth" yaml:"finalizeDepth"`
}

func (c Config) Verify() error {
	if c.Venue != ledger.Base && c.Venue != ledger.Rollup {
		return fmt.Errorf("%w: unknown venue %s", ErrInvalidConfig, c.Venue)
	}
	if c.FinalizeDepth < c.ConfirmDepth {
		return fmt.Errorf("%w: finalize depth %d below confirm depth %d", ErrInvalidConfig, c.FinalizeDepth, c.ConfirmDepth)
	}
	if c.Venue == ledger.Rollup && c.Identity.Empty() {
		return fmt.Errorf("%w: rollup requires a validator identity", ErrInvalidConfig)
	}
	return nil
}

// Event describes an accepted transaction. Account is the state of the
// account after the transaction, or before it for Close and Undelegate.
type Event struct {
	TxID    ids.ID
	Op      ledger.Operation
	Venue   ledger.Venue
	Address codec.Address
	Account *account.StateAccount
	Slot    uint64
}

// Listener is notified of every accepted transaction, in acceptance order
// per account. Implementations must not block.
type Listener interface {
	Accepted(*Event)
}

type ListenerFunc func(*Event)

func (f ListenerFunc) Accepted(e *Event) { f(e) }

// RandomnessRequest is an accepted RequestRandomness awaiting fulfillment.
type RandomnessRequest struct {
	ID      ids.ID               `json:"id"`
	Account codec.Address        `json:"account"`
	Queue   codec.Address        `json:"queue"`
	Seed    [consts.SeedLen]byte `json:"seed"`
	Slot    uint64               `json:"slot"`
}

// Venue executes transactions against one ledger's copy of every account.
type Venue struct {
	cfg     Config
	log     logging.Logger
	db      Store
	deriver account.Deriver
	metrics *metrics

	locks *lockmap.Lockmap
	slot  atomic.Uint64

	listenersL sync.RWMutex
	listeners  []Listener

	pendingL sync.Mutex
	pending  map[ids.ID]*RandomnessRequest
}

func New(cfg Config, db Store, log logging.Logger, registerer prometheus.Registerer) (*Venue, error) {
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	m, err := newMetrics(cfg.Venue, registerer)
	if err != nil {
		return nil, err
	}
	return &Venue{
		cfg:     cfg,
		log:     log,
		db:      db,
		deriver: account.ProgramDeriver{Program: cfg.Program},
		metrics: m,
		locks:   lockmap.New(1024),
		pending: map[ids.ID]*RandomnessRequest{},
	}, nil
}

func (v *Venue) Venue() ledger.Venue {
	return v.cfg.Venue
}

func (v *Venue) Config() Config {
	return v.cfg
}

// Deriver returns the address derivation accounts on this venue must match.
func (v *Venue) Deriver() account.Deriver {
	return v.deriver
}

func (v *Venue) AddListener(l Listener) {
	v.listenersL.Lock()
	defer v.listenersL.Unlock()

	v.listeners = append(v.listeners, l)
}

func (v *Venue) notify(e *Event) {
	v.listenersL.RLock()
	defer v.listenersL.RUnlock()

	for _, l := range v.listeners {
		l.Accepted(e)
	}
}

// Slot is the current slot.
func (v *Venue) Slot() uint64 {
	return v.slot.Load()
}

// Advance closes the current slot and returns the new one.
func (v *Venue) Advance() uint64 {
	s := v.slot.Inc()
	v.metrics.slot.Set(float64(s))
	return s
}

// FinalizedSlot is the latest slot whose transactions are Finalized.
func (v *Venue) FinalizedSlot() uint64 {
	s := v.slot.Load()
	if s < v.cfg.FinalizeDepth {
		return 0
	}
	return s - v.cfg.FinalizeDepth
}

func (v *Venue) level(slot uint64) ledger.Level {
	depth := v.slot.Load() - slot
	switch {
	case depth >= v.cfg.FinalizeDepth:
		return ledger.Finalized
	case depth >= v.cfg.ConfirmDepth:
		return ledger.Confirmed
	default:
		return ledger.Processed
	}
}

// Status reports the slot and confirmation level of an accepted transaction.
func (v *Venue) Status(_ context.Context, txID ids.ID) (*ledger.Result, error) {
	slot, ok, err := getTxSlot(v.db, txID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: transaction %s on %s", ledger.ErrNotFound, txID, v.cfg.Venue)
	}
	return &ledger.Result{
		TxID:  txID,
		Venue: v.cfg.Venue,
		Slot:  slot,
		Level: v.level(slot),
	}, nil
}

// Account returns this venue's copy of [addr].
func (v *Venue) Account(_ context.Context, addr codec.Address) (*account.StateAccount, error) {
	k := string(addr[:])
	v.locks.RLock(k)
	defer v.locks.RUnlock(k)

	a, ok, err := getAccount(v.db, addr)
	if err != nil {
		return nil, err
	}
	if ok {
		return a, nil
	}
	closed, err := isClosed(v.db, addr)
	if err != nil {
		return nil, err
	}
	if closed {
		return nil, fmt.Errorf("%w: %w: %s", ledger.ErrNotFound, ledger.ErrAccountClosed, addr)
	}
	return nil, fmt.Errorf("%w: account %s on %s", ledger.ErrNotFound, addr, v.cfg.Venue)
}

// Commitment returns the proof that the state change of [txID] was
// reflected on the other venue. It fails with ErrNotFound while the
// commitment is pending.
func (v *Venue) Commitment(_ context.Context, txID ids.ID) (*ledger.CommitmentProof, error) {
	proof, ok, err := getProof(v.db, txID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: commitment of %s", ledger.ErrNotFound, txID)
	}
	return proof, nil
}

// RecordCommitment stores [proof] under its source transaction.
func (v *Venue) RecordCommitment(proof *ledger.CommitmentProof) error {
	if proof.Source != v.cfg.Venue {
		return fmt.Errorf("%w: proof for %s recorded on %s", ledger.ErrWrongVenue, proof.Source, v.cfg.Venue)
	}
	if err := putProof(v.db, proof); err != nil {
		return err
	}
	v.log.Debug("recorded commitment",
		zap.Stringer("sourceTx", proof.SourceTx),
		zap.Stringer("targetTx", proof.TargetTx),
		zap.Stringer("target", proof.Target),
	)
	return nil
}

// PendingRandomness lists unfulfilled randomness requests, oldest first.
func (v *Venue) PendingRandomness() []*RandomnessRequest {
	v.pendingL.Lock()
	defer v.pendingL.Unlock()

	reqs := make([]*RandomnessRequest, 0, len(v.pending))
	for _, r := range v.pending {
		c := *r
		reqs = append(reqs, &c)
	}
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].Slot != reqs[j].Slot {
			return reqs[i].Slot < reqs[j].Slot
		}
		return bytes.Compare(reqs[i].ID[:], reqs[j].ID[:]) < 0
	})
	return reqs
}

// systemTxID names a transaction the venue executes on behalf of the
// bridge. It is stable for a given source transaction.
func systemTxID(source ids.ID, kind string) ids.ID {
	return ids.ID(hashing.ComputeHash256Array(append(source[:], kind...)))
}
