// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package venue

import (
	"context"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"go.uber.org/zap"

	"github.com/ava-labs/erstate/account"
	"github.com/ava-labs/erstate/codec"
	"github.com/ava-labs/erstate/ledger"
)

// effect is the state change of one transaction, applied only once every
// check has passed.
type effect struct {
	account *account.StateAccount
	remove  bool
	// snapshot is reported to listeners when the account is removed.
	snapshot *account.StateAccount
	closed   bool

	request   *RandomnessRequest
	fulfilled ids.ID
	// dropPending discards the account's unfulfilled requests on this venue.
	dropPending bool
}

// Submit executes [tx] and returns its id. Rejections wrap
// [ledger.ErrSubmission] together with the reason. A failure to persist the
// transaction wraps [ErrStore] instead and leaves every account unchanged.
func (v *Venue) Submit(_ context.Context, tx *ledger.Transaction) (ids.ID, error) {
	txID, err := v.submit(tx)
	v.metrics.observe(tx.Op, err)
	if errors.Is(err, ErrStore) {
		v.log.Error("failed to persist transaction",
			zap.Stringer("op", tx.Op),
			zap.Stringer("account", tx.Account),
			zap.Error(err),
		)
		return ids.Empty, fmt.Errorf("%s on %s: %w", tx.Op, v.cfg.Venue, err)
	}
	if err != nil {
		v.log.Debug("rejected transaction",
			zap.Stringer("op", tx.Op),
			zap.Stringer("account", tx.Account),
			zap.Error(err),
		)
		return ids.Empty, fmt.Errorf("%w: %s on %s: %w", ledger.ErrSubmission, tx.Op, v.cfg.Venue, err)
	}
	return txID, nil
}

func (v *Venue) submit(tx *ledger.Transaction) (ids.ID, error) {
	if err := tx.Verify(); err != nil {
		return ids.Empty, err
	}
	txID, err := tx.ID()
	if err != nil {
		return ids.Empty, fmt.Errorf("%w: %w", ledger.ErrMalformed, err)
	}

	k := string(tx.Account[:])
	v.locks.Lock(k)
	defer v.locks.Unlock(k)

	if _, seen, err := getTxSlot(v.db, txID); err != nil {
		return ids.Empty, err
	} else if seen {
		return ids.Empty, fmt.Errorf("%w: duplicate transaction %s", ledger.ErrInvalidState, txID)
	}

	slot := v.slot.Load()
	e, err := v.execute(txID, tx, slot)
	if err != nil {
		return ids.Empty, err
	}
	batch := v.db.NewBatch()
	if err := stage(batch, tx.Account, e); err != nil {
		return ids.Empty, storeErr(err)
	}
	if err := putTxSlot(batch, txID, slot); err != nil {
		return ids.Empty, storeErr(err)
	}
	if err := batch.Write(); err != nil {
		return ids.Empty, storeErr(err)
	}
	v.applyPending(tx.Account, e)

	snapshot := e.account
	if e.remove {
		snapshot = e.snapshot
	}
	v.log.Debug("accepted transaction",
		zap.Stringer("txID", txID),
		zap.Stringer("op", tx.Op),
		zap.Stringer("account", tx.Account),
		zap.Uint64("slot", slot),
	)
	v.notify(&Event{
		TxID:    txID,
		Op:      tx.Op,
		Venue:   v.cfg.Venue,
		Address: tx.Account,
		Account: snapshot.Copy(),
		Slot:    slot,
	})
	return txID, nil
}

// stage writes the state change of [e] on [addr] into [b].
func stage(b database.Batch, addr codec.Address, e *effect) error {
	if e.remove {
		if err := b.Delete(AccountKey(addr)); err != nil {
			return err
		}
	} else if err := putAccount(b, addr, e.account); err != nil {
		return err
	}
	if e.closed {
		return b.Put(ClosedKey(addr), nil)
	}
	return nil
}

// applyPending updates the randomness queue once [e] is persisted.
func (v *Venue) applyPending(addr codec.Address, e *effect) {
	v.pendingL.Lock()
	defer v.pendingL.Unlock()

	if e.remove || e.dropPending {
		for id, r := range v.pending {
			if r.Account == addr {
				delete(v.pending, id)
			}
		}
	}
	if e.request != nil {
		v.pending[e.request.ID] = e.request
	}
	if e.fulfilled != ids.Empty {
		delete(v.pending, e.fulfilled)
	}
}

func (v *Venue) execute(txID ids.ID, tx *ledger.Transaction, slot uint64) (*effect, error) {
	if tx.Op == ledger.Initialize {
		return v.initialize(tx)
	}

	a, err := v.load(tx)
	if err != nil {
		return nil, err
	}
	if err := v.authorize(tx, a); err != nil {
		return nil, err
	}
	if err := v.checkAuthority(tx.Op, a); err != nil {
		return nil, err
	}

	next := a.Copy()
	switch tx.Op {
	case ledger.Update, ledger.UpdateCommit:
		next.Data = tx.Args.Value
		return &effect{account: next}, nil
	case ledger.Commit:
		return &effect{account: next}, nil
	case ledger.Delegate:
		if tx.Args.Validator.Empty() {
			return nil, fmt.Errorf("%w: delegate requires a validator", ledger.ErrMalformed)
		}
		next.Delegation = account.Delegated
		next.Validator = tx.Args.Validator
		// Requests made on the base ledger can no longer be fulfilled here.
		return &effect{account: next, dropPending: true}, nil
	case ledger.Undelegate:
		// The rollup gives up its copy. The bridge hands write authority
		// back to the base ledger.
		return &effect{remove: true, snapshot: next}, nil
	case ledger.Close:
		return &effect{remove: true, snapshot: next, closed: true}, nil
	case ledger.RequestRandomness:
		return v.requestRandomness(txID, tx, next, slot)
	case ledger.ConsumeRandomness:
		return v.consumeRandomness(tx, next)
	default:
		return nil, fmt.Errorf("%w: unknown operation %s", ledger.ErrMalformed, tx.Op)
	}
}

func (v *Venue) initialize(tx *ledger.Transaction) (*effect, error) {
	if v.cfg.Venue != ledger.Base {
		return nil, fmt.Errorf("%w: accounts are created on the base ledger", ledger.ErrWrongVenue)
	}
	if expected := v.deriver.Derive(tx.Signer); expected != tx.Account {
		return nil, fmt.Errorf("%w: account %s is not derived from %s", ledger.ErrUnauthorized, tx.Account, tx.Signer)
	}
	closed, err := isClosed(v.db, tx.Account)
	if err != nil {
		return nil, err
	}
	if closed {
		return nil, fmt.Errorf("%w: %s", ledger.ErrAccountClosed, tx.Account)
	}
	_, exists, err := getAccount(v.db, tx.Account)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ledger.ErrAlreadyInitialized, tx.Account)
	}
	return &effect{account: &account.StateAccount{
		Owner:      tx.Signer,
		Delegation: account.Undelegated,
	}}, nil
}

func (v *Venue) load(tx *ledger.Transaction) (*account.StateAccount, error) {
	a, ok, err := getAccount(v.db, tx.Account)
	if err != nil {
		return nil, err
	}
	if ok {
		return a, nil
	}
	if v.cfg.Venue == ledger.Rollup {
		return nil, fmt.Errorf("%w: account %s is not delegated to this rollup", ledger.ErrWrongVenue, tx.Account)
	}
	closed, err := isClosed(v.db, tx.Account)
	if err != nil {
		return nil, err
	}
	if closed {
		return nil, fmt.Errorf("%w: %s", ledger.ErrAccountClosed, tx.Account)
	}
	return nil, fmt.Errorf("%w: account %s", ledger.ErrNotFound, tx.Account)
}

func (v *Venue) authorize(tx *ledger.Transaction, a *account.StateAccount) error {
	if tx.Op == ledger.ConsumeRandomness {
		if tx.Signer != v.cfg.Oracle {
			return fmt.Errorf("%w: %s is not the oracle identity", ledger.ErrUnauthorized, tx.Signer)
		}
		return nil
	}
	if tx.Signer != a.Owner {
		return fmt.Errorf("%w: %s does not own %s", ledger.ErrUnauthorized, tx.Signer, tx.Account)
	}
	return nil
}

// checkAuthority enforces that at most one venue accepts mutations of an
// account at a time.
func (v *Venue) checkAuthority(op ledger.Operation, a *account.StateAccount) error {
	switch v.cfg.Venue {
	case ledger.Base:
		switch op {
		case ledger.Update, ledger.RequestRandomness, ledger.ConsumeRandomness:
			if a.IsDelegated() {
				return fmt.Errorf("%w: account is delegated to %s", ledger.ErrWrongVenue, a.Validator)
			}
		case ledger.UpdateCommit, ledger.Commit, ledger.Undelegate:
			if a.IsDelegated() {
				return fmt.Errorf("%w: %s must be issued on the rollup", ledger.ErrWrongVenue, op)
			}
			return fmt.Errorf("%w: %s requires a delegated account", ledger.ErrInvalidState, op)
		case ledger.Delegate, ledger.Close:
			if a.IsDelegated() {
				return fmt.Errorf("%w: account is delegated to %s", ledger.ErrInvalidState, a.Validator)
			}
		}
	case ledger.Rollup:
		switch op {
		case ledger.Delegate, ledger.Close:
			return fmt.Errorf("%w: %s must be issued on the base ledger", ledger.ErrWrongVenue, op)
		}
	}
	return nil
}

func (v *Venue) requestRandomness(
	txID ids.ID,
	tx *ledger.Transaction,
	a *account.StateAccount,
	slot uint64,
) (*effect, error) {
	if tx.Args.Queue != v.cfg.Queue {
		return nil, fmt.Errorf("%w: unknown oracle queue %s", ledger.ErrUnauthorized, tx.Args.Queue)
	}
	req := &RandomnessRequest{
		ID:      txID,
		Account: tx.Account,
		Queue:   tx.Args.Queue,
		Slot:    slot,
	}
	for i := range req.Seed {
		req.Seed[i] = tx.Args.Seed
	}
	return &effect{account: a, request: req}, nil
}

func (v *Venue) consumeRandomness(tx *ledger.Transaction, a *account.StateAccount) (*effect, error) {
	v.pendingL.Lock()
	req, ok := v.pending[tx.Args.Request]
	v.pendingL.Unlock()
	if !ok || req.Account != tx.Account {
		return nil, fmt.Errorf("%w: no pending randomness request %s for %s", ledger.ErrInvalidState, tx.Args.Request, tx.Account)
	}
	a.Random = account.Randomness{
		Value: account.RandomValue(tx.Args.Randomness),
		Round: a.Random.Round + 1,
	}
	return &effect{account: a, fulfilled: req.ID}, nil
}
