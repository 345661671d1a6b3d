// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package venue

import (
	"context"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"go.uber.org/zap"

	"github.com/ava-labs/erstate/account"
	"github.com/ava-labs/erstate/codec"
	"github.com/ava-labs/erstate/ledger"
)

const (
	cloneKind  = "clone"
	commitKind = "commit"
)

// Clone installs the delegated state of [addr] on a rollup. It is executed
// on behalf of the bridge once [sourceTx] (a base ledger Delegate) is
// indexed and returns the id of the resulting rollup transaction.
func (v *Venue) Clone(
	_ context.Context,
	sourceTx ids.ID,
	addr codec.Address,
	snapshot *account.StateAccount,
) (ids.ID, error) {
	if v.cfg.Venue != ledger.Rollup {
		return ids.Empty, fmt.Errorf("%w: clone on %s", ledger.ErrWrongVenue, v.cfg.Venue)
	}
	if !snapshot.IsDelegated() {
		return ids.Empty, fmt.Errorf("%w: %s is not delegated", ledger.ErrInvalidState, addr)
	}
	if snapshot.Validator != v.cfg.Identity {
		return ids.Empty, fmt.Errorf("%w: %s is delegated to %s", ledger.ErrUnauthorized, addr, snapshot.Validator)
	}

	k := string(addr[:])
	v.locks.Lock(k)
	defer v.locks.Unlock(k)

	txID := systemTxID(sourceTx, cloneKind)
	if _, seen, err := getTxSlot(v.db, txID); err != nil {
		return ids.Empty, err
	} else if seen {
		return txID, nil
	}
	if err := v.write(addr, snapshot, txID); err != nil {
		return ids.Empty, err
	}
	v.log.Debug("cloned delegated account",
		zap.Stringer("account", addr),
		zap.Stringer("sourceTx", sourceTx),
		zap.Stringer("txID", txID),
	)
	return txID, nil
}

// ApplyCommit writes the rollup state of [addr] back to the base ledger.
// When [undelegate] is set write authority returns to the base ledger.
func (v *Venue) ApplyCommit(
	_ context.Context,
	sourceTx ids.ID,
	addr codec.Address,
	snapshot *account.StateAccount,
	undelegate bool,
) (ids.ID, error) {
	if v.cfg.Venue != ledger.Base {
		return ids.Empty, fmt.Errorf("%w: commit applied on %s", ledger.ErrWrongVenue, v.cfg.Venue)
	}

	k := string(addr[:])
	v.locks.Lock(k)
	defer v.locks.Unlock(k)

	txID := systemTxID(sourceTx, commitKind)
	if _, seen, err := getTxSlot(v.db, txID); err != nil {
		return ids.Empty, err
	} else if seen {
		return txID, nil
	}
	a, ok, err := getAccount(v.db, addr)
	if err != nil {
		return ids.Empty, err
	}
	if !ok {
		return ids.Empty, fmt.Errorf("%w: account %s", ledger.ErrNotFound, addr)
	}
	if !a.IsDelegated() {
		return ids.Empty, fmt.Errorf("%w: %s is not delegated", ledger.ErrInvalidState, addr)
	}
	a.Data = snapshot.Data
	a.Random = snapshot.Random
	if undelegate {
		a.Delegation = account.Undelegated
		a.Validator = codec.EmptyAddress
	}
	if err := v.write(addr, a, txID); err != nil {
		return ids.Empty, err
	}
	v.log.Debug("applied commitment",
		zap.Stringer("account", addr),
		zap.Stringer("sourceTx", sourceTx),
		zap.Stringer("txID", txID),
		zap.Bool("undelegate", undelegate),
	)
	return txID, nil
}

// write stores [a] and accepts [txID] in the current slot atomically.
func (v *Venue) write(addr codec.Address, a *account.StateAccount, txID ids.ID) error {
	batch := v.db.NewBatch()
	if err := putAccount(batch, addr, a); err != nil {
		return storeErr(err)
	}
	if err := putTxSlot(batch, txID, v.slot.Load()); err != nil {
		return storeErr(err)
	}
	if err := batch.Write(); err != nil {
		return storeErr(err)
	}
	return nil
}
