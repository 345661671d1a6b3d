// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package venue

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/near/borsh-go"

	"github.com/ava-labs/erstate/account"
	"github.com/ava-labs/erstate/codec"
	"github.com/ava-labs/erstate/consts"
	"github.com/ava-labs/erstate/ledger"
)

// ErrStore marks a failure of the venue's own storage. The venue did not
// reject the operation and nothing of it was applied.
var ErrStore = errors.New("venue store failure")

// Store is the subset of a key-value database a venue persists into. Both
// memdb and pebble satisfy it. The writes of one transaction are staged in a
// batch and written together.
type Store interface {
	database.Batcher

	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
	Put(key []byte, value []byte) error
	Delete(key []byte) error
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %w", ErrStore, err)
}

// State
// 0x0/ (accounts)
//   -> [address] => account
// 0x1/ (closed accounts)
//   -> [address] => nil
// 0x2/ (accepted transactions)
//   -> [txID] => slot
// 0x3/ (commitment proofs)
//   -> [source txID] => proof

const (
	accountPrefix byte = 0x0
	closedPrefix  byte = 0x1
	txPrefix      byte = 0x2
	proofPrefix   byte = 0x3
)

func prefixedKey(prefix byte, k []byte) []byte {
	key := make([]byte, consts.ByteLen+len(k))
	key[0] = prefix
	copy(key[1:], k)
	return key
}

func AccountKey(addr codec.Address) []byte {
	return prefixedKey(accountPrefix, addr[:])
}

func ClosedKey(addr codec.Address) []byte {
	return prefixedKey(closedPrefix, addr[:])
}

func TxKey(txID ids.ID) []byte {
	return prefixedKey(txPrefix, txID[:])
}

func ProofKey(txID ids.ID) []byte {
	return prefixedKey(proofPrefix, txID[:])
}

// getAccount returns false if no account is stored at [addr].
func getAccount(db Store, addr codec.Address) (*account.StateAccount, bool, error) {
	b, err := db.Get(AccountKey(addr))
	if errors.Is(err, database.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storeErr(err)
	}
	a, err := account.Unmarshal(b)
	if err != nil {
		return nil, false, storeErr(err)
	}
	return a, true, nil
}

func putAccount(w database.KeyValueWriter, addr codec.Address, a *account.StateAccount) error {
	b, err := account.Marshal(a)
	if err != nil {
		return err
	}
	return w.Put(AccountKey(addr), b)
}

func isClosed(db Store, addr codec.Address) (bool, error) {
	closed, err := db.Has(ClosedKey(addr))
	if err != nil {
		return false, storeErr(err)
	}
	return closed, nil
}

func getTxSlot(db Store, txID ids.ID) (uint64, bool, error) {
	b, err := db.Get(TxKey(txID))
	if errors.Is(err, database.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, storeErr(err)
	}
	if len(b) != consts.Uint64Len {
		return 0, false, database.ErrNotFound
	}
	return binary.BigEndian.Uint64(b), true, nil
}

func putTxSlot(w database.KeyValueWriter, txID ids.ID, slot uint64) error {
	return w.Put(TxKey(txID), binary.BigEndian.AppendUint64(nil, slot))
}

func getProof(db Store, txID ids.ID) (*ledger.CommitmentProof, bool, error) {
	b, err := db.Get(ProofKey(txID))
	if errors.Is(err, database.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storeErr(err)
	}
	proof := new(ledger.CommitmentProof)
	if err := borsh.Deserialize(proof, b); err != nil {
		return nil, false, storeErr(err)
	}
	return proof, true, nil
}

func putProof(db Store, proof *ledger.CommitmentProof) error {
	b, err := borsh.Serialize(*proof)
	if err != nil {
		return err
	}
	if err := db.Put(ProofKey(proof.SourceTx), b); err != nil {
		return storeErr(err)
	}
	return nil
}
