// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package venuetest builds in-memory venues for tests.
package venuetest

import (
	"testing"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/erstate/codec"
	"github.com/ava-labs/erstate/crypto/ed25519"
	"github.com/ava-labs/erstate/ledger"
	"github.com/ava-labs/erstate/venue"
)

// Network is a base ledger and a rollup sharing one program, oracle and
// queue.
type Network struct {
	Base      *venue.Venue
	Rollup    *venue.Venue
	Program   codec.Address
	Queue     codec.Address
	Oracle    ed25519.PrivateKey
	Validator ed25519.PrivateKey
}

func NewNetwork(t testing.TB) *Network {
	n := &Network{
		Program:   codec.CreateAddress(ids.GenerateTestID()),
		Queue:     codec.CreateAddress(ids.GenerateTestID()),
		Oracle:    Key(t),
		Validator: Key(t),
	}
	n.Base = New(t, venue.Config{
		Venue:   ledger.Base,
		Program: n.Program,
		Oracle:  n.Oracle.Address(),
		Queue:   n.Queue,
	})
	n.Rollup = New(t, venue.Config{
		Venue:    ledger.Rollup,
		Program:  n.Program,
		Identity: n.Validator.Address(),
		Oracle:   n.Oracle.Address(),
		Queue:    n.Queue,
	})
	return n
}

// Venue returns the venue named by [v].
func (n *Network) Venue(v ledger.Venue) *venue.Venue {
	if v == ledger.Rollup {
		return n.Rollup
	}
	return n.Base
}

// Address derives the account owned by [owner].
func (n *Network) Address(owner ed25519.PrivateKey) codec.Address {
	return n.Base.Deriver().Derive(owner.Address())
}

func New(t testing.TB, cfg venue.Config) *venue.Venue {
	v, err := venue.New(cfg, memdb.New(), logging.NoLog{}, prometheus.NewRegistry())
	require.NoError(t, err)
	return v
}

func Key(t testing.TB) ed25519.PrivateKey {
	k, err := ed25519.GeneratePrivateKey()
	require.NoError(t, err)
	return k
}

// Tx returns [op] on [acct] signed by [signer].
func Tx(t testing.TB, op ledger.Operation, acct codec.Address, args ledger.Args, signer ledger.Signer) *ledger.Transaction {
	tx := ledger.NewTransaction(op, acct, args)
	require.NoError(t, tx.Sign(signer))
	return tx
}
