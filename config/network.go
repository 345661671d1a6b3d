// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"github.com/ava-labs/avalanchego/trace"
	"github.com/ava-labs/avalanchego/utils/logging"

	"github.com/ava-labs/erstate/account"
	"github.com/ava-labs/erstate/commitment"
	"github.com/ava-labs/erstate/controller"
	"github.com/ava-labs/erstate/ledger"
	"github.com/ava-labs/erstate/oracle"
	"github.com/ava-labs/erstate/poll"
	"github.com/ava-labs/erstate/rpc"
)

// Network wires the controllers of every account to [base] and [rollup]
// under the configured budgets.
func (c *Config) Network(
	log logging.Logger,
	tracer trace.Tracer,
	metrics *controller.Metrics,
	base controller.VenueClient,
	rollup controller.VenueClient,
	opts ...poll.Option,
) *controller.Network {
	return &controller.Network{
		Log:         log,
		Tracer:      tracer,
		Metrics:     metrics,
		Base:        base,
		Rollup:      rollup,
		Monitor:     commitment.New(log, c.Commitment, opts...),
		Oracle:      oracle.New(log, c.Queue, c.Fulfillment, opts...),
		Deriver:     account.ProgramDeriver{Program: c.Program},
		Validator:   c.Validator,
		Propagation: c.Propagation,
		PollOptions: opts,
	}
}

// RemoteNetwork reaches both venues over JSON-RPC.
func (c *Config) RemoteNetwork(
	log logging.Logger,
	tracer trace.Tracer,
	metrics *controller.Metrics,
) (*controller.Network, *rpc.JSONRPCClient, *rpc.JSONRPCClient) {
	base := rpc.NewJSONRPCClient(c.BaseURL, ledger.Base, c.ClientConfig())
	rollup := rpc.NewJSONRPCClient(c.RollupURL, ledger.Rollup, c.ClientConfig())
	return c.Network(log, tracer, metrics, base, rollup), base, rollup
}
