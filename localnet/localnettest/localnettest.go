// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package localnettest

import (
	"context"
	"testing"
	"time"

	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/erstate/bridge"
	"github.com/ava-labs/erstate/config"
	"github.com/ava-labs/erstate/localnet"
	"github.com/ava-labs/erstate/poll"
	"github.com/ava-labs/erstate/trace"
)

// FastConfig ticks every few milliseconds and serves nothing over HTTP.
func FastConfig() localnet.Config {
	cfg := localnet.DefaultConfig()
	cfg.BaseAddr = ""
	cfg.RollupAddr = ""
	cfg.SlotInterval = 5 * time.Millisecond
	cfg.Bridge = bridge.Config{Lag: 2}
	cfg.BridgeInterval = 5 * time.Millisecond
	cfg.OracleInterval = 5 * time.Millisecond
	return cfg
}

// FastBudgets shrinks the polling budgets of [c] to match FastConfig.
func FastBudgets(c *config.Config) {
	fast := poll.Policy{Interval: 5 * time.Millisecond, MaxAttempts: 400}
	c.Confirmation = fast
	c.Commitment = fast
	c.Fulfillment = fast
	c.Propagation = fast
}

// Start runs a network built from [cfg] until the test ends.
func Start(t testing.TB, cfg localnet.Config) *localnet.Network {
	require := require.New(t)

	n, err := localnet.New(logging.NoLog{}, trace.Noop(), cfg)
	require.NoError(err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- n.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		require.NoError(<-done)
		require.NoError(n.Close())
	})
	return n
}
