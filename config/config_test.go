// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/erstate/codec"
	"github.com/ava-labs/erstate/consts"
	"github.com/ava-labs/erstate/ledger"
	"github.com/ava-labs/erstate/poll"
)

func TestDefault(t *testing.T) {
	require := require.New(t)

	c, err := Load("")
	require.NoError(err)
	require.Equal(DefaultBaseURL, c.BaseURL)
	require.Equal(DefaultRollupURL, c.RollupURL)
	require.False(c.Integration)
	require.Equal(consts.DefaultRollupValidator, c.Validator.String())
	require.Equal(consts.DefaultOracleQueue, c.Queue.String())
	require.Equal(ledger.Confirmed, c.Level)
	require.Equal(30, c.Fulfillment.MaxAttempts)
	require.Equal(time.Second, c.Fulfillment.Interval)
	require.Equal(3*time.Second, c.Commitment.Grace)
}

func TestLoadEnv(t *testing.T) {
	require := require.New(t)

	validator := codec.CreateAddress([32]byte{1})
	program := codec.CreateAddress([32]byte{2})
	t.Setenv("ANCHOR_PROVIDER_URL", "http://base:9650")
	t.Setenv("EPHEMERAL_PROVIDER_ENDPOINT", "http://rollup:9650")
	t.Setenv("RUN_INTEGRATION", "1")
	t.Setenv("ROLLUP_VALIDATOR", validator.String())
	t.Setenv("ERSTATE_PROGRAM", program.String())
	t.Setenv("ERSTATE_CONFIRMATION_LEVEL", "finalized")
	t.Setenv("ERSTATE_FULFILLMENT_MAX_ATTEMPTS", "5")
	t.Setenv("ERSTATE_TRACE_ENABLED", "true")

	c, err := Load("")
	require.NoError(err)
	require.Equal("http://base:9650", c.BaseURL)
	require.Equal("http://rollup:9650", c.RollupURL)
	require.True(c.Integration)
	require.Equal(validator, c.Validator)
	require.Equal(program, c.Program)
	require.Equal(ledger.Finalized, c.Level)
	require.Equal(5, c.Fulfillment.MaxAttempts)
	require.Equal(time.Second, c.Fulfillment.Interval)
	require.True(c.Trace.Enabled)
	require.Equal(ledger.Finalized, c.ClientConfig().Level)
}

func TestLoadFile(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(os.WriteFile(path, []byte(`
baseURL: http://file:8899
logLevel: debug
commitment:
  grace: 1s
  interval: 250ms
  maxAttempts: 3
`), 0o600))
	t.Setenv("ANCHOR_PROVIDER_URL", "http://env:8899")

	c, err := Load(path)
	require.NoError(err)
	// The environment wins over the file.
	require.Equal("http://env:8899", c.BaseURL)
	require.Equal("debug", c.LogLevel)
	// Fields missing from the file keep their defaults.
	require.Equal(poll.Policy{
		Grace:       time.Second,
		Interval:    250 * time.Millisecond,
		Multiplier:  2,
		MaxInterval: 4 * time.Second,
		MaxAttempts: 3,
	}, c.Commitment)

	require.NoError(os.WriteFile(path, []byte("unknownField: 1\n"), 0o600))
	_, err = Load(path)
	require.ErrorIs(err, ErrInvalidConfig)
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		err    error
	}{
		{
			name:   "default",
			modify: func(*Config) {},
		},
		{
			name: "unbounded fulfillment",
			modify: func(c *Config) {
				c.Fulfillment.MaxAttempts = 0
			},
			err: poll.ErrInvalidPolicy,
		},
		{
			name: "unknown log level",
			modify: func(c *Config) {
				c.LogLevel = "loud"
			},
			err: ErrInvalidConfig,
		},
		{
			name: "integration without program",
			modify: func(c *Config) {
				c.Integration = true
			},
			err: ErrInvalidConfig,
		},
		{
			name: "integration",
			modify: func(c *Config) {
				c.Integration = true
				c.Program = codec.CreateAddress([32]byte{3})
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(c)
			require.ErrorIs(t, c.Verify(), tt.err)
		})
	}
}
