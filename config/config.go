// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v2"

	"github.com/ava-labs/erstate/codec"
	"github.com/ava-labs/erstate/consts"
	"github.com/ava-labs/erstate/ledger"
	"github.com/ava-labs/erstate/poll"
	"github.com/ava-labs/erstate/rpc"
	"github.com/ava-labs/erstate/trace"
)

var ErrInvalidConfig = errors.New("invalid config")

const (
	DefaultBaseURL   = "http://127.0.0.1:8899"
	DefaultRollupURL = "http://127.0.0.1:7799"
)

type Config struct {
	// BaseURL is the JSON-RPC endpoint of the base ledger.
	BaseURL string `json:"baseURL" yaml:"baseURL" env:"ANCHOR_PROVIDER_URL"`
	// RollupURL is the JSON-RPC endpoint of the rollup.
	RollupURL string `json:"rollupURL" yaml:"rollupURL" env:"EPHEMERAL_PROVIDER_ENDPOINT"`
	// RollupWSURL overrides the event stream endpoint of the rollup.
	RollupWSURL string `json:"rollupWSURL" yaml:"rollupWSURL" env:"EPHEMERAL_WS_ENDPOINT"`
	// Integration runs against the endpoints above instead of an in-process
	// network.
	Integration bool `json:"integration" yaml:"integration" env:"RUN_INTEGRATION"`

	Validator codec.Address `json:"validator" yaml:"validator" env:"ROLLUP_VALIDATOR"`
	Queue     codec.Address `json:"queue"     yaml:"queue"     env:"ORACLE_QUEUE"`
	Program   codec.Address `json:"program"   yaml:"program"   env:"ERSTATE_PROGRAM"`
	// OwnerKey is the hex private key accounts are owned by. A key is
	// generated when empty.
	OwnerKey string `json:"-" yaml:"ownerKey" env:"ERSTATE_OWNER_KEY"`

	Level        ledger.Level `json:"level"        yaml:"level"        env:"ERSTATE_CONFIRMATION_LEVEL"`
	Confirmation poll.Policy  `json:"confirmation" yaml:"confirmation" envPrefix:"ERSTATE_CONFIRMATION_"`
	Commitment   poll.Policy  `json:"commitment"   yaml:"commitment"   envPrefix:"ERSTATE_COMMITMENT_"`
	Fulfillment  poll.Policy  `json:"fulfillment"  yaml:"fulfillment"  envPrefix:"ERSTATE_FULFILLMENT_"`
	Propagation  poll.Policy  `json:"propagation"  yaml:"propagation"  envPrefix:"ERSTATE_PROPAGATION_"`

	RequestsPerSecond float64 `json:"requestsPerSecond" yaml:"requestsPerSecond" env:"ERSTATE_REQUESTS_PER_SECOND"`
	Burst             int     `json:"burst"             yaml:"burst"             env:"ERSTATE_BURST"`

	LogLevel string `json:"logLevel" yaml:"logLevel" env:"ERSTATE_LOG_LEVEL"`
	LogDir   string `json:"logDir"   yaml:"logDir"   env:"ERSTATE_LOG_DIR"`

	Trace trace.Config `json:"trace" yaml:"trace" envPrefix:"ERSTATE_"`
}

// Default mirrors the budgets of the reference lifecycle: confirmations
// within a few seconds, a 3s floor before commitments are checked and 30
// one-second checks for randomness.
func Default() *Config {
	return &Config{
		BaseURL:   DefaultBaseURL,
		RollupURL: DefaultRollupURL,
		Validator: codec.MustStringToAddress(consts.DefaultRollupValidator),
		Queue:     codec.MustStringToAddress(consts.DefaultOracleQueue),
		Level:     ledger.Confirmed,
		Confirmation: poll.Policy{
			Interval:    200 * time.Millisecond,
			Multiplier:  1.5,
			MaxInterval: 2 * time.Second,
			MaxAttempts: 20,
		},
		Commitment: poll.Policy{
			Grace:       3 * time.Second,
			Interval:    time.Second,
			Multiplier:  2,
			MaxInterval: 4 * time.Second,
			MaxAttempts: 10,
		},
		Fulfillment: poll.Policy{
			Interval:    time.Second,
			MaxAttempts: 30,
		},
		Propagation: poll.Policy{
			Interval:    500 * time.Millisecond,
			MaxAttempts: 20,
		},
		LogLevel: logging.Info.LowerString(),
		Trace: trace.Config{
			SampleRate: 1,
			Endpoint:   trace.DefaultEndpoint,
			Agent:      consts.Name,
		},
	}
}

// Load returns the defaults overlaid with the yaml file at [path], if any,
// and then with the environment.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.UnmarshalStrict(b, c); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
		}
	}
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("%w: parse env: %w", ErrInvalidConfig, err)
	}
	return c, c.Verify()
}

func (c *Config) Verify() error {
	for name, p := range map[string]poll.Policy{
		"confirmation": c.Confirmation,
		"commitment":   c.Commitment,
		"fulfillment":  c.Fulfillment,
		"propagation":  c.Propagation,
	} {
		if err := p.Verify(); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, name, err)
		}
	}
	if _, err := logging.ToLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if !c.Integration {
		return nil
	}
	switch {
	case c.BaseURL == "" || c.RollupURL == "":
		return fmt.Errorf("%w: integration requires both endpoints", ErrInvalidConfig)
	case c.Validator.Empty():
		return fmt.Errorf("%w: integration requires a rollup validator", ErrInvalidConfig)
	case c.Program.Empty():
		return fmt.Errorf("%w: integration requires a program", ErrInvalidConfig)
	default:
		return nil
	}
}

// ClientConfig is the JSON-RPC client configuration of both venues.
func (c *Config) ClientConfig() rpc.ClientConfig {
	return rpc.ClientConfig{
		Level:             c.Level,
		Confirmation:      c.Confirmation,
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.Burst,
	}
}

func (c *Config) GetLogLevel() logging.Level {
	l, err := logging.ToLevel(c.LogLevel)
	if err != nil {
		return logging.Info
	}
	return l
}

func (c *Config) GetTraceConfig() *trace.Config {
	return &c.Trace
}
