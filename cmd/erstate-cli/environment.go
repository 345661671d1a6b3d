// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"

	"github.com/ava-labs/avalanchego/trace"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ava-labs/erstate/config"
	"github.com/ava-labs/erstate/controller"
	"github.com/ava-labs/erstate/localnet"

	etrace "github.com/ava-labs/erstate/trace"
)

// environment is what a command runs lifecycles against: the configured
// endpoints when integration is enabled, an in-process network otherwise.
type environment struct {
	cfg     *config.Config
	log     logging.Logger
	logs    *logFactory
	tracer  trace.Tracer
	network *controller.Network

	local  *localnet.Network
	cancel context.CancelFunc
	done   chan error
}

func newEnvironment(cmd *cobra.Command) (*environment, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logs := newLogFactory(cfg)
	log, err := logs.Make("erstate-cli")
	if err != nil {
		logs.Close()
		return nil, err
	}
	tracer, err := etrace.New(cfg.GetTraceConfig())
	if err != nil {
		logs.Close()
		return nil, err
	}
	e := &environment{
		cfg:    cfg,
		log:    log,
		logs:   logs,
		tracer: tracer,
	}
	if err := e.connect(cmd.Context()); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

func (e *environment) connect(ctx context.Context) error {
	metrics, err := controller.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		return err
	}
	if e.cfg.Integration {
		network, base, rollup := e.cfg.RemoteNetwork(e.log, e.tracer, metrics)
		if _, _, err := base.Network(ctx); err != nil {
			return fmt.Errorf("base ledger at %s: %w", e.cfg.BaseURL, err)
		}
		if _, _, err := rollup.Network(ctx); err != nil {
			return fmt.Errorf("rollup at %s: %w", e.cfg.RollupURL, err)
		}
		e.network = network
		e.log.Info("connected",
			zap.String("base", e.cfg.BaseURL),
			zap.String("rollup", e.cfg.RollupURL),
		)
		return nil
	}

	lcfg := localnet.DefaultConfig()
	lcfg.BaseAddr = ""
	lcfg.RollupAddr = ""
	e.local, err = localnet.New(e.log, e.tracer, lcfg)
	if err != nil {
		return err
	}
	var runCtx context.Context
	runCtx, e.cancel = context.WithCancel(context.Background())
	e.done = make(chan error, 1)
	go func() {
		e.done <- e.local.Run(runCtx)
	}()
	e.local.Configure(e.cfg)
	base, rollup := e.local.LocalClients(e.cfg.Level, e.cfg.Confirmation)
	e.network = e.cfg.Network(e.log, e.tracer, metrics, base, rollup)
	return nil
}

func (e *environment) Close() error {
	errs := wrappers.Errs{}
	if e.local != nil {
		if e.cancel != nil {
			e.cancel()
			errs.Add(<-e.done)
		}
		errs.Add(e.local.Close())
	}
	errs.Add(e.tracer.Close())
	e.logs.Close()
	return errs.Err
}
