// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package localnet runs a base ledger and a rollup in one process, joined by
// a bridge and served by a randomness provider.
package localnet

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"time"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/trace"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ava-labs/erstate/bridge"
	"github.com/ava-labs/erstate/codec"
	"github.com/ava-labs/erstate/config"
	"github.com/ava-labs/erstate/crypto/ed25519"
	"github.com/ava-labs/erstate/ledger"
	"github.com/ava-labs/erstate/oracle/vrf"
	"github.com/ava-labs/erstate/pebble"
	"github.com/ava-labs/erstate/poll"
	"github.com/ava-labs/erstate/rpc"
	"github.com/ava-labs/erstate/server"
	"github.com/ava-labs/erstate/venue"
)

const MetricsEndpoint = "/ext/metrics"

var ErrNotServing = errors.New("network is not serving")

type Config struct {
	// DataDir persists both venues with pebble. Venues are kept in memory
	// when it is empty.
	DataDir string        `json:"dataDir" yaml:"dataDir"`
	Pebble  pebble.Config `json:"pebble"  yaml:"pebble"`

	// BaseAddr and RollupAddr are the listen addresses of the venues. No
	// HTTP server is started for an empty address.
	BaseAddr       string            `json:"baseAddr"       yaml:"baseAddr"`
	RollupAddr     string            `json:"rollupAddr"     yaml:"rollupAddr"`
	AllowedOrigins []string          `json:"allowedOrigins" yaml:"allowedOrigins"`
	HTTP           server.HTTPConfig `json:"http"           yaml:"http"`

	// Program, Queue and OracleKey default to fresh values.
	Program   codec.Address `json:"program"   yaml:"program"`
	Queue     codec.Address `json:"queue"     yaml:"queue"`
	OracleKey string        `json:"oracleKey" yaml:"oracleKey"`
	// ValidatorKey is the identity the rollup runs as.
	ValidatorKey string `json:"validatorKey" yaml:"validatorKey"`

	SlotInterval   time.Duration `json:"slotInterval"   yaml:"slotInterval"`
	ConfirmDepth   uint64        `json:"confirmDepth"   yaml:"confirmDepth"`
	FinalizeDepth  uint64        `json:"finalizeDepth"  yaml:"finalizeDepth"`
	Bridge         bridge.Config `json:"bridge"         yaml:"bridge"`
	BridgeInterval time.Duration `json:"bridgeInterval" yaml:"bridgeInterval"`
	OracleInterval time.Duration `json:"oracleInterval" yaml:"oracleInterval"`
}

func DefaultConfig() Config {
	return Config{
		Pebble:         pebble.NewDefaultConfig(),
		BaseAddr:       "127.0.0.1:8899",
		RollupAddr:     "127.0.0.1:7799",
		AllowedOrigins: []string{"*"},
		HTTP:           server.DefaultHTTPConfig(),
		SlotInterval:   400 * time.Millisecond,
		ConfirmDepth:   1,
		FinalizeDepth:  4,
		Bridge:         bridge.Config{Lag: 2},
		BridgeInterval: 200 * time.Millisecond,
		OracleInterval: 500 * time.Millisecond,
	}
}

type Network struct {
	cfg    Config
	log    logging.Logger
	tracer trace.Tracer

	Program   codec.Address
	Queue     codec.Address
	Validator codec.Address

	Base     *venue.Venue
	Rollup   *venue.Venue
	Bridge   *bridge.Bridge
	Provider *vrf.Provider

	registry *prometheus.Registry
	dbs      []*pebble.Database
	servers  map[ledger.Venue]server.Server
}

func key(s string) (ed25519.PrivateKey, error) {
	if s == "" {
		return ed25519.GeneratePrivateKey()
	}
	return ed25519.PrivateKeyFromHex(s)
}

// New builds both venues and the services joining them. Nothing runs until
// Run is called.
func New(log logging.Logger, tracer trace.Tracer, cfg Config) (*Network, error) {
	oracleKey, err := key(cfg.OracleKey)
	if err != nil {
		return nil, fmt.Errorf("oracle key: %w", err)
	}
	validatorKey, err := key(cfg.ValidatorKey)
	if err != nil {
		return nil, fmt.Errorf("validator key: %w", err)
	}
	n := &Network{
		cfg:       cfg,
		log:       log,
		tracer:    tracer,
		Program:   cfg.Program,
		Queue:     cfg.Queue,
		Validator: validatorKey.Address(),
		registry:  prometheus.NewRegistry(),
		servers:   map[ledger.Venue]server.Server{},
	}
	if n.Program.Empty() {
		n.Program = codec.CreateAddress(ids.GenerateTestID())
	}
	if n.Queue.Empty() {
		n.Queue = codec.CreateAddress(ids.GenerateTestID())
	}
	n.Provider = vrf.New(log, oracleKey, n.Queue)

	gatherers := map[ledger.Venue]prometheus.Gatherers{}
	for _, v := range []ledger.Venue{ledger.Base, ledger.Rollup} {
		db, gatherer, err := n.store(v)
		if err != nil {
			_ = n.Close()
			return nil, err
		}
		gatherers[v] = append(gatherers[v], n.registry)
		if gatherer != nil {
			gatherers[v] = append(gatherers[v], gatherer)
		}
		vcfg := venue.Config{
			Venue:         v,
			Program:       n.Program,
			Oracle:        n.Provider.Identity(),
			Queue:         n.Queue,
			ConfirmDepth:  cfg.ConfirmDepth,
			FinalizeDepth: cfg.FinalizeDepth,
		}
		if v == ledger.Rollup {
			vcfg.Identity = n.Validator
		}
		ve, err := venue.New(vcfg, db, log, n.registry)
		if err != nil {
			_ = n.Close()
			return nil, err
		}
		if v == ledger.Base {
			n.Base = ve
		} else {
			n.Rollup = ve
		}
	}
	n.Bridge, err = bridge.New(cfg.Bridge, n.Base, n.Rollup, log, n.registry)
	if err != nil {
		_ = n.Close()
		return nil, err
	}
	for v, addr := range map[ledger.Venue]string{ledger.Base: cfg.BaseAddr, ledger.Rollup: cfg.RollupAddr} {
		if addr == "" {
			continue
		}
		if err := n.listen(v, addr, gatherers[v]); err != nil {
			_ = n.Close()
			return nil, err
		}
	}
	log.Info("local network created",
		zap.Stringer("program", n.Program),
		zap.Stringer("queue", n.Queue),
		zap.Stringer("validator", n.Validator),
		zap.Stringer("oracle", n.Provider.Identity()),
		zap.String("dataDir", cfg.DataDir),
	)
	return n, nil
}

func (n *Network) store(v ledger.Venue) (venue.Store, prometheus.Gatherer, error) {
	if n.cfg.DataDir == "" {
		return memdb.New(), nil, nil
	}
	db, registry, err := pebble.New(filepath.Join(n.cfg.DataDir, v.String()), n.cfg.Pebble)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", v, err)
	}
	n.dbs = append(n.dbs, db)
	return db, registry, nil
}

func (n *Network) listen(v ledger.Venue, addr string, gatherer prometheus.Gatherer) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", v, err)
	}
	srv := server.New(n.log, listener, n.cfg.HTTP, n.cfg.AllowedOrigins, 5*time.Second)
	if _, err := rpc.RegisterVenue(srv, n.log, n.tracer, n.Venue(v)); err != nil {
		_ = listener.Close()
		return err
	}
	if err := srv.AddRoute(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}), MetricsEndpoint); err != nil {
		_ = listener.Close()
		return err
	}
	n.servers[v] = srv
	return nil
}

// Venue returns the venue named by [v].
func (n *Network) Venue(v ledger.Venue) *venue.Venue {
	if v == ledger.Rollup {
		return n.Rollup
	}
	return n.Base
}

// URI is the HTTP endpoint of [v].
func (n *Network) URI(v ledger.Venue) (string, error) {
	srv, ok := n.servers[v]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotServing, v)
	}
	return "http://" + srv.Addr().String(), nil
}

// LocalClients returns in-process clients of both venues.
func (n *Network) LocalClients(level ledger.Level, policy poll.Policy, opts ...poll.Option) (*venue.LocalClient, *venue.LocalClient) {
	return venue.NewLocalClient(n.Base, level, policy, opts...), venue.NewLocalClient(n.Rollup, level, policy, opts...)
}

// Configure points [c] at this network's program, queue and validator.
func (n *Network) Configure(c *config.Config) {
	c.Program = n.Program
	c.Queue = n.Queue
	c.Validator = n.Validator
}

func (n *Network) Registry() *prometheus.Registry {
	return n.registry
}

func (n *Network) tick(ctx context.Context) error {
	t := time.NewTicker(n.cfg.SlotInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n.Base.Advance()
			n.Rollup.Advance()
		}
	}
}

// Run advances both venues, relays events and fulfills randomness until
// [ctx] is done or a service fails.
func (n *Network) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return n.tick(gctx)
	})
	g.Go(func() error {
		return n.Bridge.Run(gctx, n.cfg.BridgeInterval)
	})
	for _, v := range []*venue.Venue{n.Base, n.Rollup} {
		src := venue.NewLocalClient(v, ledger.Processed, poll.Policy{MaxAttempts: 1})
		g.Go(func() error {
			return n.Provider.Run(gctx, src, n.cfg.OracleInterval)
		})
	}
	for v, srv := range n.servers {
		v, srv := v, srv
		g.Go(func() error {
			n.log.Info("serving venue",
				zap.Stringer("venue", v),
				zap.Stringer("addr", srv.Addr()),
			)
			return srv.Dispatch()
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		errs := wrappers.Errs{}
		for _, srv := range n.servers {
			errs.Add(srv.Shutdown())
		}
		return errs.Err
	})
	return g.Wait()
}

// Close releases the stores. It must not be called while Run is running.
func (n *Network) Close() error {
	errs := wrappers.Errs{}
	for _, db := range n.dbs {
		errs.Add(db.Close())
	}
	return errs.Err
}
