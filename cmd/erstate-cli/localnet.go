// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ava-labs/erstate/codec"
	"github.com/ava-labs/erstate/ledger"
	"github.com/ava-labs/erstate/localnet"
	"github.com/ava-labs/erstate/trace"
)

var localnetCmd = &cobra.Command{
	Use:   "localnet",
	Short: "Serve a base ledger and a rollup until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		lcfg := localnet.DefaultConfig()
		flags := cmd.Flags()
		if lcfg.BaseAddr, err = flags.GetString("base-addr"); err != nil {
			return err
		}
		if lcfg.RollupAddr, err = flags.GetString("rollup-addr"); err != nil {
			return err
		}
		if lcfg.DataDir, err = flags.GetString("data-dir"); err != nil {
			return err
		}
		if lcfg.SlotInterval, err = flags.GetDuration("slot-interval"); err != nil {
			return err
		}
		program, err := flags.GetString("program")
		if err != nil {
			return err
		}
		if program != "" {
			if lcfg.Program, err = codec.StringToAddress(program); err != nil {
				return fmt.Errorf("failed to parse program: %w", err)
			}
		}

		logs := newLogFactory(c)
		defer logs.Close()
		log, err := logs.Make("localnet")
		if err != nil {
			return err
		}
		tracer, err := trace.New(c.GetTraceConfig())
		if err != nil {
			return err
		}
		defer tracer.Close()

		n, err := localnet.New(log, tracer, lcfg)
		if err != nil {
			return err
		}
		defer n.Close()

		resp := localnetCmdResponse{
			Program:   n.Program,
			Queue:     n.Queue,
			Validator: n.Validator,
			Oracle:    n.Provider.Identity(),
		}
		// A venue without a listen address has no URI.
		resp.Base, _ = n.URI(ledger.Base)
		resp.Rollup, _ = n.URI(ledger.Rollup)
		if err := printValue(cmd, resp); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return n.Run(ctx)
	},
}

type localnetCmdResponse struct {
	Base      string        `json:"base"`
	Rollup    string        `json:"rollup"`
	Program   codec.Address `json:"program"`
	Queue     codec.Address `json:"queue"`
	Validator codec.Address `json:"validator"`
	Oracle    codec.Address `json:"oracle"`
}

func (r localnetCmdResponse) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ANCHOR_PROVIDER_URL=%s\n", r.Base)
	fmt.Fprintf(&sb, "EPHEMERAL_PROVIDER_ENDPOINT=%s\n", r.Rollup)
	fmt.Fprintf(&sb, "ERSTATE_PROGRAM=%s\n", r.Program)
	fmt.Fprintf(&sb, "ORACLE_QUEUE=%s\n", r.Queue)
	fmt.Fprintf(&sb, "ROLLUP_VALIDATOR=%s\n", r.Validator)
	fmt.Fprintf(&sb, "# oracle identity %s", r.Oracle)
	return sb.String()
}

func init() {
	defaults := localnet.DefaultConfig()
	localnetCmd.Flags().String("base-addr", defaults.BaseAddr, "Listen address of the base ledger")
	localnetCmd.Flags().String("rollup-addr", defaults.RollupAddr, "Listen address of the rollup")
	localnetCmd.Flags().String("data-dir", "", "Persist both venues under this directory")
	localnetCmd.Flags().Duration("slot-interval", defaults.SlotInterval, "Time between slots")
	localnetCmd.Flags().String("program", "", "Program address accounts are derived from")
	rootCmd.AddCommand(localnetCmd)
}
