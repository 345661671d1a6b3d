// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"github.com/spf13/cobra"

	"github.com/ava-labs/erstate/controller"
	"github.com/ava-labs/erstate/plan"
)

var runCmd = &cobra.Command{
	Use:   "run [path|-]",
	Short: "Run a plan for the account of the configured key",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		p, err := readPlan(cmd, path)
		if err != nil {
			return err
		}

		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		key, err := ownerKey(env.cfg)
		if err != nil {
			return err
		}
		c, err := controller.New(env.network, key)
		if err != nil {
			return err
		}
		responses, runErr := plan.Run(cmd.Context(), env.log, c, p)
		resp := planCmdResponse{
			Plan: p.Name,
			Outcomes: []*plan.Outcome{{
				Account:   c.Address(),
				Responses: responses,
			}},
		}
		if runErr != nil {
			resp.Error = runErr.Error()
		}
		if err := printValue(cmd, resp); err != nil {
			return err
		}
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
