// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ava-labs/erstate/crypto/ed25519"
	"github.com/ava-labs/erstate/ledger"
	"github.com/ava-labs/erstate/plan"
)

var lifecycleCmd = &cobra.Command{
	Use:   "lifecycle",
	Short: "Run a plan for many fresh accounts concurrently",
	RunE: func(cmd *cobra.Command, _ []string) error {
		accounts, err := cmd.Flags().GetInt("accounts")
		if err != nil {
			return err
		}
		parallelism, err := cmd.Flags().GetInt("parallelism")
		if err != nil {
			return err
		}
		path, err := cmd.Flags().GetString("plan")
		if err != nil {
			return err
		}
		if accounts <= 0 {
			return fmt.Errorf("accounts must be positive, got %d", accounts)
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

		owners := make([]ledger.Signer, accounts)
		for i := range owners {
			key, err := ed25519.GeneratePrivateKey()
			if err != nil {
				return err
			}
			owners[i] = key
		}
		outcomes, runErr := plan.RunMany(cmd.Context(), env.log, env.network, owners, p, parallelism)
		resp := planCmdResponse{
			Plan:     p.Name,
			Outcomes: outcomes,
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
	lifecycleCmd.Flags().Int("accounts", 1, "Number of accounts to run the plan for")
	lifecycleCmd.Flags().Int("parallelism", 0, "Accounts run at once (0 runs all at once)")
	lifecycleCmd.Flags().String("plan", "", "Plan file (json or yaml); the default lifecycle when empty")
	rootCmd.AddCommand(lifecycleCmd)
}
