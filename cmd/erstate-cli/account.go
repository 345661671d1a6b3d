// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ava-labs/erstate/account"
	"github.com/ava-labs/erstate/codec"
	"github.com/ava-labs/erstate/controller"
	"github.com/ava-labs/erstate/ledger"
)

var accountCmd = &cobra.Command{
	Use:   "account [owner]",
	Short: "Read the state account of an owner from both venues",
	Long: `Read the state account of an owner from both venues. The owner defaults to
the address of the configured key.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		owner, err := ownerAddress(env.cfg, args)
		if err != nil {
			return err
		}
		addr := env.network.Deriver.Derive(owner)
		resp := accountCmdResponse{
			Owner:   owner,
			Address: addr,
		}
		for v, lc := range map[ledger.Venue]controller.VenueClient{
			ledger.Base:   env.network.Base,
			ledger.Rollup: env.network.Rollup,
		} {
			acct, err := lc.FetchAccount(cmd.Context(), addr)
			switch {
			case errors.Is(err, ledger.ErrAccountClosed):
				resp.Closed = true
				continue
			case errors.Is(err, ledger.ErrNotFound):
				continue
			case err != nil:
				return fmt.Errorf("failed to fetch account from %s: %w", v, err)
			}
			if v == ledger.Base {
				resp.Base = acct
			} else {
				resp.Rollup = acct
			}
		}
		return printValue(cmd, resp)
	},
}

type accountCmdResponse struct {
	Owner   codec.Address         `json:"owner"`
	Address codec.Address         `json:"address"`
	Base    *account.StateAccount `json:"base"`
	Rollup  *account.StateAccount `json:"rollup"`
	Closed  bool                  `json:"closed"`
}

func formatAccount(acct *account.StateAccount) string {
	if acct == nil {
		return "not found"
	}
	return fmt.Sprintf("data=%d random=%d round=%d %s validator=%s",
		acct.Data,
		acct.Random.Value,
		acct.Random.Round,
		acct.Delegation,
		acct.Validator,
	)
}

func (r accountCmdResponse) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "owner: %s\n", r.Owner)
	fmt.Fprintf(&sb, "address: %s\n", r.Address)
	if r.Closed {
		sb.WriteString("closed\n")
	}
	fmt.Fprintf(&sb, "base: %s\n", formatAccount(r.Base))
	fmt.Fprintf(&sb, "rollup: %s", formatAccount(r.Rollup))
	return sb.String()
}

func init() {
	rootCmd.AddCommand(accountCmd)
}
