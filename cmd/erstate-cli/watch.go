// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/ava-labs/erstate/codec"
	"github.com/ava-labs/erstate/ledger"
	"github.com/ava-labs/erstate/rpc"
)

var watchCmd = &cobra.Command{
	Use:   "watch [account]",
	Short: "Stream accepted transactions from a venue",
	Long: `Stream accepted transactions from a venue. Only events of [account] are
printed when it is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		venueName, err := cmd.Flags().GetString("venue")
		if err != nil {
			return err
		}
		var v ledger.Venue
		if err := v.UnmarshalText([]byte(venueName)); err != nil {
			return err
		}
		uri := c.BaseURL
		if v == ledger.Rollup {
			uri = c.RollupURL
			if c.RollupWSURL != "" {
				uri = c.RollupWSURL
			}
		}
		addr := codec.EmptyAddress
		if len(args) > 0 {
			if addr, err = codec.StringToAddress(args[0]); err != nil {
				return fmt.Errorf("failed to parse account: %w", err)
			}
		}

		client, err := rpc.NewWebSocketClient(cmd.Context(), uri, addr)
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", uri, err)
		}
		defer client.Close()
		go func() {
			<-cmd.Context().Done()
			_ = client.Close()
		}()

		for {
			e, err := client.ListenEvent()
			if err != nil {
				var closeErr *websocket.CloseError
				if errors.As(err, &closeErr) || cmd.Context().Err() != nil {
					return nil
				}
				return err
			}
			if err := printValue(cmd, eventCmdResponse{e}); err != nil {
				return err
			}
		}
	},
}

type eventCmdResponse struct {
	*rpc.EventMessage
}

func (r eventCmdResponse) String() string {
	return fmt.Sprintf("slot=%d %s %s %s %s", r.Slot, r.Venue, r.Op, r.Address, formatAccount(r.Account))
}

func init() {
	watchCmd.Flags().String("venue", ledger.Rollup.String(), "Venue to stream from (base or rollup)")
	rootCmd.AddCommand(watchCmd)
}
