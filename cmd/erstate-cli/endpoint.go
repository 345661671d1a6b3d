// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var endpointCmd = &cobra.Command{
	Use:   "endpoint",
	Short: "Show the venue endpoints",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return printValue(cmd, endpointCmdResponse{
			Base:   c.BaseURL,
			Rollup: c.RollupURL,
		})
	},
}

var endpointSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store the venue endpoints in the CLI config",
	RunE: func(cmd *cobra.Command, _ []string) error {
		resp := endpointCmdResponse{}
		for key, field := range map[string]*string{
			"base-url":   &resp.Base,
			"rollup-url": &resp.Rollup,
		} {
			value, err := cmd.Flags().GetString(key)
			if err != nil {
				return fmt.Errorf("failed to get %s flag: %w", key, err)
			}
			if value == "" {
				continue
			}
			if err := setConfigValue(key, value); err != nil {
				return fmt.Errorf("failed to update config: %w", err)
			}
			*field = value
		}
		if resp.Base == "" && resp.Rollup == "" {
			return errors.New("base-url or rollup-url is required")
		}
		return printValue(cmd, resp)
	},
}

type endpointCmdResponse struct {
	Base   string `json:"base,omitempty"`
	Rollup string `json:"rollup,omitempty"`
}

func (r endpointCmdResponse) String() string {
	return fmt.Sprintf("base: %s\nrollup: %s", r.Base, r.Rollup)
}

func init() {
	endpointCmd.AddCommand(endpointSetCmd)
	rootCmd.AddCommand(endpointCmd)
}
