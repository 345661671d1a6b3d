// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ava-labs/erstate/crypto/ed25519"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage keys",
}

var keyGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new key and store it in the CLI config",
	RunE: func(cmd *cobra.Command, _ []string) error {
		key, err := ed25519.GeneratePrivateKey()
		if err != nil {
			return fmt.Errorf("failed to generate key: %w", err)
		}
		if err := setConfigValue("key", key.Hex()); err != nil {
			return fmt.Errorf("failed to update config: %w", err)
		}
		return printValue(cmd, keyCmdResponse{
			Address: key.Address().String(),
		})
	},
}

var keyAddressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print current key address",
	RunE: func(cmd *cobra.Command, _ []string) error {
		keyString, err := getConfigValue(cmd, "key", true)
		if err != nil {
			return fmt.Errorf("failed to get key: %w", err)
		}
		key, err := ed25519.PrivateKeyFromHex(keyString)
		if err != nil {
			return fmt.Errorf("failed to decode key: %w", err)
		}
		return printValue(cmd, keyCmdResponse{
			Address: key.Address().String(),
		})
	},
}

type keyCmdResponse struct {
	Address string `json:"address"`
}

func (r keyCmdResponse) String() string {
	return r.Address
}

func init() {
	keyCmd.AddCommand(keyGenerateCmd, keyAddressCmd)
	rootCmd.AddCommand(keyCmd)
}
