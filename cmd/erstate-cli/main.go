// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "erstate-cli",
	Short: "Drive state accounts between a base ledger and a rollup",
	Long: `A CLI application that creates state accounts on a base ledger, delegates
them to a rollup, commits their state back and closes them.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(0)
}

func init() {
	rootCmd.PersistentFlags().StringP("output", "o", "text", "Output format (text or json)")
	rootCmd.PersistentFlags().String("config-file", "", "YAML file overlaid on the default configuration")
	rootCmd.PersistentFlags().String("base-url", "", "Override the base ledger endpoint")
	rootCmd.PersistentFlags().String("rollup-url", "", "Override the rollup endpoint")
	rootCmd.PersistentFlags().String("key", "", "Private ED25519 key as hex string")
	rootCmd.PersistentFlags().String("log-level", "", "Log level")
	rootCmd.PersistentFlags().String("log-dir", "", "Directory log files are written to")
}

func main() {
	Execute()
}
