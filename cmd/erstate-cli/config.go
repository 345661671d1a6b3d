// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ava-labs/erstate/codec"
	"github.com/ava-labs/erstate/config"
	"github.com/ava-labs/erstate/crypto/ed25519"
)

func init() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error getting home directory:", err)
		os.Exit(1)
	}

	configDir := filepath.Join(homeDir, ".erstate-cli")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "Error creating config directory:", err)
		os.Exit(1)
	}

	configFile := filepath.Join(configDir, "config.yaml")
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if _, err := os.Create(configFile); err != nil {
			fmt.Fprintln(os.Stderr, "Error creating config file:", err)
			os.Exit(1)
		}
	}

	// Set config name and paths
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)

	// Read config
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintln(os.Stderr, "Error reading config:", err)
			os.Exit(1)
		}
		// Config file not found; will be created when needed
	}
}

func isJSONOutputRequested(cmd *cobra.Command) (bool, error) {
	output, err := getConfigValue(cmd, "output", false)
	if err != nil {
		return false, fmt.Errorf("failed to get output format: %w", err)
	}
	return strings.ToLower(output) == "json", nil
}

func printValue(cmd *cobra.Command, v fmt.Stringer) error {
	isJSON, err := isJSONOutputRequested(cmd)
	if err != nil {
		return err
	}

	if isJSON {
		jsonBytes, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(jsonBytes))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), v.String())
	return nil
}

func getConfigValue(cmd *cobra.Command, key string, required bool) (string, error) {
	// Check flags first
	if value, err := cmd.Flags().GetString(key); err == nil && value != "" {
		return value, nil
	}

	// Then check viper
	if value := viper.GetString(key); value != "" {
		return value, nil
	}

	if required {
		return "", fmt.Errorf("required value for %s not found", key)
	}

	return "", nil
}

func setConfigValue(key, value string) error {
	viper.Set(key, value)
	return viper.WriteConfig()
}

// loadConfig reads the configuration from defaults, the config file, the
// environment and finally the flags and the stored CLI settings.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := getConfigValue(cmd, "config-file", false)
	if err != nil {
		return nil, err
	}
	c, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	for key, field := range map[string]*string{
		"base-url":   &c.BaseURL,
		"rollup-url": &c.RollupURL,
		"log-level":  &c.LogLevel,
		"log-dir":    &c.LogDir,
		"key":        &c.OwnerKey,
	} {
		value, err := getConfigValue(cmd, key, false)
		if err != nil {
			return nil, err
		}
		if value != "" {
			*field = value
		}
	}
	return c, c.Verify()
}

// ownerKey is the configured key, or a fresh one when none is configured.
func ownerKey(c *config.Config) (ed25519.PrivateKey, error) {
	if c.OwnerKey == "" {
		return ed25519.GeneratePrivateKey()
	}
	return ed25519.PrivateKeyFromHex(c.OwnerKey)
}

// ownerAddress is [args][0] if given, else the address of the configured
// key.
func ownerAddress(c *config.Config, args []string) (codec.Address, error) {
	if len(args) > 0 {
		return codec.StringToAddress(args[0])
	}
	if c.OwnerKey == "" {
		return codec.EmptyAddress, errors.New("required value for key not found")
	}
	key, err := ed25519.PrivateKeyFromHex(c.OwnerKey)
	if err != nil {
		return codec.EmptyAddress, fmt.Errorf("failed to decode key: %w", err)
	}
	return key.Address(), nil
}
