// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// operatorfilter runs a filter registry node and administers it over
// JSON-RPC.
package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ava-labs/hypersdk/x/operatorfilter/api"
	"github.com/ava-labs/hypersdk/x/operatorfilter/policy"
)

var (
	_ policy.Source = (*api.Client)(nil)
	_ policy.Target = (*api.Client)(nil)

	v = viper.New()

	configFile string
	nodeURI    string
	keyFile    string

	rootCmd = &cobra.Command{
		Use:           "operatorfilter",
		Short:         "Operator filter registry node and client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a config file")
	rootCmd.PersistentFlags().StringVar(&nodeURI, "uri", "http://127.0.0.1:9650", "node to call")
	rootCmd.PersistentFlags().StringVar(&keyFile, "key", "", "private key file used to sign requests")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode key %s: %w", path, err)
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("key %s has %d bytes, expected %d", path, len(key), ed25519.PrivateKeySize)
	}
	return ed25519.PrivateKey(key), nil
}

// newClient signs requests when --key is set
func newClient() (*api.Client, error) {
	if keyFile == "" {
		return api.NewClient(nodeURI, nil), nil
	}
	key, err := loadKey(keyFile)
	if err != nil {
		return nil, err
	}
	return api.NewClient(nodeURI, key), nil
}
