// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ava-labs/hypersdk/x/operatorfilter/addresses"
	"github.com/ava-labs/hypersdk/x/operatorfilter/api"
)

func init() {
	rootCmd.AddCommand(keygenCmd, addressCmd)
}

var keygenCmd = &cobra.Command{
	Use:   "keygen <file>",
	Short: "Generate a signing key and print its address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(args[0]); err == nil {
			return fmt.Errorf("%s already exists", args[0])
		}
		publicKey, privateKey, err := ed25519.GenerateKey(nil)
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[0], []byte(hex.EncodeToString(privateKey)), 0o600); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), addresses.Format(api.CallerAddress(publicKey)))
		return nil
	},
}

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the address of the --key signing key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		key, err := loadKey(keyFile)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), addresses.Format(api.CallerAddress(key.Public().(ed25519.PublicKey))))
		return nil
	},
}
