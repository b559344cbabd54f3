// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ava-labs/hypersdk/x/operatorfilter/addresses"
	"github.com/ava-labs/hypersdk/x/operatorfilter/config"
	"github.com/ava-labs/hypersdk/x/operatorfilter/policy"
	"github.com/ava-labs/hypersdk/x/operatorfilter/registry"
	"github.com/ava-labs/hypersdk/x/operatorfilter/storage"
)

var (
	batchSize          int
	registrantOverride string
	maxOperators       int
	maxCodeHashes      int
)

func init() {
	policyApplyCmd.Flags().IntVar(&batchSize, "batch-size", 256, "entries per update request")
	policyApplyCmd.Flags().StringVar(&registrantOverride, "registrant", "", "apply to this registrant instead of the file's")
	policyApplyCmd.Flags().IntVar(&maxOperators, "max-operators", 0, "reject files listing more operators (0 is unbounded)")
	policyApplyCmd.Flags().IntVar(&maxCodeHashes, "max-code-hashes", 0, "reject files listing more code hashes (0 is unbounded)")
	policyCmd.AddCommand(policyExportCmd, policyApplyCmd)
	rootCmd.AddCommand(policyCmd, deployCodeCmd)
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Export and apply curated filter lists",
}

var policyExportCmd = &cobra.Command{
	Use:   "export <registrant> <file>",
	Short: "Write a registrant's lists to a YAML file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		registrant, err := addresses.Parse(args[0])
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		p, err := policy.Export(cmd.Context(), client, registrant)
		if err != nil {
			return err
		}
		return policy.WriteFile(args[1], p)
	},
}

var policyApplyCmd = &cobra.Command{
	Use:   "apply <file>",
	Short: "Apply the lists of a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := policy.ReadFile(args[0])
		if err != nil {
			return err
		}
		if registrantOverride != "" {
			p.Registrant = registrantOverride
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		limits := policy.WithinLimits(registry.Limits{
			MaxFilteredOperators:  maxOperators,
			MaxFilteredCodeHashes: maxCodeHashes,
		})
		return policy.Apply(cmd.Context(), client, p, batchSize, limits)
	},
}

var deployCodeCmd = &cobra.Command{
	Use:   "deploy-code <contract id> <code file> [account]",
	Short: "Store contract code in a stopped node's database and bind it to an account",
	Long: "Stores the code under the contract ID and binds it to account, or to a " +
		"newly derived account when none is given. The node must not be running.",
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v, configFile)
		if err != nil {
			return err
		}
		log, err := cfg.Logger()
		if err != nil {
			return err
		}
		code, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}

		db, err := storage.OpenPebble(cfg.DataDir, log)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		contracts := storage.NewContractStore(storage.NewPrefixed(db, contractsPrefix))
		contractID := storage.ContractID(args[0])
		if err := contracts.SetContractBytes(ctx, contractID, code); err != nil {
			return err
		}

		if len(args) == 3 {
			account, err := addresses.Parse(args[2])
			if err != nil {
				return err
			}
			if err := contracts.SetAccountContract(ctx, account, contractID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), addresses.Format(account))
			return nil
		}
		account, err := contracts.NewAccountWithContract(ctx, contractID, []byte(args[1]))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), addresses.Format(account))
		return nil
	},
}
