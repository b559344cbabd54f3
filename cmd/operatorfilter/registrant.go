// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ava-labs/hypersdk/x/operatorfilter/addresses"
)

var (
	subscribeTo string
	copyFrom    string
	remove      bool
	copyOnLeave bool
	assumeYes   bool
)

func init() {
	registerCmd.Flags().StringVar(&subscribeTo, "subscribe", "", "subscribe to this registrant on registration")
	registerCmd.Flags().StringVar(&copyFrom, "copy-from", "", "copy this registrant's lists on registration")
	registerCmd.MarkFlagsMutuallyExclusive("subscribe", "copy-from")

	unregisterCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
	filterOperatorsCmd.Flags().BoolVar(&remove, "remove", false, "unfilter instead of filter")
	filterCodeHashesCmd.Flags().BoolVar(&remove, "remove", false, "unfilter instead of filter")
	unsubscribeCmd.Flags().BoolVar(&copyOnLeave, "copy", false, "keep a copy of the inherited lists")

	rootCmd.AddCommand(
		registerCmd,
		unregisterCmd,
		filterOperatorsCmd,
		filterCodeHashesCmd,
		subscribeCmd,
		unsubscribeCmd,
		copyEntriesCmd,
		showCmd,
		allowedCmd,
		codeHashCmd,
	)
}

var registerCmd = &cobra.Command{
	Use:   "register <registrant>",
	Short: "Register a registrant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registrant, err := addresses.Parse(args[0])
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}

		switch {
		case subscribeTo != "":
			target, err := addresses.Parse(subscribeTo)
			if err != nil {
				return err
			}
			return client.RegisterAndSubscribe(cmd.Context(), registrant, target)
		case copyFrom != "":
			source, err := addresses.Parse(copyFrom)
			if err != nil {
				return err
			}
			return client.RegisterAndCopyEntries(cmd.Context(), registrant, source)
		default:
			return client.Register(cmd.Context(), registrant)
		}
	},
}

var unregisterCmd = &cobra.Command{
	Use:   "unregister <registrant>",
	Short: "Unregister a registrant permanently",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registrant, err := addresses.Parse(args[0])
		if err != nil {
			return err
		}
		if !assumeYes {
			prompt := promptui.Prompt{
				Label:     fmt.Sprintf("Unregister %s? It can never register again", args[0]),
				IsConfirm: true,
			}
			if _, err := prompt.Run(); err != nil {
				if errors.Is(err, promptui.ErrAbort) {
					return errors.New("aborted")
				}
				return err
			}
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		return client.Unregister(cmd.Context(), registrant)
	},
}

var filterOperatorsCmd = &cobra.Command{
	Use:   "filter-operators <registrant> <operator>...",
	Short: "Filter operators for a registrant",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		registrant, err := addresses.Parse(args[0])
		if err != nil {
			return err
		}
		operators, err := addresses.ParseAll(args[1:])
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		return client.UpdateOperators(cmd.Context(), registrant, operators, !remove)
	},
}

var filterCodeHashesCmd = &cobra.Command{
	Use:   "filter-code-hashes <registrant> <code hash>...",
	Short: "Filter code hashes for a registrant",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		registrant, err := addresses.Parse(args[0])
		if err != nil {
			return err
		}
		codeHashes, err := addresses.ParseCodeHashes(args[1:])
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		return client.UpdateCodeHashes(cmd.Context(), registrant, codeHashes, !remove)
	},
}

var subscribeCmd = &cobra.Command{
	Use:   "subscribe <registrant> <target>",
	Short: "Inherit the lists of another registrant",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		parsed, err := addresses.ParseAll(args)
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		return client.Subscribe(cmd.Context(), parsed[0], parsed[1])
	},
}

var unsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe <registrant>",
	Short: "Stop inheriting lists",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registrant, err := addresses.Parse(args[0])
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		return client.Unsubscribe(cmd.Context(), registrant, copyOnLeave)
	},
}

var copyEntriesCmd = &cobra.Command{
	Use:   "copy-entries <registrant> <source>",
	Short: "Copy the lists of another registrant",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		parsed, err := addresses.ParseAll(args)
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		return client.CopyEntriesOf(cmd.Context(), parsed[0], parsed[1])
	},
}

var showCmd = &cobra.Command{
	Use:   "show <registrant>",
	Short: "Print a registrant's record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registrant, err := addresses.Parse(args[0])
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		registered, err := client.IsRegistered(ctx, registrant)
		if err != nil {
			return err
		}
		subscription, subscribed, err := client.SubscriptionOf(ctx, registrant)
		if err != nil {
			return err
		}
		subscribers, err := client.Subscribers(ctx, registrant)
		if err != nil {
			return err
		}
		operators, err := client.FilteredOperators(ctx, registrant)
		if err != nil {
			return err
		}
		codeHashes, err := client.FilteredCodeHashes(ctx, registrant)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "registered:   %t\n", registered)
		if subscribed {
			fmt.Fprintf(out, "subscription: %s\n", addresses.Format(subscription))
		}
		fmt.Fprintf(out, "subscribers:  %d\n", len(subscribers))
		fmt.Fprintln(out, "operators:")
		for _, operator := range operators {
			fmt.Fprintf(out, "  %s\n", addresses.Format(operator))
		}
		fmt.Fprintln(out, "code hashes:")
		for _, codeHash := range codeHashes {
			fmt.Fprintf(out, "  %s\n", addresses.FormatCodeHash(codeHash))
		}
		return nil
	},
}

var allowedCmd = &cobra.Command{
	Use:   "allowed <registrant> <operator>",
	Short: "Check whether an operator may transfer for a registrant",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		parsed, err := addresses.ParseAll(args)
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		allowed, err := client.IsOperatorAllowed(cmd.Context(), parsed[0], parsed[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), allowed)
		return nil
	},
}

var codeHashCmd = &cobra.Command{
	Use:   "code-hash <account>",
	Short: "Print the code hash of an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		account, err := addresses.Parse(args[0])
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		codeHash, err := client.CodeHashOf(cmd.Context(), account)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), addresses.FormatCodeHash(codeHash))
		return nil
	},
}
