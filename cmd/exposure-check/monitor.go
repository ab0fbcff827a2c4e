package main

import (
	"exposure/internal/utils"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
)

func newMonitorCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Manage the domains checked by watch",
	}

	add := &cobra.Command{
		Use:   "add <domain>...",
		Short: "Add domains to the monitored list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStorage(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			for _, arg := range args {
				domain := utils.NormalizeDomain(arg)
				if !utils.IsValidDomain(domain) {
					return errors.Errorf("invalid domain %q", arg)
				}
				if err := store.AddMonitoredItem(ctx, domain); err != nil {
					return err
				}
				_, _ = successColor.Fprintf(cmd.OutOrStdout(), "Monitoring %s\n", domain)
			}
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove <domain>...",
		Short: "Remove domains from the monitored list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStorage(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			for _, arg := range args {
				domain := utils.NormalizeDomain(arg)
				if err := store.RemoveMonitoredItem(ctx, domain); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stopped monitoring %s\n", domain)
			}
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Print the monitored domains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStorage(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			items, err := store.GetMonitoredItems(ctx)
			if err != nil {
				return err
			}
			for _, item := range items {
				fmt.Fprintln(cmd.OutOrStdout(), item)
			}
			return nil
		},
	}

	cmd.AddCommand(add, remove, list)
	return cmd
}
