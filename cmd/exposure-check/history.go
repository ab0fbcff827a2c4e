package main

import (
	"exposure/internal/export"
	"exposure/internal/utils"
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history <domain>",
		Short: "Show archived reports for a domain with the changes between runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStorage(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			domain := utils.NormalizeDomain(args[0])
			diffs, err := store.GetHistoryWithDiffs(ctx, domain)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return export.WriteJSON(out, diffs)
			}

			if len(diffs) == 0 {
				fmt.Fprintf(out, "No archived reports for %s\n", domain)
				return nil
			}
			for _, d := range diffs {
				_, _ = bannerColor.Fprintln(out, d.Entry.Timestamp)
				if d.Diff == "" {
					fmt.Fprintln(out, "initial report")
					continue
				}
				fmt.Fprint(out, d.Diff)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries and diffs as JSON")
	return cmd
}
