package main

import (
	"exposure/internal/service"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newWatchCmd(opts *options) *cobra.Command {
	var (
		schedule string
		once     bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-check monitored domains on a cron schedule and archive changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := openStorage(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			collector, err := newCollector(opts.cfg)
			if err != nil {
				return err
			}
			sched := service.NewScheduler(store, collector)

			if once {
				n := sched.RunMonitorJob(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "Archived %d changed report(s)\n", n)
				return nil
			}

			if schedule == "" {
				schedule = opts.cfg.Schedule
			}
			if err := sched.Start(schedule); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Watching monitored domains on %q, press Ctrl+C to stop\n", schedule)

			<-ctx.Done()
			sched.Stop()
			return nil
		},
	}

	cmd.Flags().StringVar(&schedule, "schedule", "", "cron spec (default from EXPOSURE_SCHEDULE)")
	cmd.Flags().BoolVar(&once, "once", false, "run the monitor job once and exit")
	return cmd
}
