package main

import (
	"context"
	"exposure/internal/config"
	"exposure/internal/service"
	"exposure/internal/storage"
	"exposure/internal/utils"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
)

var errNoArchive = errors.New("report archive is not configured, set EXPOSURE_REDIS_ADDR")

// newCollector is replaced in tests.
var newCollector = func(cfg *config.Config) (service.ReportCollector, error) {
	return service.NewCollector(cfg)
}

type options struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	var (
		domain string
		format string
	)

	root := &cobra.Command{
		Use:          "exposure-check",
		Short:        "Collect WHOIS, ARIN and certificate transparency data for a domain",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			if err := utils.InitLogger(cfg.LogLevel); err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			collector, err := newCollector(opts.cfg)
			if err != nil {
				return err
			}

			archive, err := openStorage(ctx, opts.cfg)
			switch {
			case errors.Is(err, errNoArchive):
			case err != nil:
				utils.Log.Warn("report archive unavailable", utils.Field("error", err.Error()))
			default:
				defer func() { _ = archive.Close() }()
			}

			s := &session{
				In:        cmd.InOrStdin(),
				Out:       cmd.OutOrStdout(),
				Collector: collector,
				Archive:   archive,
				OutputDir: opts.cfg.OutputDir,
				Domain:    domain,
				Format:    format,
			}
			return s.Run(ctx)
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (default: environment only)")
	root.Flags().StringVarP(&domain, "domain", "d", "", "domain to check instead of prompting")
	root.Flags().StringVarP(&format, "export", "e", "", "export format (json/csv) instead of prompting")

	root.AddCommand(newMonitorCmd(opts), newWatchCmd(opts), newHistoryCmd(opts))
	return root
}

// openStorage connects to the archive. It returns errNoArchive when no
// address is configured and a nil store with every other error.
func openStorage(ctx context.Context, cfg *config.Config) (*storage.Storage, error) {
	if !cfg.ArchiveEnabled() {
		return nil, errNoArchive
	}
	s := storage.NewStorage(cfg.Redis.Addr, cfg.Redis.DB)
	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, errors.Wrapf(err, "connect to redis at %s", cfg.Redis.Addr)
	}
	return s, nil
}
