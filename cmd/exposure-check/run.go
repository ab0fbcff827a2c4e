package main

import (
	"bufio"
	"context"
	"exposure/internal/export"
	"exposure/internal/service"
	"exposure/internal/storage"
	"exposure/internal/utils"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/go-faster/errors"
)

var (
	bannerColor  = color.New(color.FgHiCyan, color.Bold)
	successColor = color.New(color.FgHiGreen)
	warnColor    = color.New(color.FgHiYellow)
)

// session is one interactive collection run.
type session struct {
	In        io.Reader
	Out       io.Writer
	Collector service.ReportCollector
	Archive   *storage.Storage // optional
	OutputDir string

	// Domain and Format skip their prompts when set.
	Domain string
	Format string
}

func (s *session) Run(ctx context.Context) error {
	in := bufio.NewReader(s.In)
	_, _ = bannerColor.Fprintln(s.Out, "Welcome to Exposure-Check")

	domain := s.Domain
	if domain == "" {
		fmt.Fprint(s.Out, "Enter the domain: ")
		line, err := readLine(in)
		if err != nil {
			return errors.Wrap(err, "read domain")
		}
		domain = line
	}

	bar := utils.NewProgressBar(s.Out, service.CollectSteps)
	report := s.Collector.Collect(ctx, domain, bar.Print)

	if s.Archive != nil {
		if _, err := s.Archive.AddReportHistory(ctx, domain, report); err != nil {
			utils.Log.Warn("failed to archive report", utils.Field("domain", domain), utils.Field("error", err.Error()))
		}
	}

	format, exporting := s.Format, s.Format != ""
	if !exporting {
		fmt.Fprintln(s.Out, "\nData collection complete. Would you like to export the results? (y/n)")
		answer, _ := readLine(in)
		if strings.ToLower(answer) == "y" {
			fmt.Fprintln(s.Out, "Please enter the export format (json/csv):")
			format, _ = readLine(in)
			exporting = true
		}
	}

	if !exporting {
		fmt.Fprintln(s.Out, "\nCollected Information:")
		if err := export.WriteJSON(s.Out, report); err != nil {
			return errors.Wrap(err, "encode report")
		}
		return nil
	}

	f := export.ParseFormat(format)
	stem := filepath.Join(s.OutputDir, domain+"_exposure_check")
	path, err := export.Export(report, stem, f)
	if err != nil {
		return err
	}
	if path == "" {
		_, _ = warnColor.Fprintf(s.Out, "Unsupported export format %q, nothing was exported\n", string(f))
		return nil
	}
	_, _ = successColor.Fprintf(s.Out, "Results exported to %s\n", path)
	return nil
}

// readLine returns the next line without its line ending. A final line
// without a newline is returned with a nil error.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
