package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dennisdiepolder/cdrstats/internal/ingestion"
	"github.com/dennisdiepolder/cdrstats/internal/metrics"
	"github.com/dennisdiepolder/cdrstats/internal/notify"
	"github.com/dennisdiepolder/cdrstats/internal/report"
	"github.com/dennisdiepolder/cdrstats/internal/storage"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var reportFlags struct {
	asOf     string
	month    string
	offset   string
	jsonPath string
	xlsxPath string
	noColor  bool
	slack    string
	store    bool
}

var reportCmd = &cobra.Command{
	Use:   "report <export.csv|export.xlsx>",
	Short: "Print the usage report for one export",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

func init() {
	f := reportCmd.Flags()
	f.StringVar(&reportFlags.asOf, "as-of", "", "run time the relative windows hang off (RFC3339 or YYYY-MM-DD)")
	f.StringVar(&reportFlags.month, "month", "", "fixed month window (YYYY-MM)")
	f.StringVar(&reportFlags.offset, "offset", "", "UTC offset the export was written in, e.g. -05:00")
	f.StringVar(&reportFlags.jsonPath, "json", "", "also write the report as JSON to this file")
	f.StringVar(&reportFlags.xlsxPath, "xlsx", "", "also write the report as an XLSX workbook to this file")
	f.BoolVar(&reportFlags.noColor, "no-color", false, "disable coloured output")
	f.StringVar(&reportFlags.slack, "slack-channel", "", "post the report to this Slack channel")
	f.BoolVar(&reportFlags.store, "store", false, "save the run to the configured store")
}

func runReport(cmd *cobra.Command, args []string) error {
	if reportFlags.asOf != "" {
		cfg.AsOf = reportFlags.asOf
	}
	if reportFlags.month != "" {
		cfg.Month = reportFlags.month
	}
	if reportFlags.offset != "" {
		cfg.UTCOffset = reportFlags.offset
	}
	if reportFlags.slack != "" {
		cfg.SlackChannel = reportFlags.slack
	}
	if err := cfg.Resolve(); err != nil {
		return err
	}

	path := args[0]
	src, err := ingestion.OpenSource(path)
	if err != nil {
		return err
	}
	defer src.Close()

	rep, err := report.Generate(src, reportParams(cfg, filepath.Base(path)), log.Logger)
	if err != nil {
		return err
	}

	color := !reportFlags.noColor && isatty.IsTerminal(os.Stdout.Fd())
	if err := report.WriteText(cmd.OutOrStdout(), rep, report.TextOptions{Color: color}); err != nil {
		return err
	}

	if reportFlags.jsonPath != "" {
		if err := writeFile(reportFlags.jsonPath, rep, report.WriteJSON); err != nil {
			return err
		}
	}
	if reportFlags.xlsxPath != "" {
		if err := writeFile(reportFlags.xlsxPath, rep, report.WriteXLSX); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if reportFlags.store {
		if err := saveRun(ctx, rep); err != nil {
			return err
		}
	}

	if cfg.SlackChannel != "" && cfg.SlackBotToken != "" {
		n := notify.NewSlackNotifier(cfg.SlackBotToken, cfg.SlackChannel, log.Logger)
		if err := n.Notify(ctx, rep); err != nil {
			log.Warn().Err(err).Msg("failed to post report to Slack")
		}
	} else if reportFlags.slack != "" {
		log.Warn().Msg("SLACK_BOT_TOKEN not set, skipping Slack delivery")
	}

	snap := metrics.Get().Snapshot()
	ev := log.Debug().
		Int64("rows_read", snap.RowsRead).
		Dur("duration", snap.LastRunDuration)
	for category, n := range snap.Events {
		ev = ev.Int64("events_"+category, n)
	}
	ev.Msg("run metrics")
	return nil
}

func saveRun(ctx context.Context, rep *report.Report) error {
	store, err := storage.NewStore(ctx, storage.LoadConfig(), log.Logger)
	if err != nil {
		return err
	}
	defer store.Close()

	run, numbers, daily := rep.Records()
	return store.SaveReport(ctx, run, numbers, daily)
}

func writeFile(path string, rep *report.Report, write func(w io.Writer, r *report.Report) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f, rep); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Info().Str("path", path).Msg("report written")
	return nil
}
