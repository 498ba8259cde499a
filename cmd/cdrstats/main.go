package main

import (
	"os"
	"time"

	"github.com/dennisdiepolder/cdrstats/internal/classifier"
	"github.com/dennisdiepolder/cdrstats/internal/config"
	"github.com/dennisdiepolder/cdrstats/internal/report"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "cdrstats",
	Short:         "Usage reports from PBX call detail record exports",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		level, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil {
			log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
			level = zerolog.InfoLevel
		}
		zerolog.SetGlobalLevel(level)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd, serveCmd)
}

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("cdrstats failed")
		os.Exit(1)
	}
}

// reportParams maps the resolved configuration onto run parameters
func reportParams(c *config.Config, source string) report.Params {
	return report.Params{
		Source:        source,
		Location:      c.Location,
		Now:           c.AsOfTime,
		Month:         c.MonthStart,
		WeekDays:      c.WeekDays,
		RetentionDays: c.RetentionDays,
		GraceDays:     c.GraceDays,
		Rules: classifier.Rules{
			AttendantNumber: c.AttendantNumber,
			VoicePortalName: c.VoicePortalName,
		},
	}
}
