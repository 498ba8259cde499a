package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dennisdiepolder/cdrstats/internal/api"
	"github.com/dennisdiepolder/cdrstats/internal/auth"
	"github.com/dennisdiepolder/cdrstats/internal/ingestion"
	"github.com/dennisdiepolder/cdrstats/internal/metrics"
	"github.com/dennisdiepolder/cdrstats/internal/notify"
	"github.com/dennisdiepolder/cdrstats/internal/report"
	"github.com/dennisdiepolder/cdrstats/internal/schedule"
	"github.com/dennisdiepolder/cdrstats/internal/storage"
	"github.com/dennisdiepolder/cdrstats/internal/websocket"
	"github.com/dennisdiepolder/cdrstats/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve [export.csv|export.xlsx]",
	Short: "Serve reports over HTTP, optionally seeded with one export",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServe,
}

func runServe(_ *cobra.Command, args []string) error {
	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Str("utc_offset", cfg.UTCOffset).
		Str("month", cfg.Month).
		Str("schedule", cfg.Schedule).
		Msg("starting cdrstats server")

	// Create context for services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewStore(ctx, storage.LoadConfig(), log.Logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	authn, err := auth.NewAuthenticator(ctx, log.Logger)
	if err != nil {
		return err
	}

	// Create WebSocket hub for live report events
	hub := websocket.NewHub(log.Logger)
	go hub.Run(ctx)

	notifier := api.Notifiers{hub}
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		notifier = append(notifier, notify.NewSlackNotifier(cfg.SlackBotToken, cfg.SlackChannel, log.Logger))
	}

	reports := api.NewReportHandler(func() report.Params {
		return reportParams(cfg, "")
	}, store, notifier, log.Logger)
	runs := api.NewRunsHandler(store, log.Logger)

	if len(args) == 1 {
		path := args[0]
		if err := publishExport(ctx, path, reports); err != nil {
			return err
		}

		if cfg.Schedule != "" {
			sched, err := schedule.New(cfg.Schedule, cfg.Location, func(ctx context.Context) error {
				return publishExport(ctx, path, reports)
			}, log.Logger)
			if err != nil {
				return err
			}
			go sched.Run(ctx)
		}
	} else if cfg.Schedule != "" {
		log.Warn().Str("schedule", cfg.Schedule).Msg("schedule set without an export file, ignoring")
	}

	ws := websocket.NewHandler(hub, cfg.AllowedOrigins, log.Logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(cfg.AllowedOrigins, authn, reports, runs, ws),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}

// publishExport builds a report from the export at path and publishes it as
// the latest. The export is reread each time so the windows follow the clock.
func publishExport(ctx context.Context, path string, reports *api.ReportHandler) error {
	src, err := ingestion.OpenSource(path)
	if err != nil {
		return err
	}
	defer src.Close()

	rep, err := report.Generate(src, reportParams(cfg, filepath.Base(path)), log.Logger)
	if err != nil {
		return err
	}

	if err := reports.Publish(ctx, rep); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func newRouter(allowedOrigins []string, authn *auth.Authenticator, reports *api.ReportHandler, runs *api.RunsHandler, ws http.Handler) http.Handler {
	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(allowedOrigins))

	// Register public routes (no auth required)
	r.Get("/health", healthHandler)
	r.Get("/metrics", metrics.Get().Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(authn.Middleware)

		r.Get("/report", reports.GetReport)
		r.Get("/report/daily", reports.GetDaily)
		r.Get("/report/numbers/{number}", reports.GetNumber)
		r.Post("/reports", reports.Upload)

		r.Get("/runs", runs.ListRuns)
		r.Get("/runs/{runId}", runs.GetRun)
		r.Get("/runs/{runId}/numbers", runs.GetNumbers)
		r.Get("/runs/{runId}/daily", runs.GetDaily)
		r.With(auth.RequireRole(auth.RoleAdmin)).Delete("/runs/{runId}", runs.DeleteRun)

		r.Get("/ws", ws.ServeHTTP)
	})

	return r
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"cdrstats"}`)
}
