// backend/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gewnthar/feargreed/backend/config"
	"github.com/gewnthar/feargreed/backend/database"
	"github.com/gewnthar/feargreed/backend/handlers"
	"github.com/gewnthar/feargreed/backend/scraper"
	"github.com/gewnthar/feargreed/backend/services"
	"github.com/gewnthar/feargreed/backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	cfg        *config.Config

	cleanupBefore string
	exportDays    int
	exportOut     string
)

var rootCmd = &cobra.Command{
	Use:           "feargreed",
	Short:         "Collects and serves the daily CNN Fear & Greed index",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}
		setupLogging(cfg.Log)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the scheduled jobs",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch and store today's value once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			res := a.ingest.IngestToday(ctx)
			printJSON(res.Outcome, res.Record)
			return resultError(res.Outcome, res.Err)
		})
	},
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Store every date in the provider's historical series that is not stored yet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			res := a.ingest.IngestHistory(ctx)
			printJSON(res.Outcome, map[string]int{"inserted": res.Inserted, "skipped": res.Skipped, "invalid": res.Invalid})
			return resultError(res.Outcome, res.Err)
		})
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete records older than the retention window (or --before)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			var (
				cutoff  time.Time
				deleted int64
				err     error
			)
			if cleanupBefore != "" {
				cutoff, err = utils.ParseDate(cleanupBefore)
				if err != nil {
					return err
				}
				deleted, err = a.retention.PurgeOlderThan(ctx, cutoff)
			} else {
				cutoff, deleted, err = a.retention.PurgeExpired(ctx)
			}
			if err != nil {
				return err
			}
			printJSON(services.OutcomePurged, map[string]any{"cutoff": utils.FormatDate(cutoff), "deleted": deleted})
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import-csv FILE",
	Short: "Load date,value,sentiment[,timestamp] rows from a CSV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			res := a.ingest.ImportCSV(ctx, f)
			printJSON(res.Outcome, map[string]int{"inserted": res.Inserted, "skipped": res.Skipped, "invalid": res.Invalid})
			return resultError(res.Outcome, res.Err)
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export-csv",
	Short: "Write the last N days as CSV",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			if exportOut == "" || exportOut == "-" {
				return a.query.ExportCSV(ctx, os.Stdout, exportDays)
			}
			f, err := os.Create(exportOut)
			if err != nil {
				return err
			}
			if err := a.query.ExportCSV(ctx, f, exportDays); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.yaml (defaults to ./config.yaml or ./config/config.yaml)")
	cleanupCmd.Flags().StringVar(&cleanupBefore, "before", "", "Delete records dated before YYYY-MM-DD instead of the retention cutoff")
	exportCmd.Flags().IntVarP(&exportDays, "days", "d", 30, "Number of days to export, counting today")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (stdout when empty)")

	rootCmd.AddCommand(serveCmd, fetchCmd, backfillCmd, cleanupCmd, importCmd, exportCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("feargreed failed")
		stop()
		os.Exit(1)
	}
}

func setupLogging(lc config.LogConfig) {
	level, err := zerolog.ParseLevel(lc.Level)
	if err != nil || lc.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if lc.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	if level > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
}

// app wires the store, the source client and the services.
type app struct {
	store     *database.Store
	ingest    *services.IngestionService
	query     *services.QueryService
	retention *services.RetentionService
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	store, err := database.InitDB(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	client := scraper.NewClient(cfg.Source)
	// room for every resty attempt plus the store round trips
	fetchBudget := cfg.Source.Timeout*time.Duration(cfg.Source.RetryCount+1) + 5*time.Second
	ingest := services.NewIngestionService(store, client, fetchBudget)
	return &app{
		store:     store,
		ingest:    ingest,
		query:     services.NewQueryService(store, ingest),
		retention: services.NewRetentionService(store, cfg.Retention.Years),
	}, nil
}

func withApp(ctx context.Context, fn func(context.Context, *app) error) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.store.Close()
	// one-shot commands finish their write even if interrupted
	return fn(context.WithoutCancel(ctx), a)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.store.Close()

	var scheduler *services.Scheduler
	if cfg.Schedule.Enabled {
		scheduler, err = services.NewScheduler(cfg.Schedule, a.ingest, a.retention)
		if err != nil {
			return err
		}
		scheduler.Start(context.WithoutCancel(ctx))
	}

	router := handlers.SetupRouter(cfg.Server, handlers.Dependencies{
		DB:        a.store,
		Query:     a.query,
		Ingest:    a.ingest,
		Retention: a.retention,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("error starting server: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down gracefully...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func printJSON(outcome services.Outcome, detail any) {
	out, _ := json.MarshalIndent(map[string]any{"outcome": outcome, "detail": detail}, "", "  ")
	fmt.Println(string(out))
}

func resultError(outcome services.Outcome, err error) error {
	if outcome.Succeeded() {
		return nil
	}
	if err == nil {
		err = errors.New(string(outcome))
	}
	return err
}
