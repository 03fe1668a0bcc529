package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/insightdelivered/statement-categorizer/internal/api"
	"github.com/insightdelivered/statement-categorizer/internal/categorizer"
	"github.com/insightdelivered/statement-categorizer/internal/config"
	"github.com/insightdelivered/statement-categorizer/internal/extractor"
	"github.com/insightdelivered/statement-categorizer/internal/logger"
	"github.com/insightdelivered/statement-categorizer/internal/statement"
	"github.com/insightdelivered/statement-categorizer/internal/store"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, envFile)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file read before the environment")

	return cmd
}

func runServe(ctx context.Context, envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	log := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	cats, err := categorizer.NewStore(cfg.CategoriesFile, log)
	if err != nil {
		return fmt.Errorf("loading categories: %w", err)
	}
	if cfg.ReloadSchedule != "" {
		sched, err := cats.ScheduleReload(cfg.ReloadSchedule)
		if err != nil {
			return err
		}
		defer sched.Stop()
		log.Info().Str("schedule", cfg.ReloadSchedule).Msg("category reload scheduled")
	}

	results, err := openResults(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer results.Close()

	proc := statement.NewProcessor(
		extractor.NewPDFExtractor(log, cfg.OCR),
		cats,
		log,
		statement.WithTimeout(cfg.ParseTimeout),
	)
	app := api.NewApp(&api.Handler{
		Processor:      proc,
		Results:        results,
		Categories:     cats,
		Log:            log,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		StaticDir:      cfg.StaticDir,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr()).Str("version", api.Version).Msg("starting API server")
		errCh <- app.Listen(cfg.Addr())
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info().Msg("server exited")
	return nil
}

// openResults picks PostgreSQL when DATABASE_URL is set and keeps results
// in memory otherwise.
func openResults(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.ResultStore, error) {
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set, statements are kept in memory only")
		return store.NewMemory(), nil
	}
	pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return pg, nil
}
