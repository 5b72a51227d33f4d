package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arrhook/arrhook/internal/config"
	"github.com/arrhook/arrhook/internal/database"
	"github.com/arrhook/arrhook/internal/ffmpeg"
	"github.com/arrhook/arrhook/internal/history"
	internalhttp "github.com/arrhook/arrhook/internal/http"
	"github.com/arrhook/arrhook/internal/http/handlers"
	"github.com/arrhook/arrhook/internal/httpclient"
	"github.com/arrhook/arrhook/internal/notify"
	"github.com/arrhook/arrhook/internal/remux"
	"github.com/arrhook/arrhook/internal/sweeper"
	"github.com/arrhook/arrhook/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the arrhook server",
	Long: `Start the arrhook HTTP server and API.

The server provides:
- Completion event webhooks for post-processing pipelines
- A delivery history API
- Health check endpoints
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8484, "Port to listen on")
	serveCmd.Flags().String("database", "arrhook.db", "Database DSN")

	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("database.dsn", serveCmd.Flags().Lookup("database"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := slog.Default()

	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	store := history.NewStore(db)

	client := httpclient.New(httpclient.OptionsFromConfig(cfg.Client, logger))

	instances := cfg.Instances()
	notifiers := make([]handlers.CompletionNotifier, 0, len(instances))
	processors := make([]sweeper.DeliveryProcessor, 0, len(instances))
	for _, inst := range instances {
		notifier, err := notify.NewNotifier(inst, client, logger)
		if err != nil {
			return fmt.Errorf("instance %s: %w", inst.Name, err)
		}
		notifiers = append(notifiers, notifier)
		processors = append(processors, notifier)
		logger.Info("configured instance",
			slog.String("name", inst.Name),
			slog.String("kind", inst.Kind),
			slog.String("mode", inst.Mode),
		)
	}

	detector := buildDetector(cfg.Remux, logger)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	if cfg.Sweep.Enabled {
		sw, err := sweeper.New(processors, store, cfg.Sweep, logger)
		if err != nil {
			return fmt.Errorf("initializing sweeper: %w", err)
		}
		sw.Start(ctx)
		defer sw.Stop()
		logger.Info("sweeper started", slog.String("schedule", cfg.Sweep.Schedule))
	}

	server := internalhttp.NewServer(cfg.Server, logger, version.Version)

	healthHandler := handlers.NewHealthHandler(version.Version).WithDB(db).WithHTTPClient(client)
	healthHandler.Register(server.API())

	eventsHandler := handlers.NewEventsHandler(notifiers, store, detector, logger).
		WithRemuxOptions(remux.Options{
			DownmixFormula: cfg.Remux.DownmixFormula,
			Faststart:      cfg.Remux.Faststart,
		})
	eventsHandler.Register(server.API())

	historyHandler := handlers.NewHistoryHandler(store)
	historyHandler.Register(server.API())

	logger.Info("starting arrhook server",
		slog.String("host", cfg.Server.Host),
		slog.Int("port", cfg.Server.Port),
		slog.String("version", version.Version),
	)

	return server.ListenAndServe(ctx)
}

// buildDetector wires the container fix detector, or returns nil when
// ffprobe cannot be found.
func buildDetector(cfg config.RemuxConfig, logger *slog.Logger) *remux.Detector {
	tools := ffmpeg.NewTools(cfg)
	path, err := tools.FFprobe()
	if err != nil {
		logger.Warn("ffprobe not available, container fix detection disabled",
			slog.String("error", err.Error()),
		)
		return nil
	}

	prober := ffmpeg.NewProber(path).WithTimeout(cfg.ProbeTimeout)
	return remux.NewDetector(prober)
}
