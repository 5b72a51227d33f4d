package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/arrhook/arrhook/internal/database"
	"github.com/arrhook/arrhook/internal/history"
	"github.com/arrhook/arrhook/internal/httpclient"
	"github.com/arrhook/arrhook/internal/notify"
	"github.com/arrhook/arrhook/internal/sweeper"
)

// sweepCmd runs one sweep pass over dangling deliveries.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Re-reconcile dangling hidden deliveries once",
	Long: `Scan the import roots of delay-enabled instances for deliveries that
still contain hidden sentinel files and replay their reconciliation.

The serve command runs this on a schedule; sweep runs a single pass
and exits.`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
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
	processors := make([]sweeper.DeliveryProcessor, 0, len(instances))
	for _, inst := range instances {
		notifier, err := notify.NewNotifier(inst, client, logger)
		if err != nil {
			return fmt.Errorf("instance %s: %w", inst.Name, err)
		}
		processors = append(processors, notifier)
	}

	sw, err := sweeper.New(processors, store, cfg.Sweep, logger)
	if err != nil {
		return fmt.Errorf("initializing sweeper: %w", err)
	}

	swept := sw.Sweep(cmd.Context())
	fmt.Printf("swept %d dangling delivery(ies)\n", swept)
	return nil
}
