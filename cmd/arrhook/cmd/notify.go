package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/arrhook/arrhook/internal/database"
	"github.com/arrhook/arrhook/internal/history"
	"github.com/arrhook/arrhook/internal/httpclient"
	"github.com/arrhook/arrhook/internal/models"
	"github.com/arrhook/arrhook/internal/notify"
)

var notifyInstances []string

// notifyCmd delivers one completion event without running the server.
var notifyCmd = &cobra.Command{
	Use:   "notify SOURCE DEST [DEST...]",
	Short: "Deliver a one-shot completion event",
	Long: `Deliver a completion event for an already-finished task directly from
the command line, without going through the webhook API.

SOURCE is the task's original source file. Every DEST is a destination
file the task produced.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runNotify,
}

func init() {
	rootCmd.AddCommand(notifyCmd)

	notifyCmd.Flags().StringSliceVar(&notifyInstances, "instance", nil, "instance names to notify (default all)")
}

func runNotify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := slog.Default()
	sourcePath, destPaths := args[0], args[1:]

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

	selected := make(map[string]bool, len(notifyInstances))
	for _, name := range notifyInstances {
		selected[name] = true
	}

	ctx := cmd.Context()
	failed := 0
	for _, inst := range cfg.Instances() {
		if len(selected) > 0 && !selected[inst.Name] {
			continue
		}

		notifier, err := notify.NewNotifier(inst, client, logger)
		if err != nil {
			return fmt.Errorf("instance %s: %w", inst.Name, err)
		}

		for _, r := range notifier.HandleCompleted(ctx, sourcePath, destPaths) {
			recordResult(ctx, store, logger, inst.Name, inst.Kind, sourcePath, r)

			if r.Err != nil {
				failed++
				fmt.Printf("%s: %s: error: %v\n", inst.Name, r.Path, r.Err)
				continue
			}
			fmt.Printf("%s: %s: %s\n", inst.Name, r.Path, r.Result.Outcome)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d delivery(ies) failed", failed)
	}
	return nil
}

func recordResult(ctx context.Context, store *history.Store, logger *slog.Logger, instance, kind, sourcePath string, r notify.FileResult) {
	event := &models.Event{
		Instance:   instance,
		Kind:       kind,
		SourcePath: sourcePath,
		DestPath:   r.Path,
	}
	if r.Err != nil {
		event.Outcome = "failed"
		event.Detail = r.Err.Error()
	} else {
		event.Outcome = string(r.Result.Outcome)
		event.DownloadID = r.Result.DownloadID
	}

	if err := store.Record(ctx, event); err != nil {
		logger.Warn("failed to record event", slog.String("error", err.Error()))
	}
}
