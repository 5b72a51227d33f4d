package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Outcome describes how a delivery was resolved.
type Outcome string

const (
	// OutcomeDelayed means the delivery is incomplete and the file was
	// hidden pending the rest of the batch.
	OutcomeDelayed Outcome = "delayed"

	// OutcomeSuppressed means a directory delivery matched a queue
	// entry the instance will import on its own, so no scan was sent.
	OutcomeSuppressed Outcome = "suppressed"

	// OutcomeImported means an import scan bound to a downloadId was
	// accepted.
	OutcomeImported Outcome = "imported"

	// OutcomeImportedByPath means an import scan without a downloadId
	// was accepted.
	OutcomeImportedByPath Outcome = "imported_by_path"

	// OutcomeRefreshed means a refresh-mode rescan was accepted.
	OutcomeRefreshed Outcome = "refreshed"

	// OutcomeSkippedSmall means the file was under the configured
	// minimum size and was ignored.
	OutcomeSkippedSmall Outcome = "skipped_small"
)

// Delivery describes one completed file movement to reconcile.
type Delivery struct {
	SourcePath       string
	DestPath         string
	IntermediateRoot string
	ImportRoot       string
	SourcesRemoved   bool
}

// Result reports how a delivery was reconciled.
type Result struct {
	Outcome    Outcome
	DestBase   string
	AbsDest    string
	Remaining  int
	DownloadID string

	// QueueRemoved is set when an extension-mismatched queue entry was
	// removed before the path-only import.
	QueueRemoved bool
}

// Reconciler drives the import-mode decision for one instance: delay
// incomplete batch deliveries, restore hidden files once complete,
// match the delivery against the download queue, and dispatch the
// import scan.
type Reconciler struct {
	backend Backend
	logger  *slog.Logger
}

// NewReconciler creates a reconciler over the given backend.
func NewReconciler(backend Backend, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{backend: backend, logger: logger}
}

// Process reconciles one delivery.
func (r *Reconciler) Process(ctx context.Context, d Delivery) (*Result, error) {
	paths, err := ReconstructPaths(d.SourcePath, d.DestPath, d.IntermediateRoot, d.ImportRoot)
	if err != nil {
		return nil, err
	}

	isDir := r.isDirDelivery(paths)
	logger := r.logger.With(
		slog.String("dest", paths.AbsDest),
		slog.Bool("dir", isDir),
	)
	logger.Debug("reconciling delivery", slog.String("source", paths.AbsSource))

	result := &Result{DestBase: paths.DestBase, AbsDest: paths.AbsDest}

	// Delayed-import accounting only applies to directory deliveries
	// and only when the mover stages through a separate directory.
	if isDir && d.IntermediateRoot != d.ImportRoot {
		delayed, err := r.reconcileBatch(d, paths, result, logger)
		if err != nil {
			return nil, err
		}
		if delayed {
			result.Outcome = OutcomeDelayed
			return result, nil
		}
	}

	records, err := r.backend.Queue(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching queue: %w", err)
	}

	match := MatchQueue(records, paths.DestBase, isDir)
	downloadID := ""
	if match.Found {
		logger.Debug("queue match",
			slog.String("title", match.Record.Title),
			slog.Bool("extension_match", match.ExtensionMatch),
		)

		if match.ExtensionMatch || !r.backend.RemoveOnExtensionMismatch() {
			downloadID = match.Record.DownloadID
		} else {
			// An ID-bound import would be refused, and the entry would
			// sit in the queue forever. Remove it and import by path.
			if err := r.backend.RemoveQueueItem(ctx, match.Record.ID); err != nil {
				logger.Warn("failed to remove mismatched queue entry",
					slog.Int64("queue_id", match.Record.ID),
					slog.String("error", err.Error()),
				)
			} else {
				result.QueueRemoved = true
				logger.Info("removed queue entry with mismatched extension",
					slog.Int64("queue_id", match.Record.ID),
				)
			}
		}
	}
	result.DownloadID = downloadID

	if downloadID != "" && isDir && r.backend.SuppressDirImport() {
		logger.Info("suppressing import trigger, instance imports matched directories automatically")
		result.Outcome = OutcomeSuppressed
		return result, nil
	}

	if err := r.backend.ImportScan(ctx, paths.AbsDest, downloadID); err != nil {
		return nil, fmt.Errorf("import scan for %s: %w", paths.AbsDest, err)
	}

	if downloadID != "" {
		logger.Info("queued import", slog.String("download_id", downloadID))
		result.Outcome = OutcomeImported
	} else {
		logger.Info("queued import by path")
		result.Outcome = OutcomeImportedByPath
	}
	return result, nil
}

// reconcileBatch decides whether a directory delivery is still in
// flight. Returns true when notification must be delayed.
func (r *Reconciler) reconcileBatch(d Delivery, paths Paths, result *Result, logger *slog.Logger) (bool, error) {
	srcCount, err := CountVisibleFiles(paths.AbsSource)
	if err != nil {
		return false, err
	}
	dstCount, err := CountVisibleFiles(paths.AbsDest)
	if err != nil {
		return false, err
	}

	// When the mover deletes sources, delivery is complete once the
	// source side is empty. Otherwise it is complete when the counts
	// are equal.
	remaining := srcCount - dstCount
	if d.SourcesRemoved {
		remaining = srcCount
	}
	result.Remaining = remaining

	logger.Debug("batch accounting",
		slog.Int("source_files", srcCount),
		slog.Int("dest_files", dstCount),
		slog.Int("remaining", remaining),
	)

	if remaining > 0 {
		hidden, err := Hide(d.DestPath)
		if err != nil {
			return false, err
		}
		logger.Info("delaying import until delivery completes",
			slog.Int("remaining", remaining),
			slog.String("hidden", hidden),
		)
		return true, nil
	}

	restored, err := UnhideAll(paths.AbsDest)
	if err != nil {
		return false, err
	}
	logger.Info("delivery complete, restored hidden files", slog.Int("restored", len(restored)))
	return false, nil
}

// isDirDelivery reports whether the delivered item is a directory. The
// source side is authoritative; when the mover has already removed it,
// the destination side decides.
func (r *Reconciler) isDirDelivery(paths Paths) bool {
	if info, err := os.Stat(paths.AbsSource); err == nil {
		return info.IsDir()
	}
	if info, err := os.Stat(paths.AbsDest); err == nil {
		return info.IsDir()
	}
	return false
}
