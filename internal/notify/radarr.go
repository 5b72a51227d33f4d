package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arrhook/arrhook/internal/arr"
)

// radarrRenameSettle is how long a refresh gets to complete before the
// rename pass runs.
const radarrRenameSettle = 3 * time.Second

// RadarrBackend adapts a Radarr client to the Backend interface.
type RadarrBackend struct {
	api    *arr.Radarr
	logger *slog.Logger

	// settle is swappable so tests do not sleep.
	settle func(time.Duration)
}

// NewRadarrBackend creates a Radarr-backed notifier backend.
func NewRadarrBackend(api *arr.Radarr, logger *slog.Logger) *RadarrBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &RadarrBackend{api: api, logger: logger, settle: time.Sleep}
}

func (b *RadarrBackend) Kind() string { return "radarr" }

func (b *RadarrBackend) SuppressDirImport() bool { return false }

// Radarr refuses ID-bound imports when the delivered extension differs
// from the grabbed one, leaving the queue entry stuck.
func (b *RadarrBackend) RemoveOnExtensionMismatch() bool { return true }

func (b *RadarrBackend) Queue(ctx context.Context) ([]QueueRecord, error) {
	records, err := b.api.Queue(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]QueueRecord, len(records))
	for i, r := range records {
		out[i] = QueueRecord{ID: r.ID, Title: r.Title, DownloadID: r.DownloadID, OutputPath: r.OutputPath}
	}
	return out, nil
}

func (b *RadarrBackend) ImportScan(ctx context.Context, path, downloadID string) error {
	return b.api.DownloadedMoviesScan(ctx, path, downloadID)
}

func (b *RadarrBackend) RemoveQueueItem(ctx context.Context, id int64) error {
	return b.api.RemoveQueueItems(ctx, []int64{id})
}

// Refresh looks up the delivered basename as a movie, refreshes it, and
// optionally renames its files once the refresh has had time to finish.
func (b *RadarrBackend) Refresh(ctx context.Context, basename string, renameFiles bool) error {
	movie, err := b.api.LookupMovie(ctx, basename)
	if err != nil {
		return fmt.Errorf("looking up movie %q: %w", basename, err)
	}
	if movie == nil {
		return fmt.Errorf("no library movie matched %q", basename)
	}

	if err := b.api.RefreshMovie(ctx, movie.ID); err != nil {
		return fmt.Errorf("refreshing movie %d: %w", movie.ID, err)
	}
	b.logger.Info("queued movie refresh",
		slog.Int64("movie_id", movie.ID),
		slog.String("movie", movie.Title),
	)

	if !renameFiles {
		return nil
	}

	b.settle(radarrRenameSettle)

	if err := b.api.RenameMovie(ctx, movie.ID); err != nil {
		return fmt.Errorf("renaming movie %d: %w", movie.ID, err)
	}
	b.logger.Info("queued movie rename", slog.Int64("movie_id", movie.ID))
	return nil
}
