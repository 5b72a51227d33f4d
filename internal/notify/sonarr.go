package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arrhook/arrhook/internal/arr"
)

// sonarrRenameSettle is how long a rescan gets to complete before the
// rename pass runs. Sonarr needs longer than Radarr here.
const sonarrRenameSettle = 10 * time.Second

// SonarrBackend adapts a Sonarr client to the Backend interface.
type SonarrBackend struct {
	api    *arr.Sonarr
	logger *slog.Logger

	// settle is swappable so tests do not sleep.
	settle func(time.Duration)
}

// NewSonarrBackend creates a Sonarr-backed notifier backend.
func NewSonarrBackend(api *arr.Sonarr, logger *slog.Logger) *SonarrBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &SonarrBackend{api: api, logger: logger, settle: time.Sleep}
}

func (b *SonarrBackend) Kind() string { return "sonarr" }

// Sonarr imports named directories automatically; a scan on top of
// that double-imports.
func (b *SonarrBackend) SuppressDirImport() bool { return true }

// Sonarr matches remuxed files despite the extension change, so the
// queue entry clears itself.
func (b *SonarrBackend) RemoveOnExtensionMismatch() bool { return false }

func (b *SonarrBackend) Queue(ctx context.Context) ([]QueueRecord, error) {
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

func (b *SonarrBackend) ImportScan(ctx context.Context, path, downloadID string) error {
	return b.api.DownloadedEpisodesScan(ctx, path, downloadID)
}

func (b *SonarrBackend) RemoveQueueItem(ctx context.Context, id int64) error {
	return b.api.RemoveQueueItems(ctx, []int64{id})
}

// Refresh parses the delivered basename into a series, rescans it, and
// optionally renames its files once the rescan has had time to finish.
func (b *SonarrBackend) Refresh(ctx context.Context, basename string, renameFiles bool) error {
	parsed, err := b.api.ParseTitle(ctx, basename)
	if err != nil {
		return fmt.Errorf("parsing title %q: %w", basename, err)
	}
	if parsed.Series == nil || parsed.Series.ID == 0 {
		return fmt.Errorf("no series matched title %q", basename)
	}
	seriesID := parsed.Series.ID

	if err := b.api.RescanSeries(ctx, seriesID); err != nil {
		return fmt.Errorf("rescanning series %d: %w", seriesID, err)
	}
	b.logger.Info("queued series rescan",
		slog.Int64("series_id", seriesID),
		slog.String("series", parsed.Series.Title),
	)

	if !renameFiles {
		return nil
	}

	b.settle(sonarrRenameSettle)

	files, err := b.api.EpisodeFiles(ctx, seriesID)
	if err != nil {
		return fmt.Errorf("listing episode files for series %d: %w", seriesID, err)
	}
	fileIDs := make([]int64, len(files))
	for i, f := range files {
		fileIDs[i] = f.ID
	}

	if err := b.api.RenameFiles(ctx, seriesID, fileIDs); err != nil {
		return fmt.Errorf("renaming files for series %d: %w", seriesID, err)
	}
	b.logger.Info("queued file rename",
		slog.Int64("series_id", seriesID),
		slog.Int("files", len(fileIDs)),
	)
	return nil
}
