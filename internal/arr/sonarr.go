package arr

import (
	"context"
	"fmt"
	"net/url"
)

// Sonarr is the Sonarr v3 API client.
type Sonarr struct {
	*Client
}

// NewSonarr wraps a base client with Sonarr-specific operations.
func NewSonarr(c *Client) *Sonarr {
	return &Sonarr{Client: c}
}

// ParseTitle asks Sonarr to parse a release title and match it to a
// known series. The result's Series is nil when nothing matched.
func (s *Sonarr) ParseTitle(ctx context.Context, title string) (*ParseResult, error) {
	query := url.Values{}
	query.Set("title", title)

	var result ParseResult
	if err := s.getJSON(ctx, "/parse", query, &result); err != nil {
		return nil, fmt.Errorf("parsing title: %w", err)
	}
	return &result, nil
}

// EpisodeFiles lists the media files Sonarr currently tracks for a series.
func (s *Sonarr) EpisodeFiles(ctx context.Context, seriesID int64) ([]EpisodeFile, error) {
	query := url.Values{}
	query.Set("seriesId", fmt.Sprint(seriesID))

	var files []EpisodeFile
	if err := s.getJSON(ctx, "/episodefile", query, &files); err != nil {
		return nil, fmt.Errorf("fetching episode files: %w", err)
	}
	return files, nil
}

// DownloadedEpisodesScan asks Sonarr to import a completed download.
// When downloadID is non-empty the scan is bound to that grab so Sonarr
// can clear the matching queue entry.
func (s *Sonarr) DownloadedEpisodesScan(ctx context.Context, path, downloadID string) error {
	fields := map[string]any{"path": path}
	if downloadID != "" {
		fields["downloadClientId"] = downloadID
	}
	_, err := s.Command(ctx, "DownloadedEpisodesScan", fields)
	return err
}

// RescanSeries triggers a disk rescan of one series.
func (s *Sonarr) RescanSeries(ctx context.Context, seriesID int64) error {
	_, err := s.Command(ctx, "RescanSeries", map[string]any{"seriesId": seriesID})
	return err
}

// RenameFiles renames the given episode files to the configured naming
// scheme.
func (s *Sonarr) RenameFiles(ctx context.Context, seriesID int64, fileIDs []int64) error {
	_, err := s.Command(ctx, "RenameFiles", map[string]any{
		"seriesId": seriesID,
		"files":    fileIDs,
	})
	return err
}
