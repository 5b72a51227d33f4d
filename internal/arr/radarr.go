package arr

import (
	"context"
	"fmt"
	"net/url"
)

// Radarr is the Radarr v3 API client.
type Radarr struct {
	*Client
}

// NewRadarr wraps a base client with Radarr-specific operations.
func NewRadarr(c *Client) *Radarr {
	return &Radarr{Client: c}
}

// LookupMovie searches Radarr's movie lookup for the given term and
// returns the first result that carries a library ID, or nil when no
// result is in the library.
func (r *Radarr) LookupMovie(ctx context.Context, term string) (*Movie, error) {
	query := url.Values{}
	query.Set("term", term)

	var results []Movie
	if err := r.getJSON(ctx, "/movie/lookup", query, &results); err != nil {
		return nil, fmt.Errorf("looking up movie: %w", err)
	}

	for i := range results {
		if results[i].ID != 0 {
			return &results[i], nil
		}
	}
	return nil, nil
}

// DownloadedMoviesScan asks Radarr to import a completed download. When
// downloadID is non-empty the scan is bound to that grab so Radarr can
// clear the matching queue entry.
func (r *Radarr) DownloadedMoviesScan(ctx context.Context, path, downloadID string) error {
	fields := map[string]any{"path": path}
	if downloadID != "" {
		fields["downloadClientId"] = downloadID
	}
	_, err := r.Command(ctx, "DownloadedMoviesScan", fields)
	return err
}

// RefreshMovie triggers a metadata refresh and disk rescan of one movie.
func (r *Radarr) RefreshMovie(ctx context.Context, movieID int64) error {
	_, err := r.Command(ctx, "RefreshMovie", map[string]any{"movieIds": []int64{movieID}})
	return err
}

// RenameMovie renames a movie's files to the configured naming scheme.
func (r *Radarr) RenameMovie(ctx context.Context, movieID int64) error {
	_, err := r.Command(ctx, "RenameMovie", map[string]any{"movieIds": []int64{movieID}})
	return err
}
