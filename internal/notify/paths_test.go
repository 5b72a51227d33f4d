package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconstructPaths(t *testing.T) {
	p, err := ReconstructPaths(
		"/scratch/tv/Some.Show.S01/Some.Show.S01E01.mkv",
		"/media/tv/Some.Show.S01/Some.Show.S01E01.mkv",
		"/scratch/tv",
		"/media/tv",
	)
	require.NoError(t, err)

	assert.Equal(t, "Some.Show.S01", p.SourceBase)
	assert.Equal(t, "Some.Show.S01", p.DestBase)
	assert.Equal(t, "/scratch/tv/Some.Show.S01", p.AbsSource)
	assert.Equal(t, "/media/tv/Some.Show.S01", p.AbsDest)
}

func TestReconstructPaths_SingleFile(t *testing.T) {
	p, err := ReconstructPaths(
		"/scratch/movies/Some.Movie.2024.mkv",
		"/media/movies/Some.Movie.2024.mkv",
		"/scratch/movies",
		"/media/movies",
	)
	require.NoError(t, err)

	assert.Equal(t, "Some.Movie.2024.mkv", p.DestBase)
	assert.Equal(t, "/media/movies/Some.Movie.2024.mkv", p.AbsDest)
}

func TestReconstructPaths_RejectsMisconfiguredRoots(t *testing.T) {
	tests := []struct {
		name             string
		sourcePath       string
		destPath         string
		intermediateRoot string
		importRoot       string
	}{
		{
			name:             "source outside intermediate root",
			sourcePath:       "/elsewhere/Some.Show.S01E01.mkv",
			destPath:         "/media/tv/Some.Show.S01E01.mkv",
			intermediateRoot: "/scratch/tv",
			importRoot:       "/media/tv",
		},
		{
			name:             "dest outside import root",
			sourcePath:       "/scratch/tv/Some.Show.S01E01.mkv",
			destPath:         "/elsewhere/Some.Show.S01E01.mkv",
			intermediateRoot: "/scratch/tv",
			importRoot:       "/media/tv",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReconstructPaths(tt.sourcePath, tt.destPath, tt.intermediateRoot, tt.importRoot)
			require.Error(t, err)

			var mismatch *RootMismatchError
			assert.ErrorAs(t, err, &mismatch)
		})
	}
}
