package probe_test

import (
	"testing"

	"github.com/schell/privateer/internal/config"
	"github.com/schell/privateer/internal/ledger"
	"github.com/schell/privateer/internal/probe"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExistsAt(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/media/movies/Some.Movie.2024", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/media/shows/Some.Show.S01.mkv", []byte("x"), 0o644))

	settings := config.Settings{MoviesDir: "/media/movies", ShowsDir: "/media/shows"}

	tests := []struct {
		name     string
		settings config.Settings
		dest     ledger.Destination
		item     string
		want     bool
	}{
		{"directory present", settings, ledger.DestinationMovies, "Some.Movie.2024", true},
		{"file present", settings, ledger.DestinationShows, "Some.Show.S01.mkv", true},
		{"absent", settings, ledger.DestinationMovies, "Other.Movie", false},
		{"wrong destination", settings, ledger.DestinationShows, "Some.Movie.2024", false},
		{"destination not configured", config.Settings{}, ledger.DestinationMovies, "Some.Movie.2024", false},
		{"empty name", settings, ledger.DestinationMovies, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, probe.ExistsAt(fs, tt.settings, tt.dest, tt.item))
		})
	}
}

func TestDetect(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/media/movies/InBoth", 0o755))
	require.NoError(t, fs.MkdirAll("/media/shows/InBoth", 0o755))
	require.NoError(t, fs.MkdirAll("/media/shows/OnlyShow", 0o755))

	settings := config.Settings{MoviesDir: "/media/movies", ShowsDir: "/media/shows"}

	t.Run("movies wins when present in both", func(t *testing.T) {
		dest, found := probe.Detect(fs, settings, "InBoth")
		require.True(t, found)
		assert.Equal(t, ledger.DestinationMovies, dest)
	})

	t.Run("falls through to shows", func(t *testing.T) {
		dest, found := probe.Detect(fs, settings, "OnlyShow")
		require.True(t, found)
		assert.Equal(t, ledger.DestinationShows, dest)
	})

	t.Run("not found anywhere", func(t *testing.T) {
		_, found := probe.Detect(fs, settings, "Nowhere")
		assert.False(t, found)
	})
}
