package config_test

import (
	"context"
	"testing"

	"github.com/schell/privateer/internal/config"
	"github.com/schell/privateer/internal/ledger"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const settingsPath = "/data/config.json"

func TestSettingsLoad_Defaults(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(fs afero.Fs)
	}{
		{"missing file", func(afero.Fs) {}},
		{"corrupt file", func(fs afero.Fs) {
			_ = afero.WriteFile(fs, settingsPath, []byte("!!"), 0o600)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			tt.prepare(fs)

			store := config.NewSettingsStore(fs, settingsPath)
			settings := store.Load(context.Background())

			assert.Equal(t, config.DefaultTransmissionHost, settings.Transmission.Host)
			assert.Equal(t, uint16(config.DefaultTransmissionPort), settings.Transmission.Port)
			assert.Empty(t, settings.MoviesDir)
			assert.Empty(t, settings.ShowsDir)
		})
	}
}

func TestSettingsSaveLoad_Roundtrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := config.NewSettingsStore(fs, settingsPath)
	ctx := context.Background()

	settings := config.Settings{
		Transmission: config.TransmissionSettings{
			Host:     "nas.local",
			Port:     9092,
			Username: "user",
			Password: "pass",
		},
		MoviesDir: "/media/movies",
		ShowsDir:  "/media/shows",
	}

	require.NoError(t, store.Save(ctx, settings))
	assert.Equal(t, settings, store.Load(ctx))
}

func TestSettingsSave_ReadOnlyFs(t *testing.T) {
	store := config.NewSettingsStore(afero.NewReadOnlyFs(afero.NewMemMapFs()), settingsPath)

	err := store.Save(context.Background(), config.DefaultSettings())
	require.Error(t, err)

	var serr *config.SettingsError
	assert.ErrorAs(t, err, &serr)
}

func TestDirFor(t *testing.T) {
	settings := config.Settings{MoviesDir: "/media/movies", ShowsDir: "/media/shows"}

	assert.Equal(t, "/media/movies", settings.DirFor(ledger.DestinationMovies))
	assert.Equal(t, "/media/shows", settings.DirFor(ledger.DestinationShows))
	assert.Empty(t, settings.DirFor(ledger.Destination("music")))
}
