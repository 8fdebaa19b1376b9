package ledger_test

import (
	"context"
	"testing"

	"github.com/schell/privateer/internal/ledger"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ledgerPath = "/data/downloads.json"

func TestLoad_MissingFile(t *testing.T) {
	store := ledger.NewStore(afero.NewMemMapFs(), ledgerPath)

	assert.Empty(t, store.Load(context.Background()))
}

func TestLoad_CorruptFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, ledgerPath, []byte("{not json"), 0o644))

	store := ledger.NewStore(fs, ledgerPath)

	assert.Empty(t, store.Load(context.Background()))
}

func TestSaveLoad_Roundtrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := ledger.NewStore(fs, ledgerPath)
	ctx := context.Background()

	entries := []ledger.Entry{
		{Hash: "abc", Name: "Some.Movie.2024", Destination: ledger.DestinationMovies, CopyState: ledger.StateCopied},
		{Hash: "def", Name: "Some.Show.S01", Destination: ledger.DestinationShows, CopyState: ledger.StateNotCopied},
	}

	require.NoError(t, store.Save(ctx, entries))
	assert.Equal(t, entries, store.Load(ctx))
}

func TestSave_CreatesParentDirs(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := ledger.NewStore(fs, "/deeply/nested/dir/downloads.json")

	require.NoError(t, store.Save(context.Background(), []ledger.Entry{{Hash: "a", Name: "x"}}))

	ok, err := afero.Exists(fs, "/deeply/nested/dir/downloads.json")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSave_ReadOnlyFs(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	store := ledger.NewStore(fs, ledgerPath)

	err := store.Save(context.Background(), nil)
	require.Error(t, err)

	var perr *ledger.PersistenceError
	assert.ErrorAs(t, err, &perr)
}

func TestLoad_InterruptedCopyBecomesFailed(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := ledger.NewStore(fs, ledgerPath)
	ctx := context.Background()

	entries := []ledger.Entry{
		{Hash: "abc", Name: "mid-flight", Destination: ledger.DestinationMovies, CopyState: ledger.StateCopying},
		{Hash: "def", Name: "done", Destination: ledger.DestinationShows, CopyState: ledger.StateCopied},
	}
	require.NoError(t, store.Save(ctx, entries))

	loaded := store.Load(ctx)
	require.Len(t, loaded, 2)
	assert.Equal(t, ledger.StateFailed, loaded[0].CopyState)
	assert.Equal(t, ledger.StateCopied, loaded[1].CopyState)
}

func TestAssign(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a new entry", func(t *testing.T) {
		store := ledger.NewStore(afero.NewMemMapFs(), ledgerPath)

		require.NoError(t, store.Assign(ctx, "abc", "Some.Movie", ledger.DestinationMovies))

		entries := store.Load(ctx)
		require.Len(t, entries, 1)
		assert.Equal(t, ledger.Entry{
			Hash:        "abc",
			Name:        "Some.Movie",
			Destination: ledger.DestinationMovies,
			CopyState:   ledger.StateNotCopied,
		}, entries[0])
	})

	t.Run("reassigns destination without resetting copy state", func(t *testing.T) {
		store := ledger.NewStore(afero.NewMemMapFs(), ledgerPath)

		require.NoError(t, store.Save(ctx, []ledger.Entry{
			{Hash: "abc", Name: "Some.Movie", Destination: ledger.DestinationMovies, CopyState: ledger.StateCopied},
		}))

		require.NoError(t, store.Assign(ctx, "ABC", "Some.Movie", ledger.DestinationShows))

		entries := store.Load(ctx)
		require.Len(t, entries, 1)
		assert.Equal(t, ledger.DestinationShows, entries[0].Destination)
		assert.Equal(t, ledger.StateCopied, entries[0].CopyState)
	})
}
