package ledger_test

import (
	"testing"

	"github.com/schell/privateer/internal/ledger"
	"github.com/stretchr/testify/assert"
)

func TestFind(t *testing.T) {
	entries := []ledger.Entry{
		{Hash: "ABC123", Name: "first"},
		{Hash: "def456", Name: "second"},
	}

	tests := []struct {
		name      string
		hash      string
		wantIdx   int
		wantFound bool
	}{
		{"exact match", "ABC123", 0, true},
		{"case-insensitive match", "abc123", 0, true},
		{"second entry", "DEF456", 1, true},
		{"missing", "999", 0, false},
		{"empty hash", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, found := ledger.Find(entries, tt.hash)
			assert.Equal(t, tt.wantFound, found)

			if tt.wantFound {
				assert.Equal(t, tt.wantIdx, idx)
			}
		})
	}
}

func TestNeedsCopy(t *testing.T) {
	tests := []struct {
		state ledger.CopyState
		want  bool
	}{
		{ledger.StateNotCopied, true},
		{ledger.StateFailed, true},
		{ledger.StateCopying, false},
		{ledger.StateCopied, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			e := ledger.Entry{CopyState: tt.state}
			assert.Equal(t, tt.want, e.NeedsCopy())
		})
	}
}

func TestDestination(t *testing.T) {
	assert.True(t, ledger.DestinationMovies.Valid())
	assert.True(t, ledger.DestinationShows.Valid())
	assert.False(t, ledger.Destination("music").Valid())
	assert.False(t, ledger.Destination("").Valid())

	assert.Equal(t, "Movies", ledger.DestinationMovies.Label())
	assert.Equal(t, "Shows", ledger.DestinationShows.Label())
}
