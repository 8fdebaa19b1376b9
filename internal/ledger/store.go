package ledger

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/schell/privateer/internal/logctx"
	"github.com/spf13/afero"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Store is a whole-document JSON record of tracked downloads. It is read and
// written wholesale; there is no row-level persistence. Consistency with
// concurrent writers relies on every mutation being a fresh Load followed
// immediately by a Save.
type Store struct {
	fs   afero.Fs
	path string
}

func NewStore(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path}
}

// Load reads the backing file. A missing or unparsable ledger degrades to
// "nothing tracked" rather than blocking startup.
//
// Entries found in the copying state are demoted to failed: the process died
// mid-copy, and a failed entry is re-enqueued on the next cycle.
func (s *Store) Load(ctx context.Context) []Entry {
	logger := logctx.LoggerFromContext(ctx)

	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("failed to read ledger, starting empty", "path", s.path, "err", err)
		}

		return nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		logger.Warn("ledger is unparsable, starting empty", "path", s.path, "err", err)

		return nil
	}

	for i := range entries {
		if entries[i].CopyState == StateCopying {
			logger.Warn("found interrupted copy, marking failed for retry",
				"hash", entries[i].Hash, "name", entries[i].Name)

			entries[i].CopyState = StateFailed
		}
	}

	return entries
}

// Save serializes the full sequence and overwrites the backing file, creating
// parent directories as needed.
func (s *Store) Save(ctx context.Context, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, dirPerm); err != nil {
		return &PersistenceError{Op: "mkdir", Path: dir, Err: err}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "marshal", Path: s.path, Err: err}
	}

	if err := afero.WriteFile(s.fs, s.path, data, filePerm); err != nil {
		return &PersistenceError{Op: "write", Path: s.path, Err: err}
	}

	return nil
}

// Assign records a destination choice for a download, creating the entry if it
// is not tracked yet. Re-assigning an existing entry only moves its
// destination; copy progress is kept so an already-copied download is not
// copied again.
//
// The ledger is reloaded from disk first so a concurrent background cycle
// cannot be clobbered with stale contents.
func (s *Store) Assign(ctx context.Context, hash, name string, dest Destination) error {
	entries := s.Load(ctx)

	if i, ok := Find(entries, hash); ok {
		entries[i].Name = name
		entries[i].Destination = dest
	} else {
		entries = append(entries, Entry{
			Hash:        hash,
			Name:        name,
			Destination: dest,
			CopyState:   StateNotCopied,
		})
	}

	return s.Save(ctx, entries)
}
