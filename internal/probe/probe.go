// Package probe answers whether a download's files are already present at a
// destination directory.
package probe

import (
	"path/filepath"

	"github.com/schell/privateer/internal/config"
	"github.com/schell/privateer/internal/ledger"
	"github.com/spf13/afero"
)

// ExistsAt reports whether the destination has a configured directory and a
// filesystem entry named name directly under it.
func ExistsAt(fsys afero.Fs, settings config.Settings, dest ledger.Destination, name string) bool {
	dir := settings.DirFor(dest)
	if dir == "" || name == "" {
		return false
	}

	ok, err := afero.Exists(fsys, filepath.Join(dir, name))

	return err == nil && ok
}

// Detect probes destinations in priority order (Movies before Shows) and
// returns the first one holding the named item. It only ever adopts state; an
// explicit user destination choice is never contradicted by it.
func Detect(fsys afero.Fs, settings config.Settings, name string) (ledger.Destination, bool) {
	for _, dest := range ledger.Destinations {
		if ExistsAt(fsys, settings, dest, name) {
			return dest, true
		}
	}

	return "", false
}
