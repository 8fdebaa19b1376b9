// Package reconcile corrects the ledger against observed reality: copies done
// out of band, and completed downloads that predate tracking.
package reconcile

import (
	"context"

	"github.com/schell/privateer/internal/config"
	"github.com/schell/privateer/internal/ledger"
	"github.com/schell/privateer/internal/logctx"
	"github.com/schell/privateer/internal/probe"
	"github.com/schell/privateer/internal/transmission"
	"github.com/spf13/afero"
)

type Reconciler struct {
	fs    afero.Fs
	store *ledger.Store
}

func New(fs afero.Fs, store *ledger.Store) *Reconciler {
	return &Reconciler{fs: fs, store: store}
}

// Run cross-references live daemon status against the ledger and returns the
// possibly-extended entry slice. Two corrections are applied:
//
//   - a tracked entry still pending a copy whose files already sit at its
//     destination is marked copied (manual or out-of-band copy);
//   - a complete, untracked torrent found at some destination is adopted as a
//     new copied entry with the detected destination.
//
// Entries already copying or copied are left alone, and destinations are
// never changed. Any mutation is persisted once before returning, so
// reconciliation survives a failing copy phase. Running twice with the same
// inputs mutates nothing the second time.
func (r *Reconciler) Run(
	ctx context.Context,
	settings config.Settings,
	entries []ledger.Entry,
	live []transmission.Torrent,
) []ledger.Entry {
	logger := logctx.LoggerFromContext(ctx)

	dirty := false

	for _, t := range live {
		if i, ok := ledger.Find(entries, t.Hash); ok {
			e := entries[i]
			if e.NeedsCopy() && probe.ExistsAt(r.fs, settings, e.Destination, e.Name) {
				logger.Info("files already at destination, marking copied",
					"name", e.Name, "destination", e.Destination.Label())

				entries[i].CopyState = ledger.StateCopied
				dirty = true
			}

			continue
		}

		if !t.Done() {
			continue
		}

		if dest, found := probe.Detect(r.fs, settings, t.Name); found {
			logger.Info("adopting untracked download found at destination",
				"name", t.Name, "destination", dest.Label())

			entries = append(entries, ledger.Entry{
				Hash:        t.Hash,
				Name:        t.Name,
				Destination: dest,
				CopyState:   ledger.StateCopied,
			})
			dirty = true
		}
	}

	if dirty {
		if err := r.store.Save(ctx, entries); err != nil {
			logger.Error("failed to persist reconciled ledger", "err", err)
		}
	}

	return entries
}
