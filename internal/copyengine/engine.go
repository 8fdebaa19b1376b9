// Package copyengine drives the asynchronous, resumable copy of completed
// downloads into their destination directories.
package copyengine

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schell/privateer/internal/config"
	"github.com/schell/privateer/internal/ledger"
	"github.com/schell/privateer/internal/logctx"
	"github.com/schell/privateer/internal/telemetry"
	"github.com/schell/privateer/internal/transmission"
	"github.com/spf13/afero"
)

const (
	dirPerm      = 0o755
	eventBufSize = 16
)

type Engine struct {
	fs    afero.Fs
	store *ledger.Store
	tel   *telemetry.Telemetry

	OnCopyFinished chan ledger.Entry
	OnCopyFailed   chan ledger.Entry
}

func New(fs afero.Fs, store *ledger.Store, tel *telemetry.Telemetry) *Engine {
	return &Engine{
		fs:             fs,
		store:          store,
		tel:            tel,
		OnCopyFinished: make(chan ledger.Entry, eventBufSize),
		OnCopyFailed:   make(chan ledger.Entry, eventBufSize),
	}
}

func (e *Engine) Close() {
	close(e.OnCopyFinished)
	close(e.OnCopyFailed)
}

// Run processes every copy candidate once, sequentially, in ledger order. An
// entry is a candidate when it still needs a copy, the daemon knows it, the
// download is complete, and the daemon reports a source directory. The ledger
// is persisted after every state transition, one entry at a time, so a crash
// mid-batch loses at most the in-flight entry's final transition.
func (e *Engine) Run(
	ctx context.Context,
	settings config.Settings,
	entries []ledger.Entry,
	live []transmission.Torrent,
) []ledger.Entry {
	logger := logctx.LoggerFromContext(ctx)

	byHash := make(map[string]transmission.Torrent, len(live))
	for _, t := range live {
		byHash[strings.ToLower(t.Hash)] = t
	}

	for i := range entries {
		entry := entries[i]
		if !entry.NeedsCopy() {
			continue
		}

		t, ok := byHash[strings.ToLower(entry.Hash)]
		if !ok || !t.Done() || t.DownloadDir == "" {
			// Not an error: the download is unknown or still in flight.
			continue
		}

		destDir := settings.DirFor(entry.Destination)
		if destDir == "" {
			logger.Debug("destination not configured, skipping copy",
				"name", entry.Name, "destination", entry.Destination.Label())

			continue
		}

		e.copyEntry(ctx, entries, i, t.DownloadDir, destDir)
	}

	return entries
}

// copyEntry runs the state machine for a single entry, persisting the ledger
// on every transition.
func (e *Engine) copyEntry(ctx context.Context, entries []ledger.Entry, i int, sourceDir, destDir string) {
	logger := logctx.LoggerFromContext(ctx).With("name", entries[i].Name)

	src := filepath.Join(sourceDir, entries[i].Name)
	dst := filepath.Join(destDir, entries[i].Name)

	if ok, err := afero.Exists(e.fs, dst); err == nil && ok {
		logger.Info("destination already exists, marking copied", "dst", dst)

		e.transition(ctx, entries, i, ledger.StateCopied)
		e.tel.RecordCopy("preexisting", 0)
		e.emit(e.OnCopyFinished, entries[i])

		return
	}

	if ok, err := afero.Exists(e.fs, src); err != nil || !ok {
		// Leave the state alone; the source may not be mounted yet.
		logger.Warn("source not visible, skipping this cycle",
			"err", &SourceMissingError{Path: src})

		return
	}

	e.transition(ctx, entries, i, ledger.StateCopying)

	start := time.Now()

	written, err := e.copyTree(ctx, src, dst)
	if err != nil {
		logger.Error("copy failed, removing partial output", "dst", dst, "err", err)

		if rmErr := e.fs.RemoveAll(dst); rmErr != nil {
			logger.Error("failed to remove partial output", "dst", dst, "err", rmErr)
		}

		e.transition(ctx, entries, i, ledger.StateFailed)
		e.tel.RecordCopy("failed", time.Since(start))
		e.emit(e.OnCopyFailed, entries[i])

		return
	}

	logger.Info("copy finished",
		"dst", dst,
		"size", humanize.Bytes(uint64(written)),
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)

	e.transition(ctx, entries, i, ledger.StateCopied)
	e.tel.RecordCopy("copied", time.Since(start))
	e.tel.AddCopiedBytes(written)
	e.emit(e.OnCopyFinished, entries[i])
}

func (e *Engine) transition(ctx context.Context, entries []ledger.Entry, i int, state ledger.CopyState) {
	entries[i].CopyState = state

	if err := e.store.Save(ctx, entries); err != nil {
		// The in-memory state stays authoritative for the rest of the cycle;
		// the next successful save recovers the loss.
		logctx.LoggerFromContext(ctx).Error("failed to persist ledger", "err", err)
	}
}

// copyTree copies src to dst recursively, preserving directory structure. It
// walks with an explicit worklist rather than recursion so depth is bounded
// by the worklist, and returns the total bytes written.
func (e *Engine) copyTree(ctx context.Context, src, dst string) (int64, error) {
	info, err := e.fs.Stat(src)
	if err != nil {
		return 0, &CopyIOError{Op: "stat", Path: src, Err: err}
	}

	if !info.IsDir() {
		return e.copyFile(ctx, src, dst)
	}

	type job struct {
		src, dst string
	}

	var written int64

	work := []job{{src: src, dst: dst}}

	for len(work) > 0 {
		j := work[len(work)-1]
		work = work[:len(work)-1]

		if err := e.fs.MkdirAll(j.dst, dirPerm); err != nil {
			return written, &CopyIOError{Op: "mkdir", Path: j.dst, Err: err}
		}

		infos, err := afero.ReadDir(e.fs, j.src)
		if err != nil {
			return written, &CopyIOError{Op: "readdir", Path: j.src, Err: err}
		}

		for _, fi := range infos {
			s := filepath.Join(j.src, fi.Name())
			d := filepath.Join(j.dst, fi.Name())

			if fi.IsDir() {
				work = append(work, job{src: s, dst: d})

				continue
			}

			n, err := e.copyFile(ctx, s, d)
			written += n

			if err != nil {
				return written, err
			}
		}
	}

	return written, nil
}

func (e *Engine) copyFile(ctx context.Context, src, dst string) (int64, error) {
	logger := logctx.LoggerFromContext(ctx)

	in, err := e.fs.Open(src)
	if err != nil {
		return 0, &CopyIOError{Op: "open", Path: src, Err: err}
	}
	defer in.Close()

	out, err := e.fs.Create(dst)
	if err != nil {
		return 0, &CopyIOError{Op: "create", Path: dst, Err: err}
	}

	written, err := io.Copy(out, in)

	if cerr := out.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		return written, &CopyIOError{Op: "copy", Path: dst, Err: err}
	}

	logger.Debug("copied file", "dst", dst, "size", humanize.Bytes(uint64(written)))

	return written, nil
}

// emit delivers an event without ever stalling the copy loop; a full or
// unconsumed channel drops the event.
func (e *Engine) emit(ch chan ledger.Entry, entry ledger.Entry) {
	select {
	case ch <- entry:
	default:
	}
}
