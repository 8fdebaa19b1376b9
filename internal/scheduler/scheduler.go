// Package scheduler runs the background loop that keeps the ledger and the
// destination directories in step with the Transmission daemon.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/schell/privateer/internal/config"
	"github.com/schell/privateer/internal/copyengine"
	"github.com/schell/privateer/internal/ledger"
	"github.com/schell/privateer/internal/logctx"
	"github.com/schell/privateer/internal/reconcile"
	"github.com/schell/privateer/internal/telemetry"
	"github.com/schell/privateer/internal/transmission"
)

// StatusFetcher is the slice of the daemon client the loop needs.
type StatusFetcher interface {
	FetchTorrents(ctx context.Context) ([]transmission.Torrent, error)
}

// ConnectFunc builds a daemon client from the current settings. Injected so
// tests can substitute a fake daemon.
type ConnectFunc func(config.TransmissionSettings) (StatusFetcher, error)

// Connect is the production ConnectFunc.
func Connect(ts config.TransmissionSettings) (StatusFetcher, error) {
	return transmission.New(ts)
}

// Scheduler owns no state across cycles: settings and ledger are reloaded
// from disk every wake, so it cannot drift from state mutated by a concurrent
// command handler.
type Scheduler struct {
	interval   time.Duration
	settings   *config.SettingsStore
	ledger     *ledger.Store
	reconciler *reconcile.Reconciler
	engine     *copyengine.Engine
	connect    ConnectFunc
	tel        *telemetry.Telemetry

	wake chan struct{}
}

func New(
	interval time.Duration,
	settings *config.SettingsStore,
	ledgerStore *ledger.Store,
	reconciler *reconcile.Reconciler,
	engine *copyengine.Engine,
	connect ConnectFunc,
	tel *telemetry.Telemetry,
) *Scheduler {
	return &Scheduler{
		interval:   interval,
		settings:   settings,
		ledger:     ledgerStore,
		reconciler: reconciler,
		engine:     engine,
		connect:    connect,
		tel:        tel,
		// Buffered so a wake raised during an ongoing cycle is not lost.
		wake: make(chan struct{}, 1),
	}
}

// Wake triggers an immediate out-of-band cycle. It never blocks; a wake
// raised while one is already pending coalesces with it.
func (s *Scheduler) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run loops until the context is canceled, waking on the fixed interval or on
// an explicit Wake. A cycle that fails to reach the daemon is logged and
// abandoned; the next wake simply tries again.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx)

	logger.Info("scheduler started", "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("scheduler shutting down")

			return ctx.Err()
		case <-ticker.C:
		case <-s.wake:
		}

		s.RunCycle(ctx)
	}
}

// RunCycle performs one full pass: reload settings and ledger from disk,
// fetch live status, reconcile, then copy. Data flows one direction; nothing
// survives the cycle in memory.
func (s *Scheduler) RunCycle(ctx context.Context) {
	logger := logctx.LoggerFromContext(ctx)
	start := time.Now()

	settings := s.settings.Load(ctx)
	entries := s.ledger.Load(ctx)

	client, err := s.connect(settings.Transmission)
	if err != nil {
		logger.Error("cannot build daemon client", "err", err)
		s.tel.RecordDaemonError("connection")
		s.tel.RecordCycle("connect_error", time.Since(start))

		return
	}

	live, err := client.FetchTorrents(ctx)
	if err != nil {
		logger.Error("daemon status fetch failed", "err", err)
		s.recordFetchFailure(err, start)

		return
	}

	entries = s.reconciler.Run(ctx, settings, entries, live)
	s.engine.Run(ctx, settings, entries, live)

	s.tel.RecordCycle("ok", time.Since(start))

	logger.Debug("cycle complete",
		"live_torrents", len(live),
		"tracked", len(entries),
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
}

func (s *Scheduler) recordFetchFailure(err error, start time.Time) {
	var rpcErr *transmission.RPCError
	if errors.As(err, &rpcErr) {
		s.tel.RecordDaemonError("rpc")
		s.tel.RecordCycle("rpc_error", time.Since(start))

		return
	}

	s.tel.RecordDaemonError("connection")
	s.tel.RecordCycle("connect_error", time.Since(start))
}
