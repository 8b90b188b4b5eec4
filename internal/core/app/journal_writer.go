package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"revwatch/internal/core/ports"
	"revwatch/internal/data/journal"
	"revwatch/internal/shared/observability"
)

const (
	defaultJournalQueue = 64
	pruneEvery          = 100
)

// journalWriter takes cycle records off the poll worker so a slow or locked
// sqlite file never delays the next cycle.
type journalWriter struct {
	store *journal.Store
	keep  int

	mu     sync.RWMutex
	closed bool
	queue  chan ports.CycleRecord
	done   chan struct{}

	written int
}

var _ ports.CycleJournal = (*journalWriter)(nil)

func newJournalWriter(store *journal.Store, capacity, keep int) *journalWriter {
	if capacity <= 0 {
		capacity = defaultJournalQueue
	}
	w := &journalWriter{
		store: store,
		keep:  keep,
		queue: make(chan ports.CycleRecord, capacity),
		done:  make(chan struct{}),
	}
	go w.run()
	return w
}

// Record enqueues rec. It fails instead of blocking when the queue is full.
func (w *journalWriter) Record(_ context.Context, rec ports.CycleRecord) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return fmt.Errorf("journal writer stopped")
	}
	select {
	case w.queue <- rec:
		return nil
	default:
		return fmt.Errorf("journal queue full, dropping cycle %s", rec.ID)
	}
}

func (w *journalWriter) Recent(ctx context.Context, limit int) ([]ports.CycleRecord, error) {
	return w.store.Recent(ctx, limit)
}

func (w *journalWriter) run() {
	defer close(w.done)

	ctx := context.Background()
	for rec := range w.queue {
		started := time.Now()
		if err := w.store.Record(ctx, rec); err != nil {
			observability.JournalWriteErrorsTotal.Inc()
			slog.Warn("journal write failed", "cycle_id", rec.ID, "error", err)
			continue
		}
		slog.Debug("journal write", "cycle_id", rec.ID, "duration", time.Since(started))

		w.written++
		if w.keep > 0 && w.written%pruneEvery == 0 {
			if removed, err := w.store.Prune(ctx, w.keep); err != nil {
				slog.Warn("journal prune failed", "error", err)
			} else if removed > 0 {
				slog.Debug("journal pruned", "removed", removed)
			}
		}
	}
}

// stop drains pending records. It returns ctx.Err() if the drain outlives ctx.
func (w *journalWriter) stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
