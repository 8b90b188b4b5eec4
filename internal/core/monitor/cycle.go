package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"

	"revwatch/internal/core/errors"
	"revwatch/internal/core/ports"
	"revwatch/internal/data/changes"
	"revwatch/internal/engine/classifier"
	"revwatch/internal/shared/observability"
)

const (
	modeFull        = "full"
	modeIncremental = "incremental"
)

type cycleResult struct {
	id              string
	mode            string
	fetched         int
	changesUpdated  bool
	typesUpdated    bool
	archivesUpdated bool
	contextChanged  bool
	context         string
	queryErr        error
	stepErr         error
	abandoned       bool
}

func (r cycleResult) err() error {
	return multierr.Combine(r.queryErr, r.stepErr)
}

// poll runs one fetch/merge/classify/archive/notify sequence. A failed change query
// aborts the cycle before anything is merged; classification and archive failures
// are reported without undoing the merge or each other.
func (m *Monitor) poll(ctx context.Context) cycleResult {
	res := cycleResult{id: uuid.NewString()}
	started := time.Now()

	ctx, span := observability.Tracer.Start(ctx, "monitor.Poll", trace.WithAttributes(
		attribute.String("cycle_id", res.id),
	))
	defer span.End()

	m.mu.Lock()
	if m.state != StateStopped {
		m.state = StatePolling
	}
	m.lastCycleStart = started
	target := m.retention
	m.mu.Unlock()

	hwm, known := m.store.HighestNumber()
	var fetched []changes.ChangeSummary
	var err error
	if !known || target > m.cachedTarget {
		res.mode = modeFull
		fetched, err = m.client.FindChanges(ctx, m.opts.WatchPaths, target)
	} else {
		res.mode = modeIncremental
		fetched, err = m.client.FindChanges(ctx, changes.WithLowerBound(m.opts.WatchPaths, hwm), ports.Unbounded)
	}
	span.SetAttributes(attribute.String("mode", res.mode))
	if m.stopping.Load() {
		res.abandoned = true
		return res
	}
	if err != nil && !errors.IsNotFound(err) {
		res.queryErr = errors.AddContext(err, errors.CtxCycle, res.id)
		m.finish(ctx, started, &res)
		span.RecordError(err)
		span.SetStatus(codes.Error, "query changes")
		return res
	}

	res.fetched = len(fetched)
	m.opts.Rewrite.ApplyAll(fetched)
	res.changesUpdated = m.store.Merge(fetched, target)
	m.cachedTarget = target

	var stepErrs []error
	typesUpdated, err := m.classify(ctx)
	if err != nil {
		observability.StepErrorsTotal.WithLabelValues("classify").Inc()
		stepErrs = append(stepErrs, fmt.Errorf("classify changes: %w", err))
	}
	res.typesUpdated = typesUpdated
	if m.stopping.Load() {
		res.abandoned = true
		return res
	}

	res.archivesUpdated, err = m.index.Refresh(ctx, m.client)
	if err != nil {
		observability.StepErrorsTotal.WithLabelValues("archive").Inc()
		stepErrs = append(stepErrs, fmt.Errorf("refresh archives: %w", err))
	}
	if m.stopping.Load() {
		res.abandoned = true
		return res
	}

	name, ok := m.client.GetActiveContext(ctx)
	if m.stopping.Load() {
		res.abandoned = true
		return res
	}
	if ok {
		res.context = name
		m.mu.Lock()
		res.contextChanged = m.contextSeen && name != m.lastContext
		m.lastContext = name
		m.contextSeen = true
		m.mu.Unlock()
	}

	res.stepErr = multierr.Combine(stepErrs...)
	if res.stepErr != nil {
		span.RecordError(res.stepErr)
	}
	m.finish(ctx, started, &res)
	return res
}

// classify types every stored change that has none yet. It reports whether the type
// map changed, including entries dropped with evicted changes.
func (m *Monitor) classify(ctx context.Context) (bool, error) {
	list := m.store.Snapshot()
	ceiling, _ := m.store.HighestNumber()

	m.mu.Lock()
	updated := m.types.Retain(list)
	untyped := m.types.Untyped(list)
	m.mu.Unlock()

	if len(untyped) == 0 {
		return updated, nil
	}

	plan, ok := classifier.NewPlan(m.opts.WatchPaths, m.opts.CodeExtensions, untyped, len(list), m.opts.ClassifySlack, ceiling)
	if !ok {
		// No code extensions configured: everything is content.
		m.mu.Lock()
		if m.types.Assign(untyped, nil) {
			updated = true
		}
		m.mu.Unlock()
		return updated, nil
	}

	codeChanges, err := m.client.FindChanges(ctx, plan.Filters, plan.MaxCount)
	if err != nil && !errors.IsNotFound(err) {
		return updated, err
	}
	codeNumbers, decided := plan.Resolve(codeChanges)

	m.mu.Lock()
	if m.types.Assign(decided, codeNumbers) {
		updated = true
	}
	m.mu.Unlock()
	return updated, nil
}

// finish publishes status, metrics, the journal row and notifications for a cycle.
// Nothing is published once Dispose has set the stop flag.
func (m *Monitor) finish(ctx context.Context, started time.Time, res *cycleResult) {
	if m.stopping.Load() {
		res.abandoned = true
		return
	}
	elapsed := time.Since(started)

	status := fmt.Sprintf("Last update took %dms", elapsed.Milliseconds())
	outcome := "ok"
	switch {
	case res.queryErr != nil:
		status = fmt.Sprintf("Failed to query changes: %v", res.queryErr)
		outcome = "error"
	case res.stepErr != nil:
		status = fmt.Sprintf("Last update took %dms with errors: %v", elapsed.Milliseconds(), res.stepErr)
		outcome = "partial"
	}

	var authorCode int
	if res.changesUpdated || res.typesUpdated {
		authorCode = classifier.LastCodeChangeByAuthor(m.store.Snapshot(), m.typesSnapshot(), m.opts.Author)
	}

	m.mu.Lock()
	if m.state != StateStopped {
		m.state = StateIdle
	}
	m.status = status
	if res.changesUpdated || res.typesUpdated {
		m.authorCode = authorCode
	}
	codeCount, contentCount := 0, 0
	for _, ct := range m.types.Clone() {
		if ct == changes.ChangeTypeCode {
			codeCount++
		} else {
			contentCount++
		}
	}
	onChanged := append([]func(){}, m.onChanged...)
	onMetadata := append([]func(){}, m.onMetadata...)
	onContext := append([]func(string){}, m.onContext...)
	m.mu.Unlock()

	observability.PollCyclesTotal.WithLabelValues(res.mode, outcome).Inc()
	observability.PollDuration.WithLabelValues(res.mode).Observe(elapsed.Seconds())
	observability.ChangesFetchedTotal.Add(float64(res.fetched))
	observability.StoredChanges.Set(float64(m.store.Size()))
	if hwm, ok := m.store.HighestNumber(); ok {
		observability.HighestChange.Set(float64(hwm))
	}
	observability.ClassifiedChanges.WithLabelValues(changes.ChangeTypeCode.String()).Set(float64(codeCount))
	observability.ClassifiedChanges.WithLabelValues(changes.ChangeTypeContent.String()).Set(float64(contentCount))
	observability.ArchiveEntries.Set(float64(m.index.Len()))

	if err := res.err(); err != nil {
		slog.Warn("poll cycle failed", "cycle_id", res.id, "mode", res.mode, "duration", elapsed, "error", err)
	} else {
		slog.Debug("poll cycle complete", "cycle_id", res.id, "mode", res.mode, "fetched", res.fetched,
			"stored", m.store.Size(), "duration", elapsed)
	}

	m.record(ctx, started, elapsed, res, status)

	if res.changesUpdated || res.typesUpdated {
		for _, cb := range onChanged {
			cb()
		}
	}
	if res.archivesUpdated {
		for _, cb := range onMetadata {
			cb()
		}
	}
	if res.contextChanged {
		slog.Info("active context changed", "context", res.context)
		for _, cb := range onContext {
			cb(res.context)
		}
	}
}

func (m *Monitor) record(ctx context.Context, started time.Time, elapsed time.Duration, res *cycleResult, status string) {
	if m.opts.Journal == nil {
		return
	}
	rec := ports.CycleRecord{
		ID:              res.id,
		StartedAt:       started,
		Duration:        elapsed,
		Mode:            res.mode,
		Fetched:         res.fetched,
		Stored:          m.store.Size(),
		ChangesUpdated:  res.changesUpdated,
		TypesUpdated:    res.typesUpdated,
		ArchivesUpdated: res.archivesUpdated,
		Status:          status,
	}
	if err := res.err(); err != nil {
		rec.Error = err.Error()
	}
	if err := m.opts.Journal.Record(context.WithoutCancel(ctx), rec); err != nil {
		observability.JournalWriteErrorsTotal.Inc()
		slog.Warn("journal write failed", "cycle_id", res.id, "error", err)
	}
}

func (m *Monitor) typesSnapshot() map[int]changes.ChangeType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.types.Clone()
}
