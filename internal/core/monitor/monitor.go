// Package monitor polls a repository in the background and keeps an in-memory view of
// recent changes, their classification and their archived builds.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"revwatch/internal/core/errors"
	"revwatch/internal/core/ports"
	"revwatch/internal/data/changes"
	"revwatch/internal/engine/archive"
	"revwatch/internal/engine/classifier"
	"revwatch/internal/shared/observability"
)

const (
	DefaultPollInterval  = 60 * time.Second
	DefaultRetention     = 100
	DefaultClassifySlack = 10
	DefaultStopTimeout   = 5 * time.Second
)

// State of the background worker.
type State int

const (
	StateIdle State = iota
	StatePolling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type Options struct {
	WatchPaths     []string
	CodeExtensions []string
	Retention      int
	PollInterval   time.Duration
	ClassifySlack  int
	StopTimeout    time.Duration
	// Author is the user whose last code change is kept current every cycle.
	Author  string
	Archive archive.Options
	Rewrite changes.AuthorRewriter
	// Journal, when set, receives one record per poll cycle.
	Journal ports.CycleJournal
}

func (o Options) withDefaults() Options {
	if len(o.WatchPaths) == 0 {
		o.WatchPaths = []string{"..."}
	}
	if o.Retention < 1 {
		o.Retention = DefaultRetention
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.ClassifySlack <= 0 {
		o.ClassifySlack = DefaultClassifySlack
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = DefaultStopTimeout
	}
	o.Rewrite = changes.NewAuthorRewriter(o.Rewrite.Marker, o.Rewrite.Replacement)
	return o
}

// Monitor owns the change store, the type map and the archive index for one
// watched target. Mutation happens only on the poll worker (or PollNow); every
// exported reader is safe for concurrent use and never blocks on the repository.
type Monitor struct {
	client ports.RepositoryClient
	opts   Options
	store  *changes.Store
	index  *archive.Index

	mu             sync.RWMutex
	types          *classifier.Types
	state          State
	status         string
	authorCode     int
	retention      int
	pollInterval   time.Duration
	started        bool
	disposed       bool
	onChanged      []func()
	onMetadata     []func()
	onContext      []func(string)
	cancel         context.CancelFunc
	done           chan struct{}
	lastContext    string
	contextSeen    bool
	lastCycleStart time.Time

	// cachedTarget is the retention the store was last filled for. Worker only.
	cachedTarget int

	stopping atomic.Bool
	refresh  chan struct{}
}

var _ ports.MonitorService = (*Monitor)(nil)

func New(client ports.RepositoryClient, opts Options) *Monitor {
	opts = opts.withDefaults()
	observability.RetentionTarget.Set(float64(opts.Retention))
	return &Monitor{
		client:       client,
		opts:         opts,
		store:        changes.NewStore(),
		index:        archive.NewIndex(opts.Archive),
		types:        classifier.NewTypes(),
		state:        StateIdle,
		authorCode:   classifier.NoChange,
		retention:    opts.Retention,
		pollInterval: opts.PollInterval,
		refresh:      make(chan struct{}, 1),
	}
}

// Start launches the poll worker. It may be called once; the worker polls
// immediately and then every poll interval until Dispose.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.disposed:
		return errors.New(errors.CodeContract, "monitor disposed")
	case m.started:
		return errors.New(errors.CodeContract, "monitor already started")
	case m.state == StatePolling:
		return errors.New(errors.CodeContract, "poll in progress")
	}

	workerCtx, cancel := context.WithCancel(ctx)
	m.started = true
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(workerCtx, m.done)
	return nil
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		m.mu.Lock()
		m.state = StateStopped
		m.mu.Unlock()
	}()

	for {
		if ctx.Err() != nil || m.stopping.Load() {
			return
		}
		m.poll(ctx)

		timer := time.NewTimer(m.PollInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-m.refresh:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// PollNow runs one cycle on the calling goroutine. It is meant for one-shot use
// and is rejected while the background worker owns the monitor.
func (m *Monitor) PollNow(ctx context.Context) error {
	m.mu.Lock()
	switch {
	case m.disposed:
		m.mu.Unlock()
		return errors.New(errors.CodeContract, "monitor disposed")
	case m.started:
		m.mu.Unlock()
		return errors.New(errors.CodeContract, "monitor worker is running")
	case m.state == StatePolling:
		m.mu.Unlock()
		return errors.New(errors.CodeContract, "poll in progress")
	}
	m.state = StatePolling
	m.mu.Unlock()

	return m.poll(ctx).err()
}

// Dispose stops the worker and waits up to the stop timeout for it to exit. A
// worker stuck in a repository call that ignores cancellation is abandoned; it
// publishes nothing once the stop flag is set. Readers keep seeing the last state.
func (m *Monitor) Dispose() error {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return nil
	}
	m.disposed = true
	m.state = StateStopped
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	m.stopping.Store(true)

	var err error
	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-time.After(m.opts.StopTimeout):
			err = errors.New(errors.CodeInternal, fmt.Sprintf("poll worker did not stop within %s", m.opts.StopTimeout))
			slog.Warn("abandoning poll worker", "timeout", m.opts.StopTimeout)
		}
	}

	m.mu.Lock()
	m.onChanged = nil
	m.onMetadata = nil
	m.onContext = nil
	m.mu.Unlock()
	return err
}

// RequestRefresh wakes the worker early. It never blocks; pending requests coalesce.
func (m *Monitor) RequestRefresh() {
	select {
	case m.refresh <- struct{}{}:
	default:
	}
}

// SetRetentionTarget takes effect at the start of the next cycle.
func (m *Monitor) SetRetentionTarget(n int) {
	if n < 1 {
		n = 1
	}
	m.mu.Lock()
	m.retention = n
	m.mu.Unlock()
	observability.RetentionTarget.Set(float64(n))
}

func (m *Monitor) RetentionTarget() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.retention
}

// SetPollInterval applies from the next sleep.
func (m *Monitor) SetPollInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.pollInterval = d
	m.mu.Unlock()
}

func (m *Monitor) PollInterval() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pollInterval
}

func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Monitor) Snapshot() []changes.ChangeSummary {
	return m.store.Snapshot()
}

func (m *Monitor) Size() int {
	return m.store.Size()
}

func (m *Monitor) TryGetType(number int) (changes.ChangeType, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.types.Get(number)
}

func (m *Monitor) TryGetArchiveLocator(number int) (string, bool) {
	return m.index.Locator(number)
}

func (m *Monitor) ArchiveEntries() map[int]archive.Entry {
	return m.index.Entries()
}

// Views joins the snapshot with its types and archive locators, newest first.
func (m *Monitor) Views() []ports.ChangeView {
	list := m.store.Snapshot()
	m.mu.RLock()
	types := m.types.Clone()
	m.mu.RUnlock()

	views := make([]ports.ChangeView, len(list))
	for i, c := range list {
		views[i].ChangeSummary = c
		if t, ok := types[c.Number]; ok {
			views[i].Type = t.String()
		}
		if loc, ok := m.index.Locator(c.Number); ok {
			views[i].Archive = loc
		}
	}
	return views
}

func (m *Monitor) LastStatusMessage() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// LastCycleStart is zero until the first cycle began.
func (m *Monitor) LastCycleStart() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastCycleStart
}

// LastCodeChangeByAuthor is cached for the configured author and computed on
// demand for anyone else.
func (m *Monitor) LastCodeChangeByAuthor(author string) int {
	if strings.EqualFold(strings.TrimSpace(author), strings.TrimSpace(m.opts.Author)) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return m.authorCode
	}
	list := m.store.Snapshot()
	m.mu.RLock()
	types := m.types.Clone()
	m.mu.RUnlock()
	return classifier.LastCodeChangeByAuthor(list, types, author)
}

// ActiveContext returns the last observed stream or branch.
func (m *Monitor) ActiveContext() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastContext, m.contextSeen
}

// OnChanged registers a callback fired on the worker when changes or their types change.
// Callbacks must return quickly.
func (m *Monitor) OnChanged(callback func()) {
	if callback == nil {
		return
	}
	m.mu.Lock()
	m.onChanged = append(m.onChanged, callback)
	m.mu.Unlock()
}

// OnMetadataChanged registers a callback fired when the archive index changes.
func (m *Monitor) OnMetadataChanged(callback func()) {
	if callback == nil {
		return
	}
	m.mu.Lock()
	m.onMetadata = append(m.onMetadata, callback)
	m.mu.Unlock()
}

// OnContextChanged registers a callback fired when the client's stream or branch switches.
func (m *Monitor) OnContextChanged(callback func(string)) {
	if callback == nil {
		return
	}
	m.mu.Lock()
	m.onContext = append(m.onContext, callback)
	m.mu.Unlock()
}
