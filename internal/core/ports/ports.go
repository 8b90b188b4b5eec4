package ports

import (
	"context"
	"time"

	"revwatch/internal/data/changes"
)

// Unbounded asks a RepositoryClient for every matching change.
const Unbounded = -1

// RepositoryClient is the synchronous capability the monitor polls.
// Missing paths are reported with a NOT_FOUND DomainError; anything else is a transport failure.
type RepositoryClient interface {
	// FindChanges lists changes touching any filter, newest first. Filters may
	// carry an "@>N" suffix. maxCount == Unbounded means no limit.
	FindChanges(ctx context.Context, pathFilters []string, maxCount int) ([]changes.ChangeSummary, error)

	// FindFileChanges lists the revision history of one path, newest first.
	FindFileChanges(ctx context.Context, path string, maxCount int) ([]changes.FileChangeSummary, error)

	// Print returns the lines of a file at its latest revision, or at "path@N".
	Print(ctx context.Context, path string) ([]string, error)

	// GetActiveContext returns the stream or branch the client is bound to.
	GetActiveContext(ctx context.Context) (string, bool)
}

// CycleRecord summarizes one poll cycle for the journal.
type CycleRecord struct {
	ID              string
	StartedAt       time.Time
	Duration        time.Duration
	Mode            string
	Fetched         int
	Stored          int
	ChangesUpdated  bool
	TypesUpdated    bool
	ArchivesUpdated bool
	Status          string
	Error           string
}

// CycleJournal persists poll-cycle outcomes. The change cache itself is never persisted.
type CycleJournal interface {
	Record(ctx context.Context, rec CycleRecord) error
	Recent(ctx context.Context, limit int) ([]CycleRecord, error)
}

// ChangeView is one row of the read-side projection served to UIs and HTTP.
type ChangeView struct {
	changes.ChangeSummary
	Type    string `json:"type,omitempty"`
	Archive string `json:"archive,omitempty"`
}

// MonitorService is the read/control surface driving adapters depend on.
type MonitorService interface {
	Snapshot() []changes.ChangeSummary
	Views() []ChangeView
	TryGetType(number int) (changes.ChangeType, bool)
	TryGetArchiveLocator(number int) (string, bool)
	LastStatusMessage() string
	LastCodeChangeByAuthor(author string) int
	RetentionTarget() int
	SetRetentionTarget(n int)
	RequestRefresh()
	OnChanged(callback func())
}
