package app

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"revwatch/internal/core/monitor"
)

type HealthStatus struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	State       string            `json:"state"`
	LastStatus  string            `json:"last_status"`
	Changes     int               `json:"changes"`
	HeapAllocMB uint64            `json:"heap_alloc_mb"`
	Components  map[string]string `json:"components"`
}

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

// Check reports "degraded" when the monitor is stopped, its last cycle failed or
// the worker has missed several poll intervals.
func (s *HealthService) Check(ctx context.Context) HealthStatus {
	m := s.app.Monitor
	status := HealthStatus{
		Status:      "up",
		Timestamp:   time.Now().UTC(),
		State:       m.State().String(),
		LastStatus:  m.LastStatusMessage(),
		Changes:     m.Size(),
		HeapAllocMB: heapAllocMB(),
		Components:  make(map[string]string),
	}

	switch {
	case m.State() == monitor.StateStopped:
		status.Status = "degraded"
		status.Components["monitor"] = "stopped"
	case strings.HasPrefix(status.LastStatus, "Failed"):
		status.Status = "degraded"
		status.Components["monitor"] = "last cycle failed"
	case stale(m.LastCycleStart(), m.PollInterval()):
		status.Status = "degraded"
		status.Components["monitor"] = fmt.Sprintf("no cycle since %s", m.LastCycleStart().Format(time.RFC3339))
	default:
		status.Components["monitor"] = fmt.Sprintf("ok (%d changes, retention %d)", status.Changes, m.RetentionTarget())
	}

	if entries := m.ArchiveEntries(); len(entries) > 0 {
		status.Components["archive"] = fmt.Sprintf("ok (%d archives)", len(entries))
	} else if s.app.Config.Archive.ConfigPath != "" {
		status.Components["archive"] = "empty"
	}

	if s.app.JournalEnabled() {
		if _, err := s.app.RecentCycles(ctx, 1); err != nil {
			status.Status = "degraded"
			status.Components["journal"] = err.Error()
		} else {
			status.Components["journal"] = "ok"
		}
	}

	if ctxName, ok := m.ActiveContext(); ok {
		status.Components["context"] = ctxName
	}
	return status
}

func stale(last time.Time, interval time.Duration) bool {
	if last.IsZero() {
		return false
	}
	return time.Since(last) > 3*interval
}

func heapAllocMB() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc / 1024 / 1024
}
