package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"revwatch/internal/core/ports"
	"revwatch/internal/data/changes"
)

type fakeService struct {
	views     []ports.ChangeView
	retention int
	refreshes int
	status    string
}

func (f *fakeService) Snapshot() []changes.ChangeSummary {
	out := make([]changes.ChangeSummary, len(f.views))
	for i, v := range f.views {
		out[i] = v.ChangeSummary
	}
	return out
}
func (f *fakeService) Views() []ports.ChangeView { return f.views }
func (f *fakeService) TryGetType(int) (changes.ChangeType, bool) { return 0, false }
func (f *fakeService) TryGetArchiveLocator(int) (string, bool) { return "", false }
func (f *fakeService) LastStatusMessage() string { return f.status }
func (f *fakeService) LastCodeChangeByAuthor(author string) int { return 12 }
func (f *fakeService) RetentionTarget() int { return f.retention }
func (f *fakeService) SetRetentionTarget(n int) { f.retention = n }
func (f *fakeService) RequestRefresh() { f.refreshes++ }
func (f *fakeService) OnChanged(func()) {}

func newFakeService() *fakeService {
	return &fakeService{
		retention: 15,
		status:    "Last update took 12ms",
		views: []ports.ChangeView{
			{ChangeSummary: changes.ChangeSummary{Number: 12, Author: "alice", Description: "fix crash\n\ndetails"}, Type: "code", Archive: "//depot/Archive/Editor.zip#3"},
			{ChangeSummary: changes.ChangeSummary{Number: 11, Author: "bob", Description: "docs"}, Type: "content"},
			{ChangeSummary: changes.ChangeSummary{Number: 10, Author: "bob", Description: "pending"}},
		},
	}
}

func TestModel_RefreshPopulatesTable(t *testing.T) {
	svc := newFakeService()
	m := initialModel(svc, "alice")

	updated, _ := m.Update(snapshot(svc, "alice"))
	state, ok := updated.(model)
	if !ok {
		t.Fatalf("expected model type, got %T", updated)
	}
	rows := state.table.Rows()
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "*12" {
		t.Fatalf("expected author's last code change to be marked, got %q", rows[0][0])
	}
	if rows[0][4] != "fix crash" {
		t.Fatalf("expected first description line only, got %q", rows[0][4])
	}
	if rows[2][1] != "?" {
		t.Fatalf("expected untyped change marker, got %q", rows[2][1])
	}

	view := state.View()
	for _, want := range []string{"Revision Monitor", "Last update took 12ms", "last code change by alice: 12", "retention 15"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in view", want)
		}
	}
}

func TestModel_KeyActions(t *testing.T) {
	svc := newFakeService()
	m := initialModel(svc, "")

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	state := updated.(model)
	if svc.refreshes != 1 {
		t.Fatalf("expected refresh request, got %d", svc.refreshes)
	}

	updated, _ = state.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'+'}})
	state = updated.(model)
	if svc.retention != 25 || state.retention != 25 {
		t.Fatalf("expected retention 25, got %d/%d", svc.retention, state.retention)
	}

	for i := 0; i < 4; i++ {
		updated, _ = state.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'-'}})
		state = updated.(model)
	}
	if svc.retention != 1 {
		t.Fatalf("expected retention clamped to 1, got %d", svc.retention)
	}
	if svc.refreshes != 5 {
		t.Fatalf("expected refresh after each effective retention change, got %d", svc.refreshes)
	}

	_, cmd := state.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg")
	}
}

func TestModel_ContextSwitch(t *testing.T) {
	svc := newFakeService()
	m := initialModel(svc, "")

	updated, cmd := m.Update(contextMsg("//Game/Dev"))
	state := updated.(model)
	if state.context != "//Game/Dev" || !strings.Contains(state.notice, "//Game/Dev") {
		t.Fatalf("unexpected context state %+v", state.notice)
	}
	if cmd == nil {
		t.Fatal("expected a refresh after a context switch")
	}
	if _, ok := cmd().(refreshMsg); !ok {
		t.Fatal("expected refreshMsg from context switch")
	}
}
