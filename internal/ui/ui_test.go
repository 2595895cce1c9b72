package ui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/treykane/gostly/internal/history"
	"github.com/treykane/gostly/internal/model"
	"github.com/treykane/gostly/internal/orchestrator"
)

func headlessDashboard(t *testing.T) dashboardModel {
	t.Helper()
	o := orchestrator.New(orchestrator.Config{RouterInterval: 10 * time.Millisecond})
	t.Cleanup(o.Close)
	if err := o.Profiles.List(context.Background()); err != nil {
		t.Fatal(err)
	}
	return newDashboard(o, Options{Mode: "headless"})
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m dashboardModel, msg tea.KeyMsg) (dashboardModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(dashboardModel), cmd
}

// settle runs a command produced by an orchestrator call and feeds the result
// back into the model.
func settle(t *testing.T, m dashboardModel, cmd tea.Cmd) dashboardModel {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	msg := cmd()
	done, ok := msg.(opDoneMsg)
	if !ok {
		t.Fatalf("expected opDoneMsg, got %T", msg)
	}
	next, _ := m.Update(done)
	m = next.(dashboardModel)
	m.state = m.orch.Snapshot()
	return m
}

func TestTabSwitchControlsRouterWatch(t *testing.T) {
	m := headlessDashboard(t)

	m, _ = press(t, m, runes("2"))
	if m.tab != tabMappings || m.stopWatch == nil {
		t.Fatalf("expected router watch on the mappings tab, tab=%v", m.tab)
	}
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.tab != tabLogs || m.stopWatch != nil {
		t.Fatalf("expected watch stopped after leaving mappings, tab=%v", m.tab)
	}
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.tab != tabMappings || m.stopWatch == nil {
		t.Fatal("expected watch restarted")
	}
	m, _ = press(t, m, runes("1"))
	if m.tab != tabProxies || m.stopWatch != nil {
		t.Fatal("expected watch stopped on the proxies tab")
	}
}

func TestToggleSelectedProfile(t *testing.T) {
	m := headlessDashboard(t)

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = settle(t, m, cmd)
	if !m.state.Profiles[0].Running() {
		t.Fatalf("expected first profile running, got %+v", m.state.Profiles[0])
	}
	if !strings.Contains(m.status, "started") {
		t.Fatalf("unexpected status %q", m.status)
	}
	if m.state.Connection.ActiveProfiles != 2 {
		t.Fatalf("expected aggregate to count both running profiles, got %+v", m.state.Connection)
	}
}

func TestDeleteGoesThroughConfirmation(t *testing.T) {
	m := headlessDashboard(t)

	m, _ = press(t, m, runes("d"))
	if m.state.Pending == nil || m.state.Pending.TargetKind != model.TargetProfile {
		t.Fatalf("expected pending profile delete, got %+v", m.state.Pending)
	}
	if !strings.Contains(m.View(), "Delete proxy profile") {
		t.Fatal("expected confirmation prompt in view")
	}
	// Other keys are swallowed while a confirmation is pending.
	m, _ = press(t, m, runes("2"))
	if m.tab != tabProxies {
		t.Fatal("expected tab switch to be ignored while confirming")
	}

	m, _ = press(t, m, runes("n"))
	if m.state.Pending != nil || len(m.state.Profiles) != 2 {
		t.Fatalf("expected cancel to keep profiles, got %+v", m.state.Profiles)
	}

	m, _ = press(t, m, runes("j"))
	m, _ = press(t, m, runes("d"))
	m, cmd := press(t, m, runes("y"))
	m = settle(t, m, cmd)
	if len(m.state.Profiles) != 1 || m.state.Profiles[0].Name != "Local SOCKS5" {
		t.Fatalf("expected second profile deleted, got %+v", m.state.Profiles)
	}
	if m.state.Pending != nil {
		t.Fatal("expected pending cleared")
	}
}

func TestNewProfileFormSubmits(t *testing.T) {
	m := headlessDashboard(t)

	m, _ = press(t, m, runes("n"))
	if m.form == nil {
		t.Fatal("expected form open")
	}
	m.form.fields[fieldName].SetValue("office")
	m.form.fields[fieldListen].SetValue(":1081")
	m.form.fields[fieldRemote].SetValue("10.0.0.1:1080")

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.form != nil {
		t.Fatal("expected form closed after submit")
	}
	m = settle(t, m, cmd)
	if len(m.state.Profiles) != 3 || m.state.Profiles[0].Name != "office" {
		t.Fatalf("expected new profile prepended, got %+v", m.state.Profiles)
	}
}

func TestFormEscCancels(t *testing.T) {
	m := headlessDashboard(t)
	m, _ = press(t, m, runes("n"))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.form != nil || m.status != "Cancelled" {
		t.Fatalf("expected form cancelled, status=%q", m.status)
	}
}

func TestEditRunningProfileIsRefused(t *testing.T) {
	m := headlessDashboard(t)
	m, _ = press(t, m, runes("j"))
	m, _ = press(t, m, runes("e"))
	if m.form != nil {
		t.Fatal("expected no form for a running profile")
	}
	if !strings.Contains(m.status, "Stop the profile") {
		t.Fatalf("unexpected status %q", m.status)
	}
}

func TestRouterAddressErrorShownBesideInput(t *testing.T) {
	m := headlessDashboard(t)
	m, _ = press(t, m, runes("2"))

	m, _ = press(t, m, runes("a"))
	if !m.editingAddr {
		t.Fatal("expected address editing")
	}
	m.addrInput.SetValue("8080")
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = settleOp(t, m, cmd)
	if m.state.Router.AddrError == "" {
		t.Fatal("expected the controller to record a field error")
	}
	if !m.editingAddr || m.addrInput.Value() != "8080" {
		t.Fatalf("expected the rejected address to stay editable, got %q editing=%t", m.addrInput.Value(), m.editingAddr)
	}
	if strings.HasPrefix(m.status, "Error:") {
		t.Fatalf("field error should not go to the status line: %q", m.status)
	}
	m.width, m.height = 120, 40
	if !strings.Contains(m.mappingsView(100), m.state.Router.AddrError) {
		t.Fatal("expected the address error in the host mappings view")
	}

	m.addrInput.SetValue(":9090")
	m, cmd = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if !m.state.Router.Busy {
		t.Fatal("expected busy while the router starts")
	}
	m = settleOp(t, m, cmd)
	r := m.state.Router
	if !r.Running || r.ListenAddr != ":9090" || r.AddrError != "" {
		t.Fatalf("unexpected router state %+v", r)
	}
}

// settleOp is settle for commands batched with a spinner tick.
func settleOp(t *testing.T, m dashboardModel, cmd tea.Cmd) dashboardModel {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return settle(t, m, func() tea.Msg { return msg })
	}
	for _, c := range batch {
		if c == nil {
			continue
		}
		if done, ok := c().(opDoneMsg); ok {
			return settle(t, m, func() tea.Msg { return done })
		}
	}
	t.Fatal("expected an opDoneMsg in the batch")
	return m
}

func TestLogsFilterKeys(t *testing.T) {
	m := headlessDashboard(t)
	m, cmd := press(t, m, runes("3"))
	m = settle(t, m, cmd)
	if m.rowCount() != 3 {
		t.Fatalf("expected the sample log lines, got %d", m.rowCount())
	}

	m, _ = press(t, m, runes("v"))
	if m.logFilter.Level != model.LevelDebug || m.rowCount() != 0 {
		t.Fatalf("expected DEBUG filter with no rows, got %q/%d", m.logFilter.Level, m.rowCount())
	}
	m, _ = press(t, m, runes("v"))
	m, _ = press(t, m, runes("o"))
	if m.logFilter.Level != model.LevelInfo || m.logFilter.Source != model.SourceEngine || m.rowCount() != 2 {
		t.Fatalf("unexpected filter %+v with %d rows", m.logFilter, m.rowCount())
	}
	if !strings.Contains(m.View(), "Source: gost") {
		t.Fatalf("filter line missing from view:\n%s", m.View())
	}

	m, _ = press(t, m, runes("x"))
	if !m.logFilter.IsZero() {
		t.Fatalf("x should reset the filter, got %+v", m.logFilter)
	}
	m, _ = press(t, m, runes("/"))
	if !m.editingSearch {
		t.Fatal("expected the search input to open")
	}
	m, _ = press(t, m, runes("started"))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.editingSearch || m.logFilter.Text != "started" || m.rowCount() != 1 {
		t.Fatalf("unexpected search state %+v with %d rows", m.logFilter, m.rowCount())
	}
	view := m.View()
	if !strings.Contains(view, "SOCKS5 proxy started") || strings.Contains(view, "Starting SOCKS5") {
		t.Fatalf("search did not narrow the view:\n%s", view)
	}

	m, _ = press(t, m, runes("/"))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.logFilter.Text != "" || m.rowCount() != 3 {
		t.Fatalf("Esc should clear the search, got %+v", m.logFilter)
	}

	m, _ = press(t, m, runes("p"))
	if want := m.state.Profiles[0].Name; m.logFilter.Profile != want {
		t.Fatalf("expected profile filter %q, got %q", want, m.logFilter.Profile)
	}
}

func TestActivityTabShowsProfileOperations(t *testing.T) {
	m := headlessDashboard(t)
	m, cmd := press(t, m, runes("5"))
	if m.tab != tabActivity {
		t.Fatalf("expected the activity tab, got %v", m.tab)
	}
	m = settle(t, m, cmd)
	if m.rowCount() != 3 {
		t.Fatalf("expected sample activity, got %d rows", m.rowCount())
	}
	view := m.View()
	for _, want := range []string{"5 Activity", "HTTP Proxy", "created", "listen :8080"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view:\n%s", want, view)
		}
	}
}

func TestRecentSortUsesHistory(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	if err := history.Touch(2); err != nil {
		t.Fatal(err)
	}
	m := headlessDashboard(t)
	if m.visibleProfiles()[0].ID != 1 {
		t.Fatal("expected id order by default")
	}
	m, _ = press(t, m, runes("s"))
	if !m.recentFirst || m.visibleProfiles()[0].ID != 2 {
		t.Fatalf("expected most recently started first, got %+v", m.visibleProfiles())
	}
	if p, ok := m.selectedProfile(); !ok || p.ID != 2 {
		t.Fatalf("expected selection to follow the sorted list, got %+v", p)
	}
}

func TestViewRendersTabsAndSidebar(t *testing.T) {
	m := headlessDashboard(t)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(dashboardModel)
	out := m.View()
	for _, want := range []string{"Proxies", "Host Mappings", "Logs", "Timeline", "Local SOCKS5", "Engine", "Host router"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in view", want)
		}
	}
}

func TestQuitRunsHook(t *testing.T) {
	m := headlessDashboard(t)
	called := false
	m.opts.OnQuit = func() { called = true }
	m, _ = press(t, m, runes("2"))
	_, cmd := press(t, m, runes("q"))
	if !called || cmd == nil {
		t.Fatal("expected quit hook and tea.Quit")
	}
}

func TestCellTruncatesByDisplayWidth(t *testing.T) {
	for _, s := range []string{"short", "a-very-long-profile-name", "プロキシ設定のテスト"} {
		if got := runewidth.StringWidth(cell(s, 10)); got != 10 {
			t.Fatalf("cell(%q) has width %d", s, got)
		}
	}
}
