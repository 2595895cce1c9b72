// Package ui is the gostly terminal dashboard.
//
// The model never calls the backend on the update loop. Every orchestrator
// call runs as a tea.Cmd and the dashboard redraws from orchestrator
// snapshots whenever the store signals a change.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/treykane/gostly/internal/bridge"
	"github.com/treykane/gostly/internal/history"
	"github.com/treykane/gostly/internal/model"
	"github.com/treykane/gostly/internal/orchestrator"
)

type tab int

const (
	tabProxies tab = iota
	tabMappings
	tabLogs
	tabTimeline
	tabActivity
	tabCount
)

var tabNames = []string{"Proxies", "Host Mappings", "Logs", "Timeline", "Activity"}

func (t tab) String() string { return tabNames[t] }

// Options configures the dashboard.
type Options struct {
	// Mode is shown in the sidebar: "local", "remote" or "headless".
	Mode string
	// RefreshInterval drives the log and timeline reload of the visible tab.
	RefreshInterval time.Duration
	// OnQuit runs before the program exits.
	OnQuit func()
}

type (
	tickMsg   time.Time
	stateMsg  orchestrator.State
	statusMsg string
	opDoneMsg struct {
		ok  string
		err error
	}
)

type dashboardModel struct {
	orch *orchestrator.Orchestrator
	opts Options

	state orchestrator.State
	tab   tab
	sel   [tabCount]int

	form        *entryForm
	addrInput   textinput.Model
	editingAddr bool

	logFilter     model.LogFilter
	searchInput   textinput.Model
	editingSearch bool

	spinner     spinner.Model
	stopWatch   func()

	recentFirst bool
	lastStarted map[int64]int64

	showHelp bool
	status   string
	width    int
	height   int
}

func newDashboard(o *orchestrator.Orchestrator, opts Options) dashboardModel {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 3 * time.Second
	}
	if opts.Mode == "" {
		opts.Mode = "local"
	}
	ai := textinput.New()
	ai.Placeholder = ":8080"
	ai.CharLimit = 6
	ai.Width = 8
	si := textinput.New()
	si.Placeholder = "search messages"
	si.Prompt = "/"
	si.Width = 24
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := dashboardModel{
		orch:      o,
		opts:      opts,
		state:     o.Snapshot(),
		addrInput:   ai,
		searchInput: si,
		spinner:     sp,
		status:    "Ready. Enter starts or stops the selected proxy, n adds one.",
	}
	m.addrInput.SetValue(m.state.Router.ListenAddr)
	return m
}

// Run starts the dashboard over an already started orchestrator.
func Run(o *orchestrator.Orchestrator, opts Options) error {
	p := tea.NewProgram(newDashboard(o, opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// waitForChange blocks until the store signals and hands back a snapshot.
func waitForChange(o *orchestrator.Orchestrator) tea.Cmd {
	return func() tea.Msg {
		<-o.Changes()
		return stateMsg(o.Snapshot())
	}
}

// run wraps a blocking orchestrator call as a command.
func run(ok string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return opDoneMsg{ok: ok, err: fn(ctx)}
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(waitForChange(m.orch), tickCmd(m.opts.RefreshInterval))
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		m.state = orchestrator.State(msg)
		// A rejected address stays in the input for correction.
		if !m.editingAddr && !m.state.Router.Busy && m.state.Router.AddrError == "" {
			m.addrInput.SetValue(m.state.Router.ListenAddr)
		}
		m.clampSelection()
		return m, waitForChange(m.orch)
	case tickMsg:
		return m, tea.Batch(m.refreshVisible(), tickCmd(m.opts.RefreshInterval))
	case spinner.TickMsg:
		if !m.state.Router.Busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case opDoneMsg:
		var ve *orchestrator.ValidationError
		if errors.As(msg.err, &ve) && ve.Field == orchestrator.FieldListenAddr {
			// Rendered beside the address input from RouterState.AddrError.
			m.state = m.orch.Snapshot()
			m.editingAddr = true
			m.addrInput.Focus()
			return m, nil
		}
		if msg.err != nil {
			m.status = "Error: " + bridge.Message(msg.err)
		} else if msg.ok != "" {
			m.status = msg.ok
		}
		if m.recentFirst {
			m.loadHistory()
		}
		return m, nil
	case statusMsg:
		m.status = string(msg)
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m dashboardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}
	if m.state.Pending != nil {
		return m.handleConfirmKey(msg)
	}
	if m.form != nil {
		if msg.String() == "esc" {
			m.form = nil
			m.status = "Cancelled"
			return m, nil
		}
		res, cmd := m.form.update(msg)
		if res == nil {
			return m, cmd
		}
		m.form = nil
		return m, m.submit(res)
	}
	if m.editingAddr {
		switch msg.String() {
		case "esc":
			m.editingAddr = false
			m.addrInput.Blur()
			m.addrInput.SetValue(m.state.Router.ListenAddr)
			return m, nil
		case "enter":
			m.editingAddr = false
			m.addrInput.Blur()
			return m.startRouter()
		}
		var cmd tea.Cmd
		m.addrInput, cmd = m.addrInput.Update(msg)
		return m, cmd
	}
	if m.editingSearch {
		switch msg.String() {
		case "esc":
			m.searchInput.SetValue("")
			m.logFilter.Text = ""
			fallthrough
		case "enter":
			m.editingSearch = false
			m.searchInput.Blur()
			m.sel[tabLogs] = 0
			return m, nil
		}
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		m.logFilter.Text = m.searchInput.Value()
		m.sel[tabLogs] = 0
		return m, cmd
	}

	switch msg.String() {
	case "q":
		return m.quit()
	case "?":
		m.showHelp = !m.showHelp
		return m, nil
	case "tab", "right", "l":
		return m.setTab((m.tab + 1) % tabCount)
	case "shift+tab", "left", "h":
		return m.setTab((m.tab + tabCount - 1) % tabCount)
	case "1", "2", "3", "4", "5":
		return m.setTab(tab(msg.String()[0] - '1'))
	case "j", "down":
		if m.sel[m.tab] < m.rowCount()-1 {
			m.sel[m.tab]++
		}
		return m, nil
	case "k", "up":
		if m.sel[m.tab] > 0 {
			m.sel[m.tab]--
		}
		return m, nil
	}

	switch m.tab {
	case tabProxies:
		return m.handleProxiesKey(msg)
	case tabMappings:
		return m.handleMappingsKey(msg)
	case tabLogs:
		return m.handleLogsKey(msg)
	case tabTimeline, tabActivity:
		if msg.String() == "r" {
			return m, m.refreshVisible()
		}
	}
	return m, nil
}

func (m dashboardModel) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "c":
		return m, run("Logs cleared", m.orch.Activity.ClearLogs)
	case "r":
		return m, m.refreshVisible()
	case "v":
		m.logFilter.Level = cycle(model.LogLevels, m.logFilter.Level)
	case "o":
		m.logFilter.Source = cycle(model.LogSources, m.logFilter.Source)
	case "p":
		names := make([]string, 0, len(m.state.Profiles))
		for _, p := range m.state.Profiles {
			names = append(names, p.Name)
		}
		m.logFilter.Profile = cycle(names, m.logFilter.Profile)
	case "/":
		m.editingSearch = true
		m.searchInput.SetValue(m.logFilter.Text)
		m.searchInput.Focus()
		return m, textinput.Blink
	case "x":
		m.logFilter = model.LogFilter{}
		m.searchInput.SetValue("")
	default:
		return m, nil
	}
	m.sel[tabLogs] = 0
	return m, nil
}

// cycle steps cur through "" (all) followed by options.
func cycle(options []string, cur string) string {
	for i, o := range options {
		if strings.EqualFold(o, cur) {
			if i+1 < len(options) {
				return options[i+1]
			}
			return ""
		}
	}
	if cur == "" && len(options) > 0 {
		return options[0]
	}
	return ""
}

func (m dashboardModel) handleProxiesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "n":
		m.form = newProfileForm(nil)
		return m, textinput.Blink
	case "r":
		return m, run("Profiles refreshed", m.orch.Profiles.List)
	case "s":
		m.recentFirst = !m.recentFirst
		if m.recentFirst {
			m.loadHistory()
			m.status = "Sorting by most recently started"
		} else {
			m.status = "Sorting by id"
		}
		m.sel[tabProxies] = 0
		return m, nil
	}
	p, ok := m.selectedProfile()
	if !ok {
		return m, nil
	}
	switch msg.String() {
	case "enter", " ":
		start := !p.Running()
		verb := "stopped"
		if start {
			verb = "started"
		}
		return m, run(fmt.Sprintf("Profile %q %s", p.Name, verb), func(ctx context.Context) error {
			return m.orch.Profiles.Toggle(ctx, p.ID, start)
		})
	case "e":
		if p.Running() {
			m.status = "Stop the profile before editing it"
			return m, nil
		}
		m.form = newProfileForm(&p)
		return m, textinput.Blink
	case "d":
		if err := m.orch.Gate.Request(p.ID, p.Name, model.TargetProfile); err != nil {
			m.status = "Error: " + err.Error()
		}
		m.state = m.orch.Snapshot()
	}
	return m, nil
}

func (m dashboardModel) handleMappingsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "n":
		m.form = newMappingForm(nil)
		return m, textinput.Blink
	case "a":
		m.editingAddr = true
		m.addrInput.Focus()
		return m, textinput.Blink
	case "s":
		if m.state.Router.Running {
			return m.stopRouter()
		}
		return m.startRouter()
	case "r":
		return m, run("Host mappings refreshed", m.orch.Mappings.List)
	}
	hm, ok := m.selectedMapping()
	if !ok {
		return m, nil
	}
	switch msg.String() {
	case "e", "enter":
		m.form = newMappingForm(&hm)
		return m, textinput.Blink
	case " ":
		hm.Active = !hm.Active
		return m, run("Host mapping "+hm.Hostname+" updated", func(ctx context.Context) error {
			_, err := m.orch.Mappings.Save(ctx, hm)
			return err
		})
	case "d":
		if err := m.orch.Gate.Request(hm.ID, hm.Hostname, model.TargetHostMapping); err != nil {
			m.status = "Error: " + err.Error()
		}
		m.state = m.orch.Snapshot()
	}
	return m, nil
}

func (m dashboardModel) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		label := m.state.Pending.TargetLabel
		m.state.Pending = nil
		return m, run("Deleted "+label, m.orch.Gate.Confirm)
	case "n", "esc":
		m.orch.Gate.Cancel()
		m.state = m.orch.Snapshot()
		m.status = "Delete cancelled"
	}
	return m, nil
}

func (m dashboardModel) submit(res *formResult) tea.Cmd {
	if res.profile != nil {
		p := *res.profile
		if p.ID == 0 {
			return run(fmt.Sprintf("Profile %q created", p.Name), func(ctx context.Context) error {
				_, err := m.orch.Profiles.Add(ctx, p.Draft())
				return err
			})
		}
		return run(fmt.Sprintf("Profile %q updated", p.Name), func(ctx context.Context) error {
			return m.orch.Profiles.Update(ctx, p)
		})
	}
	hm := *res.mapping
	return run("Host mapping "+hm.Hostname+" saved", func(ctx context.Context) error {
		_, err := m.orch.Mappings.Save(ctx, hm)
		return err
	})
}

func (m dashboardModel) startRouter() (tea.Model, tea.Cmd) {
	addr := strings.TrimSpace(m.addrInput.Value())
	m.state.Router.Busy = true
	return m, tea.Batch(m.spinner.Tick, run("", func(ctx context.Context) error {
		return m.orch.Router.Start(ctx, addr)
	}))
}

func (m dashboardModel) stopRouter() (tea.Model, tea.Cmd) {
	m.state.Router.Busy = true
	return m, tea.Batch(m.spinner.Tick, run("", m.orch.Router.Stop))
}

// setTab switches tabs. The router watch only runs while host mappings are
// visible.
func (m dashboardModel) setTab(t tab) (tea.Model, tea.Cmd) {
	if t == m.tab {
		return m, nil
	}
	if m.tab == tabMappings && m.stopWatch != nil {
		m.stopWatch()
		m.stopWatch = nil
	}
	m.tab = t
	if t == tabMappings {
		m.stopWatch = m.orch.WatchRouter()
	}
	return m, m.refreshVisible()
}

func (m dashboardModel) refreshVisible() tea.Cmd {
	switch m.tab {
	case tabLogs:
		return run("", func(ctx context.Context) error { return m.orch.Activity.RefreshLogs(ctx, 0) })
	case tabTimeline:
		return run("", m.orch.Activity.RefreshTimeline)
	case tabActivity:
		return run("", func(ctx context.Context) error { return m.orch.Activity.RefreshActivity(ctx, 0, 0) })
	}
	return nil
}

// visibleLogs applies the dashboard's log filter to the loaded entries.
func (m dashboardModel) visibleLogs() []model.LogEntry {
	return m.orch.Activity.FilteredLogs(m.logFilter)
}

func (m dashboardModel) quit() (tea.Model, tea.Cmd) {
	if m.stopWatch != nil {
		m.stopWatch()
		m.stopWatch = nil
	}
	if m.opts.OnQuit != nil {
		m.opts.OnQuit()
	}
	return m, tea.Quit
}

func (m *dashboardModel) loadHistory() {
	last, err := history.LastStarted()
	if err != nil {
		m.status = "history unavailable: " + err.Error()
		return
	}
	m.lastStarted = last
}

func (m dashboardModel) visibleProfiles() []model.Profile {
	if !m.recentFirst {
		return m.state.Profiles
	}
	return history.SortProfilesRecent(m.state.Profiles, m.lastStarted)
}

func (m dashboardModel) selectedProfile() (model.Profile, bool) {
	list := m.visibleProfiles()
	i := m.sel[tabProxies]
	if i < 0 || i >= len(list) {
		return model.Profile{}, false
	}
	return list[i], true
}

func (m dashboardModel) selectedMapping() (model.HostMapping, bool) {
	i := m.sel[tabMappings]
	if i < 0 || i >= len(m.state.Mappings) {
		return model.HostMapping{}, false
	}
	return m.state.Mappings[i], true
}

func (m dashboardModel) rowCount() int {
	switch m.tab {
	case tabProxies:
		return len(m.state.Profiles)
	case tabMappings:
		return len(m.state.Mappings)
	case tabLogs:
		return len(m.visibleLogs())
	case tabActivity:
		return len(m.state.Activity)
	default:
		return len(m.state.Timeline)
	}
}

func (m *dashboardModel) clampSelection() {
	counts := [tabCount]int{len(m.state.Profiles), len(m.state.Mappings), len(m.visibleLogs()), len(m.state.Timeline), len(m.state.Activity)}
	for i := range m.sel {
		if m.sel[i] >= counts[i] {
			m.sel[i] = counts[i] - 1
		}
		if m.sel[i] < 0 {
			m.sel[i] = 0
		}
	}
}
