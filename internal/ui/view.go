package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/treykane/gostly/internal/model"
	"github.com/treykane/gostly/internal/util"
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	activeTab    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("63")).Padding(0, 1)
	inactiveTab  = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Padding(0, 1)
)

const sidebarWidth = 34

func (m dashboardModel) View() string {
	head := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Render("gostly")
	subhead := dimStyle.Render(fmt.Sprintf("proxies=%d running=%d mappings=%d mode=%s",
		m.state.Connection.TotalProfiles, m.state.Connection.ActiveProfiles, len(m.state.Mappings), m.opts.Mode))

	width := m.effectiveWidth()
	mainWidth := width - sidebarWidth
	var body string
	switch {
	case m.state.Pending != nil:
		body = m.renderPanel("Confirm", m.confirmView(), mainWidth, lipgloss.Color("196"))
	case m.form != nil:
		body = m.form.view(m.renderPanel, mainWidth)
	default:
		body = m.renderPanel(m.tab.String(), m.tabView(mainWidth-4), mainWidth, lipgloss.Color("39"))
	}
	main := lipgloss.JoinHorizontal(lipgloss.Top, body, m.renderPanel("Status", m.sidebarView(), sidebarWidth, lipgloss.Color("69")))
	if width < 80 {
		main = lipgloss.JoinVertical(lipgloss.Left,
			m.renderPanel(m.tab.String(), m.tabView(width-4), width, lipgloss.Color("39")),
			m.renderPanel("Status", m.sidebarView(), width, lipgloss.Color("69")),
		)
		if m.form != nil {
			main = m.form.view(m.renderPanel, width)
		}
	}

	parts := []string{head, subhead, m.tabBar(), main}
	if m.showHelp {
		parts = append(parts, m.renderPanel("Help", m.helpBlock(), width, lipgloss.Color("244")))
	}
	parts = append(parts, m.renderPanel("", m.status, width, lipgloss.Color("205")), dimStyle.Render(m.keyHints()))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m dashboardModel) tabBar() string {
	var tabs []string
	for t := tab(0); t < tabCount; t++ {
		label := fmt.Sprintf("%d %s", int(t)+1, t)
		if t == m.tab {
			tabs = append(tabs, activeTab.Render(label))
		} else {
			tabs = append(tabs, inactiveTab.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m dashboardModel) tabView(width int) string {
	switch m.tab {
	case tabProxies:
		return m.proxiesView(width)
	case tabMappings:
		return m.mappingsView(width)
	case tabLogs:
		return m.logsView(width)
	case tabActivity:
		return m.activityView(width)
	default:
		return m.timelineView(width)
	}
}

func (m dashboardModel) proxiesView(width int) string {
	var b strings.Builder
	if m.state.ProfileError != "" {
		b.WriteString(errorStyle.Render(m.state.ProfileError) + "\n")
	}
	remoteW := clampWidth(width-2-18-9-14-9-4, 12)
	b.WriteString(dimStyle.Render(row("  ", cell("NAME", 18), cell("TYPE", 9), cell("LISTEN", 14), cell("REMOTE", remoteW), "STATUS")) + "\n")
	list := m.visibleProfiles()
	for i, p := range list {
		cursor := "  "
		if i == m.sel[tabProxies] {
			cursor = "> "
		}
		status := dimStyle.Render(string(p.Status))
		if p.Running() {
			status = successStyle.Render(string(p.Status))
		}
		b.WriteString(row(cursor, cell(p.Name, 18), cell(string(p.Type), 9), cell(p.Listen, 14), cell(p.Remote, remoteW), status) + "\n")
	}
	if len(list) == 0 {
		b.WriteString("  (no proxy profiles yet, press n to add one)\n")
	}
	if p, ok := m.selectedProfile(); ok {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("Auth: %s / %s", util.EmptyDash(p.Username), util.Mask(p.Password)))
		if ts, ok := m.lastStarted[p.ID]; ok && m.recentFirst {
			b.WriteString("  Last started: " + humanize.Time(time.Unix(ts, 0)))
		}
	}
	return b.String()
}

func (m dashboardModel) mappingsView(width int) string {
	var b strings.Builder
	r := m.state.Router
	routerLine := "Router: " + dimStyle.Render("stopped")
	if r.Running {
		routerLine = "Router: " + successStyle.Render("running")
	}
	if r.Busy {
		routerLine += " " + m.spinner.View()
	}
	b.WriteString(fmt.Sprintf("%s  Listen: %s", routerLine, m.addrInput.View()))
	if r.AddrError != "" {
		b.WriteString("  " + errorStyle.Render(r.AddrError))
	}
	b.WriteString("\n")
	if r.Notice != nil {
		style := successStyle
		if r.Notice.Level == model.NoticeError {
			style = errorStyle
		}
		b.WriteString(style.Render(r.Notice.Text) + "\n")
	}
	if m.state.MappingError != "" {
		b.WriteString(errorStyle.Render(m.state.MappingError) + "\n")
	}
	b.WriteString("\n")

	hostW := clampWidth(width-2-22-6-8, 16)
	b.WriteString(dimStyle.Render(row("  ", cell("HOSTNAME", hostW), cell("UPSTREAM", 22), cell("PROTO", 6), "ACTIVE")) + "\n")
	for i, hm := range m.state.Mappings {
		cursor := "  "
		if i == m.sel[tabMappings] {
			cursor = "> "
		}
		active := dimStyle.Render("no")
		if hm.Active {
			active = successStyle.Render("yes")
		}
		upstream := fmt.Sprintf("%s:%d", hm.IP, hm.Port)
		b.WriteString(row(cursor, cell(hm.Hostname, hostW), cell(upstream, 22), cell(string(hm.Protocol), 6), active) + "\n")
	}
	if len(m.state.Mappings) == 0 {
		b.WriteString("  (no host mappings, press n to add one)\n")
	}
	return b.String()
}

func (m dashboardModel) logsView(width int) string {
	var b strings.Builder
	if m.state.ActivityError != "" {
		b.WriteString(errorStyle.Render(m.state.ActivityError) + "\n")
	}
	b.WriteString(m.filterLine() + "\n")
	logs := m.visibleLogs()
	if limit := m.visibleRows(); len(logs) > limit {
		logs = logs[len(logs)-limit:]
	}
	msgW := clampWidth(width-8-6-8-16-4, 20)
	for _, e := range logs {
		level := e.Level
		switch level {
		case model.LevelError:
			level = errorStyle.Render(cell(level, 5))
		case model.LevelWarn:
			level = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render(cell(level, 5))
		default:
			level = cell(level, 5)
		}
		b.WriteString(row("", cell(clock(e.Timestamp), 8), level, cell(e.Source, 6), cell(util.EmptyDash(e.ProfileName), 16), cell(e.Message, msgW)) + "\n")
	}
	if len(logs) == 0 {
		if m.logFilter.IsZero() {
			b.WriteString("  (no log entries)\n")
		} else {
			b.WriteString("  (no log entries match the filter, press x to clear it)\n")
		}
	}
	return b.String()
}

func (m dashboardModel) filterLine() string {
	f := m.logFilter
	search := util.EmptyDash(f.Text)
	if m.editingSearch {
		search = m.searchInput.View()
	}
	return dimStyle.Render(fmt.Sprintf("Level: %s  Source: %s  Profile: %s  Search: ",
		util.DefaultString(f.Level, "all"), util.DefaultString(f.Source, "all"), util.DefaultString(f.Profile, "all"))) + search
}

func (m dashboardModel) activityView(width int) string {
	var b strings.Builder
	if m.state.ActivityError != "" {
		b.WriteString(errorStyle.Render(m.state.ActivityError) + "\n")
	}
	records := m.state.Activity
	if limit := m.visibleRows(); len(records) > limit {
		records = records[:limit]
	}
	detailW := clampWidth(width-16-18-8-4, 20)
	b.WriteString(dimStyle.Render(row("", cell("WHEN", 16), cell("PROFILE", 18), cell("ACTION", 8), "DETAILS")) + "\n")
	for _, a := range records {
		action := cell(a.Action, 8)
		if a.Status != "" && a.Status != "success" {
			action = errorStyle.Render(action)
		}
		b.WriteString(row("", cell(ago(a.Timestamp), 16), cell(util.EmptyDash(a.ProfileName), 18), action, cell(a.Details, detailW)) + "\n")
	}
	if len(records) == 0 {
		b.WriteString("  (no profile operations recorded)\n")
	}
	return b.String()
}

func (m dashboardModel) timelineView(width int) string {
	var b strings.Builder
	if m.state.ActivityError != "" {
		b.WriteString(errorStyle.Render(m.state.ActivityError) + "\n")
	}
	events := m.state.Timeline
	if limit := m.visibleRows(); len(events) > limit {
		events = events[len(events)-limit:]
	}
	detailW := clampWidth(width-16-22-4, 20)
	// Newest on top.
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		action := e.Action
		if e.Status == "error" || e.Type == model.EventError {
			action = errorStyle.Render(cell(action, 22))
		} else {
			action = cell(action, 22)
		}
		b.WriteString(row("", cell(ago(e.Timestamp), 16), action, cell(e.Details, detailW)) + "\n")
	}
	if len(events) == 0 {
		b.WriteString("  (no events recorded)\n")
	}
	return b.String()
}

func (m dashboardModel) sidebarView() string {
	c := m.state.Connection
	s := m.state.Service

	conn := errorStyle.Render("idle")
	if c.IsConnected {
		conn = successStyle.Render("active")
	}
	avail := errorStyle.Render("not found")
	if s.Available {
		avail = successStyle.Render("available")
	}
	running := dimStyle.Render("stopped")
	if s.Running {
		running = successStyle.Render("running")
	}
	checked := "never"
	if !s.LastCheck.IsZero() {
		checked = humanize.Time(s.LastCheck)
	}
	lines := []string{
		"Proxies",
		fmt.Sprintf("  State:   %s", conn),
		fmt.Sprintf("  Running: %d of %d", c.ActiveProfiles, c.TotalProfiles),
		"",
		"Engine",
		fmt.Sprintf("  gost:    %s", avail),
		fmt.Sprintf("  Version: %s", util.EmptyDash(s.Version)),
		fmt.Sprintf("  Service: %s", running),
		fmt.Sprintf("  Uptime:  %s", util.EmptyDash(s.Uptime)),
		fmt.Sprintf("  Checked: %s", checked),
		"",
		"Host router",
	}
	if m.state.Router.Running {
		lines = append(lines, "  "+successStyle.Render("running")+" on "+m.state.Router.ListenAddr)
	} else {
		lines = append(lines, "  "+dimStyle.Render("stopped"))
	}
	return strings.Join(lines, "\n")
}

func (m dashboardModel) confirmView() string {
	p := m.state.Pending
	kind := "proxy profile"
	if p.TargetKind == model.TargetHostMapping {
		kind = "host mapping"
	}
	return fmt.Sprintf("Delete %s %q?\n\nThis cannot be undone.\n\ny/Enter confirm | n/Esc cancel", kind, p.TargetLabel)
}

func (m dashboardModel) keyHints() string {
	switch {
	case m.state.Pending != nil:
		return "y confirm | n cancel"
	case m.form != nil:
		return "Enter save | Esc cancel"
	case m.editingAddr:
		return "Enter start router | Esc cancel"
	case m.editingSearch:
		return "Enter keep search | Esc clear search"
	}
	common := "1-5/Tab switch | j/k move | ? help | q quit"
	switch m.tab {
	case tabProxies:
		return "Enter start/stop | n new | e edit | d delete | s recent | r refresh | " + common
	case tabMappings:
		return "s start/stop router | a address | n new | e edit | Space active | d delete | " + common
	case tabLogs:
		return "v level | o source | p profile | / search | x reset filter | c clear | r refresh | " + common
	default:
		return "r refresh | " + common
	}
}

func (m dashboardModel) helpBlock() string {
	return strings.Join([]string{
		"  Proxies: Enter toggles the selected profile. Running profiles cannot be edited or deleted.",
		"  Host Mappings: the router routes requests by Host header to active HTTP/HTTPS mappings.",
		"  Router address must look like :8080. Press a to change it, s to start or stop.",
		"  Logs, Timeline and Activity refresh while visible.",
		"  Logs filter: v cycles the level, o the source, p the profile, / searches messages.",
		"  Quit: press q (or Ctrl+C). In local mode all running proxies are stopped.",
	}, "\n")
}

func (m dashboardModel) effectiveWidth() int {
	if m.width <= 0 {
		return 110
	}
	return m.width
}

func (m dashboardModel) visibleRows() int {
	if m.height <= 0 {
		return 30
	}
	return clampWidth(m.height-14, 5)
}

func (m dashboardModel) renderPanel(title, body string, width int, accent lipgloss.Color) string {
	if width < 24 {
		width = 24
	}
	content := strings.TrimSuffix(body, "\n")
	if title != "" {
		header := lipgloss.NewStyle().Bold(true).Foreground(accent).Render(title)
		content = header + "\n" + content
	}
	return lipgloss.NewStyle().
		Width(width-2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 1).
		Render(strings.TrimSpace(content))
}

// cell truncates s to w display columns and pads it to exactly w.
func cell(s string, w int) string {
	return runewidth.FillRight(runewidth.Truncate(s, w, "…"), w)
}

func row(cursor string, cols ...string) string {
	return cursor + strings.Join(cols, " ")
}

func clampWidth(w, floor int) int {
	if w < floor {
		return floor
	}
	return w
}

func parseTimestamp(ts string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func clock(ts string) string {
	if t, ok := parseTimestamp(ts); ok {
		return t.Local().Format("15:04:05")
	}
	return ts
}

func ago(ts string) string {
	if t, ok := parseTimestamp(ts); ok {
		return humanize.Time(t)
	}
	return ts
}
