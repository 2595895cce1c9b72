package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/treykane/gostly/internal/model"
	"github.com/treykane/gostly/internal/orchestrator"
	"github.com/treykane/gostly/internal/util"
)

// formKind distinguishes the profile editor from the host mapping editor.
type formKind int

const (
	formProfile formKind = iota
	formMapping
)

// Field indices for the profile form.
const (
	fieldName = iota
	fieldType
	fieldListen
	fieldRemote
	fieldUsername
	fieldPassword
	profileFieldCount
)

// Field indices for the host mapping form.
const (
	fieldHostname = iota
	fieldIP
	fieldPort
	fieldProtocol
	mappingFieldCount
)

// formResult is returned when the operator submits a valid form. Exactly one
// of profile or mapping is set; an ID of zero means "create".
type formResult struct {
	profile *model.Profile
	mapping *model.HostMapping
}

// entryForm holds the state of the add/edit panel.
type entryForm struct {
	kind     formKind
	editID   int64
	status   model.ProfileStatus
	labels   []string
	fields   []textinput.Model
	focusIdx int

	// Mapping only.
	active bool

	errMsg string
}

func newInputs(placeholders []string, limits []int) []textinput.Model {
	out := make([]textinput.Model, len(placeholders))
	for i := range out {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = limits[i]
		ti.Width = 40
		out[i] = ti
	}
	return out
}

// newProfileForm opens the profile editor, prefilled from p when editing.
func newProfileForm(p *model.Profile) *entryForm {
	types := make([]string, len(model.ProfileTypes))
	for i, t := range model.ProfileTypes {
		types[i] = string(t)
	}
	f := &entryForm{
		kind:   formProfile,
		labels: []string{"Name:", "Type:", "Listen:", "Remote:", "Username:", "Password:"},
		fields: newInputs([]string{
			"office-socks (required)",
			strings.Join(types, " | "),
			":1080 (required)",
			"10.0.0.1:1080 (required)",
			"(optional)",
			"(optional)",
		}, []int{64, 16, 64, 256, 128, 128}),
	}
	f.fields[fieldPassword].EchoMode = textinput.EchoPassword
	f.fields[fieldType].SetValue(string(model.ProfileForward))
	if p != nil {
		f.editID = p.ID
		f.status = p.Status
		f.fields[fieldName].SetValue(p.Name)
		f.fields[fieldType].SetValue(string(p.Type))
		f.fields[fieldListen].SetValue(p.Listen)
		f.fields[fieldRemote].SetValue(p.Remote)
		f.fields[fieldUsername].SetValue(p.Username)
		f.fields[fieldPassword].SetValue(p.Password)
	}
	f.fields[0].Focus()
	return f
}

// newMappingForm opens the host mapping editor, prefilled from m when editing.
func newMappingForm(m *model.HostMapping) *entryForm {
	f := &entryForm{
		kind:   formMapping,
		labels: []string{"Hostname:", "IP:", "Port:", "Protocol:"},
		fields: newInputs([]string{
			"app.local (required)",
			"127.0.0.1 (required)",
			"3000 (required)",
			"HTTP | HTTPS | TCP",
		}, []int{253, 64, 5, 5}),
		active: true,
	}
	f.fields[fieldProtocol].SetValue(string(model.ProtocolHTTP))
	if m != nil {
		f.editID = m.ID
		f.active = m.Active
		f.fields[fieldHostname].SetValue(m.Hostname)
		f.fields[fieldIP].SetValue(m.IP)
		f.fields[fieldPort].SetValue(strconv.Itoa(m.Port))
		f.fields[fieldProtocol].SetValue(string(m.Protocol))
	}
	f.fields[0].Focus()
	return f
}

// update processes a key message and returns a formResult if the form is complete.
func (f *entryForm) update(msg tea.KeyMsg) (*formResult, tea.Cmd) {
	switch msg.String() {
	case "tab", "shift+tab", "down", "up":
		f.fields[f.focusIdx].Blur()
		n := len(f.fields)
		if msg.String() == "tab" || msg.String() == "down" {
			f.focusIdx = (f.focusIdx + 1) % n
		} else {
			f.focusIdx = (f.focusIdx - 1 + n) % n
		}
		f.fields[f.focusIdx].Focus()
		return nil, f.fields[f.focusIdx].Cursor.BlinkCmd()
	case "ctrl+a":
		if f.kind == formMapping {
			f.active = !f.active
		}
		return nil, nil
	case "enter":
		res, err := f.build()
		if err != nil {
			f.errMsg = err.Error()
			return nil, nil
		}
		return res, nil
	default:
		var cmd tea.Cmd
		f.fields[f.focusIdx], cmd = f.fields[f.focusIdx].Update(msg)
		f.errMsg = ""
		return nil, cmd
	}
}

func (f *entryForm) value(i int) string {
	return strings.TrimSpace(f.fields[i].Value())
}

func (f *entryForm) build() (*formResult, error) {
	if f.kind == formMapping {
		m, err := f.buildMapping()
		if err != nil {
			return nil, err
		}
		return &formResult{mapping: &m}, nil
	}
	p, err := f.buildProfile()
	if err != nil {
		return nil, err
	}
	return &formResult{profile: &p}, nil
}

func (f *entryForm) buildProfile() (model.Profile, error) {
	d := model.ProfileDraft{
		Name:     f.value(fieldName),
		Type:     model.ProfileType(strings.ToLower(f.value(fieldType))),
		Listen:   f.value(fieldListen),
		Remote:   f.value(fieldRemote),
		Username: f.value(fieldUsername),
		Password: f.fields[fieldPassword].Value(),
	}
	if err := orchestrator.ValidateDraft(d); err != nil {
		return model.Profile{}, err
	}
	status := f.status
	if status == "" {
		status = model.StatusStopped
	}
	return d.Profile(f.editID, status), nil
}

func (f *entryForm) buildMapping() (model.HostMapping, error) {
	port, err := strconv.Atoi(f.value(fieldPort))
	if err != nil {
		return model.HostMapping{}, fmt.Errorf("port must be a number")
	}
	if err := util.ValidatePort(port); err != nil {
		return model.HostMapping{}, err
	}
	proto, err := model.ParseProtocol(f.value(fieldProtocol))
	if err != nil {
		return model.HostMapping{}, err
	}
	m := model.HostMapping{
		ID:       f.editID,
		Hostname: strings.ToLower(f.value(fieldHostname)),
		IP:       f.value(fieldIP),
		Port:     port,
		Protocol: proto,
		Active:   f.active,
	}
	if err := m.Validate(); err != nil {
		return model.HostMapping{}, err
	}
	return m, nil
}

func (f *entryForm) title() string {
	verb := "New"
	if f.editID != 0 {
		verb = "Edit"
	}
	if f.kind == formMapping {
		return verb + " Host Mapping"
	}
	return verb + " Proxy Profile"
}

// view renders the form panel.
func (f *entryForm) view(renderPanel func(string, string, int, lipgloss.Color) string, width int) string {
	var b strings.Builder
	for i, label := range f.labels {
		cursor := "  "
		if i == f.focusIdx {
			cursor = "> "
		}
		b.WriteString(fmt.Sprintf("%s%-10s %s\n", cursor, label, f.fields[i].View()))
	}
	if f.kind == formMapping {
		mark := " "
		if f.active {
			mark = "x"
		}
		b.WriteString(fmt.Sprintf("\n  [%s] Active (routed by the host router)\n", mark))
	}
	if f.errMsg != "" {
		b.WriteString("\n" + errorStyle.Render("Error: "+f.errMsg) + "\n")
	}
	hint := "\nTab/Shift-Tab navigate | Enter save | Esc cancel"
	if f.kind == formMapping {
		hint = "\nTab/Shift-Tab navigate | Ctrl+A toggle active | Enter save | Esc cancel"
	}
	b.WriteString(hint)
	return renderPanel(f.title(), b.String(), width, lipgloss.Color("214"))
}
