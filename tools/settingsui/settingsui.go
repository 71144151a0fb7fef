// Package settingsui is a terminal form for editing the device settings
// file in place.
package settingsui

import (
	"errors"
	"io/fs"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"labmonitor/shared/settings"
)

// Run loads path (or the defaults when it does not exist yet) and runs the
// editor until the user quits.
func Run(path string) error {
	st, err := settings.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		st, err = settings.Default(), nil
	}
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(New(path, st), tea.WithAltScreen()).Run()
	return err
}

var (
	colorTitleBg = lipgloss.Color("17")
	colorTitleFg = lipgloss.Color("51")
	colorKey     = lipgloss.Color("147")
	colorDim     = lipgloss.Color("240")
	colorOK      = lipgloss.Color("42")
	colorErr     = lipgloss.Color("196")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorTitleFg).Background(colorTitleBg).Padding(0, 1)
	keyStyle    = lipgloss.NewStyle().Foreground(colorKey).Width(24)
	cursorStyle = lipgloss.NewStyle().Bold(true).Reverse(true)
	dimStyle    = lipgloss.NewStyle().Foreground(colorDim)
	okStyle     = lipgloss.NewStyle().Foreground(colorOK)
	errStyle    = lipgloss.NewStyle().Foreground(colorErr)
)

type model struct {
	path   string
	st     settings.Settings
	fields []settings.Field
	cursor int

	editing bool
	input   string

	dirty     bool
	quitArmed bool
	status    string
	err       error
}

func New(path string, st settings.Settings) model {
	return model{path: path, st: st, fields: st.Fields()}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if m.editing {
		return m.updateEditing(key), nil
	}

	if key.String() != "q" {
		m.quitArmed = false
	}
	switch key.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "q":
		if m.dirty && !m.quitArmed {
			m.quitArmed = true
			m.status = "unsaved changes: press q again to discard, s to save"
			return m, nil
		}
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.fields)-1 {
			m.cursor++
		}
	case "enter":
		m.editing = true
		m.input = m.fields[m.cursor].Value
		m.err = nil
		m.status = ""
	case "tab":
		m.cycleModel()
	case "s":
		m.save()
	}
	return m, nil
}

func (m model) updateEditing(key tea.KeyMsg) model {
	switch key.Type {
	case tea.KeyEsc:
		m.editing = false
		m.input = ""
		m.err = nil
	case tea.KeyEnter:
		m.set(m.fields[m.cursor].Key, m.input)
		if m.err == nil {
			m.editing = false
			m.input = ""
		}
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(key.Runes)
	}
	return m
}

// cycleModel steps a sensor{N}_name field through the supported models,
// with the empty slot last.
func (m *model) cycleModel() {
	f := m.fields[m.cursor]
	if !strings.HasPrefix(f.Key, "sensor") || !strings.HasSuffix(f.Key, "_name") {
		return
	}
	choices := append(slices.Clone(settings.Models), "none")
	current := f.Value
	if current == "" {
		current = "none"
	}
	next := choices[0]
	if i := slices.Index(choices, current); i >= 0 {
		next = choices[(i+1)%len(choices)]
	}
	m.set(f.Key, next)
}

func (m *model) set(key, value string) {
	if err := m.st.Set(key, value); err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.dirty = true
	m.status = ""
	m.fields = m.st.Fields()
}

func (m *model) save() {
	if err := m.st.Validate(); err != nil {
		m.err = err
		return
	}
	if err := m.st.Save(m.path); err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.dirty = false
	m.status = "saved " + m.path
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("LabMonitor settings") + " " + dimStyle.Render(m.path) + "\n\n")

	for i, f := range m.fields {
		value := f.Value
		if f.Key == settings.KeySecretKey && value != "" && !(m.editing && i == m.cursor) {
			value = strings.Repeat("*", 8)
		}
		if m.editing && i == m.cursor {
			value = m.input + "█"
		}
		line := keyStyle.Render(f.Key) + " " + value
		if i == m.cursor {
			line = cursorStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n")
	switch {
	case m.err != nil:
		b.WriteString(errStyle.Render(m.err.Error()) + "\n")
	case m.status != "":
		b.WriteString(okStyle.Render(m.status) + "\n")
	case m.dirty:
		b.WriteString(dimStyle.Render("modified") + "\n")
	}

	help := "↑/↓ move  enter edit  tab cycle model  s save  q quit"
	if m.editing {
		help = "enter apply  esc cancel"
	}
	b.WriteString(dimStyle.Render(help))
	return b.String()
}
