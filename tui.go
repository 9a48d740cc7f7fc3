package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mantra/controller"
	"mantra/entries"
)

var (
	styleRec     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleDone    = lipgloss.NewStyle().Foreground(lipgloss.Color("40")).Bold(true)
	styleErr     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleFaint   = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleTitle   = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	styleListen  = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	styleMeterOn = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
)

type tuiModel struct {
	ctrl *controller.Controller

	session        controller.Session
	frame          int
	width, height  int
	audioLevel     float64
	peakLevel      float64
	recordingStart time.Time
	copied         bool
	entries        []entries.Entry

	phrase string
	device string
}

func NewTUIProgram(ctrl *controller.Controller, phrase, device string, initial []entries.Entry) *tea.Program {
	m := tuiModel{ctrl: ctrl, phrase: phrase, device: device, entries: initial}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "s":
			m.ctrl.StartListening(rootCtx)
		case " ", "enter":
			m.ctrl.StopRecording()
		case "c", "esc":
			m.ctrl.Cancel()
		case "r":
			m.ctrl.Reset()
		}

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case SessionMsg:
		prev := m.session.State
		m.session = msg.Session
		if m.session.State == controller.StateRecording && prev != controller.StateRecording {
			m.recordingStart = time.Now()
			m.audioLevel = 0
			m.peakLevel = 0
			m.copied = false
		}

	case AudioLevelMsg:
		if m.session.State == controller.StateRecording {
			m.audioLevel = m.audioLevel*0.6 + msg.Level*0.4
			if msg.Level > m.peakLevel {
				m.peakLevel = msg.Level
			}
		}

	case EntryListMsg:
		m.entries = msg.Entries

	case CopiedMsg:
		m.copied = true
	}
	return m, nil
}

func (m tuiModel) statusLine() []string {
	var lines []string
	switch m.session.State {
	case controller.StateIdle:
		lines = append(lines, styleDim.Render("○ idle"))
	case controller.StateListening:
		dots := strings.Repeat(".", m.frame/6%4)
		lines = append(lines, styleListen.Render(fmt.Sprintf("◎ listening for %q%s", m.phrase, dots)))
	case controller.StateRecording:
		dur := time.Since(m.recordingStart).Seconds()
		lines = append(lines, styleRec.Render(fmt.Sprintf("● REC %.1fs", dur)))
		lines = append(lines, m.levelMeter())
		if dur > 1.0 && m.peakLevel < 0.02 {
			lines = append(lines, styleWarn.Render("  ⚠ no voice detected"))
		}
	case controller.StateTranscribing:
		lines = append(lines, styleDim.Render("… transcribing"))
	case controller.StateExtracting:
		lines = append(lines, styleDim.Render("… extracting"))
	case controller.StateSubmitting:
		lines = append(lines, styleDim.Render("… saving"))
	case controller.StateDone:
		e := m.session.Entry
		line := fmt.Sprintf("✔ added %q on %s", e.Title, e.Date)
		if m.copied {
			line += "  [copied]"
		}
		lines = append(lines, styleDone.Render(line))
	case controller.StateError:
		lines = append(lines, styleErr.Render("✖ "+m.session.ErrorMessage()))
	}
	return lines
}

func (m tuiModel) levelMeter() string {
	const width = 24
	on := int(m.audioLevel * 8 * width)
	if on > width {
		on = width
	}
	return styleMeterOn.Render(strings.Repeat("▮", on)) +
		styleFaint.Render(strings.Repeat("▯", width-on))
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(styleTitle.Render("mantra "+version) + "\n\n")

	for _, line := range m.statusLine() {
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")

	if m.session.Transcript != "" && m.session.State != controller.StateListening {
		b.WriteString(styleDim.Render("heard: "+m.session.Transcript) + "\n\n")
	}

	b.WriteString(styleTitle.Render("Entries") + "\n")
	if len(m.entries) == 0 {
		b.WriteString(styleFaint.Render("  (none yet)") + "\n")
	}
	max := m.height - 12
	if max < 3 {
		max = 3
	}
	for i, e := range m.entries {
		if i >= max {
			b.WriteString(styleFaint.Render(fmt.Sprintf("  … %d more", len(m.entries)-i)) + "\n")
			break
		}
		b.WriteString(styleDim.Render(fmt.Sprintf("  %s  %s", e.Date, e.Title)) + "\n")
	}
	b.WriteString("\n")

	device := m.device
	if device == "" {
		device = "system default"
	}
	b.WriteString(styleFaint.Render("mic: "+device) + "\n")
	b.WriteString(styleFaint.Render("s listen · space stop · c cancel · r reset · q quit") + "\n")
	return b.String()
}
