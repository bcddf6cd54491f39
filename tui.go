package main

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"voicecircle/hotkey"
	"voicecircle/visualizer"
)

// TUI message types
type ListeningMsg struct{ On bool }
type FrameMsg struct{ Frame visualizer.Frame }
type LogLineMsg struct{ Text string }
type CaptionMsg struct{ Text string }
type NoVoiceMsg struct{ Warn bool }
type StatusMsg struct{ Text string } // transient, e.g. clipboard result
type ModeLineMsg struct{ Text string }
type DeviceLineMsg struct{ Text string }

type tuiActions struct {
	toggle func()
	copy   func() string
}

type tuiModel struct {
	cfg     visualizer.Config
	raster  *visualizer.Raster
	enc     *visualizer.TermEncoder
	actions tuiActions
	hotkey  bool

	circle        string
	listening     bool
	noVoice       bool
	caption       string
	logLines      []string
	status        string
	modeLine      string
	deviceLine    string
	width, height int
}

// Pre-computed styles to avoid allocations in the render path
var (
	styleListening = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleIdle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleWarn      = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleMode      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleDim       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleHelp      = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleHelpBold  = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	styleCaption   = lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Italic(true)
	styleLog       = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	styleTitle     = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	styleStatus    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

func newTUIModel(cfg visualizer.Config, cols, rows int, actions tuiActions, hotkeyOn bool) (tuiModel, error) {
	raster, err := visualizer.NewRaster(cfg)
	if err != nil {
		return tuiModel{}, err
	}
	bg, err := visualizer.ParseHex(cfg.Colors.Background)
	if err != nil {
		return tuiModel{}, err
	}
	m := tuiModel{
		cfg:     cfg,
		raster:  raster,
		enc:     visualizer.NewTermEncoder(cols, rows, bg),
		actions: actions,
		hotkey:  hotkeyOn,
	}
	m.circle = m.enc.Encode(m.raster.Draw(visualizer.IdleFrame(cfg)))
	return m, nil
}

func NewTUIProgram(m tuiModel) *tea.Program {
	return tea.NewProgram(m, tea.WithAltScreen())
}

func (m tuiModel) Init() tea.Cmd {
	return nil
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
		case " ", "enter":
			if m.actions.toggle != nil {
				go m.actions.toggle()
			}
		case "c":
			if m.actions.copy != nil {
				m.status = m.actions.copy()
			}
		}

	case ListeningMsg:
		m.listening = msg.On
		if !msg.On {
			m.noVoice = false
			m.caption = ""
			m.circle = m.enc.Encode(m.raster.Draw(visualizer.IdleFrame(m.cfg)))
		}

	case FrameMsg:
		m.circle = m.enc.Encode(m.raster.Draw(msg.Frame))

	case LogLineMsg:
		m.logLines = append(m.logLines, msg.Text)

	case CaptionMsg:
		m.caption = msg.Text

	case NoVoiceMsg:
		m.noVoice = msg.Warn

	case StatusMsg:
		m.status = msg.Text

	case ModeLineMsg:
		m.modeLine = msg.Text

	case DeviceLineMsg:
		m.deviceLine = msg.Text
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	cols, _ := m.enc.Size()
	panelWidth := cols + 2

	left := m.circle
	for _, line := range m.infoLines() {
		left += line + "\n"
	}
	leftLines := strings.Split(left, "\n")

	padded := make([]string, m.height)
	for i := range padded {
		if i < len(leftLines) {
			padded[i] = leftLines[i]
		}
	}
	leftPanel := lipgloss.NewStyle().
		Width(panelWidth).
		Height(m.height).
		Render(strings.Join(padded, "\n"))

	logWidth := max(m.width-panelWidth-1, 20)
	logPanel := lipgloss.NewStyle().
		Width(logWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(m.renderLog(logWidth-2, m.height))

	return lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, logPanel)
}

func (m tuiModel) infoLines() []string {
	var lines []string
	lines = append(lines, m.buttonLine(), "")

	if m.listening {
		lines = append(lines, styleListening.Render("● LISTENING"))
		if m.noVoice {
			lines = append(lines, styleWarn.Render("  ⚠ no voice detected"))
		}
	} else {
		lines = append(lines, styleIdle.Render("○ IDLE"))
	}
	if m.modeLine != "" {
		lines = append(lines, styleMode.Render(m.modeLine))
	}
	if m.deviceLine != "" {
		lines = append(lines, styleDim.Render(m.deviceLine))
	}
	if m.status != "" {
		lines = append(lines, styleStatus.Render(m.status))
	}

	lines = append(lines, "")
	help := styleHelpBold.Render("space") + styleHelp.Render(" start/stop  ") +
		styleHelpBold.Render("c") + styleHelp.Render(" copy  ") +
		styleHelpBold.Render("q") + styleHelp.Render(" quit")
	lines = append(lines, help)
	if m.hotkey {
		lines = append(lines, styleHelpBold.Render(hotkey.Combo)+styleHelp.Render(" toggles from anywhere"))
	}
	lines = append(lines, styleHelp.Render("voicecircle "+version))
	return lines
}

func (m tuiModel) buttonLine() string {
	label, hex := " Start Listening ", m.cfg.Colors.StartButton
	if m.listening {
		label, hex = " Stop Listening ", m.cfg.Colors.StopButton
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color(hex)).
		Bold(true).
		Render(label)
}

// renderLog shows the caption above the newest log lines that fit.
func (m tuiModel) renderLog(width, height int) string {
	width = max(width, 10)
	var out []string
	out = append(out, styleTitle.Render("Transcript"), "")
	if m.caption != "" {
		for _, l := range wrapText(m.caption, width) {
			out = append(out, styleCaption.Render(l))
		}
		out = append(out, "")
	}

	room := max(height-len(out), 1)
	if len(m.logLines) == 0 {
		return strings.Join(append(out, styleDim.Render("Nothing yet. Press space to start listening.")), "\n")
	}

	// wrap from the newest entry back until the panel is full
	var body []string
	for i := len(m.logLines) - 1; i >= 0 && len(body) < room; i-- {
		wrapped := wrapText(m.logLines[i], width)
		styled := make([]string, len(wrapped))
		for j, l := range wrapped {
			styled[j] = styleLog.Render(l)
		}
		body = append(styled, body...)
	}
	if len(body) > room {
		body = body[len(body)-room:]
	}
	return strings.Join(append(out, body...), "\n")
}

func deviceLineText(name string, bluetooth bool) string {
	if name == "" {
		name = "system default"
	}
	if bluetooth {
		name += " (BT!)"
	}
	return "mic: " + name
}

// wrapText breaks text into lines of at most width cells, on spaces
// where possible.
func wrapText(text string, width int) []string {
	if text == "" {
		return []string{""}
	}
	width = max(width, 2)
	lines := strings.Split(ansi.Wrap(text, width, ""), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	return lines
}
