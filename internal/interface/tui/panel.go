package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jinford/wiki-keepalive/internal/module/keepalive/domain"
)

const (
	refreshInterval = 2 * time.Second
	logTailLines    = 200
)

// ErrNothingSelected は対象Wikiが1つも選択されていない場合のエラー
var ErrNothingSelected = errors.New("Wikiが選択されていません")

// BotStatus はBotプロセスの状態
type BotStatus struct {
	PID     int
	Running bool
}

// Controller はパネルから操作するBotプロセスです
type Controller interface {
	Start(only []string) error
	Stop() error
	Status() (BotStatus, error)
	Tail(n int) ([]string, error)
}

type refreshMsg struct {
	status BotStatus
	lines  []string
	err    error
}

type tickMsg time.Time

type actionMsg struct {
	note string
	err  error
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#3FB950"))
	stoppedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F85149"))
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	logBoxStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// Model はコントロールパネルの bubbletea モデルです
type Model struct {
	targets    []domain.WikiTarget
	selected   []bool
	cursor     int
	controller Controller

	status BotStatus
	note   string
	errMsg string

	logs   viewport.Model
	width  int
	height int
}

// NewModel は新しいパネルを作成します。初期状態ではすべてのWikiが選択されている
func NewModel(targets []domain.WikiTarget, controller Controller) *Model {
	selected := make([]bool, len(targets))
	for i := range selected {
		selected[i] = true
	}
	return &Model{
		targets:    targets,
		selected:   selected,
		controller: controller,
		logs:       viewport.New(80, 12),
	}
}

// Run はパネルを起動し、終了するまでブロックします
func Run(targets []domain.WikiTarget, controller Controller) error {
	_, err := tea.NewProgram(NewModel(targets, controller), tea.WithAltScreen()).Run()
	return err
}

// Init is called once when the program starts.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), tick())
}

// Update is called when a message is received.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.logs.Width = max(20, msg.Width-4)
		m.logs.Height = max(5, msg.Height-len(m.targets)-10)
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.refresh(), tick())

	case refreshMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.status = msg.status
		atBottom := m.logs.AtBottom()
		m.logs.SetContent(strings.Join(msg.lines, "\n"))
		if atBottom {
			m.logs.GotoBottom()
		}
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			m.note = ""
		} else {
			m.errMsg = ""
			m.note = msg.note
		}
		return m, m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.targets)-1 {
				m.cursor++
			}
		case " ":
			if len(m.selected) > 0 {
				m.selected[m.cursor] = !m.selected[m.cursor]
			}
		case "a":
			all := !m.allSelected()
			for i := range m.selected {
				m.selected[i] = all
			}
		case "r":
			return m, m.start()
		case "s":
			return m, m.stop()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.logs, cmd = m.logs.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	return m, nil
}

// View renders the current state to a string.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Wiki Keep-Alive Bot"))
	b.WriteString("\n\n")

	for i, target := range m.targets {
		cursor := "  "
		if i == m.cursor {
			cursor = cursorStyle.Render("> ")
		}
		check := "[ ]"
		if m.selected[i] {
			check = "[x]"
		}
		fmt.Fprintf(&b, "%s%s %s (%s)\n", cursor, check, target.Description, target.Host)
	}
	b.WriteString("\n")

	if m.status.Running {
		b.WriteString(runningStyle.Render(fmt.Sprintf("● 稼働中 (pid %d)", m.status.PID)))
	} else {
		b.WriteString(stoppedStyle.Render("○ 停止中"))
	}
	if m.note != "" {
		b.WriteString("  " + m.note)
	}
	b.WriteString("\n")
	if m.errMsg != "" {
		b.WriteString(errorStyle.Render("エラー: "+m.errMsg) + "\n")
	}

	b.WriteString(logBoxStyle.Render(m.logs.View()))
	b.WriteString("\n")
	b.WriteString(hintStyle.Render("space: 選択  a: 全選択  r: 起動  s: 停止  q: 終了"))
	return b.String()
}

// Selected は選択中のWiki名を設定順で返します
func (m *Model) Selected() []string {
	var names []string
	for i, target := range m.targets {
		if m.selected[i] {
			names = append(names, target.Description)
		}
	}
	return names
}

func (m *Model) allSelected() bool {
	for _, s := range m.selected {
		if !s {
			return false
		}
	}
	return true
}

func (m *Model) start() tea.Cmd {
	only := m.Selected()
	if len(only) == 0 {
		return func() tea.Msg { return actionMsg{err: ErrNothingSelected} }
	}
	if m.status.Running {
		return func() tea.Msg {
			return actionMsg{err: fmt.Errorf("Botはすでに稼働中です (pid %d)", m.status.PID)}
		}
	}
	controller := m.controller
	return func() tea.Msg {
		if err := controller.Start(only); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{note: fmt.Sprintf("起動しました: %s", strings.Join(only, ", "))}
	}
}

func (m *Model) stop() tea.Cmd {
	controller := m.controller
	return func() tea.Msg {
		if err := controller.Stop(); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{note: "停止を要求しました"}
	}
}

func (m *Model) refresh() tea.Cmd {
	controller := m.controller
	return func() tea.Msg {
		status, err := controller.Status()
		if err != nil {
			return refreshMsg{err: err}
		}
		lines, err := controller.Tail(logTailLines)
		if err != nil {
			return refreshMsg{err: err}
		}
		return refreshMsg{status: status, lines: lines}
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
