// Package ui provides the Bubble Tea price board.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/dexprice/internal/apperror"
	"github.com/fd1az/dexprice/pkg/ui/components"
)

// StartupStep represents a step in the startup process.
type StartupStep struct {
	Name   string
	Status string // "pending", "connecting", "connected", "failed", "done"
}

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome   Phase = "welcome"
	PhaseStartup   Phase = "startup"
	PhaseDashboard Phase = "dashboard"
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 1500 * time.Millisecond

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

var startupOrder = []string{"config", "ethereum", "pools"}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	prices *components.PricesComponent
	status *components.StatusComponent
	keys   KeyMap
	help   help.Model

	phase        Phase
	welcomeStart time.Time
	startupTime  time.Time
	startupSteps map[string]*StartupStep

	quitting     bool
	paused       bool
	width        int
	height       int
	currentBlock uint64
	refreshes    uint64
	lastRefresh  time.Time
	errors       []ErrorEntry
	logs         []string
}

// New creates a new TUI model.
func New() Model {
	now := time.Now()
	return Model{
		prices:       components.NewPricesComponent(15),
		status:       components.NewStatusComponent(),
		keys:         DefaultKeyMap(),
		help:         help.New(),
		phase:        PhaseWelcome,
		welcomeStart: now,
		startupTime:  now,
		startupSteps: map[string]*StartupStep{
			"config":   {Name: "Loading configuration", Status: "pending"},
			"ethereum": {Name: "Connecting to Ethereum", Status: "pending"},
			"pools":    {Name: "Reading pool state", Status: "pending"},
		},
	}
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		if m.phase == PhaseWelcome {
			m.leaveWelcome()
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.Sort):
			m.prices.CycleSort()
		case key.Matches(msg, m.keys.Up):
			m.prices.ScrollUp()
		case key.Matches(msg, m.keys.Down):
			m.prices.ScrollDown()
		case key.Matches(msg, m.keys.ClearErrors):
			m.errors = nil
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case TickMsg:
		if m.phase == PhaseWelcome && time.Since(m.welcomeStart) >= WelcomeDuration {
			m.leaveWelcome()
		}
		return m, tickCmd()

	case PriceUpdateMsg:
		if msg.Snapshot == nil || m.paused {
			break
		}
		s := msg.Snapshot
		rows := make([]components.TokenRow, 0, len(s.Tokens))
		for _, t := range s.Tokens {
			rows = append(rows, components.TokenRow{
				ID:         t.TokenID,
				Symbol:     t.Symbol,
				DerivedETH: t.DerivedETH,
				PriceUSD:   t.PriceUSD,
			})
		}
		m.prices.Update(s.EthPriceUSD, rows)
		m.refreshes++
		m.lastRefresh = time.Now()
		if s.BlockNumber > m.currentBlock {
			m.currentBlock = s.BlockNumber
		}
		m.markStep("pools", "done")
		m.enterDashboard()

	case ConnectionStatusMsg:
		m.status.Update(components.ConnectionStatus{
			Name:       msg.Name,
			Connected:  msg.Connected,
			Latency:    msg.Latency,
			LastUpdate: time.Now(),
		})
		m.markStep("config", "done")
		if step := strings.ToLower(msg.Name); msg.Connected {
			m.markStep(step, "connected")
		} else {
			m.markStep(step, "connecting")
		}

	case BlockMsg:
		m.currentBlock = msg.Number
		m.markStep("ethereum", "connected")

	case StartupMsg:
		m.markStep(msg.Step, msg.Status)

	case ErrorMsg:
		m.logs = addLog(m.logs, "error", msg.Error.Error())
		m.errors = append(m.errors, ErrorEntry{Message: apperror.Summary(msg.Error), Timestamp: time.Now()})
		if len(m.errors) > 3 {
			m.errors = m.errors[len(m.errors)-3:]
		}

	case LogMsg:
		m.logs = addLog(m.logs, msg.Level, msg.Message)
	}

	return m, nil
}

func (m *Model) leaveWelcome() {
	m.phase = PhaseStartup
	m.startupTime = time.Now()
	if OnStartModules != nil {
		go OnStartModules()
	}
}

func (m *Model) enterDashboard() {
	if m.phase == PhaseStartup {
		m.phase = PhaseDashboard
	}
}

func (m *Model) markStep(name, status string) {
	if step, ok := m.startupSteps[name]; ok {
		step.Status = status
	}
}

// addLog adds a log message and returns the updated slice (keeps last 5).
func addLog(logs []string, level, message string) []string {
	line := fmt.Sprintf("[%s] %s: %s", time.Now().Format("15:04:05"), level, message)
	logs = append(logs, line)
	if len(logs) > 5 {
		logs = logs[len(logs)-5:]
	}
	return logs
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}

	switch m.phase {
	case PhaseWelcome:
		return m.renderWelcomeScreen()
	case PhaseStartup:
		return m.renderStartupScreen()
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(" DEX Price Board "))
	b.WriteString("\n\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	width := m.width - 4
	if width < 70 {
		width = 70
	}
	b.WriteString(BoxStyle.Width(width).Render(m.prices.View()))
	b.WriteString("\n\n")

	if len(m.logs) > 0 {
		b.WriteString(HeaderStyle.Render("LOG"))
		b.WriteString("\n")
		for _, l := range m.logs {
			b.WriteString(MutedValue.Render("  " + l))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(m.errors) > 0 {
		b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(ColorDown).Render("ERRORS"))
		b.WriteString(MutedValue.Render(" (e: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := time.Since(err.Timestamp).Round(time.Second)
			b.WriteString(ErrorStyle.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(MutedValue.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.paused {
		b.WriteString(WarningStyle.Render("⏸ PAUSED"))
		b.WriteString(" • ")
	}
	b.WriteString(HelpStyle.Render(m.help.View(m.keys)))

	return b.String()
}

func (m Model) renderWelcomeScreen() string {
	elapsed := time.Since(m.welcomeStart)
	dots := strings.Repeat(".", int(elapsed.Milliseconds()/300)%4)

	var sb strings.Builder
	sb.WriteString("\n\n\n\n")
	sb.WriteString(HeaderStyle.Render("          D E X   P R I C E"))
	sb.WriteString("\n\n")
	sb.WriteString(MutedValue.Render("    Uniswap V3 token prices, derived per block"))
	sb.WriteString("\n\n\n")
	sb.WriteString(lipgloss.NewStyle().Foreground(ColorUp).Render("            Initializing" + dots))
	sb.WriteString("\n\n")
	sb.WriteString(MutedValue.Render("      Press any key to skip, or wait..."))
	sb.WriteString("\n")
	return sb.String()
}

func (m Model) renderStartupScreen() string {
	success := lipgloss.NewStyle().Foreground(ColorUp)
	connecting := lipgloss.NewStyle().Foreground(ColorWarning)
	failed := lipgloss.NewStyle().Foreground(ColorDown)

	var sb strings.Builder
	sb.WriteString("\n\n")
	sb.WriteString(HeaderStyle.Render("  DEX Price Board"))
	sb.WriteString("\n\n")
	sb.WriteString(lipgloss.NewStyle().Bold(true).Render("  Starting up..."))
	sb.WriteString("\n\n")

	for _, name := range startupOrder {
		step := m.startupSteps[name]

		var icon, text string
		style := MutedValue
		switch step.Status {
		case "connected", "done":
			icon, text, style = "✓", "Ready", success
		case "connecting":
			spinners := []string{"◐", "◓", "◑", "◒"}
			icon = spinners[int(time.Since(m.startupTime).Milliseconds()/200)%len(spinners)]
			text, style = "Connecting...", connecting
		case "failed":
			icon, text, style = "✗", "Failed", failed
		default:
			icon, text = "○", "Pending"
		}

		sb.WriteString(fmt.Sprintf("  %s %s %s\n", style.Render(icon), MutedValue.Render(step.Name), style.Render(text)))
	}

	sb.WriteString("\n")
	sb.WriteString(MutedValue.Render(fmt.Sprintf("  Elapsed: %s", time.Since(m.startupTime).Round(time.Second))))
	sb.WriteString("\n\n")
	sb.WriteString(MutedValue.Render("  Waiting for the first price refresh..."))
	sb.WriteString("\n")

	return sb.String()
}

func (m Model) renderStatusBar() string {
	parts := []string{fmt.Sprintf("Block: #%d", m.currentBlock)}

	if m.refreshes > 0 {
		parts = append(parts, lipgloss.NewStyle().Foreground(ColorUp).Render(fmt.Sprintf("Refreshes: %d", m.refreshes)))
	}

	parts = append(parts, m.status.View())

	if !m.lastRefresh.IsZero() {
		parts = append(parts, MutedValue.Render(fmt.Sprintf("Updated: %s ago", time.Since(m.lastRefresh).Round(time.Second))))
	}

	return strings.Join(parts, "  │  ")
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// OnStartModules is called when the welcome screen completes and modules should start.
var OnStartModules func()


// Send sends a message to the running program.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
}
