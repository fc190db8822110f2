package ui

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	"github.com/fd1az/dexprice/business/pricing/domain"
)

func snapshot(block uint64) *domain.PriceSnapshot {
	return &domain.PriceSnapshot{
		BlockNumber: block,
		Timestamp:   time.Now(),
		EthPriceUSD: decimal.NewFromInt(2000),
		Tokens: []domain.TokenPrice{
			{TokenID: "0xa", Symbol: "WETH", DerivedETH: decimal.NewFromInt(1), PriceUSD: decimal.NewFromInt(2000)},
		},
	}
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestModel_PriceUpdateEntersDashboard(t *testing.T) {
	m := New()
	m = update(m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.phase != PhaseStartup {
		t.Fatalf("phase = %s, want startup", m.phase)
	}

	m = update(m, PriceUpdateMsg{Snapshot: snapshot(10)})
	if m.phase != PhaseDashboard {
		t.Errorf("phase = %s, want dashboard", m.phase)
	}
	if m.currentBlock != 10 || m.refreshes != 1 {
		t.Errorf("block = %d refreshes = %d", m.currentBlock, m.refreshes)
	}
	if len(m.prices.Rows()) != 1 {
		t.Errorf("rows = %d, want 1", len(m.prices.Rows()))
	}
}

func TestModel_PauseIgnoresUpdates(t *testing.T) {
	m := New()
	m.phase = PhaseDashboard
	m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	if !m.paused {
		t.Fatal("p should pause")
	}

	m = update(m, PriceUpdateMsg{Snapshot: snapshot(11)})
	if m.refreshes != 0 {
		t.Error("paused board should ignore price updates")
	}
}

func TestModel_ErrorsKeepLastThree(t *testing.T) {
	m := New()
	for i := 0; i < 5; i++ {
		m = update(m, ErrorMsg{Error: errors.New("boom")})
	}
	if len(m.errors) != 3 {
		t.Errorf("errors = %d, want 3", len(m.errors))
	}
	if len(m.logs) != 5 {
		t.Errorf("logs = %d, want 5", len(m.logs))
	}
}

func TestModel_ConnectionStatusMarksStep(t *testing.T) {
	m := New()
	m = update(m, ConnectionStatusMsg{Name: "Ethereum", Connected: true, Latency: 20 * time.Millisecond})

	if got := m.startupSteps["ethereum"].Status; got != "connected" {
		t.Errorf("ethereum step = %s", got)
	}
	if got := m.startupSteps["config"].Status; got != "done" {
		t.Errorf("config step = %s", got)
	}
}
