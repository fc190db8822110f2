// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// SortMode selects the board ordering.
type SortMode int

const (
	SortByUSD SortMode = iota
	SortBySymbol
	SortByMove
)

func (m SortMode) String() string {
	switch m {
	case SortBySymbol:
		return "symbol"
	case SortByMove:
		return "move"
	default:
		return "usd"
	}
}

// Next cycles through sort modes.
func (m SortMode) Next() SortMode {
	return (m + 1) % 3
}

// TokenRow is one line of the price board.
type TokenRow struct {
	ID         string
	Symbol     string
	DerivedETH decimal.Decimal
	PriceUSD   decimal.Decimal
	// Move is the USD change since the previous snapshot, in percent.
	Move decimal.Decimal
}

// PricesComponent renders the token price board.
type PricesComponent struct {
	rows     []TokenRow
	previous map[string]decimal.Decimal
	ethUSD   decimal.Decimal
	sortMode SortMode
	offset   int
	visible  int
}

// NewPricesComponent creates a board showing at most visible rows at a time.
func NewPricesComponent(visible int) *PricesComponent {
	if visible <= 0 {
		visible = 15
	}
	return &PricesComponent{
		previous: make(map[string]decimal.Decimal),
		visible:  visible,
	}
}

var hundred = decimal.NewFromInt(100)

// Update replaces the board rows and computes each row's move against the
// last price seen for the same token.
func (p *PricesComponent) Update(ethUSD decimal.Decimal, rows []TokenRow) {
	p.ethUSD = ethUSD
	for i := range rows {
		prev, ok := p.previous[rows[i].ID]
		if ok && !prev.IsZero() {
			rows[i].Move = rows[i].PriceUSD.Sub(prev).Div(prev).Mul(hundred)
		}
		p.previous[rows[i].ID] = rows[i].PriceUSD
	}
	p.rows = rows
	p.sort()
	if p.offset > p.maxOffset() {
		p.offset = p.maxOffset()
	}
}

// Rows returns the rows in display order.
func (p *PricesComponent) Rows() []TokenRow {
	return p.rows
}

// SortMode returns the current ordering.
func (p *PricesComponent) SortMode() SortMode {
	return p.sortMode
}

// CycleSort switches to the next ordering.
func (p *PricesComponent) CycleSort() {
	p.sortMode = p.sortMode.Next()
	p.sort()
}

// ScrollUp scrolls the board up by one row.
func (p *PricesComponent) ScrollUp() {
	if p.offset > 0 {
		p.offset--
	}
}

// ScrollDown scrolls the board down by one row.
func (p *PricesComponent) ScrollDown() {
	if p.offset < p.maxOffset() {
		p.offset++
	}
}

func (p *PricesComponent) maxOffset() int {
	if n := len(p.rows) - p.visible; n > 0 {
		return n
	}
	return 0
}

func (p *PricesComponent) sort() {
	rows := p.rows
	switch p.sortMode {
	case SortBySymbol:
		sort.SliceStable(rows, func(i, j int) bool {
			return strings.ToLower(rows[i].Symbol) < strings.ToLower(rows[j].Symbol)
		})
	case SortByMove:
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Move.Abs().GreaterThan(rows[j].Move.Abs())
		})
	default:
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].PriceUSD.GreaterThan(rows[j].PriceUSD)
		})
	}
}

// View renders the prices component.
func (p *PricesComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	upStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	downStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("TOKENS (ETH $%s)", p.ethUSD.StringFixed(2))))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  sort: %s", p.sortMode)))
	b.WriteString("\n\n")

	if len(p.rows) == 0 {
		b.WriteString(dimStyle.Render("  Waiting for price data..."))
		return b.String()
	}

	b.WriteString(fmt.Sprintf("  %-10s  %20s  %16s  %9s\n", "Token", "Derived ETH", "USD", "Move"))
	b.WriteString(dimStyle.Render("  "+strings.Repeat("─", 61)) + "\n")

	end := p.offset + p.visible
	if end > len(p.rows) {
		end = len(p.rows)
	}
	for _, row := range p.rows[p.offset:end] {
		moveStyle := dimStyle
		switch {
		case row.Move.IsPositive():
			moveStyle = upStyle
		case row.Move.IsNegative():
			moveStyle = downStyle
		}

		b.WriteString(fmt.Sprintf("  %-10s  %20s  %16s  %s\n",
			truncate(row.Symbol, 10),
			row.DerivedETH.StringFixed(10),
			"$"+formatUSD(row.PriceUSD),
			moveStyle.Render(fmt.Sprintf("%8s%%", row.Move.StringFixed(2))),
		))
	}

	if len(p.rows) > p.visible {
		b.WriteString(dimStyle.Render(fmt.Sprintf("\n  %d-%d of %d", p.offset+1, end, len(p.rows))))
	}

	return b.String()
}

func formatUSD(d decimal.Decimal) string {
	if d.LessThan(decimal.NewFromInt(1)) {
		return d.StringFixed(6)
	}
	return d.StringFixed(2)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
