package reporter

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fd1az/dexprice/business/pricing/app"
	"github.com/fd1az/dexprice/business/pricing/domain"
	"github.com/fd1az/dexprice/pkg/ui"
)

var _ app.Reporter = (*TUIReporter)(nil)

// TUIReporter forwards updates to the Bubble Tea program as messages.
type TUIReporter struct {
	send func(tea.Msg)
}

// NewTUIReporter creates a TUIReporter bound to the running ui program.
func NewTUIReporter() *TUIReporter {
	return &TUIReporter{send: ui.Send}
}

// Start marks the pool step as in progress.
func (r *TUIReporter) Start(ctx context.Context) error {
	r.send(ui.StartupMsg{Step: "pools", Status: "connecting"})
	return nil
}

// UpdatePrices sends the snapshot to the board.
func (r *TUIReporter) UpdatePrices(snapshot *domain.PriceSnapshot) {
	if snapshot == nil {
		return
	}
	r.send(ui.BlockMsg{Number: snapshot.BlockNumber, Timestamp: snapshot.Timestamp})
	r.send(ui.PriceUpdateMsg{Snapshot: snapshot})
}

// UpdateConnectionStatus sends connection status to the TUI.
func (r *TUIReporter) UpdateConnectionStatus(name string, connected bool, latency time.Duration) {
	r.send(ui.ConnectionStatusMsg{Name: name, Connected: connected, Latency: latency})
}

// Stop is a no-op; the program exits on its own quit key or on shutdown.
func (r *TUIReporter) Stop() error {
	return nil
}
