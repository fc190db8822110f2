// Package reporter contains the price display adapters.
package reporter

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fd1az/dexprice/business/pricing/app"
	"github.com/fd1az/dexprice/business/pricing/domain"
)

var _ app.Reporter = (*ConsoleReporter)(nil)

// ConsoleReporter implements Reporter for CLI output.
type ConsoleReporter struct {
	out io.Writer
}

// NewConsoleReporter creates a ConsoleReporter writing to stdout.
func NewConsoleReporter() *ConsoleReporter {
	return NewConsoleReporterTo(os.Stdout)
}

// NewConsoleReporterTo creates a ConsoleReporter writing to w.
func NewConsoleReporterTo(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: w}
}

// Start prints the banner.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	fmt.Fprintln(r.out, "DEX Price Watcher Started")
	fmt.Fprintln(r.out, "=========================")
	return nil
}

// UpdatePrices prints one table per snapshot.
func (r *ConsoleReporter) UpdatePrices(snapshot *domain.PriceSnapshot) {
	if snapshot == nil {
		return
	}

	rule := strings.Repeat("-", 64)
	fmt.Fprintln(r.out, "")
	fmt.Fprintf(r.out, "Block #%d  %s  ETH $%s\n",
		snapshot.BlockNumber,
		snapshot.Timestamp.Format(time.RFC3339),
		snapshot.EthPriceUSD.StringFixed(2),
	)
	fmt.Fprintln(r.out, rule)
	fmt.Fprintf(r.out, "%-12s %-44s %24s %16s\n", "TOKEN", "ADDRESS", "DERIVED ETH", "USD")
	for _, t := range snapshot.Tokens {
		fmt.Fprintf(r.out, "%-12s %-44s %24s %16s\n",
			t.Symbol,
			t.TokenID,
			t.DerivedETH.StringFixed(12),
			t.PriceUSD.StringFixed(6),
		)
	}
	fmt.Fprintln(r.out, rule)
}

// UpdateConnectionStatus outputs connection status changes.
func (r *ConsoleReporter) UpdateConnectionStatus(name string, connected bool, latency time.Duration) {
	status := "disconnected"
	if connected {
		status = fmt.Sprintf("ok (%s)", latency.Round(time.Millisecond))
	}
	fmt.Fprintf(r.out, "[%s] %s: %s\n", time.Now().Format("15:04:05"), name, status)
}

// Stop prints the shutdown line.
func (r *ConsoleReporter) Stop() error {
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "DEX Price Watcher Stopped")
	return nil
}
