package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fd1az/dexprice/business/blockchain"
	"github.com/fd1az/dexprice/business/pricing"
	pricingApp "github.com/fd1az/dexprice/business/pricing/app"
	pricingDI "github.com/fd1az/dexprice/business/pricing/di"
	"github.com/fd1az/dexprice/internal/apm"
	"github.com/fd1az/dexprice/internal/config"
	"github.com/fd1az/dexprice/internal/health"
	"github.com/fd1az/dexprice/internal/logger"
	"github.com/fd1az/dexprice/internal/metrics"
	"github.com/fd1az/dexprice/internal/monolith"
	"github.com/fd1az/dexprice/pkg/ui"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Follow new blocks and keep token prices current",
		RunE:  runService,
	}
	cmd.Flags().Bool("cli", false, "Run in CLI mode with logs (no TUI)")
	return cmd
}

func runService(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// TUI is the default, CLI is for debugging
	cliMode, _ := cmd.Flags().GetBool("cli")
	cfg.App.TUIMode = !cliMode

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// In TUI mode only warnings and errors reach the board's log panel
	var out io.Writer = os.Stderr
	if cfg.App.TUIMode {
		out = ui.NewLogWriter()
	}
	log := newLogger(cfg, out)
	defer log.Sync()

	log.Info(ctx, "starting dexprice",
		"version", version,
		"environment", cfg.App.Environment,
		"chain_id", cfg.Ethereum.ChainID,
	)

	healthServer := health.NewServer(cfg.Health.Port, version, log)

	shutdownTelemetry, err := setupTelemetry(ctx, cfg, log, healthServer)
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", cfg.Health.Port)
	}
	defer healthServer.Stop(context.Background())

	mono, err := monolith.New(ctx, cfg, log, healthServer)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	modules := []monolith.Module{
		&blockchain.Module{}, // Must be first - provides block subscription
		&pricing.Module{},    // Follows blocks from blockchain
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	if cfg.App.TUIMode {
		// Start modules in background so the TUI shows immediately
		startFunc := func() error {
			if err := mono.StartModules(ctx, modules...); err != nil {
				return fmt.Errorf("failed to start modules: %w", err)
			}
			return pricingDI.GetWatcher(mono.Services()).Start(ctx)
		}
		stopFunc := func() {
			_ = pricingDI.GetWatcher(mono.Services()).Stop()
		}
		return runTUI(ctx, startFunc, stopFunc)
	}

	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}
	return runCLI(ctx, pricingDI.GetWatcher(mono.Services()), log)
}

// setupTelemetry installs the global tracer and meter providers when
// telemetry is enabled and mounts /metrics on the health server. The returned
// func flushes both.
func setupTelemetry(ctx context.Context, cfg *config.Config, log logger.LoggerInterface, healthServer *health.Server) (func(), error) {
	if !cfg.Telemetry.Enabled {
		return func() {}, nil
	}

	provider, ok := apm.ParseProvider(cfg.Telemetry.TraceProvider)
	if !ok {
		return nil, fmt.Errorf("unknown trace provider %q", cfg.Telemetry.TraceProvider)
	}
	headers := metrics.ParseHeaders(cfg.Telemetry.OTLPHeaders)

	traceProvider, err := apm.NewTraceProvider(ctx, apm.TraceConfig{
		Provider:    provider,
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Headers:     headers,
		Insecure:    cfg.Telemetry.OTLPInsecure,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}

	opts := []metrics.OptionFn{
		metrics.WithServiceName(cfg.Telemetry.ServiceName),
		metrics.WithPrometheus(),
	}
	if cfg.Telemetry.OTLPMetrics {
		opts = append(opts, metrics.WithOTLP(cfg.Telemetry.OTLPEndpoint, headers, cfg.Telemetry.OTLPInsecure, cfg.Telemetry.PushInterval))
	}

	meterProvider, err := metrics.NewMetricProvider(ctx, opts...)
	if err != nil {
		_ = traceProvider.Stop()
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	healthServer.Handle("/metrics", metrics.Handler())
	log.Info(ctx, "metrics initialized", "otlp", cfg.Telemetry.OTLPMetrics)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn(shutdownCtx, "metrics shutdown failed", "error", err)
		}
		if err := traceProvider.Stop(); err != nil {
			log.Warn(shutdownCtx, "trace shutdown failed", "error", err)
		}
	}, nil
}

func runCLI(ctx context.Context, watcher *pricingApp.Watcher, log logger.LoggerInterface) error {
	log.Info(ctx, "all modules started, following blocks")

	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	// Wait for shutdown
	<-ctx.Done()

	log.Info(ctx, "shutting down")

	if err := watcher.Stop(); err != nil {
		log.Error(ctx, "error stopping watcher", "error", err)
	}
	<-watcher.Done()

	return nil
}

func runTUI(ctx context.Context, startFunc func() error, stopFunc func()) error {
	// Channel to receive StartModulesMsg signal
	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}

	p := tea.NewProgram(ui.New(), tea.WithAltScreen(), tea.WithContext(ctx))
	ui.Program = p

	errCh := make(chan error, 1)
	go func() {
		// Wait for the welcome screen to finish
		select {
		case <-startSignal:
		case <-ctx.Done():
			errCh <- nil
			return
		}

		// Connections happen here, the TUI shows progress
		if err := startFunc(); err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
			errCh <- err
			return
		}

		<-ctx.Done()

		stopFunc()
		errCh <- nil
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}
