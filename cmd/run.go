// -- cmd/run.go --
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/flowpilot-cli/api/schemas"
	"github.com/xkilldash9x/flowpilot-cli/internal/browser"
	"github.com/xkilldash9x/flowpilot-cli/internal/config"
	"github.com/xkilldash9x/flowpilot-cli/internal/flow"
	"github.com/xkilldash9x/flowpilot-cli/internal/humanoid"
	"github.com/xkilldash9x/flowpilot-cli/internal/llmclient"
	"github.com/xkilldash9x/flowpilot-cli/internal/network"
	"github.com/xkilldash9x/flowpilot-cli/internal/observability"
	"github.com/xkilldash9x/flowpilot-cli/internal/oracle"
	"github.com/xkilldash9x/flowpilot-cli/internal/reporting"
	"github.com/xkilldash9x/flowpilot-cli/internal/sink"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [urls...]",
		Short: "Runs one flow session per target URL",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags so command-line values override config and env.
			if err := viper.BindPFlag("flow.max_iterations", cmd.Flags().Lookup("max-iterations")); err != nil {
				return err
			}
			if err := viper.BindPFlag("report.output_dir", cmd.Flags().Lookup("output-dir")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			var cfg config.Config
			if err := viper.Unmarshal(&cfg); err != nil {
				return fmt.Errorf("failed to unmarshal config with flag overrides: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			targets := normalizeTargets(args)
			concurrency := viper.GetInt("concurrency")
			if concurrency <= 0 {
				concurrency = 1
			}

			logger.Info("Starting flow sessions",
				zap.Strings("targets", targets),
				zap.Int("concurrency", concurrency),
				zap.Int("max_iterations", cfg.Flow.MaxIterations),
			)

			components, err := initializeRunComponents(ctx, &cfg, logger)
			if err != nil {
				if components != nil {
					components.Shutdown(ctx)
				}
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown(ctx)

			// Each target runs as an independent session; sessions share the
			// browser process and oracle but no flow state.
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(concurrency)

			failures := make([]bool, len(targets))
			for i, target := range targets {
				g.Go(func() error {
					report := runSession(gctx, components, &cfg, target, logger)
					failures[i] = report == nil || !report.Success
					return nil
				})
			}
			// Session errors resolve into failed reports, never group errors.
			_ = g.Wait()

			failed := 0
			for _, f := range failures {
				if f {
					failed++
				}
			}
			fmt.Printf("\n%d/%d sessions completed successfully.\n", len(targets)-failed, len(targets))
			if failed > 0 {
				return fmt.Errorf("%d of %d sessions failed", failed, len(targets))
			}
			return nil
		},
	}

	runCmd.Flags().IntP("concurrency", "j", 1, "Number of sessions to run in parallel.")
	runCmd.Flags().Int("max-iterations", 0, "Iteration cap per session. (Overrides config/env)")
	runCmd.Flags().StringP("output-dir", "o", "", "Directory for flow reports. (Overrides config/env)")

	return runCmd
}

// runComponents holds the services shared by all sessions of one invocation.
type runComponents struct {
	BrowserManager *browser.Manager
	Proxy          *network.RotatingProxy
	LLMRouter      schemas.LLMClient
	Oracle         schemas.DecisionOracle
	Sink           schemas.SessionSink

	proxyCancel context.CancelFunc
}

// Shutdown gracefully closes all components.
func (rc *runComponents) Shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if rc.BrowserManager != nil {
		if err := rc.BrowserManager.Shutdown(shutdownCtx); err != nil {
			observability.GetLogger().Warn("Error during browser manager shutdown", zap.Error(err))
		}
	}
	if rc.proxyCancel != nil {
		rc.proxyCancel()
	}
	if rc.Sink != nil {
		if err := rc.Sink.Close(); err != nil {
			observability.GetLogger().Warn("Error closing session sink", zap.Error(err))
		}
	}
	if rc.LLMRouter != nil {
		if err := rc.LLMRouter.Close(); err != nil {
			observability.GetLogger().Warn("Error closing LLM clients", zap.Error(err))
		}
	}
}

// initializeRunComponents handles dependency injection.
func initializeRunComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*runComponents, error) {
	components := &runComponents{}

	// 1. Rotating forward proxy (optional).
	proxyAddr := ""
	if cfg.Network.Proxy.Enabled {
		proxy, err := network.NewRotatingProxy(cfg.Network.Proxy, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize rotating proxy: %w", err)
		}
		components.Proxy = proxy
		proxyAddr = proxy.Addr()

		proxyCtx, cancel := context.WithCancel(ctx)
		components.proxyCancel = cancel
		go func() {
			if err := proxy.Start(proxyCtx); err != nil {
				logger.Error("Rotating proxy terminated", zap.Error(err))
			}
		}()
	}

	// 2. Browser manager.
	manager, err := browser.NewManager(ctx, cfg, proxyAddr, logger)
	if err != nil {
		return components, fmt.Errorf("failed to initialize browser manager: %w", err)
	}
	components.BrowserManager = manager

	// 3. LLM router and oracle.
	router, err := llmclient.NewRouterFromConfig(cfg.Oracle, logger)
	if err != nil {
		return components, fmt.Errorf("failed to initialize LLM clients: %w", err)
	}
	components.LLMRouter = router
	components.Oracle = oracle.New(logger, router, cfg.Oracle)

	// 4. Session sink.
	sessionSink, err := sink.New(ctx, cfg.Sink, logger)
	if err != nil {
		return components, fmt.Errorf("failed to initialize session sink: %w", err)
	}
	components.Sink = sessionSink

	return components, nil
}

// runSession drives one flow against one target and writes its report. A
// failed session produces a failure report, never an error.
func runSession(ctx context.Context, components *runComponents, cfg *config.Config, target string, logger *zap.Logger) *schemas.FlowReport {
	sessionID := uuid.New().String()
	log := logger.With(zap.String("session_id", sessionID), zap.String("target", target))

	pacer := humanoid.NewPacer(cfg.Browser.Humanoid, log)

	session, err := components.BrowserManager.NewSession(ctx, pacer)
	if err != nil {
		log.Error("Failed to create browser session", zap.Error(err))
		return nil
	}
	defer session.Close()

	if err := session.Navigate(ctx, target); err != nil {
		log.Error("Initial navigation failed", zap.Error(err))
		return nil
	}

	observer := browser.NewObserver(session, log)
	orchestrator := flow.NewOrchestrator(
		sessionID,
		observer,
		components.Oracle,
		session,
		session, // the session doubles as the redirect handler
		components.Sink,
		pacer,
		cfg.Flow,
		log,
	)

	report := orchestrator.Run(ctx)
	writeReport(report, cfg.Report, log)
	return report
}

// writeReport persists the JSON report and prints the text summary.
func writeReport(report *schemas.FlowReport, cfg config.ReportConfig, logger *zap.Logger) {
	if cfg.OutputDir != "" {
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			logger.Error("Failed to create report directory", zap.Error(err))
		} else {
			path := reporting.DefaultReportPath(cfg.OutputDir, report.SessionID)
			if err := writeReportFile(report, cfg.Format, path); err != nil {
				logger.Error("Failed to write flow report", zap.Error(err))
			} else {
				logger.Info("Flow report written", zap.String("path", path))
			}
		}
	}

	// Always echo the human-readable summary.
	summary, err := reporting.New("text", "stdout")
	if err == nil {
		_ = summary.Write(report)
		_ = summary.Close()
	}
}

func writeReportFile(report *schemas.FlowReport, format, path string) error {
	reporter, err := reporting.New(format, path)
	if err != nil {
		return err
	}
	defer reporter.Close()
	return reporter.Write(report)
}

// normalizeTargets ensures every target carries a scheme.
func normalizeTargets(args []string) []string {
	out := make([]string, len(args))
	for i, t := range args {
		if !strings.HasPrefix(t, "http://") && !strings.HasPrefix(t, "https://") {
			t = "https://" + t
		}
		out[i] = t
	}
	return out
}
