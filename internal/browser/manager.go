// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/flowpilot-cli/internal/config"
	"github.com/xkilldash9x/flowpilot-cli/internal/humanoid"
)

// Manager handles the lifecycle of the headless browser process. All session
// tabs are derived from its allocator context.
type Manager struct {
	logger *zap.Logger
	cfg    *config.Config

	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc

	persona Persona

	// proxyAddr, when set, routes all browser traffic through the local
	// rotating proxy.
	proxyAddr string

	// wg tracks active sessions for a graceful shutdown.
	wg sync.WaitGroup
}

// NewManager launches the browser process and verifies it is responsive.
// proxyAddr may be empty when no forward proxy is configured.
func NewManager(ctx context.Context, cfg *config.Config, proxyAddr string, logger *zap.Logger) (*Manager, error) {
	m := &Manager{
		logger:    logger.Named("browser_manager"),
		cfg:       cfg,
		persona:   PersonaFromConfig(cfg.Browser.Stealth),
		proxyAddr: proxyAddr,
	}

	if err := m.launchBrowser(ctx); err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return m, nil
}

// launchBrowser prepares allocator options and starts the headless browser process.
func (m *Manager) launchBrowser(ctx context.Context) error {
	m.logger.Info("Initializing browser allocator...")

	opts := m.buildAllocatorOptions()

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	m.allocatorCtx = allocCtx
	m.allocatorCancel = cancel

	// Create a temporary context with a timeout to verify the browser starts
	// and is responsive.
	testCtx, cancelTest := context.WithTimeout(allocCtx, 30*time.Second)
	testCtx, cancelTestCtx := chromedp.NewContext(testCtx)
	defer cancelTestCtx()
	defer cancelTest()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		m.allocatorCancel()
		return fmt.Errorf("browser failed to start or respond: %w", err)
	}

	m.logger.Info("Browser launched successfully and is responsive.")
	return nil
}

// buildAllocatorOptions assembles the flags for a stealthy, configurable
// browser instance.
func (m *Manager) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	// Start with default options, filtering out flags that reveal automation.
	// Options are opaque funcs, so the "enable-automation" default is removed
	// by overriding it with a false value (false bool flags are omitted).
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.Flag("enable-automation", false))

	opts = append(opts,
		chromedp.Flag("headless", m.cfg.Browser.Headless),
		chromedp.Flag("ignore-certificate-errors", m.cfg.Browser.IgnoreTLSErrors),
		// Disable the Blink feature used to detect automation (navigator.webdriver).
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", m.cfg.Browser.Headless),
		chromedp.UserAgent(m.persona.UserAgent),
	)

	if m.cfg.Browser.DisableCache {
		opts = append(opts, chromedp.Flag("disable-application-cache", true))
	}

	if m.proxyAddr != "" {
		opts = append(opts, chromedp.ProxyServer(m.proxyAddr))
	}

	if w, h := m.viewport(); w > 0 && h > 0 {
		opts = append(opts, chromedp.WindowSize(w, h))
	}

	// Add custom arguments from the config file.
	for _, arg := range m.cfg.Browser.Args {
		parts := strings.SplitN(arg, "=", 2)
		flagName := strings.TrimPrefix(parts[0], "--")

		if len(parts) == 2 {
			opts = append(opts, chromedp.Flag(flagName, parts[1]))
		} else {
			opts = append(opts, chromedp.Flag(flagName, true))
		}
	}

	// Flags required for running inside containers.
	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}

	return opts
}

func (m *Manager) viewport() (int, int) {
	return m.cfg.Browser.Viewport["width"], m.cfg.Browser.Viewport["height"]
}

// NewSession creates a new, isolated browser tab with the stealth persona
// applied, wired to the given pacer.
func (m *Manager) NewSession(taskCtx context.Context, pacer *humanoid.Pacer) (*Session, error) {
	s, err := newSession(m.allocatorCtx, taskCtx, m.cfg, m.persona, pacer, m.logger)
	if err != nil {
		return nil, err
	}

	m.wg.Add(1)
	s.onClose = func() { m.wg.Done() }
	return s, nil
}

// Shutdown waits for active sessions to finish and terminates the browser
// process.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Browser manager shutdown initiated. Waiting for active sessions to complete...")

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("All sessions have completed.")
	case <-ctx.Done():
		m.logger.Warn("Shutdown deadline exceeded. Forcing browser termination.", zap.Error(ctx.Err()))
	}

	if m.allocatorCancel != nil {
		m.logger.Info("Shutting down main browser process...")
		m.allocatorCancel()
		<-m.allocatorCtx.Done()
	}
	return nil
}
