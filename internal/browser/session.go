// internal/browser/session.go
package browser

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/flowpilot-cli/api/schemas"
	"github.com/xkilldash9x/flowpilot-cli/internal/config"
	"github.com/xkilldash9x/flowpilot-cli/internal/humanoid"
)

//go:embed js/visible_errors.js
var visibleErrorsScript string

const (
	defaultNavigationTimeout = 60 * time.Second
	defaultActionTimeout     = 15 * time.Second
)

// Session is a single isolated browser tab. It implements
// schemas.InteractionSurface and schemas.RedirectHandler.
type Session struct {
	id     string
	logger *zap.Logger
	cfg    *config.Config
	pacer  *humanoid.Pacer

	// mu guards tabCtx, which can be swapped when a click opens a new target.
	mu        sync.RWMutex
	tabCtx    context.Context
	tabCancel context.CancelFunc

	onClose   func()
	closeOnce sync.Once
}

var _ schemas.InteractionSurface = (*Session)(nil)
var _ schemas.RedirectHandler = (*Session)(nil)

// newSession creates a browser tab from the allocator context and applies the
// stealth persona. taskCtx bounds the lifetime of the whole session.
func newSession(
	allocCtx context.Context,
	taskCtx context.Context,
	cfg *config.Config,
	persona Persona,
	pacer *humanoid.Pacer,
	logger *zap.Logger,
) (*Session, error) {
	sessionID := uuid.New().String()
	log := logger.With(zap.String("session_id", sessionID))

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// Tie the tab to the task lifecycle.
	go func() {
		select {
		case <-taskCtx.Done():
			tabCancel()
		case <-tabCtx.Done():
		}
	}()

	s := &Session{
		id:        sessionID,
		logger:    log,
		cfg:       cfg,
		pacer:     pacer,
		tabCtx:    tabCtx,
		tabCancel: tabCancel,
	}

	if cfg.Browser.Stealth.Enabled {
		if err := chromedp.Run(tabCtx, applyStealth(persona, log)); err != nil {
			tabCancel()
			return nil, fmt.Errorf("failed to apply stealth persona: %w", err)
		}
	}

	log.Info("Browser session initialized.")
	return s, nil
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// tab returns the currently active tab context.
func (s *Session) tab() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tabCtx
}

// run executes chromedp actions on the active tab, bounded by both the caller
// context and a per-operation timeout.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(s.tab(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(opCtx, actions...)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

// Navigate loads a URL and waits for the page to settle.
func (s *Session) Navigate(ctx context.Context, url string) error {
	timeout := s.cfg.Network.NavigationTimeout
	if timeout <= 0 {
		timeout = defaultNavigationTimeout
	}

	s.logger.Info("Navigating", zap.String("url", url))
	if err := s.run(ctx, timeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation to '%s' failed: %w", url, err)
	}
	return s.WaitForIdle(ctx)
}

// Click clicks the first element matching the CSS selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	err := s.run(ctx, defaultActionTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("click on '%s' failed: %w", selector, err)
	}
	return nil
}

// Fill types a value into a text input, one key at a time when humanoid
// pacing is enabled.
func (s *Session) Fill(ctx context.Context, selector, value string) error {
	opCtx, cancel := context.WithTimeout(s.tab(), defaultActionTimeout+typingBudget(s.pacer, value))
	defer cancel()

	err := chromedp.Run(opCtx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Focus(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, "", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to focus '%s': %w", selector, err)
	}

	if s.pacer != nil && s.pacer.Enabled() {
		return s.pacer.TypeText(ctx, value, func(r rune) error {
			return chromedp.Run(opCtx, chromedp.KeyEvent(string(r)))
		})
	}

	if err := chromedp.Run(opCtx, chromedp.SendKeys(selector, value, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to type into '%s': %w", selector, err)
	}
	return nil
}

// SelectOption sets the value of a <select> element and fires the events a
// real selection would.
func (s *Session) SelectOption(ctx context.Context, selector, value string) error {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		el.value = %q;
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		return el.value === %q;
	})()`, selector, value, value)

	var ok bool
	if err := s.run(ctx, defaultActionTimeout, chromedp.Evaluate(script, &ok)); err != nil {
		return fmt.Errorf("select on '%s' failed: %w", selector, err)
	}
	if !ok {
		return fmt.Errorf("option '%s' not found in select element '%s'", value, selector)
	}
	return nil
}

// Back navigates one entry back in the tab history.
func (s *Session) Back(ctx context.Context) error {
	if err := s.run(ctx, defaultActionTimeout, chromedp.NavigateBack()); err != nil {
		return fmt.Errorf("history navigation failed: %w", err)
	}
	return s.WaitForIdle(ctx)
}

// WaitForIdle waits for the document to finish loading, then for the
// configured post-load quiet period.
func (s *Session) WaitForIdle(ctx context.Context) error {
	var ready bool
	err := s.run(ctx, defaultActionTimeout,
		chromedp.Poll("document.readyState === 'complete'", &ready),
	)
	if err != nil {
		// Slow pages are reported by the observer, not here.
		s.logger.Debug("Page did not reach readyState complete in time.", zap.Error(err))
	}

	quiet := s.cfg.Network.PostLoadWait
	if quiet <= 0 {
		quiet = 1500 * time.Millisecond
	}
	return sleepCtx(ctx, quiet)
}

// WaitMs pauses for the given number of milliseconds, honoring cancellation.
func (s *Session) WaitMs(ctx context.Context, ms int) error {
	if ms <= 0 {
		return nil
	}
	return sleepCtx(ctx, time.Duration(ms)*time.Millisecond)
}

// Screenshot captures the visible viewport as PNG bytes.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, defaultActionTimeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return buf, nil
}

// VisibleErrorText scrapes text from visible error-indicator elements.
func (s *Session) VisibleErrorText(ctx context.Context) ([]string, error) {
	var errs []string
	if err := s.run(ctx, defaultActionTimeout, chromedp.Evaluate(visibleErrorsScript, &errs)); err != nil {
		return nil, fmt.Errorf("error scrape failed: %w", err)
	}
	return errs, nil
}

// CurrentURL returns the URL of the active tab.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := s.run(ctx, defaultActionTimeout, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return url, nil
}

// ExecuteScript evaluates a JavaScript expression in the page and unmarshals
// the result into res.
func (s *Session) ExecuteScript(ctx context.Context, script string, res interface{}) error {
	if err := s.run(ctx, defaultActionTimeout, chromedp.Evaluate(script, res)); err != nil {
		return fmt.Errorf("script evaluation failed: %w", err)
	}
	return nil
}

// OuterHTML returns the full serialized document.
func (s *Session) OuterHTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, defaultActionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to capture document HTML: %w", err)
	}
	return html, nil
}

// Close tears down the tab.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.logger.Info("Closing browser session.")
		s.tabCancel()
		if s.onClose != nil {
			s.onClose()
		}
	})
	return nil
}

// typingBudget extends the action timeout to cover per-key pacing for long
// values.
func typingBudget(pacer *humanoid.Pacer, value string) time.Duration {
	if pacer == nil || !pacer.Enabled() {
		return 0
	}
	chars := len(strings.TrimSpace(value))
	return time.Duration(chars) * 250 * time.Millisecond
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
