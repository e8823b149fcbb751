// internal/browser/redirect.go
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// newTargetWait bounds how long a click is given to spawn a new target
// before we assume it navigated in place.
const newTargetWait = 3 * time.Second

// HandleRedirectClick clicks an element whose navigation may open a new
// browser target (target=_blank, window.open). When a new target appears the
// session adopts it, so subsequent observations see the right page.
func (s *Session) HandleRedirectClick(ctx context.Context, selector string) error {
	tab := s.tab()

	targetCh := chromedp.WaitNewTarget(tab, func(info *target.Info) bool {
		return info.Type == "page" && info.URL != "" && info.URL != "about:blank"
	})

	if err := s.Click(ctx, selector); err != nil {
		return err
	}

	select {
	case id := <-targetCh:
		return s.adoptTarget(ctx, id)
	case <-time.After(newTargetWait):
		// In-place navigation; nothing to adopt.
		return s.WaitForIdle(ctx)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// adoptTarget swaps the active tab context to the newly opened target. The
// previous tab stays alive under the same allocator until the session closes.
func (s *Session) adoptTarget(ctx context.Context, id target.ID) error {
	s.mu.Lock()
	prevCtx, prevCancel := s.tabCtx, s.tabCancel

	newCtx, newCancel := chromedp.NewContext(prevCtx, chromedp.WithTargetID(id))
	s.tabCtx = newCtx
	s.tabCancel = func() {
		newCancel()
		prevCancel()
	}
	s.mu.Unlock()

	// Attach to the target; a failed attach rolls the swap back.
	if err := chromedp.Run(newCtx); err != nil {
		s.mu.Lock()
		s.tabCtx = prevCtx
		s.tabCancel = prevCancel
		s.mu.Unlock()
		newCancel()
		return fmt.Errorf("failed to adopt new browser target: %w", err)
	}

	s.logger.Info("Adopted new browser target after redirect click.",
		zap.String("target_id", string(id)))
	return s.WaitForIdle(ctx)
}
