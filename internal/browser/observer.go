// internal/browser/observer.go
package browser

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/flowpilot-cli/api/schemas"
)

//go:embed js/page_analysis.js
var pageAnalysisScript string

// Observer produces PageAnalysis snapshots of a session's current page. The
// primary extraction path runs a DOM-scanning script in the page; when that
// fails (CSP, broken page, detached frame) it falls back to parsing the raw
// HTML in Go.
type Observer struct {
	session *Session
	logger  *zap.Logger
}

var _ schemas.PageObserver = (*Observer)(nil)

// NewObserver wires an Observer to a browser session.
func NewObserver(session *Session, logger *zap.Logger) *Observer {
	return &Observer{
		session: session,
		logger:  logger.Named("observer"),
	}
}

// scriptResult mirrors the object returned by the page analysis script.
type scriptResult struct {
	PageInfo           schemas.PageInfo           `json:"page_info"`
	FormData           schemas.FormData           `json:"form_data"`
	NavigationElements schemas.NavigationElements `json:"navigation_elements"`
}

// Observe captures a fresh snapshot of the current page.
func (o *Observer) Observe(ctx context.Context) (*schemas.PageAnalysis, error) {
	url, err := o.session.CurrentURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("observation failed: %w", err)
	}

	analysis := &schemas.PageAnalysis{
		URL:       url,
		Timestamp: time.Now().UTC(),
	}

	var res scriptResult
	if err := o.session.ExecuteScript(ctx, pageAnalysisScript, &res); err != nil {
		o.logger.Warn("In-page analysis script failed; falling back to HTML parsing.",
			zap.String("url", url), zap.Error(err))
		return o.observeFromHTML(ctx, analysis)
	}

	analysis.PageInfo = res.PageInfo
	analysis.FormData = res.FormData
	analysis.NavigationElements = res.NavigationElements
	return analysis, nil
}

// observeFromHTML is the degraded extraction path. It sees no computed styles,
// so visibility is assumed for every element it finds.
func (o *Observer) observeFromHTML(ctx context.Context, analysis *schemas.PageAnalysis) (*schemas.PageAnalysis, error) {
	raw, err := o.session.OuterHTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("observation failed: %w", err)
	}

	parsed, err := parsePageHTML(raw)
	if err != nil {
		return nil, fmt.Errorf("observation failed: %w", err)
	}

	analysis.PageInfo = parsed.PageInfo
	analysis.FormData = parsed.FormData
	analysis.NavigationElements = parsed.NavigationElements
	return analysis, nil
}
