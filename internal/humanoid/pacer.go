// internal/humanoid/pacer.go
package humanoid

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/flowpilot-cli/internal/config"
)

// Pacer produces human-plausible delays: pacing pauses between flow
// iterations and per-keystroke cadence while typing. A disabled pacer
// returns zero delays, which keeps tests fast.
type Pacer struct {
	cfg    config.HumanoidConfig
	logger *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewPacer builds a Pacer from configuration.
func NewPacer(cfg config.HumanoidConfig, logger *zap.Logger) *Pacer {
	return &Pacer{
		cfg:    cfg,
		logger: logger.Named("pacer"),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Enabled reports whether human-timing simulation is active.
func (p *Pacer) Enabled() bool {
	return p.cfg.Enabled
}

// Pace blocks for a uniformly random duration inside the configured pacing
// window, honoring context cancellation.
func (p *Pacer) Pace(ctx context.Context) error {
	d := p.PacingDelay()
	if d <= 0 {
		return ctx.Err()
	}

	p.logger.Debug("Pacing between iterations", zap.Duration("delay", d))
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PacingDelay returns the next inter-iteration delay without sleeping.
func (p *Pacer) PacingDelay() time.Duration {
	if !p.cfg.Enabled {
		return 0
	}

	minMs, maxMs := p.cfg.PacingMinMs, p.cfg.PacingMaxMs
	if minMs < 0 {
		minMs = 0
	}
	if maxMs <= minMs {
		return time.Duration(minMs) * time.Millisecond
	}

	p.mu.Lock()
	spread := p.rng.Intn(maxMs - minMs + 1)
	p.mu.Unlock()

	return time.Duration(minMs+spread) * time.Millisecond
}

// KeyDelay returns a Gaussian-distributed delay for a single keystroke,
// clamped to a sane floor so bursts never look machine-fast.
func (p *Pacer) KeyDelay() time.Duration {
	if !p.cfg.Enabled {
		return 0
	}

	p.mu.Lock()
	sample := p.rng.NormFloat64()*p.cfg.KeyDelayStdMs + p.cfg.KeyDelayMeanMs
	p.mu.Unlock()

	const floorMs = 15.0
	if sample < floorMs {
		sample = floorMs
	}
	return time.Duration(sample * float64(time.Millisecond))
}

// TypeText invokes press for each rune of text with a human keystroke
// cadence in between. The press callback performs the actual key event.
func (p *Pacer) TypeText(ctx context.Context, text string, press func(r rune) error) error {
	for _, r := range text {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := press(r); err != nil {
			return err
		}

		d := p.KeyDelay()
		if d <= 0 {
			continue
		}
		timer := time.NewTimer(d)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return nil
}
