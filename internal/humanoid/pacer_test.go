package humanoid

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/flowpilot-cli/internal/config"
)

func TestPacingDelayStaysInsideWindow(t *testing.T) {
	p := NewPacer(config.HumanoidConfig{
		Enabled:     true,
		PacingMinMs: 100,
		PacingMaxMs: 300,
	}, zaptest.NewLogger(t))

	for i := 0; i < 200; i++ {
		d := p.PacingDelay()
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 300*time.Millisecond)
	}
}

func TestDisabledPacerProducesZeroDelays(t *testing.T) {
	p := NewPacer(config.HumanoidConfig{Enabled: false}, zaptest.NewLogger(t))

	assert.False(t, p.Enabled())
	assert.Equal(t, time.Duration(0), p.PacingDelay())
	assert.Equal(t, time.Duration(0), p.KeyDelay())
	require.NoError(t, p.Pace(context.Background()))
}

func TestKeyDelayHasFloor(t *testing.T) {
	p := NewPacer(config.HumanoidConfig{
		Enabled:        true,
		KeyDelayMeanMs: 20,
		KeyDelayStdMs:  50, // wide spread forces samples below the floor
	}, zaptest.NewLogger(t))

	for i := 0; i < 500; i++ {
		assert.GreaterOrEqual(t, p.KeyDelay(), 15*time.Millisecond)
	}
}

func TestPaceHonorsCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := NewPacer(config.HumanoidConfig{
		Enabled:     true,
		PacingMinMs: 5000,
		PacingMaxMs: 5000,
	}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := p.Pace(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestTypeTextPressesEveryRune(t *testing.T) {
	p := NewPacer(config.HumanoidConfig{Enabled: false}, zaptest.NewLogger(t))

	var typed []rune
	err := p.TypeText(context.Background(), "héllo", func(r rune) error {
		typed = append(typed, r)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []rune("héllo"), typed)
}

func TestTypeTextStopsOnCancelledContext(t *testing.T) {
	p := NewPacer(config.HumanoidConfig{Enabled: false}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pressed := 0
	err := p.TypeText(ctx, "hello", func(rune) error {
		pressed++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, pressed)
}
