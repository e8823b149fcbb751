package llmclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/flowpilot-cli/api/schemas"
	"github.com/xkilldash9x/flowpilot-cli/internal/config"
)

// stubClient records the requests it receives and replies with a fixed
// response.
type stubClient struct {
	name     string
	requests []schemas.GenerationRequest
	closed   int
}

func (s *stubClient) Generate(_ context.Context, req schemas.GenerationRequest) (string, error) {
	s.requests = append(s.requests, req)
	return s.name, nil
}

func (s *stubClient) Close() error {
	s.closed++
	return nil
}

func TestRouterRoutesByTier(t *testing.T) {
	fast := &stubClient{name: "fast"}
	powerful := &stubClient{name: "powerful"}

	r, err := NewRouter(zaptest.NewLogger(t), fast, powerful, 0, 0)
	require.NoError(t, err)

	out, err := r.Generate(context.Background(), schemas.GenerationRequest{Tier: schemas.TierFast})
	require.NoError(t, err)
	assert.Equal(t, "fast", out)

	out, err = r.Generate(context.Background(), schemas.GenerationRequest{Tier: schemas.TierPowerful})
	require.NoError(t, err)
	assert.Equal(t, "powerful", out)
}

func TestRouterDefaultsToPowerfulTier(t *testing.T) {
	fast := &stubClient{name: "fast"}
	powerful := &stubClient{name: "powerful"}

	r, err := NewRouter(zaptest.NewLogger(t), fast, powerful, 0, 0)
	require.NoError(t, err)

	out, err := r.Generate(context.Background(), schemas.GenerationRequest{})
	require.NoError(t, err)
	assert.Equal(t, "powerful", out)
	assert.Empty(t, fast.requests)
}

func TestRouterRejectsUnknownTier(t *testing.T) {
	r, err := NewRouter(zaptest.NewLogger(t), &stubClient{}, &stubClient{}, 0, 0)
	require.NoError(t, err)

	_, err = r.Generate(context.Background(), schemas.GenerationRequest{Tier: "quantum"})
	assert.Error(t, err)
}

func TestRouterRequiresBothClients(t *testing.T) {
	_, err := NewRouter(zaptest.NewLogger(t), nil, &stubClient{}, 0, 0)
	assert.Error(t, err)
}

func TestRouterRateLimiterHonorsCancellation(t *testing.T) {
	fast := &stubClient{name: "fast"}
	powerful := &stubClient{name: "powerful"}

	// One request per hour with burst 1: the second call must block.
	r, err := NewRouter(zaptest.NewLogger(t), fast, powerful, 1.0/3600, 1)
	require.NoError(t, err)

	_, err = r.Generate(context.Background(), schemas.GenerationRequest{Tier: schemas.TierFast})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Generate(ctx, schemas.GenerationRequest{Tier: schemas.TierFast})
	assert.Error(t, err)
}

func TestRouterCloseClosesEachClientOnce(t *testing.T) {
	fast := &stubClient{name: "fast"}
	powerful := &stubClient{name: "powerful"}

	r, err := NewRouter(zaptest.NewLogger(t), fast, powerful, 0, 0)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	assert.Equal(t, 1, fast.closed)
	assert.Equal(t, 1, powerful.closed)

	// The same client serving both tiers is still closed once.
	shared := &stubClient{name: "shared"}
	r, err = NewRouter(zaptest.NewLogger(t), shared, shared, 0, 0)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, 1, shared.closed)
}

func TestNewClientRejectsUnknownProvider(t *testing.T) {
	_, err := NewClient(config.LLMModelConfig{Provider: "delphi"}, zaptest.NewLogger(t))
	assert.Error(t, err)
}
