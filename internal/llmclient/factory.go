// -- internal/llmclient/factory.go --
package llmclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/flowpilot-cli/api/schemas"
	"github.com/xkilldash9x/flowpilot-cli/internal/config"
)

// NewClient builds a single LLMClient for the given model configuration.
func NewClient(cfg config.LLMModelConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s]",
			cfg.Provider, config.ProviderGemini)
	}
}

// NewRouterFromConfig builds the tiered router from the oracle configuration.
func NewRouterFromConfig(cfg config.OracleConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	fast, err := NewClient(cfg.FastModel, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build fast-tier client: %w", err)
	}
	powerful, err := NewClient(cfg.PowerfulModel, logger)
	if err != nil {
		_ = fast.Close()
		return nil, fmt.Errorf("failed to build powerful-tier client: %w", err)
	}
	return NewRouter(logger, fast, powerful, cfg.RequestsPerSec, cfg.Burst)
}
