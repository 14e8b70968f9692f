package llm

import (
	"context"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/bimmerbailey/eksight/internal/config"
)

// NewProvider creates a Provider based on configuration.
// Supported providers: "bedrock" (default), "ollama".
func NewProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Provider, error) {
	switch cfg.LLM.Provider {
	case "", "bedrock":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("loading aws configuration: %w", err)
		}
		logger.Info("initialized bedrock provider",
			"region", cfg.Region,
			"model", cfg.LLM.Bedrock.ModelID)
		return NewBedrock(bedrockruntime.NewFromConfig(awsCfg), cfg.LLM.Bedrock.ModelID, logger)
	case "ollama":
		logger.Info("initialized ollama provider",
			"host", cfg.LLM.Ollama.Host,
			"model", cfg.LLM.Ollama.Model)
		return NewOllama(cfg.LLM.Ollama.Host, cfg.LLM.Ollama.Model, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s (supported: bedrock, ollama)", cfg.LLM.Provider)
	}
}
