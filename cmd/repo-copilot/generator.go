package repocopilot

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/repo-copilot/internal/agent"
	"github.com/temirov/repo-copilot/internal/config"
	"github.com/temirov/repo-copilot/internal/llm"
	"github.com/temirov/repo-copilot/internal/report"
)

const (
	defaultAPIEndpoint      = "https://api.openai.com/v1"
	transportRetryBaseDelay = 500 * time.Millisecond
)

// buildGenerator connects the selected model's provider and wraps it with logging and
// transport retries. The retries are separate from the agent's generation attempt budget.
func buildGenerator(ctx context.Context, settings runSettings, logger *zap.Logger) (agent.Generator, error) {
	modelConfiguration := settings.model
	apiKeyEnvironmentVariable := settings.root.APIKeyEnv(modelConfiguration)
	apiKey := strings.TrimSpace(os.Getenv(apiKeyEnvironmentVariable))
	if apiKey == "" {
		return nil, fmt.Errorf(missingAPIKeyErrorFormat, ErrMissingAPIKey, apiKeyEnvironmentVariable, modelConfiguration.Name)
	}

	var inner llm.Generator
	switch modelConfiguration.Provider {
	case config.ProviderGemini:
		geminiGenerator, err := llm.NewGeminiGenerator(ctx, llm.GeminiOptions{
			APIKey:              apiKey,
			Model:               modelConfiguration.ModelID,
			MaxTokens:           modelConfiguration.MaxCompletionTokens,
			Temperature:         modelConfiguration.DefaultTemperature,
			SupportsTemperature: modelConfiguration.SupportsTemperature,
		})
		if err != nil {
			return nil, fmt.Errorf(geminiClientErrorFormat, err)
		}
		inner = geminiGenerator
	default:
		endpoint := strings.TrimSpace(settings.root.Common.API.Endpoint)
		if endpoint == "" {
			endpoint = defaultAPIEndpoint
		}
		inner = llm.Adapter{
			Client:              llm.Client{HTTPBaseURL: endpoint, APIKey: apiKey},
			Model:               modelConfiguration.ModelID,
			SchemaName:          report.SchemaName,
			MaxTokens:           modelConfiguration.MaxCompletionTokens,
			Temperature:         modelConfiguration.DefaultTemperature,
			SupportsTemperature: modelConfiguration.SupportsTemperature,
		}
	}

	return llm.Wrap(inner,
		llm.WithLogging(logger, modelConfiguration.Name),
		llm.Retry(settings.root.Common.Defaults.TransportRetries, transportRetryBaseDelay),
	), nil
}
