package llm

import (
	"context"
	"strings"
)

const defaultSchemaName = "response"

// Adapter turns a single prompt into a chat completion request with a strict JSON schema.
type Adapter struct {
	Client              Client
	Model               string
	SystemPrompt        string
	SchemaName          string
	MaxTokens           int
	Temperature         float64
	SupportsTemperature bool
}

// Generate implements the generator contract used by the agent.
func (adapter Adapter) Generate(ctx context.Context, prompt string, schema []byte) (string, error) {
	request := ChatCompletionRequest{
		Model:               adapter.Model,
		MaxCompletionTokens: adapter.MaxTokens,
	}
	if systemPrompt := strings.TrimSpace(adapter.SystemPrompt); systemPrompt != "" {
		request.Messages = append(request.Messages, ChatMessage{Role: "system", Content: systemPrompt})
	}
	request.Messages = append(request.Messages, ChatMessage{Role: "user", Content: prompt})

	// Many models only accept their default temperature; 0 and 1 are left to the server.
	if adapter.SupportsTemperature && adapter.Temperature != 0 && adapter.Temperature != 1 {
		temperature := adapter.Temperature
		request.Temperature = &temperature
	}

	if len(schema) > 0 {
		schemaName := strings.TrimSpace(adapter.SchemaName)
		if schemaName == "" {
			schemaName = defaultSchemaName
		}
		request.ResponseFormat = &responseFormat{
			Type:       "json_schema",
			JSONSchema: &jsonSchemaWrapper{Name: schemaName, Schema: schema, Strict: true},
		}
	}

	return adapter.Client.CreateChatCompletion(ctx, request)
}
