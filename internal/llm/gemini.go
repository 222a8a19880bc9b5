package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"google.golang.org/genai"
)

// GeminiGenerator asks a Gemini model for application/json output.
type GeminiGenerator struct {
	client       *genai.Client
	model        string
	systemPrompt string
	maxTokens    int32
	temperature  *float32
}

// GeminiOptions configures a GeminiGenerator.
type GeminiOptions struct {
	APIKey              string
	Model               string
	SystemPrompt        string
	MaxTokens           int
	Temperature         float64
	SupportsTemperature bool
}

func NewGeminiGenerator(ctx context.Context, options GeminiOptions) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: options.APIKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, &GenerationError{Kind: KindAuth, Message: err.Error(), Err: err}
	}
	generator := &GeminiGenerator{
		client:       client,
		model:        options.Model,
		systemPrompt: strings.TrimSpace(options.SystemPrompt),
		maxTokens:    int32(options.MaxTokens),
	}
	if options.SupportsTemperature && options.Temperature > 0 {
		temperature := float32(options.Temperature)
		generator.temperature = &temperature
	}
	return generator, nil
}

// Generate sends the prompt as one user turn and passes the schema as a JSON Schema response
// constraint.
func (generator *GeminiGenerator) Generate(ctx context.Context, prompt string, schema []byte) (string, error) {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: generator.maxTokens,
		Temperature:     generator.temperature,
	}
	if len(schema) > 0 {
		config.ResponseMIMEType = "application/json"
		config.ResponseJsonSchema = json.RawMessage(schema)
	}
	if generator.systemPrompt != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: generator.systemPrompt}}}
	}

	response, err := generator.client.Models.GenerateContent(ctx, generator.model,
		[]*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{{Text: prompt}}}},
		config,
	)
	if err != nil {
		return "", classifyGeminiError(err)
	}
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return "", emptyResponse("gemini returned no candidates")
	}
	var fragments []string
	for _, part := range response.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			fragments = append(fragments, part.Text)
		}
	}
	text := strings.TrimSpace(strings.Join(fragments, ""))
	if text == "" {
		return "", emptyResponse("gemini returned an empty candidate")
	}
	return text, nil
}

func classifyGeminiError(err error) error {
	var apiError genai.APIError
	if errors.As(err, &apiError) {
		return &GenerationError{Kind: KindForStatus(apiError.Code), StatusCode: apiError.Code, Message: apiError.Message, Err: err}
	}
	var apiErrorPointer *genai.APIError
	if errors.As(err, &apiErrorPointer) && apiErrorPointer != nil {
		return &GenerationError{Kind: KindForStatus(apiErrorPointer.Code), StatusCode: apiErrorPointer.Code, Message: apiErrorPointer.Message, Err: err}
	}
	return transportError(err)
}
