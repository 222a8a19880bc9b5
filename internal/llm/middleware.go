package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Generator produces one raw model response for a prompt constrained by a JSON schema.
type Generator interface {
	Generate(ctx context.Context, prompt string, schema []byte) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string, schema []byte) (string, error)

func (function GeneratorFunc) Generate(ctx context.Context, prompt string, schema []byte) (string, error) {
	return function(ctx, prompt, schema)
}

// Middleware decorates a Generator.
type Middleware func(Generator) Generator

// Wrap applies middlewares in left-to-right order: Wrap(inner, A, B) => A(B(inner)).
func Wrap(inner Generator, middlewares ...Middleware) Generator {
	wrapped := inner
	for index := len(middlewares) - 1; index >= 0; index-- {
		wrapped = middlewares[index](wrapped)
	}
	return wrapped
}

// Retry repeats transient transport failures (rate limits, timeouts, unavailability) up to
// maxAttempts with exponential backoff starting at baseDelay. Permanent failures, empty
// responses and cancellation return immediately.
func Retry(maxAttempts int, baseDelay time.Duration) Middleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	return func(next Generator) Generator {
		return &retrying{next: next, maxAttempts: maxAttempts, baseDelay: baseDelay}
	}
}

type retrying struct {
	next        Generator
	maxAttempts int
	baseDelay   time.Duration
}

func (retry *retrying) Generate(ctx context.Context, prompt string, schema []byte) (string, error) {
	var lastErr error
	for attempt := 0; attempt < retry.maxAttempts; attempt++ {
		response, err := retry.next.Generate(ctx, prompt, schema)
		if err == nil {
			return response, nil
		}
		lastErr = err
		var generationError *GenerationError
		if !errors.As(err, &generationError) || !generationError.Transient() {
			return "", err
		}
		if attempt == retry.maxAttempts-1 {
			break
		}
		timer := time.NewTimer(retry.baseDelay * time.Duration(1<<attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return "", lastErr
}

// WithLogging records every generation call.
func WithLogging(logger *zap.Logger, model string) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next Generator) Generator {
		return &logged{next: next, logger: logger, model: model}
	}
}

type logged struct {
	next   Generator
	logger *zap.Logger
	model  string
}

func (generator *logged) Generate(ctx context.Context, prompt string, schema []byte) (string, error) {
	started := time.Now()
	response, err := generator.next.Generate(ctx, prompt, schema)
	fields := []zap.Field{
		zap.String("model", generator.model),
		zap.Int("prompt_bytes", len(prompt)),
		zap.Duration("elapsed", time.Since(started)),
	}
	if err != nil {
		generator.logger.Warn("generation failed", append(fields, zap.String("kind", string(KindOf(err))), zap.Error(err))...)
		return "", err
	}
	generator.logger.Debug("generation completed", append(fields, zap.Int("response_bytes", len(response)))...)
	return response, nil
}
