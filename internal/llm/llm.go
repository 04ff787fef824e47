// Package llm wraps the generative model that writes answers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/kellywsq03/RAGify/internal/config"
)

// ErrGenerationFailed indicates the generative model returned an error or
// no content.
var ErrGenerationFailed = errors.New("generation failed")

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GoogleGenerator generates text with a Google Gemini model.
type GoogleGenerator struct {
	model     llms.Model
	modelName string
	closer    func() error
	logger    *zap.Logger
}

// NewGoogleGenerator creates a Gemini generator. It fails with
// config.ErrConfigurationMissing when no API key is configured.
func NewGoogleGenerator(ctx context.Context, cfg config.GoogleConfig, logger *zap.Logger) (*GoogleGenerator, error) {
	if !cfg.APIKey.IsSet() {
		return nil, fmt.Errorf("%w: GOOGLE_API_KEY is not set", config.ErrConfigurationMissing)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	client, err := googleai.New(ctx,
		googleai.WithAPIKey(cfg.APIKey.Value()),
		googleai.WithDefaultModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: creating Google AI client: %w", ErrGenerationFailed, err)
	}

	g := NewGenerator(client, cfg.Model, logger)
	g.closer = client.Close
	return g, nil
}

// NewGenerator wraps any langchaingo model.
func NewGenerator(model llms.Model, modelName string, logger *zap.Logger) *GoogleGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleGenerator{model: model, modelName: modelName, logger: logger}
}

// Generate sends prompt as a single human message and returns the first
// choice. Errors wrap both ErrGenerationFailed and the provider's error.
func (g *GoogleGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer("ragify/llm").Start(ctx, "llm.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("model", g.modelName),
		attribute.Int("prompt_length", len(prompt)),
	)

	start := time.Now()
	text, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrGenerationFailed, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Warn("generation failed",
			zap.String("model", g.modelName),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return "", err
	}

	span.SetAttributes(attribute.Int("response_length", len(text)))
	g.logger.Debug("generated answer",
		zap.String("model", g.modelName),
		zap.Duration("duration", time.Since(start)),
		zap.Int("response_length", len(text)),
	)
	return text, nil
}

// Close releases the underlying client.
func (g *GoogleGenerator) Close() error {
	if g.closer != nil {
		return g.closer()
	}
	return nil
}
