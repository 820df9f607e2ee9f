package extractor

import (
	"context"

	"google.golang.org/genai"

	"github.com/turtacn/CoverIQ-Intelligence/internal/config"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

// GeminiProvider runs completions against Google Gemini through the native
// genai client.
type GeminiProvider struct {
	client *genai.Client
	logger logging.Logger
}

// NewGeminiProvider builds the provider from the shared LLM config.
func NewGeminiProvider(ctx context.Context, cfg config.LLMConfig, log logging.Logger) (*GeminiProvider, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, errors.New(errors.ErrCodeExternalService, "gemini api key is not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.GeminiAPIKey,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "failed to create gemini client")
	}
	return &GeminiProvider{client: client, logger: log}, nil
}

// Name implements Provider.
func (p *GeminiProvider) Name() string { return ProviderGemini }

// Complete implements Provider.
func (p *GeminiProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	genConfig := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens: int32(req.MaxOutputTokens),
	}
	if req.SystemPrompt != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.JSONMode {
		genConfig.ResponseMIMEType = "application/json"
	}

	contents := []*genai.Content{
		genai.NewContentFromText(req.UserPrompt, genai.RoleUser),
	}

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, genConfig)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "gemini request failed")
	}

	text := resp.Text()
	if text == "" {
		return nil, errors.New(errors.ErrCodeLLMResponseInvalid, "gemini response contained no text")
	}

	out := &Response{Text: text}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}
