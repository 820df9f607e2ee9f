package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/turtacn/CoverIQ-Intelligence/internal/config"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

const openAIMaxAttempts = 3

// chatMessage is one turn in a chat-completions conversation.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

// chatRequest is the chat-completions request body.
type chatRequest struct {
	Model          string              `json:"model"`
	Messages       []chatMessage       `json:"messages"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	Temperature    float64             `json:"temperature"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

// chatResponse is the chat-completions response body.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// OpenAIProvider speaks the chat-completions protocol against api.openai.com
// or any compatible gateway.
type OpenAIProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  logging.Logger
}

// NewOpenAIProvider builds the provider from the shared LLM config.
func NewOpenAIProvider(cfg config.LLMConfig, log logging.Logger) *OpenAIProvider {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &OpenAIProvider{
		baseURL: cfg.OpenAIBaseURL,
		apiKey:  cfg.OpenAIAPIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  log,
	}
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return ProviderOpenAI }

// Complete sends one chat completion, retrying with exponential backoff on
// rate limits and server errors.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	if p.apiKey == "" {
		return nil, errors.New(errors.ErrCodeExternalService, "openai api key is not configured")
	}

	body := chatRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxOutputTokens,
		Temperature: req.Temperature,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
	}
	if req.JSONMode {
		body.ResponseFormat = &chatResponseFormat{Type: "json_object"}
	}

	var lastErr error
	for attempt := 1; attempt <= openAIMaxAttempts; attempt++ {
		resp, retryable, err := p.send(ctx, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable || attempt == openAIMaxAttempts {
			break
		}

		backoff := time.Duration(1<<uint(attempt-1)) * time.Second
		p.logger.Warn("OpenAI request failed, retrying",
			logging.String("model", req.Model),
			logging.Int("attempt", attempt),
			logging.Duration("backoff", backoff),
			logging.Err(err),
		)
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "completion cancelled")
		case <-time.After(backoff):
		}
	}
	return nil, lastErr
}

// send performs a single request and reports whether a failure is retryable.
func (p *OpenAIProvider) send(ctx context.Context, body chatRequest) (*Response, bool, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, false, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal completion request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, false, errors.Wrap(err, errors.ErrCodeInternal, "failed to build completion request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, true, errors.Wrap(err, errors.ErrCodeExternalService, "openai request failed")
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, true, errors.Wrap(err, errors.ErrCodeExternalService, "failed to read openai response")
	}

	if httpResp.StatusCode != http.StatusOK {
		retryable := httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500
		return nil, retryable, errors.New(errors.ErrCodeExternalService,
			fmt.Sprintf("openai returned status %d: %s", httpResp.StatusCode, truncate(string(raw), 200)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, false, errors.Wrap(err, errors.ErrCodeLLMResponseInvalid, "failed to decode openai response")
	}
	if parsed.Error != nil {
		return nil, false, errors.New(errors.ErrCodeExternalService, "openai error: "+parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, false, errors.New(errors.ErrCodeLLMResponseInvalid, "openai response contained no choices")
	}

	return &Response{
		Text:             parsed.Choices[0].Message.Content,
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
	}, false, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
