package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/turtacn/CoverIQ-Intelligence/internal/config"
	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/prompt"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

// RunOptions selects the model for one engine run.
type RunOptions struct {
	Provider string
	Model    string

	// JSONMode is set when the chosen model supports constrained JSON
	// output.
	JSONMode bool
}

// ContractResult is the outcome of a full contract extraction.
type ContractResult struct {
	ExtractedData   map[string]interface{}
	FieldsExtracted int
	FieldsTotal     int
}

// Engine drives the extraction prompts through a model provider and parses
// the results.  Prompts are resolved through the store so operator overrides
// take effect without a restart.
type Engine struct {
	prompts   *prompt.Store
	providers *Registry
	cfg       config.LLMConfig
	metrics   *prometheus.AppMetrics
	logger    logging.Logger
}

// NewEngine builds the extraction engine.
func NewEngine(prompts *prompt.Store, providers *Registry, cfg config.LLMConfig, metrics *prometheus.AppMetrics, log logging.Logger) *Engine {
	return &Engine{
		prompts:   prompts,
		providers: providers,
		cfg:       cfg,
		metrics:   metrics,
		logger:    log,
	}
}

// ExtractContract runs the full contract extraction over a document's text.
func (e *Engine) ExtractContract(ctx context.Context, documentText string, opts RunOptions) (*ContractResult, error) {
	if strings.TrimSpace(documentText) == "" {
		return nil, errors.New(errors.ErrCodeContractTextUnavailable, "document text is empty")
	}

	systemPrompt, err := e.prompts.Content(ctx, prompt.KeyContractExtractionSystem)
	if err != nil {
		return nil, err
	}
	userTemplate, err := e.prompts.Content(ctx, prompt.KeyContractExtractionUser)
	if err != nil {
		return nil, err
	}
	userPrompt := strings.ReplaceAll(userTemplate, "{document_text}", documentText)

	resp, err := e.complete(ctx, systemPrompt, userPrompt, opts)
	if err != nil {
		return nil, err
	}

	data, err := ParseContractExtraction(resp.Text)
	if err != nil {
		return nil, err
	}
	extracted, total := CountExtractedFields(data)

	e.logger.Info("Contract extraction complete",
		logging.String("provider", opts.Provider),
		logging.String("model", opts.Model),
		logging.Int("fields_extracted", extracted),
		logging.Int("fields_total", total),
	)
	return &ContractResult{
		ExtractedData:   data,
		FieldsExtracted: extracted,
		FieldsTotal:     total,
	}, nil
}

// AnalyzeProductLink enriches extracted contract fields with citations and
// relevance scores for one product combination.
func (e *Engine) AnalyzeProductLink(ctx context.Context, fields map[string]interface{}, productPath string, opts RunOptions) (*ProductAnalysis, error) {
	if len(fields) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "no fields to analyze")
	}

	template, err := e.prompts.Content(ctx, prompt.KeyProductExtractionSystem)
	if err != nil {
		return nil, err
	}
	names := sortedFieldNames(fields)
	systemPrompt := strings.ReplaceAll(template, "{field_count}", strconv.Itoa(len(names)))
	systemPrompt = strings.ReplaceAll(systemPrompt, "{field_names}", strings.Join(names, ", "))

	fieldJSON, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal fields")
	}
	userPrompt := fmt.Sprintf("Product combination: %s\n\nExtracted fields:\n%s", productPath, fieldJSON)

	resp, err := e.complete(ctx, systemPrompt, userPrompt, opts)
	if err != nil {
		return nil, err
	}
	return ParseProductAnalysis(resp.Text, names)
}

// SuggestProducts asks the model which product combinations a contract
// applies to.  candidates is the JSON-encodable list of product paths with
// their breakdown IDs.
func (e *Engine) SuggestProducts(ctx context.Context, extractedData map[string]interface{}, candidates interface{}, opts RunOptions) ([]map[string]interface{}, error) {
	systemPrompt, err := e.prompts.Content(ctx, prompt.KeyProductSuggestionSystem)
	if err != nil {
		return nil, err
	}
	userPrompt, err := suggestionUserPrompt(extractedData, candidates)
	if err != nil {
		return nil, err
	}

	// Suggestion responses are JSON arrays; json_object mode would reject
	// them.
	arrayOpts := opts
	arrayOpts.JSONMode = false

	resp, err := e.complete(ctx, systemPrompt, userPrompt, arrayOpts)
	if err != nil {
		return nil, err
	}
	return parseSuggestionArray(resp.Text)
}

// SuggestTermMappings asks the model to map extracted field paths onto
// product combinations.
func (e *Engine) SuggestTermMappings(ctx context.Context, extractedData map[string]interface{}, candidates interface{}, opts RunOptions) ([]map[string]interface{}, error) {
	systemPrompt, err := e.prompts.Content(ctx, prompt.KeyTermMappingSystem)
	if err != nil {
		return nil, err
	}
	userPrompt, err := suggestionUserPrompt(extractedData, candidates)
	if err != nil {
		return nil, err
	}

	arrayOpts := opts
	arrayOpts.JSONMode = false

	resp, err := e.complete(ctx, systemPrompt, userPrompt, arrayOpts)
	if err != nil {
		return nil, err
	}
	return parseSuggestionArray(resp.Text)
}

func (e *Engine) complete(ctx context.Context, systemPrompt, userPrompt string, opts RunOptions) (*Response, error) {
	provider, err := e.providers.Get(opts.Provider)
	if err != nil {
		return nil, err
	}

	req := Request{
		SystemPrompt:    systemPrompt,
		UserPrompt:      userPrompt,
		Model:           opts.Model,
		MaxOutputTokens: e.cfg.MaxOutputTokens,
		Temperature:     e.cfg.Temperature,
		JSONMode:        opts.JSONMode,
	}

	start := time.Now()
	resp, err := provider.Complete(ctx, req)
	duration := time.Since(start)

	if err != nil {
		prometheus.RecordLLMCall(e.metrics, opts.Provider, opts.Model, false, duration, 0, 0)
		return nil, err
	}
	prometheus.RecordLLMCall(e.metrics, opts.Provider, opts.Model, true, duration,
		resp.PromptTokens, resp.CompletionTokens)
	return resp, nil
}

func suggestionUserPrompt(extractedData map[string]interface{}, candidates interface{}) (string, error) {
	dataJSON, err := json.MarshalIndent(extractedData, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal extracted data")
	}
	candidateJSON, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal product candidates")
	}
	return fmt.Sprintf("Extracted contract data:\n%s\n\nAvailable product combinations:\n%s",
		dataJSON, candidateJSON), nil
}

func parseSuggestionArray(text string) ([]map[string]interface{}, error) {
	cleaned := StripJSONFences(text)
	if !strings.HasPrefix(cleaned, "[") {
		start := strings.Index(cleaned, "[")
		end := strings.LastIndex(cleaned, "]")
		if start >= 0 && end > start {
			cleaned = cleaned[start : end+1]
		}
	}
	var out []map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLLMResponseInvalid, "suggestion response is not a JSON array")
	}
	return out, nil
}

func sortedFieldNames(fields map[string]interface{}) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
