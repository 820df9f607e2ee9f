// Package extraction defines the extraction job aggregate: one LLM run over
// a contract's text, its status lifecycle, and its results.
package extraction

import (
	"time"
)

// Status is the extraction job lifecycle.  Transitions run strictly
// pending -> processing -> completed | failed; failed jobs carry an error
// message and are never retried in place (a retry is a new job).
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Extraction is one LLM extraction job over a contract.
type Extraction struct {
	ID         string `json:"id"`
	ContractID string `json:"contract_id"`
	VersionID  string `json:"version_id,omitempty"`

	Provider  string `json:"model_provider"`
	ModelName string `json:"model_name"`

	Status       Status     `json:"status"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`

	// ExtractedData is the raw JSON object returned by the model after fence
	// stripping; its fields are duck-typed (scalar or annotated object).
	ExtractedData map[string]interface{} `json:"extracted_data,omitempty"`

	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
	FieldsExtracted int      `json:"fields_extracted"`
	FieldsTotal     int      `json:"fields_total"`
	ExtractionNotes []string `json:"extraction_notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MarkProcessing transitions the job into the processing state.
func (e *Extraction) MarkProcessing(now time.Time) {
	e.Status = StatusProcessing
	e.StartedAt = &now
	e.ErrorMessage = ""
}

// MarkCompleted stores the results and transitions to completed.
func (e *Extraction) MarkCompleted(now time.Time, data map[string]interface{}, confidence *float64) {
	e.Status = StatusCompleted
	e.CompletedAt = &now
	e.ExtractedData = data
	e.ConfidenceScore = confidence
	e.FieldsExtracted = countExtracted(data)
	e.FieldsTotal = len(data)
}

// MarkFailed records the failure reason and transitions to failed.
func (e *Extraction) MarkFailed(now time.Time, reason string) {
	e.Status = StatusFailed
	e.CompletedAt = &now
	e.ErrorMessage = reason
}

// countExtracted counts fields whose value is non-nil; annotated objects
// count when their "value" key is non-nil.
func countExtracted(data map[string]interface{}) int {
	n := 0
	for _, v := range data {
		if obj, ok := v.(map[string]interface{}); ok {
			if inner, has := obj["value"]; has {
				if inner != nil {
					n++
				}
				continue
			}
		}
		if v != nil {
			n++
		}
	}
	return n
}

// Model is one row of the extraction model registry that the UI offers for
// selection.
type Model struct {
	ID               string    `json:"id"`
	Provider         string    `json:"provider"`
	ModelName        string    `json:"model_name"`
	DisplayName      string    `json:"display_name"`
	Description      string    `json:"description,omitempty"`
	IsActive         bool      `json:"is_active"`
	MaxTokens        int       `json:"max_tokens"`
	SupportsJSONMode bool      `json:"supports_json_mode"`
	SortOrder        int       `json:"sort_order"`
	CreatedAt        time.Time `json:"created_at"`
}
