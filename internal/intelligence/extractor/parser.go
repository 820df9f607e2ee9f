package extractor

import (
	"encoding/json"
	"strings"

	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

// ProductAnalysis is the parsed product extraction response: every input
// field enriched with a citation and relevance score, plus an overall
// summary.
type ProductAnalysis struct {
	ExtractedData   map[string]interface{} `json:"extracted_data"`
	AnalysisSummary string                 `json:"analysis_summary"`
	ConfidenceScore *float64               `json:"confidence_score"`
}

// StripJSONFences trims markdown code fences and surrounding prose so the
// remainder is parseable JSON.  Models wrap output in ```json fences even
// when asked not to.
func StripJSONFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	// Fall back to the outermost braces when prose surrounds the object.
	if !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "[") {
		start := strings.Index(s, "{")
		end := strings.LastIndex(s, "}")
		if start >= 0 && end > start {
			s = s[start : end+1]
		}
	}
	return s
}

// ParseObject decodes a model response into a JSON object.
func ParseObject(text string) (map[string]interface{}, error) {
	cleaned := StripJSONFences(text)
	if cleaned == "" {
		return nil, errors.New(errors.ErrCodeLLMResponseInvalid, "model response was empty")
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLLMResponseInvalid, "model response is not a JSON object")
	}
	return out, nil
}

// ParseContractExtraction decodes a contract extraction response.  The
// object holds the extracted field values plus a "citations" object mapping
// field names to source snippets.
func ParseContractExtraction(text string) (map[string]interface{}, error) {
	data, err := ParseObject(text)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New(errors.ErrCodeLLMResponseInvalid, "extraction response contained no fields")
	}
	return data, nil
}

// CountExtractedFields reports how many fields carry a non-null value out of
// the total, ignoring the citations block.
func CountExtractedFields(data map[string]interface{}) (extracted, total int) {
	for key, value := range data {
		if key == "citations" {
			continue
		}
		total++
		if isExtracted(value) {
			extracted++
		}
	}
	return extracted, total
}

func isExtracted(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case []interface{}:
		return len(v) > 0
	case map[string]interface{}:
		// Annotated fields keep the value under a "value" key.
		if inner, ok := v["value"]; ok {
			return isExtracted(inner)
		}
		return len(v) > 0
	default:
		return true
	}
}

// ParseProductAnalysis decodes a product extraction response and verifies
// that every expected field survived the round trip.
func ParseProductAnalysis(text string, expectedFields []string) (*ProductAnalysis, error) {
	cleaned := StripJSONFences(text)
	if cleaned == "" {
		return nil, errors.New(errors.ErrCodeLLMResponseInvalid, "model response was empty")
	}
	var analysis ProductAnalysis
	if err := json.Unmarshal([]byte(cleaned), &analysis); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLLMResponseInvalid, "analysis response is not a JSON object")
	}
	if len(analysis.ExtractedData) == 0 {
		return nil, errors.New(errors.ErrCodeLLMResponseInvalid, "analysis response is missing extracted_data")
	}

	var missing []string
	for _, field := range expectedFields {
		if _, ok := analysis.ExtractedData[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, errors.New(errors.ErrCodeLLMResponseInvalid,
			"analysis response dropped fields: "+strings.Join(missing, ", "))
	}
	return &analysis, nil
}
