package authority

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// ExtractedField is one value inside an authority's extracted data map.
// Model output stores fields in two shapes: a bare scalar ("$1,500,000") or
// an annotated object carrying the value plus provenance metadata:
//
//	{"value": "$1,500,000", "citation": "...", "relevance_score": 0.92, "reasoning": "..."}
//
// Both shapes unmarshal into this type; Annotated records which one was seen
// so round-tripping preserves the original form.
type ExtractedField struct {
	Value          interface{} `json:"value"`
	Citation       string      `json:"citation,omitempty"`
	RelevanceScore *float64    `json:"relevance_score,omitempty"`
	Reasoning      string      `json:"reasoning,omitempty"`

	Annotated bool `json:"-"`
}

// annotatedField mirrors the object shape for decoding without recursing into
// ExtractedField's own UnmarshalJSON.
type annotatedField struct {
	Value          interface{} `json:"value"`
	Citation       string      `json:"citation,omitempty"`
	RelevanceScore *float64    `json:"relevance_score,omitempty"`
	Reasoning      string      `json:"reasoning,omitempty"`
}

// UnmarshalJSON accepts either shape.  A JSON object containing a "value" key
// is treated as annotated; any other payload is the scalar itself.
func (f *ExtractedField) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		if _, hasValue := raw["value"]; hasValue {
			var obj annotatedField
			if err := json.Unmarshal(data, &obj); err != nil {
				return err
			}
			f.Value = obj.Value
			f.Citation = obj.Citation
			f.RelevanceScore = obj.RelevanceScore
			f.Reasoning = obj.Reasoning
			f.Annotated = true
			return nil
		}
		// Object without a "value" key: keep the whole object as the scalar.
		var v interface{}
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*f = ExtractedField{Value: v}
		return nil
	}

	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = ExtractedField{Value: v}
	return nil
}

// MarshalJSON re-emits the shape that was decoded.
func (f ExtractedField) MarshalJSON() ([]byte, error) {
	if f.Annotated {
		return json.Marshal(annotatedField{
			Value:          f.Value,
			Citation:       f.Citation,
			RelevanceScore: f.RelevanceScore,
			Reasoning:      f.Reasoning,
		})
	}
	return json.Marshal(f.Value)
}

// Unwrap returns the scalar payload regardless of shape.
func (f ExtractedField) Unwrap() interface{} {
	return f.Value
}

// IsPresent reports whether the field carries a usable value.  Nil, empty
// strings, numeric zero, and false are all treated as absent; aggregation
// skips such fields entirely, including their weight contribution.
func (f ExtractedField) IsPresent() bool {
	switch v := f.Value.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	case json.Number:
		return v.String() != "0" && v.String() != ""
	default:
		return true
	}
}

// Decimal parses the field's value into a fixed-point decimal.  Monetary
// strings may carry dollar signs and thousands separators; both are stripped
// before parsing.  Returns false when the value cannot be interpreted as a
// number; callers skip the field silently in that case.
func (f ExtractedField) Decimal() (decimal.Decimal, bool) {
	switch v := f.Value.(type) {
	case string:
		cleaned := strings.TrimSpace(strings.NewReplacer(",", "", "$", "").Replace(v))
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case float64:
		return decimal.NewFromFloat(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case decimal.Decimal:
		return v, true
	default:
		return decimal.Zero, false
	}
}

// ExtractedData is an authority's editable snapshot of model-extracted
// contract fields, keyed by field name.
type ExtractedData map[string]ExtractedField

// Field returns the named field and whether it exists.
func (d ExtractedData) Field(name string) (ExtractedField, bool) {
	f, ok := d[name]
	return f, ok
}

// DecimalField unwraps and parses the named field in one step.  The second
// return is false when the field is missing, absent-valued, or unparseable.
func (d ExtractedData) DecimalField(name string) (decimal.Decimal, bool) {
	f, ok := d[name]
	if !ok || !f.IsPresent() {
		return decimal.Zero, false
	}
	return f.Decimal()
}
