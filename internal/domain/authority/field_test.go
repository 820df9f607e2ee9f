package authority

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalScalarString(t *testing.T) {
	var f ExtractedField
	require.NoError(t, json.Unmarshal([]byte(`"$1,500,000"`), &f))
	assert.False(t, f.Annotated)
	assert.Equal(t, "$1,500,000", f.Unwrap())
}

func TestUnmarshalScalarNumber(t *testing.T) {
	var f ExtractedField
	require.NoError(t, json.Unmarshal([]byte(`2500000.5`), &f))
	assert.False(t, f.Annotated)
	assert.Equal(t, 2500000.5, f.Unwrap())
}

func TestUnmarshalAnnotatedObject(t *testing.T) {
	payload := `{"value": "$1,500,000", "citation": "Section 4.2", "relevance_score": 0.92, "reasoning": "stated limit"}`
	var f ExtractedField
	require.NoError(t, json.Unmarshal([]byte(payload), &f))

	assert.True(t, f.Annotated)
	assert.Equal(t, "$1,500,000", f.Unwrap())
	assert.Equal(t, "Section 4.2", f.Citation)
	require.NotNil(t, f.RelevanceScore)
	assert.InDelta(t, 0.92, *f.RelevanceScore, 1e-9)
	assert.Equal(t, "stated limit", f.Reasoning)
}

func TestUnmarshalObjectWithoutValueKeyIsScalar(t *testing.T) {
	var f ExtractedField
	require.NoError(t, json.Unmarshal([]byte(`{"per_occurrence": "1M"}`), &f))
	assert.False(t, f.Annotated)
	m, ok := f.Unwrap().(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "1M", m["per_occurrence"])
}

func TestMarshalRoundTripPreservesShape(t *testing.T) {
	for _, payload := range []string{
		`"plain"`,
		`{"value":"$1,500,000","citation":"Section 4.2"}`,
	} {
		var f ExtractedField
		require.NoError(t, json.Unmarshal([]byte(payload), &f))
		out, err := json.Marshal(f)
		require.NoError(t, err)
		assert.JSONEq(t, payload, string(out))
	}
}

func TestDecimalParsing(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  string
		ok    bool
	}{
		{"currency string", "$1,500,000", "1500000", true},
		{"plain string", "42.50", "42.5", true},
		{"padded string", "  $2,000 ", "2000", true},
		{"float", 1234.56, "1234.56", true},
		{"int", 42, "42", true},
		{"garbage string", "see schedule A", "", false},
		{"nil", nil, "", false},
		{"bool", true, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ExtractedField{Value: tt.value}
			d, ok := f.Decimal()
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.True(t, d.Equal(decimal.RequireFromString(tt.want)), "got %s", d)
			}
		})
	}
}

func TestIsPresent(t *testing.T) {
	assert.False(t, ExtractedField{Value: nil}.IsPresent())
	assert.False(t, ExtractedField{Value: ""}.IsPresent())
	assert.False(t, ExtractedField{Value: 0.0}.IsPresent())
	assert.False(t, ExtractedField{Value: false}.IsPresent())
	assert.True(t, ExtractedField{Value: "0"}.IsPresent())
	assert.True(t, ExtractedField{Value: "$500"}.IsPresent())
	assert.True(t, ExtractedField{Value: 12.5}.IsPresent())
}

func TestExtractedDataDecimalField(t *testing.T) {
	data := ExtractedData{
		"max_annual_premium":      {Value: "$1,000,000", Annotated: false},
		"max_limits_of_liability": {Value: "not numeric"},
		"empty":                   {Value: ""},
	}

	d, ok := data.DecimalField("max_annual_premium")
	require.True(t, ok)
	assert.True(t, d.Equal(decimal.NewFromInt(1000000)))

	_, ok = data.DecimalField("max_limits_of_liability")
	assert.False(t, ok)

	_, ok = data.DecimalField("empty")
	assert.False(t, ok)

	_, ok = data.DecimalField("missing")
	assert.False(t, ok)
}

func TestExtractedDataInMapUnmarshal(t *testing.T) {
	payload := `{
		"max_annual_premium": {"value": "$2,400,000", "relevance_score": 0.8},
		"policy_term": "12 months"
	}`
	var data ExtractedData
	require.NoError(t, json.Unmarshal([]byte(payload), &data))

	premium, ok := data.DecimalField("max_annual_premium")
	require.True(t, ok)
	assert.True(t, premium.Equal(decimal.NewFromInt(2400000)))

	term, ok := data.Field("policy_term")
	require.True(t, ok)
	assert.False(t, term.Annotated)
	assert.Equal(t, "12 months", term.Unwrap())
}

func TestAuthorityFullProductName(t *testing.T) {
	a := &Authority{ProductName: "Property", SubProductName: "Commercial", MPPName: "Program A"}
	assert.Equal(t, "Property - Commercial - Program A", a.FullProductName())

	b := &Authority{ProductName: "Property"}
	assert.Equal(t, "Property", b.FullProductName())

	c := &Authority{SubProductName: "Commercial"}
	assert.Equal(t, "Commercial", c.FullProductName())

	assert.Equal(t, "Unknown Product", (&Authority{}).FullProductName())
}
