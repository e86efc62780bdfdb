package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleReport = `{
  "sentiment": "Bullish",
  "confidence_score": 82,
  "summary": "Revenue grew on strong orders.",
  "positives": ["Order inflow up 30%", "Margins expanded", "Net cash position"],
  "negatives": ["Raw material costs", "Execution delays", "FX exposure"],
  "outlook": "FY26 revenue growth of 20-25%",
  "key_metrics": {
    "revenue": "INR 1,200 Cr",
    "ebitda": "INR 240 Cr",
    "net_profit": "INR 150 Cr",
    "order_book": "INR 5,000 Cr",
    "margin_guidance": ""
  }
}`

func TestParseReport(t *testing.T) {
	r, ok := ParseReport(sampleReport)
	require.True(t, ok)
	assert.Equal(t, LooseString("Bullish"), r.Sentiment)
	assert.Equal(t, LooseInt(82), r.ConfidenceScore)
	assert.Len(t, r.Positives, 3)
	assert.Len(t, r.Negatives, 3)
	assert.Equal(t, LooseString("INR 5,000 Cr"), r.KeyMetrics.OrderBook)
}

func TestParseReport_CodeFence(t *testing.T) {
	r, ok := ParseReport("```json\n" + sampleReport + "\n```")
	require.True(t, ok)
	assert.Equal(t, LooseString("Bullish"), r.Sentiment)
}

func TestParseReport_LooseTypes(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		confidence LooseInt
		revenue    LooseString
		positives  LooseList
	}{
		{"float score", `{"sentiment":"Bullish","confidence_score":82.5}`, 83, "", nil},
		{"string score", `{"sentiment":"Bullish","confidence_score":"85"}`, 85, "", nil},
		{"percent score", `{"sentiment":"Bullish","confidence_score":"70%"}`, 70, "", nil},
		{"word score", `{"sentiment":"Bullish","confidence_score":"high"}`, 0, "", nil},
		{"null score", `{"sentiment":"Bullish","confidence_score":null}`, 0, "", nil},
		{"numeric metric", `{"sentiment":"Bullish","confidence_score":85,"key_metrics":{"revenue":1200}}`, 85, "1200", nil},
		{"object metric", `{"sentiment":"Bullish","key_metrics":{"revenue":{"q3": "10M"}}}`, 0, `{"q3":"10M"}`, nil},
		{"single positive", `{"sentiment":"Bullish","positives":"Orders up"}`, 0, "", LooseList{"Orders up"}},
		{"mixed positives", `{"sentiment":"Bullish","positives":["Orders up", 12, true]}`, 0, "", LooseList{"Orders up", "12", "true"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := ParseReport(tt.text)
			require.True(t, ok)
			assert.Equal(t, LooseString("Bullish"), r.Sentiment)
			assert.Equal(t, tt.confidence, r.ConfidenceScore)
			assert.Equal(t, tt.revenue, r.KeyMetrics.Revenue)
			assert.Equal(t, tt.positives, r.Positives)
		})
	}
}

func TestParseReport_NotJSON(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"prose", "The company had a strong quarter."},
		{"array", `["a","b"]`},
		{"truncated", `{"sentiment": "Bullish", "summary": "cut off`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := ParseReport(tt.text)
			assert.False(t, ok)
			assert.Nil(t, r)
		})
	}
}

func TestReport_MarshalsPlainTypes(t *testing.T) {
	r, ok := ParseReport(`{"sentiment":"Neutral","confidence_score":"64","positives":"One"}`)
	require.True(t, ok)

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"confidence_score":64`)
	assert.Contains(t, string(out), `"positives":["One"]`)
}

func TestReportMetrics(t *testing.T) {
	r, ok := ParseReport(sampleReport)
	require.True(t, ok)

	metrics := r.Metrics()
	require.Len(t, metrics, 5)
	assert.Equal(t, [2]string{"Revenue", "INR 1,200 Cr"}, metrics[0])
	assert.Equal(t, [2]string{"Margin Guidance", "N/A"}, metrics[4])
}
