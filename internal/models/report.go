package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Report is the structured analysis the prompt asks the model to return.
// Fields are decoded leniently; a field of an unexpected type never hides
// the rest of the report.
type Report struct {
	Sentiment       LooseString `json:"sentiment"`
	ConfidenceScore LooseInt    `json:"confidence_score"`
	Summary         LooseString `json:"summary"`
	Positives       LooseList   `json:"positives"`
	Negatives       LooseList   `json:"negatives"`
	Outlook         LooseString `json:"outlook"`
	KeyMetrics      KeyMetrics  `json:"key_metrics"`
}

// KeyMetrics holds the headline figures pulled from the transcript.
type KeyMetrics struct {
	Revenue        LooseString `json:"revenue"`
	EBITDA         LooseString `json:"ebitda"`
	NetProfit      LooseString `json:"net_profit"`
	OrderBook      LooseString `json:"order_book"`
	MarginGuidance LooseString `json:"margin_guidance"`
}

// LooseString accepts a JSON string, number or bool as text. Objects and
// arrays keep their compact JSON form; null is empty.
type LooseString string

func (s *LooseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = ""
	case len(data) > 0 && data[0] == '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = LooseString(v)
	case len(data) > 0 && (data[0] == '{' || data[0] == '['):
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return err
		}
		*s = LooseString(buf.String())
	default:
		*s = LooseString(data)
	}
	return nil
}

// LooseList accepts a JSON array or a single value, which becomes a
// one-element list.
type LooseList []LooseString

func (l *LooseList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*l = nil
		return nil
	case len(data) > 0 && data[0] == '[':
		var items []LooseString
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var item LooseString
	if err := item.UnmarshalJSON(data); err != nil {
		return err
	}
	*l = LooseList{item}
	return nil
}

// LooseInt accepts a JSON number (rounded), a numeric string such as
// "85" or "85%", or anything else as zero.
type LooseInt int

func (n *LooseInt) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = 0
	switch v := raw.(type) {
	case float64:
		*n = LooseInt(math.Round(v))
	case string:
		cleaned := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "%"))
		if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
			*n = LooseInt(math.Round(f))
		}
	}
	return nil
}

// ParseReport decodes model output into a Report. Markdown code fences
// around the JSON are tolerated. The second return value is false when
// text is not a JSON object.
func ParseReport(text string) (*Report, bool) {
	cleaned := StripCodeFence(text)
	if !strings.HasPrefix(cleaned, "{") {
		return nil, false
	}
	var r Report
	if err := json.Unmarshal([]byte(cleaned), &r); err != nil {
		return nil, false
	}
	return &r, true
}

// StripCodeFence removes a leading ```json (or bare ```) fence and a
// trailing ``` fence.
func StripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Metrics returns the key metrics as label/value pairs in display order.
func (r *Report) Metrics() [][2]string {
	orNA := func(v LooseString) string {
		if strings.TrimSpace(string(v)) == "" {
			return "N/A"
		}
		return string(v)
	}
	m := r.KeyMetrics
	return [][2]string{
		{"Revenue", orNA(m.Revenue)},
		{"EBITDA", orNA(m.EBITDA)},
		{"Net Profit", orNA(m.NetProfit)},
		{"Order Book", orNA(m.OrderBook)},
		{"Margin Guidance", orNA(m.MarginGuidance)},
	}
}
