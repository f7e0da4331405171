package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lysyi3m/newsdesk/app/database"
)

var ErrUnparsable = errors.New("response is not a JSON object")

const (
	DefaultImpactScore = 5
	DefaultRelevance   = 0.5
	DefaultCategory    = "other"
)

var categories = map[string]bool{
	"earnings":   true,
	"dividend":   true,
	"mna":        true,
	"regulatory": true,
	"management": true,
	"contract":   true,
	"guidance":   true,
	"legal":      true,
	"macro":      true,
	"other":      true,
}

// Analysis is the validated judgment of a model about one article.
type Analysis struct {
	Tickers          []string
	TickerConfidence map[string]float64
	RelevanceScore   float64
	Sector           string
	Sentiment        float64
	ImpactScore      int
	Category         string
	AISummary        string
	KeyFacts         []database.KeyFact
	Topics           []string
	IsBreaking       bool
	ImpactAssessment string
}

// ParseAnalysis validates a raw model response field by field. Numbers are clamped to their ranges
// and malformed or missing fields get defaults; only a payload that is not a JSON object at all
// fails, with ErrUnparsable.
func ParseAnalysis(raw string) (*Analysis, error) {
	payload := extractObject(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: %.120q", ErrUnparsable, raw)
	}

	a := &Analysis{
		Tickers:          tickerList(fields["tickers"]),
		TickerConfidence: confidenceMap(fields["ticker_confidence"]),
		RelevanceScore:   DefaultRelevance,
		Sector:           stringField(fields["sector"]),
		Category:         DefaultCategory,
		ImpactScore:      DefaultImpactScore,
		AISummary:        stringField(fields["ai_summary"]),
		KeyFacts:         keyFacts(fields["key_facts"]),
		Topics:           stringList(fields["topics"]),
		ImpactAssessment: stringField(fields["impact_assessment"]),
	}

	if f, ok := numberField(fields["sentiment"]); ok {
		a.Sentiment = clamp(f, -1, 1)
	}
	if f, ok := numberField(fields["relevance_score"]); ok {
		a.RelevanceScore = clamp(f, 0, 1)
	}
	if f, ok := numberField(fields["impact_score"]); ok {
		a.ImpactScore = int(clamp(math.Round(f), 1, 10))
	}
	if c := strings.ToLower(stringField(fields["category"])); categories[c] {
		a.Category = c
	}
	if b, ok := boolField(fields["is_breaking"]); ok {
		a.IsBreaking = b
	}

	return a, nil
}

// extractObject strips markdown code fences and any prose around the outermost JSON object.
func extractObject(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

func numberField(raw json.RawMessage) (float64, bool) {
	if isNull(raw) {
		return 0, false
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, !math.IsNaN(f)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsNaN(f) {
			return f, true
		}
	}
	return 0, false
}

func boolField(raw json.RawMessage) (bool, bool) {
	if isNull(raw) {
		return false, false
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func stringField(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// stringList accepts an array of strings; non-string elements are skipped.
func stringList(raw json.RawMessage) []string {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return nil
	}

	var out []string
	for _, item := range items {
		if s := stringField(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func tickerList(raw json.RawMessage) []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range stringList(raw) {
		t := strings.ToUpper(s)
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// confidenceMap accepts {"MBK": 0.9} as well as [{"ticker": "MBK", "confidence": 0.9}], the shape a
// response schema can express.
func confidenceMap(raw json.RawMessage) map[string]float64 {
	out := make(map[string]float64)
	if len(raw) == 0 {
		return out
	}

	add := func(key string, value json.RawMessage) {
		ticker := strings.ToUpper(strings.TrimSpace(key))
		if f, ok := numberField(value); ok && ticker != "" {
			out[ticker] = clamp(f, 0, 1)
		}
	}

	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) == nil {
		for key, value := range fields {
			add(key, value)
		}
		return out
	}

	var entries []map[string]json.RawMessage
	if json.Unmarshal(raw, &entries) == nil {
		for _, entry := range entries {
			add(stringField(entry["ticker"]), entry["confidence"])
		}
	}
	return out
}

// keyFacts accepts objects with label/value or plain strings.
func keyFacts(raw json.RawMessage) []database.KeyFact {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return nil
	}

	var out []database.KeyFact
	for _, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) > 0 && item[0] == '{' {
			var obj map[string]json.RawMessage
			if json.Unmarshal(item, &obj) != nil {
				continue
			}
			fact := database.KeyFact{Label: stringField(obj["label"]), Value: stringField(obj["value"])}
			if fact.Value == "" {
				fact.Value = stringField(obj["fact"])
			}
			if fact.Value != "" {
				out = append(out, fact)
			}
			continue
		}
		if s := stringField(item); s != "" {
			out = append(out, database.KeyFact{Value: s})
		}
	}
	return out
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func clamp(f, lo, hi float64) float64 {
	return min(max(f, lo), hi)
}
