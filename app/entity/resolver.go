package entity

import (
	"slices"
	"sort"
	"strings"
)

const (
	DisplayThreshold = 0.7
	MaxTickers       = 5

	// aiAddThreshold is the AI confidence needed to add a ticker next to the pre-identified list
	// of a regulatory filing.
	aiAddThreshold = 0.85
	// listedDefault applies to tickers the AI lists without giving a confidence.
	listedDefault = 0.7
)

// AISignal is the ticker part of an AI analysis.
type AISignal struct {
	Tickers    []string
	Confidence map[string]float64
}

type ResolveInput struct {
	Heuristic Matches
	AI        *AISignal // nil when the AI stage was skipped or failed

	// Authoritative is set for regulatory sources; PreIdentified then holds the tickers the
	// filing itself names.
	Authoritative bool
	PreIdentified []string
}

type Resolution struct {
	Tickers    []string           // at most MaxTickers, descending confidence
	Confidence map[string]float64 // may hold sub-threshold entries
}

// Resolve merges heuristic and AI confidences into the final ticker map and list. Per ticker the
// merged confidence is the max of the heuristic score and the AI score, where the AI score only
// counts if the AI listed the ticker or rated it at or above the display threshold. Tickers outside
// ref's valid set are ignored. Ties keep candidate order: pre-identified, heuristic, AI list, then
// the remaining AI map keys alphabetically.
func Resolve(in ResolveInput, ref *RefData) Resolution {
	preIdentified := validUnique(in.PreIdentified, ref)

	var aiListed map[string]bool
	var aiConf map[string]float64
	var aiOrder []string
	if in.AI != nil {
		aiListed = make(map[string]bool)
		aiConf = make(map[string]float64)
		for _, t := range validUnique(in.AI.Tickers, ref) {
			aiListed[t] = true
			aiConf[t] = listedDefault
			aiOrder = append(aiOrder, t)
		}
		keys := make([]string, 0, len(in.AI.Confidence))
		for t := range in.AI.Confidence {
			keys = append(keys, t)
		}
		sort.Strings(keys)
		for _, key := range keys {
			t := strings.ToUpper(strings.TrimSpace(key))
			if !ref.IsValid(t) {
				continue
			}
			aiConf[t] = clamp01(in.AI.Confidence[key])
			if !aiListed[t] && !slices.Contains(aiOrder, t) {
				aiOrder = append(aiOrder, t)
			}
		}
	}

	if in.Authoritative && len(preIdentified) > 0 {
		confidence := make(map[string]float64)
		order := append([]string(nil), preIdentified...)
		for _, t := range preIdentified {
			confidence[t] = 1.0
		}
		for _, t := range aiOrder {
			if _, ok := confidence[t]; !ok && aiConf[t] >= aiAddThreshold {
				confidence[t] = 1.0
				order = append(order, t)
			}
		}
		return Resolution{Tickers: rank(order, confidence), Confidence: confidence}
	}

	var order []string
	for _, m := range in.Heuristic {
		if ref.IsValid(m.Ticker) && !slices.Contains(order, m.Ticker) {
			order = append(order, m.Ticker)
		}
	}
	for _, t := range aiOrder {
		if !slices.Contains(order, t) {
			order = append(order, t)
		}
	}

	confidence := make(map[string]float64)
	for _, t := range order {
		merged, _ := in.Heuristic.Get(t)
		if a, ok := aiConf[t]; ok && (aiListed[t] || a >= DisplayThreshold) {
			merged = max(merged, a)
		}
		if merged > 0 {
			confidence[t] = round2(merged)
		}
	}

	if in.Authoritative {
		for t, c := range confidence {
			if c >= DisplayThreshold {
				confidence[t] = 1.0
			}
		}
	}

	return Resolution{Tickers: rank(order, confidence), Confidence: confidence}
}

func rank(order []string, confidence map[string]float64) []string {
	tickers := make([]string, 0, len(order))
	for _, t := range order {
		if confidence[t] >= DisplayThreshold {
			tickers = append(tickers, t)
		}
	}
	sort.SliceStable(tickers, func(i, j int) bool {
		return confidence[tickers[i]] > confidence[tickers[j]]
	})
	if len(tickers) > MaxTickers {
		tickers = tickers[:MaxTickers]
	}
	return tickers
}

func validUnique(tickers []string, ref *RefData) []string {
	var out []string
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" && ref.IsValid(t) && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

func clamp01(f float64) float64 {
	return min(max(f, 0), 1)
}
