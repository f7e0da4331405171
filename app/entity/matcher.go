package entity

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minAliasLength      = 4
	maxHeuristicTickers = 3

	titleBoost     = 0.1
	titleLeadBoost = 0.2
	maxHeuristic   = 0.95
)

type Match struct {
	Ticker     string
	Confidence float64
}

// Matches keeps heuristic candidates in discovery order, which is also the resolver's tie-break.
type Matches []Match

func (m Matches) Map() map[string]float64 {
	out := make(map[string]float64, len(m))
	for _, match := range m {
		out[match.Ticker] = match.Confidence
	}
	return out
}

func (m Matches) Get(ticker string) (float64, bool) {
	for _, match := range m {
		if match.Ticker == ticker {
			return match.Confidence, true
		}
	}
	return 0, false
}

// Matcher proposes tickers by scanning article text for known aliases. It never touches the network.
type Matcher struct {
	ref *RefData
}

func NewMatcher(ref *RefData) *Matcher {
	return &Matcher{ref: ref}
}

// Run scans aliases longest-first and stops after three distinct tickers. Confidence depends on the
// alias length and on whether the alias appears in the title, with a larger boost when the title
// starts with it.
func (m *Matcher) Run(title, body string) Matches {
	normTitle := Normalize(title)
	text := normTitle + "\n" + Normalize(body)

	var matches Matches
	index := make(map[string]int)

	for _, alias := range m.ref.aliases {
		if len(matches) >= maxHeuristicTickers {
			break
		}
		if alias.length < minAliasLength || !m.ref.valid[alias.ticker] {
			continue
		}
		if wordIndex(text, alias.text) < 0 {
			continue
		}

		confidence := baseConfidence(alias.length)
		switch pos := wordIndex(normTitle, alias.text); {
		case pos == 0:
			confidence += titleLeadBoost
		case pos > 0:
			confidence += titleBoost
		}
		confidence = round2(min(confidence, maxHeuristic))

		if i, ok := index[alias.ticker]; ok {
			if confidence > matches[i].Confidence {
				matches[i].Confidence = confidence
			}
			continue
		}
		index[alias.ticker] = len(matches)
		matches = append(matches, Match{Ticker: alias.ticker, Confidence: confidence})
	}

	return matches
}

func baseConfidence(length int) float64 {
	switch {
	case length >= 8:
		return 0.8
	case length >= 6:
		return 0.7
	default:
		return 0.6
	}
}

// wordIndex returns the byte offset of the first occurrence of word in text that is not glued to a
// neighbouring letter or digit, or -1. regexp's \b only understands ASCII word characters, which
// breaks on Polish diacritics.
func wordIndex(text, word string) int {
	if word == "" {
		return -1
	}

	offset := 0
	for {
		i := strings.Index(text[offset:], word)
		if i < 0 {
			return -1
		}
		start := offset + i
		end := start + len(word)

		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return start
		}

		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
