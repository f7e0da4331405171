package entity

import (
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalize composes text to NFC, lower-cases it with Polish rules and collapses whitespace. Alias
// text and article text must go through the same normalization before matching.
func Normalize(s string) string {
	// A Caser keeps state and is not safe for concurrent use.
	lower := cases.Lower(language.Polish)
	return strings.Join(strings.Fields(lower.String(norm.NFC.String(s))), " ")
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
