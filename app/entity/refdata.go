package entity

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/lysyi3m/newsdesk/app/database"
)

type ReferenceSource interface {
	LoadAliases(ctx context.Context) ([]database.Alias, error)
	LoadValidTickers(ctx context.Context) ([]string, error)
}

type aliasEntry struct {
	text   string
	ticker string
	length int // in runes
}

// RefData is the alias table and valid ticker set of one invocation. It is immutable once built
// and safe to share between workers.
type RefData struct {
	aliases []aliasEntry // longest first, ties alphabetical
	valid   map[string]bool
}

// LoadRefData reads reference data from the store. Callers treat an error as fatal for the run.
func LoadRefData(ctx context.Context, src ReferenceSource) (*RefData, error) {
	aliases, err := src.LoadAliases(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load alias table: %w", err)
	}

	tickers, err := src.LoadValidTickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load valid tickers: %w", err)
	}

	return NewRefData(aliases, tickers), nil
}

func NewRefData(aliases []database.Alias, tickers []string) *RefData {
	r := &RefData{valid: make(map[string]bool, len(tickers))}
	for _, t := range tickers {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			r.valid[t] = true
		}
	}

	seen := make(map[string]bool, len(aliases))
	for _, a := range aliases {
		text := Normalize(a.Alias)
		ticker := strings.ToUpper(strings.TrimSpace(a.Ticker))
		if text == "" || ticker == "" || seen[text] {
			continue
		}
		seen[text] = true
		r.aliases = append(r.aliases, aliasEntry{text: text, ticker: ticker, length: utf8.RuneCountInString(text)})
	}

	sort.Slice(r.aliases, func(i, j int) bool {
		if r.aliases[i].length != r.aliases[j].length {
			return r.aliases[i].length > r.aliases[j].length
		}
		return r.aliases[i].text < r.aliases[j].text
	})

	return r
}

func (r *RefData) IsValid(ticker string) bool {
	return r.valid[strings.ToUpper(ticker)]
}

func (r *RefData) AliasCount() int {
	return len(r.aliases)
}

func (r *RefData) TickerCount() int {
	return len(r.valid)
}
