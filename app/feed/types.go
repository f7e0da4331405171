package feed

import (
	"regexp"
	"time"
)

// Item is a normalized news record produced by any source kind.
type Item struct {
	URL           string
	Title         string
	Summary       string
	PublishedAt   *time.Time // nil when the upstream date is missing or unparsable
	Source        string
	Trust         Trust
	SourceTickers []string // authoritative tickers carried by regulatory sources
}

// Target is a single URL to fetch on behalf of a source.
type Target struct {
	Source *Source
	URL    string
}

type SourceResult struct {
	Fetched  int      `json:"fetched"`
	Filtered int      `json:"filtered,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

func (r *SourceResult) Failed() bool {
	return len(r.Errors) > 0
}

type FetchResult struct {
	Items   []Item
	Sources map[string]*SourceResult
}

// ErrorCount returns the number of failed URLs across all sources.
func (r *FetchResult) ErrorCount() int {
	n := 0
	for _, s := range r.Sources {
		n += len(s.Errors)
	}
	return n
}

// Configuration types

type Trust string

const (
	TrustRegulatory Trust = "regulatory"
	TrustStandard   Trust = "standard"
	TrustPaywalled  Trust = "paywalled"
)

type Kind string

const (
	KindFeed Kind = "feed"
	KindHTML Kind = "html"
)

type Source struct {
	Name           string        `yaml:"name" validate:"required"`
	Tag            string        `yaml:"tag"`
	Kind           Kind          `yaml:"kind" validate:"omitempty,oneof=feed html"`
	Trust          Trust         `yaml:"trust" validate:"omitempty,oneof=regulatory standard paywalled"`
	URLs           []string      `yaml:"urls" validate:"required,min=1,dive,url"`
	Timeout        int           `yaml:"timeout" validate:"gte=0"` // seconds
	Disabled       bool          `yaml:"disabled"`
	ExtractContent bool          `yaml:"extract_content"` // replace the summary with the readable article body
	TickerPattern  string        `yaml:"ticker_pattern"`  // regexp with one capture group, applied to titles
	Scrape         *ScrapeConfig `yaml:"scrape" validate:"required_if=Kind html"`
	Filters        []Filter      `yaml:"filters" validate:"dive"`

	tickerRe *regexp.Regexp
}

// ScrapeConfig holds CSS selectors for html sources. Selectors other than Item are relative to
// the item element; an empty Link selector means the item element itself carries href.
type ScrapeConfig struct {
	Item       string `yaml:"item" validate:"required"`
	Link       string `yaml:"link"`
	Title      string `yaml:"title"`
	Summary    string `yaml:"summary"`
	Date       string `yaml:"date"`
	DateLayout string `yaml:"date_layout"`
	Ticker     string `yaml:"ticker"`
}

// Filter keeps or drops items by a substring test on one field.
type Filter struct {
	Field    string   `yaml:"field" validate:"oneof=title summary link"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}
