package database

import (
	"time"

	"github.com/shopspring/decimal"
)

type NewsItem struct {
	ID            int64
	ContentID     string
	URL           string
	Title         string
	Summary       string
	Source        string
	Trust         string
	SourceTickers []string
	PublishedAt   *time.Time
	CreatedAt     time.Time

	Classification *Classification // nil until classified
	Classified     bool
	ClassifiedAt   *time.Time
	EventGroupID   string
}

// NewItem is the insert-time subset of NewsItem produced by the fetch stage.
type NewItem struct {
	ContentID     string
	URL           string
	Title         string
	Summary       string
	Source        string
	Trust         string
	SourceTickers []string
	PublishedAt   *time.Time
}

type KeyFact struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type Classification struct {
	Tickers          []string
	TickerConfidence map[string]float64
	Sentiment        float64
	ImpactScore      int
	Category         string
	Sector           string
	AISummary        string
	KeyFacts         []KeyFact
	Topics           []string
	IsBreaking       bool
	RelevanceScore   float64
	ImpactAssessment string
	ClassifiedBy     string // provider name, or "heuristic" when the AI stage was skipped or failed
}

type GroupCandidate struct {
	ID           int64
	EventGroupID string
	PublishedAt  time.Time
}

type Alias struct {
	Alias  string
	Ticker string
}

type TickerSeed struct {
	Ticker  string   `yaml:"ticker"`
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

type PipelineRun struct {
	ID         string
	JobName    string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string
	ItemsIn    int
	ItemsOut   int
	ErrorCount int
	Details    map[string]any
}

type JobHealth struct {
	JobName             string
	LastSuccessAt       *time.Time
	ConsecutiveFailures int
	LastError           string
	LastErrorAt         *time.Time
}

type Price struct {
	Ticker   string
	Price    decimal.Decimal
	Currency string
	AsOf     time.Time
}

type NewsFilter struct {
	Ticker         string
	ClassifiedOnly bool
	Limit          int
}
