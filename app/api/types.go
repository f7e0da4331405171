package api

import (
	"context"
	"time"

	"github.com/lysyi3m/newsdesk/app/database"
	"github.com/lysyi3m/newsdesk/app/feed"
	"github.com/lysyi3m/newsdesk/app/tasks"
)

type GeneratorInterface interface {
	Run(channel feed.Channel, items []database.NewsItem) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

type NewsReader interface {
	ListNews(ctx context.Context, filter database.NewsFilter) ([]database.NewsItem, error)
	ListByEventGroup(ctx context.Context, groupID string) ([]database.NewsItem, error)
	GetNewsCount(ctx context.Context) (total int, unclassified int, err error)
}

type RunReader interface {
	ListRuns(ctx context.Context, jobName string, limit int) ([]database.PipelineRun, error)
	ListHealth(ctx context.Context) ([]database.JobHealth, error)
}

var (
	_ NewsReader = (*database.NewsRepo)(nil)
	_ RunReader  = (*database.RunRepo)(nil)
)

type Handler struct {
	news      NewsReader
	runs      RunReader
	jobs      tasks.TaskFactory
	scheduler tasks.TaskSchedulerInterface
	generator GeneratorInterface
	baseURL   string
	version   string
	now       func() time.Time
}

// JobRequest is the optional body of a job trigger.
type JobRequest struct {
	Mode string `json:"mode"`
}

type NewsView struct {
	ID               int64              `json:"id"`
	URL              string             `json:"url"`
	Title            string             `json:"title"`
	Summary          string             `json:"summary,omitempty"`
	Source           string             `json:"source"`
	PublishedAt      *time.Time         `json:"published_at"`
	CreatedAt        time.Time          `json:"created_at"`
	Classified       bool               `json:"classified"`
	Tickers          []string           `json:"tickers"`
	TickerConfidence map[string]float64 `json:"ticker_confidence,omitempty"`
	Sentiment        float64            `json:"sentiment"`
	ImpactScore      int                `json:"impact_score"`
	Category         string             `json:"category,omitempty"`
	Sector           string             `json:"sector,omitempty"`
	AISummary        string             `json:"ai_summary,omitempty"`
	KeyFacts         []database.KeyFact `json:"key_facts,omitempty"`
	Topics           []string           `json:"topics,omitempty"`
	IsBreaking       bool               `json:"is_breaking"`
	RelevanceScore   float64            `json:"relevance_score"`
	ImpactAssessment string             `json:"impact_assessment,omitempty"`
	ClassifiedBy     string             `json:"classified_by,omitempty"`
	EventGroupID     string             `json:"event_group_id,omitempty"`
}

func newNewsView(item database.NewsItem) NewsView {
	view := NewsView{
		ID:           item.ID,
		URL:          item.URL,
		Title:        item.Title,
		Summary:      item.Summary,
		Source:       item.Source,
		PublishedAt:  item.PublishedAt,
		CreatedAt:    item.CreatedAt,
		Classified:   item.Classified,
		Tickers:      []string{},
		EventGroupID: item.EventGroupID,
	}

	if c := item.Classification; c != nil {
		if c.Tickers != nil {
			view.Tickers = c.Tickers
		}
		view.TickerConfidence = c.TickerConfidence
		view.Sentiment = c.Sentiment
		view.ImpactScore = c.ImpactScore
		view.Category = c.Category
		view.Sector = c.Sector
		view.AISummary = c.AISummary
		view.KeyFacts = c.KeyFacts
		view.Topics = c.Topics
		view.IsBreaking = c.IsBreaking
		view.RelevanceScore = c.RelevanceScore
		view.ImpactAssessment = c.ImpactAssessment
		view.ClassifiedBy = c.ClassifiedBy
	}

	return view
}

type RunView struct {
	ID         string         `json:"id"`
	Job        string         `json:"job"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at"`
	Status     string         `json:"status"`
	ItemsIn    int            `json:"items_in"`
	ItemsOut   int            `json:"items_out"`
	Errors     int            `json:"errors"`
	Details    map[string]any `json:"details,omitempty"`
}

func newRunView(run database.PipelineRun) RunView {
	return RunView{
		ID:         run.ID,
		Job:        run.JobName,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Status:     run.Status,
		ItemsIn:    run.ItemsIn,
		ItemsOut:   run.ItemsOut,
		Errors:     run.ErrorCount,
		Details:    run.Details,
	}
}

type HealthView struct {
	Job                 string     `json:"job"`
	LastSuccessAt       *time.Time `json:"last_success_at"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastError           string     `json:"last_error,omitempty"`
	LastErrorAt         *time.Time `json:"last_error_at,omitempty"`
}
