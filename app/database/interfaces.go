package database

import (
	"context"
	"time"
)

type NewsRepository interface {
	InsertIfAbsent(ctx context.Context, item NewItem) (bool, error)
	ClaimUnclassified(ctx context.Context, limit int, staleAfter time.Duration) ([]NewsItem, error)
	SaveClassification(ctx context.Context, id int64, c Classification) (bool, error)

	FindGroupCandidates(ctx context.Context, excludeID int64, tickers []string, from, to time.Time) ([]GroupCandidate, error)
	SetEventGroup(ctx context.Context, id int64, groupID string) error

	GetNews(ctx context.Context, id int64) (*NewsItem, error)
	ListNews(ctx context.Context, filter NewsFilter) ([]NewsItem, error)
	ListByEventGroup(ctx context.Context, groupID string) ([]NewsItem, error)
	GetNewsCount(ctx context.Context) (total int, unclassified int, err error)
}

type ReferenceRepository interface {
	LoadAliases(ctx context.Context) ([]Alias, error)
	LoadValidTickers(ctx context.Context) ([]string, error)
	SeedAliases(ctx context.Context, seeds []TickerSeed) error
}

type RunRepository interface {
	CreateRun(ctx context.Context, run PipelineRun) error
	FinishRun(ctx context.Context, run PipelineRun) error
	ListRuns(ctx context.Context, jobName string, limit int) ([]PipelineRun, error)

	RecordSuccess(ctx context.Context, jobName string, at time.Time) error
	RecordFailure(ctx context.Context, jobName string, message string, at time.Time) error
	GetHealth(ctx context.Context, jobName string) (*JobHealth, error)
	ListHealth(ctx context.Context) ([]JobHealth, error)
}

type PriceRepository interface {
	LatestPrice(ctx context.Context, ticker string) (*Price, error)
}

var (
	_ NewsRepository      = (*NewsRepo)(nil)
	_ ReferenceRepository = (*ReferenceRepo)(nil)
	_ RunRepository       = (*RunRepo)(nil)
	_ PriceRepository     = (*PriceRepo)(nil)
)
