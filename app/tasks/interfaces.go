package tasks

import (
	"context"
	"time"

	"github.com/lysyi3m/newsdesk/app/ai"
	"github.com/lysyi3m/newsdesk/app/database"
	"github.com/lysyi3m/newsdesk/app/feed"
)

// TaskSchedulerInterface is what the HTTP layer and main need from the scheduler.
type TaskSchedulerInterface interface {
	Start() error
	Stop()
	EnqueueTask(task TaskInterface) error
	RunTask(ctx context.Context, task TaskInterface) (*Report, error)
}

type NewsStore interface {
	InsertIfAbsent(ctx context.Context, item database.NewItem) (bool, error)
	ClaimUnclassified(ctx context.Context, limit int, staleAfter time.Duration) ([]database.NewsItem, error)
	SaveClassification(ctx context.Context, id int64, c database.Classification) (bool, error)
}

type PriceSource interface {
	LatestPrice(ctx context.Context, ticker string) (*database.Price, error)
}

type SourceFetcher interface {
	Run(ctx context.Context, sources []*feed.Source) *feed.FetchResult
}

type Classifier interface {
	Len() int
	Run(ctx context.Context, req ai.Request) (ai.Result, error)
}

type Grouper interface {
	Run(ctx context.Context, id int64, tickers []string, publishedAt time.Time) (string, error)
}
