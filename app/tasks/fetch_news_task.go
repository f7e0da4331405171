package tasks

import (
	"context"
	"log/slog"

	"github.com/lysyi3m/newsdesk/app/database"
	"github.com/lysyi3m/newsdesk/app/feed"
	"github.com/lysyi3m/newsdesk/app/runs"
)

// FetchNewsTask pulls every source and stores items that are not yet known. Re-running it with the
// same upstream content stores nothing new.
type FetchNewsTask struct {
	Task
	sources []*feed.Source
	fetcher SourceFetcher
	news    NewsStore
	tracker *runs.Tracker
}

func NewFetchNewsTask(sources []*feed.Source, fetcher SourceFetcher, news NewsStore, tracker *runs.Tracker) *FetchNewsTask {
	return &FetchNewsTask{
		Task:    NewTask(TaskTypeFetchNews),
		sources: sources,
		fetcher: fetcher,
		news:    news,
		tracker: tracker,
	}
}

func (t *FetchNewsTask) Execute(ctx context.Context) (*Report, error) {
	run := t.tracker.Start(ctx, string(t.Type))

	result := t.fetcher.Run(ctx, t.sources)

	inserted := 0
	duplicates := 0
	storeErrors := 0
	for _, item := range result.Items {
		ok, err := t.insert(ctx, database.NewItem{
			ContentID:     feed.ContentID(item.URL),
			URL:           item.URL,
			Title:         item.Title,
			Summary:       item.Summary,
			Source:        item.Source,
			Trust:         string(item.Trust),
			SourceTickers: item.SourceTickers,
			PublishedAt:   item.PublishedAt,
		})
		switch {
		case err != nil:
			storeErrors++
			slog.Error("Failed to store news item", "source", item.Source, "url", item.URL, "error", err)
		case ok:
			inserted++
		default:
			duplicates++
		}
	}

	sourceErrors := result.ErrorCount()
	failedSources := 0
	for _, s := range result.Sources {
		if s.Failed() {
			failedSources++
		}
	}

	stats := runs.Stats{
		ItemsIn:  len(result.Items),
		ItemsOut: inserted + duplicates,
		Errors:   sourceErrors + storeErrors,
		Details: map[string]any{
			"sources":      result.Sources,
			"inserted":     inserted,
			"duplicates":   duplicates,
			"store_errors": storeErrors,
		},
	}
	status := run.Finish(ctx, stats)

	slog.Info("Task completed",
		"type", string(t.Type),
		"duration", t.GetDuration(),
		"sources", len(t.sources),
		"failed_sources", failedSources,
		"fetched", len(result.Items),
		"new", inserted,
		"duplicates", duplicates)

	return &Report{
		Job:       t.Type,
		RunID:     run.ID(),
		Status:    status,
		Processed: stats.ItemsOut,
		Failed:    stats.Errors,
		Counts: map[string]int{
			"fetched":        len(result.Items),
			"inserted":       inserted,
			"duplicates":     duplicates,
			"sources":        len(t.sources),
			"failed_sources": failedSources,
		},
	}, nil
}

// insert stores an already fetched item even when the fetch used up the job context.
func (t *FetchNewsTask) insert(ctx context.Context, item database.NewItem) (bool, error) {
	ctx, cancel := detach(ctx)
	defer cancel()

	return t.news.InsertIfAbsent(ctx, item)
}
