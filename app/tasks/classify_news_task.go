package tasks

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/lysyi3m/newsdesk/app/ai"
	"github.com/lysyi3m/newsdesk/app/database"
	"github.com/lysyi3m/newsdesk/app/entity"
	"github.com/lysyi3m/newsdesk/app/feed"
	"github.com/lysyi3m/newsdesk/app/runs"
)

const (
	// Paywalled items with less visible text than this skip the AI call.
	minPaywalledText = 200

	paywalledRelevance      = 0.3
	heuristicRelevance      = 0.3
	heuristicEmptyRelevance = 0.1
	heuristicImpactScore    = 1

	classifiedByHeuristic = "heuristic"
)

type ClassifySettings struct {
	BatchSize int
	ClaimTTL  time.Duration
}

// ClassifyNewsTask claims a batch of unclassified items and resolves tickers for each one: the
// heuristic matcher runs first, then the AI chain unless the item is a thin paywalled teaser,
// then the resolver merges both and the item joins an event group.
type ClassifyNewsTask struct {
	Task
	settings   ClassifySettings
	news       NewsStore
	reference  entity.ReferenceSource
	prices     PriceSource
	classifier Classifier
	grouper    Grouper
	pool       *Pool
	tracker    *runs.Tracker
}

func NewClassifyNewsTask(settings ClassifySettings, news NewsStore, reference entity.ReferenceSource, prices PriceSource,
	classifier Classifier, grouper Grouper, pool *Pool, tracker *runs.Tracker) *ClassifyNewsTask {
	return &ClassifyNewsTask{
		Task:       NewTask(TaskTypeClassifyNews),
		settings:   settings,
		news:       news,
		reference:  reference,
		prices:     prices,
		classifier: classifier,
		grouper:    grouper,
		pool:       pool,
		tracker:    tracker,
	}
}

type itemOutcome struct {
	classified bool
	skipped    bool // already classified by an overlapping run
	usedAI     bool
	paywalled  bool
	grouped    bool
	err        error
}

func (t *ClassifyNewsTask) Execute(ctx context.Context) (*Report, error) {
	run := t.tracker.Start(ctx, string(t.Type))

	ref, err := entity.LoadRefData(ctx, t.reference)
	if err != nil {
		return t.fail(ctx, run, err)
	}
	if ref.TickerCount() == 0 {
		return t.fail(ctx, run, fmt.Errorf("valid ticker set is empty"))
	}

	items, err := t.news.ClaimUnclassified(ctx, t.settings.BatchSize, t.settings.ClaimTTL)
	if err != nil {
		return t.fail(ctx, run, fmt.Errorf("failed to claim unclassified items: %w", err))
	}

	matcher := entity.NewMatcher(ref)
	outcomes := make([]itemOutcome, len(items))
	t.pool.Run(ctx, len(items), func(ctx context.Context, i int) {
		outcomes[i] = t.classifyItem(ctx, items[i], ref, matcher)
	})

	counts := map[string]int{"claimed": len(items)}
	processed := 0
	failed := 0
	for i, o := range outcomes {
		switch {
		case o.err != nil:
			failed++
			slog.Error("Failed to classify news item", "id", items[i].ID, "error", o.err)
		case o.skipped:
			counts["skipped"]++
		case o.classified:
			processed++
		default:
			// never started because the context ended
			failed++
		}
		if o.usedAI {
			counts["ai"]++
		}
		if o.paywalled {
			counts["paywalled"]++
		}
		if o.grouped {
			counts["grouped"]++
		}
	}
	counts["heuristic_only"] = processed - counts["ai"]

	status := run.Finish(ctx, runs.Stats{
		ItemsIn:  len(items),
		ItemsOut: processed,
		Errors:   failed,
		Details:  map[string]any{"counts": counts},
	})

	slog.Info("Task completed",
		"type", string(t.Type),
		"duration", t.GetDuration(),
		"claimed", len(items),
		"classified", processed,
		"failed", failed,
		"ai", counts["ai"])

	return &Report{
		Job:       t.Type,
		RunID:     run.ID(),
		Status:    status,
		Processed: processed,
		Failed:    failed,
		Counts:    counts,
	}, nil
}

func (t *ClassifyNewsTask) fail(ctx context.Context, run *runs.Run, err error) (*Report, error) {
	status := run.Fail(ctx, err, runs.Stats{})
	slog.Error("Task failed", "type", string(t.Type), "duration", t.GetDuration(), "error", err)

	return &Report{Job: t.Type, RunID: run.ID(), Status: status, Counts: map[string]int{}}, err
}

func (t *ClassifyNewsTask) classifyItem(ctx context.Context, item database.NewsItem, ref *entity.RefData, matcher *entity.Matcher) itemOutcome {
	var outcome itemOutcome

	matches := matcher.Run(item.Title, item.Summary)

	trust := feed.Trust(item.Trust)
	outcome.paywalled = trust == feed.TrustPaywalled &&
		utf8.RuneCountInString(item.Title)+utf8.RuneCountInString(item.Summary) < minPaywalledText

	var analysis *ai.Analysis
	provider := ""
	if !outcome.paywalled && t.classifier != nil && t.classifier.Len() > 0 {
		req := ai.BuildPrompt(ai.PromptInput{
			Title:      item.Title,
			Body:       item.Summary,
			Source:     item.Source,
			Candidates: tickersOf(matches),
			Quotes:     t.quotes(ctx, matches),
		})
		result, err := t.classifier.Run(ctx, req)
		if err != nil {
			slog.Warn("AI classification failed, using heuristic only", "id", item.ID, "attempts", len(result.Attempts), "error", err)
		} else {
			analysis = result.Analysis
			provider = result.Provider
		}
	}

	input := entity.ResolveInput{
		Heuristic:     matches,
		Authoritative: trust == feed.TrustRegulatory,
		PreIdentified: item.SourceTickers,
	}
	if analysis != nil {
		input.AI = &entity.AISignal{Tickers: analysis.Tickers, Confidence: analysis.TickerConfidence}
	}
	resolution := entity.Resolve(input, ref)

	c := buildClassification(resolution, analysis, provider, outcome.paywalled)

	// The result is worth keeping even when the AI call ran out the job context.
	storeCtx, cancel := detach(ctx)
	defer cancel()

	saved, err := t.news.SaveClassification(storeCtx, item.ID, c)
	if err != nil {
		outcome.err = fmt.Errorf("failed to save classification: %w", err)
		return outcome
	}
	if !saved {
		outcome.skipped = true
		return outcome
	}
	outcome.classified = true
	outcome.usedAI = analysis != nil

	if t.grouper != nil && len(resolution.Tickers) > 0 {
		publishedAt := item.CreatedAt
		if item.PublishedAt != nil {
			publishedAt = *item.PublishedAt
		}
		if _, err := t.grouper.Run(storeCtx, item.ID, resolution.Tickers, publishedAt); err != nil {
			slog.Error("Failed to group news item", "id", item.ID, "error", err)
		} else {
			outcome.grouped = true
		}
	}

	slog.Debug("News item classified",
		"id", item.ID,
		"tickers", resolution.Tickers,
		"by", c.ClassifiedBy,
		"relevance", c.RelevanceScore)

	return outcome
}

func buildClassification(res entity.Resolution, analysis *ai.Analysis, provider string, paywalled bool) database.Classification {
	c := database.Classification{
		Tickers:          res.Tickers,
		TickerConfidence: res.Confidence,
	}

	if analysis == nil {
		c.ClassifiedBy = classifiedByHeuristic
		c.Category = ai.DefaultCategory
		c.ImpactScore = heuristicImpactScore
		switch {
		case paywalled:
			c.RelevanceScore = paywalledRelevance
		case len(res.Tickers) > 0:
			c.RelevanceScore = heuristicRelevance
		default:
			c.RelevanceScore = heuristicEmptyRelevance
		}
		return c
	}

	c.ClassifiedBy = cmp.Or(provider, "ai")
	c.Sentiment = analysis.Sentiment
	c.ImpactScore = analysis.ImpactScore
	c.Category = analysis.Category
	c.Sector = analysis.Sector
	c.AISummary = analysis.AISummary
	c.KeyFacts = analysis.KeyFacts
	c.Topics = analysis.Topics
	c.IsBreaking = analysis.IsBreaking
	c.RelevanceScore = analysis.RelevanceScore
	c.ImpactAssessment = analysis.ImpactAssessment
	return c
}

// quotes looks up the latest price of heuristic candidates. Missing prices are skipped.
func (t *ClassifyNewsTask) quotes(ctx context.Context, matches entity.Matches) []ai.Quote {
	if t.prices == nil {
		return nil
	}

	var quotes []ai.Quote
	for _, m := range matches {
		price, err := t.prices.LatestPrice(ctx, m.Ticker)
		if err != nil {
			if !errors.Is(err, database.ErrNotFound) {
				slog.Debug("Failed to load latest price", "ticker", m.Ticker, "error", err)
			}
			continue
		}
		quotes = append(quotes, ai.Quote{Ticker: price.Ticker, Price: price.Price, Currency: price.Currency})
	}
	return quotes
}

func tickersOf(matches entity.Matches) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Ticker
	}
	return out
}

