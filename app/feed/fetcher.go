package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const maxBodySize = 10 << 20

type FetcherOptions struct {
	Concurrency int
	Timeout     time.Duration // used when a source sets no timeout of its own
	UserAgent   string
	Limiter     *HostLimiter
}

// Fetcher retrieves all source URLs with bounded concurrency. Every URL fails on its own: a
// timeout, non-2xx status or parse error is recorded against its source and the batch goes on.
type Fetcher struct {
	httpClient  *http.Client
	parser      *Parser
	scraper     *Scraper
	filterer    *Filterer
	extractor   *ContentExtractor
	limiter     *HostLimiter
	concurrency int
	timeout     time.Duration
	userAgent   string
}

func NewFetcher(httpClient *http.Client, opts FetcherOptions) *Fetcher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultSourceTimeout * time.Second
	}
	if opts.Limiter == nil {
		opts.Limiter = NewHostLimiter(0)
	}

	return &Fetcher{
		httpClient:  httpClient,
		parser:      NewParser(),
		scraper:     NewScraper(),
		filterer:    NewFilterer(),
		extractor:   NewContentExtractor(),
		limiter:     opts.Limiter,
		concurrency: opts.Concurrency,
		timeout:     opts.Timeout,
		userAgent:   opts.UserAgent,
	}
}

func (f *Fetcher) Run(ctx context.Context, sources []*Source) *FetchResult {
	result := &FetchResult{Sources: make(map[string]*SourceResult, len(sources))}
	for _, src := range sources {
		result.Sources[src.Name] = &SourceResult{}
	}

	targets := Targets(sources)
	var mu sync.Mutex

	// A failed URL is recorded against its source and never stops the others.
	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for _, target := range targets {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			items, filtered, err := f.fetchTarget(ctx, target)

			mu.Lock()
			defer mu.Unlock()
			tally := result.Sources[target.Source.Name]
			if err != nil {
				tally.Errors = append(tally.Errors, fmt.Sprintf("%s: %v", target.URL, err))
				slog.Warn("Source fetch failed", "source", target.Source.Name, "url", target.URL, "error", err)
				return nil
			}
			tally.Fetched += len(items)
			tally.Filtered += filtered
			result.Items = append(result.Items, items...)
			return nil
		})
	}
	_ = g.Wait()

	return result
}

func (f *Fetcher) fetchTarget(ctx context.Context, target Target) ([]Item, int, error) {
	src := target.Source

	data, err := f.fetch(ctx, target.URL, f.timeoutFor(src))
	if err != nil {
		return nil, 0, err
	}

	var items []Item
	switch src.Kind {
	case KindHTML:
		items, err = f.scraper.Run(data, target.URL, src)
	default:
		items, err = f.parser.Run(data, target.URL, src)
	}
	if err != nil {
		return nil, 0, err
	}

	items, filtered := f.filterer.Run(items, src)

	if src.ExtractContent {
		f.extractBodies(ctx, src, items)
	}

	slog.Debug("Source fetched", "source", src.Name, "url", target.URL, "items", len(items), "filtered", filtered)

	return items, filtered, nil
}

// extractBodies replaces item summaries with the readable article text. Failures keep the
// summary from the listing.
func (f *Fetcher) extractBodies(ctx context.Context, src *Source, items []Item) {
	for i := range items {
		if ctx.Err() != nil {
			return
		}

		data, err := f.fetch(ctx, items[i].URL, f.timeoutFor(src))
		if err != nil {
			slog.Debug("Article fetch failed", "source", src.Name, "url", items[i].URL, "error", err)
			continue
		}

		text, err := f.extractor.Run(data, items[i].URL)
		if err != nil {
			slog.Debug("Content extraction failed", "source", src.Name, "url", items[i].URL, "error", err)
			continue
		}
		items[i].Summary = truncate(text, maxSummaryLength)
	}
}

func (f *Fetcher) fetch(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := f.limiter.Wait(timeoutCtx, url); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

func (f *Fetcher) timeoutFor(src *Source) time.Duration {
	if src != nil && src.Timeout > 0 {
		return src.TimeoutDuration()
	}
	return f.timeout
}
