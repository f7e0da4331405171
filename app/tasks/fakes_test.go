package tasks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lysyi3m/newsdesk/app/ai"
	"github.com/lysyi3m/newsdesk/app/database"
	"github.com/lysyi3m/newsdesk/app/feed"
	"github.com/lysyi3m/newsdesk/app/runs"
)

type fakeRunStore struct {
	mu       sync.Mutex
	finished []database.PipelineRun
	failures []string
}

func (s *fakeRunStore) CreateRun(ctx context.Context, run database.PipelineRun) error {
	return nil
}

func (s *fakeRunStore) FinishRun(ctx context.Context, run database.PipelineRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, run)
	return nil
}

func (s *fakeRunStore) RecordSuccess(ctx context.Context, jobName string, at time.Time) error {
	return nil
}

func (s *fakeRunStore) RecordFailure(ctx context.Context, jobName string, message string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, message)
	return nil
}

func newTestTracker() (*runs.Tracker, *fakeRunStore) {
	store := &fakeRunStore{}
	return runs.NewTracker(store), store
}

type fakeFetcher struct {
	result *feed.FetchResult
}

func (f *fakeFetcher) Run(ctx context.Context, sources []*feed.Source) *feed.FetchResult {
	return f.result
}

type fakeNewsStore struct {
	mu        sync.Mutex
	inserted  map[string]database.NewItem
	failURL   string
	pending   []database.NewsItem
	claimErr  error
	saved     map[int64]database.Classification
	taken     map[int64]bool // already classified elsewhere
	saveErrID int64
}

func newFakeNewsStore() *fakeNewsStore {
	return &fakeNewsStore{
		inserted: make(map[string]database.NewItem),
		saved:    make(map[int64]database.Classification),
		taken:    make(map[int64]bool),
	}
}

func (s *fakeNewsStore) InsertIfAbsent(ctx context.Context, item database.NewItem) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if item.URL == s.failURL {
		return false, fmt.Errorf("disk full")
	}
	if _, ok := s.inserted[item.ContentID]; ok {
		return false, nil
	}
	s.inserted[item.ContentID] = item
	return true, nil
}

func (s *fakeNewsStore) ClaimUnclassified(ctx context.Context, limit int, staleAfter time.Duration) ([]database.NewsItem, error) {
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	return s.pending[:min(limit, len(s.pending))], nil
}

func (s *fakeNewsStore) SaveClassification(ctx context.Context, id int64, c database.Classification) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id == s.saveErrID {
		return false, fmt.Errorf("database is locked")
	}
	if s.taken[id] {
		return false, nil
	}
	s.saved[id] = c
	return true, nil
}

type fakeReference struct {
	aliases []database.Alias
	tickers []string
	err     error
}

func (r *fakeReference) LoadAliases(ctx context.Context) ([]database.Alias, error) {
	return r.aliases, r.err
}

func (r *fakeReference) LoadValidTickers(ctx context.Context) ([]string, error) {
	return r.tickers, r.err
}

func testReference() *fakeReference {
	return &fakeReference{
		aliases: []database.Alias{
			{Alias: "orlen", Ticker: "PKN"},
			{Alias: "pkn orlen", Ticker: "PKN"},
			{Alias: "kghm", Ticker: "KGH"},
			{Alias: "mbank", Ticker: "MBK"},
		},
		tickers: []string{"PKN", "KGH", "MBK", "CDR"},
	}
}

type fakePrices struct {
	mu     sync.Mutex
	asked  []string
	prices map[string]decimal.Decimal
}

func (p *fakePrices) LatestPrice(ctx context.Context, ticker string) (*database.Price, error) {
	p.mu.Lock()
	p.asked = append(p.asked, ticker)
	p.mu.Unlock()

	price, ok := p.prices[ticker]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &database.Price{Ticker: ticker, Price: price, Currency: "PLN"}, nil
}

type fakeClassifier struct {
	mu       sync.Mutex
	analyses map[string]*ai.Analysis // keyed by a substring of the user prompt
	err      error
	calls    []ai.Request
	disabled bool
	onRun    func() // called before answering
}

func (c *fakeClassifier) Len() int {
	if c.disabled {
		return 0
	}
	return 1
}

func (c *fakeClassifier) Run(ctx context.Context, req ai.Request) (ai.Result, error) {
	c.mu.Lock()
	c.calls = append(c.calls, req)
	c.mu.Unlock()

	if c.onRun != nil {
		c.onRun()
	}
	if err := ctx.Err(); err != nil {
		return ai.Result{Attempts: []ai.Attempt{{Provider: "fake", Err: err}}}, err
	}

	if c.err != nil {
		return ai.Result{Attempts: []ai.Attempt{{Provider: "fake", Err: c.err}}}, c.err
	}
	for key, analysis := range c.analyses {
		if strings.Contains(req.User, key) {
			return ai.Result{Analysis: analysis, Provider: "fake"}, nil
		}
	}
	return ai.Result{}, fmt.Errorf("fake: %w", ai.ErrUnparsable)
}

type fakeGrouper struct {
	mu    sync.Mutex
	calls map[int64][]string
	err   error
}

func (g *fakeGrouper) Run(ctx context.Context, id int64, tickers []string, publishedAt time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.err != nil {
		return "", g.err
	}
	if g.calls == nil {
		g.calls = make(map[int64][]string)
	}
	g.calls[id] = tickers
	return fmt.Sprintf("group-%d", id), nil
}
