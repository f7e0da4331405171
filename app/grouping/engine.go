package grouping

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/newsdesk/app/database"
)

const DefaultWindow = 2 * time.Hour

type Store interface {
	FindGroupCandidates(ctx context.Context, excludeID int64, tickers []string, from, to time.Time) ([]database.GroupCandidate, error)
	SetEventGroup(ctx context.Context, id int64, groupID string) error
}

// Engine clusters classified items into events. Items join the group of the earliest classified
// item that shares a ticker and was published within the window; otherwise they start a new group.
// Runs are serialized so that concurrent items see each other's groups.
type Engine struct {
	mu     sync.Mutex
	store  Store
	window time.Duration
	newID  func() string
}

func NewEngine(store Store, window time.Duration) *Engine {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Engine{
		store:  store,
		window: window,
		newID:  uuid.NewString,
	}
}

// Run assigns a group to item id and returns it. Items without tickers are not grouped. Only the
// given item is written; groups of other items never change.
func (e *Engine) Run(ctx context.Context, id int64, tickers []string, publishedAt time.Time) (string, error) {
	if len(tickers) == 0 {
		return "", nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	candidates, err := e.store.FindGroupCandidates(ctx, id, tickers, publishedAt.Add(-e.window), publishedAt.Add(e.window))
	if err != nil {
		return "", fmt.Errorf("failed to find group candidates: %w", err)
	}

	groupID := ""
	for _, c := range candidates {
		if c.EventGroupID != "" {
			groupID = c.EventGroupID
			break
		}
	}
	if groupID == "" {
		groupID = e.newID()
	}

	if err := e.store.SetEventGroup(ctx, id, groupID); err != nil {
		return "", fmt.Errorf("failed to set event group: %w", err)
	}

	return groupID, nil
}
