package tasks

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Pool runs work with bounded concurrency. Work is handed out in chunks of the pool size and the
// pool waits for pause between chunks to stay under upstream rate limits.
type Pool struct {
	size  int
	pause time.Duration
}

func NewPool(size int, pause time.Duration) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{size: size, pause: pause}
}

// Run calls fn for every index in [0, n). No new chunk starts once ctx is done.
func (p *Pool) Run(ctx context.Context, n int, fn func(ctx context.Context, i int)) {
	for start := 0; start < n; start += p.size {
		if ctx.Err() != nil {
			return
		}

		end := min(start+p.size, n)
		var g errgroup.Group
		g.SetLimit(p.size)
		for i := start; i < end; i++ {
			g.Go(func() error {
				fn(ctx, i)
				return nil
			})
		}
		_ = g.Wait()

		if end < n && p.pause > 0 {
			select {
			case <-time.After(p.pause):
			case <-ctx.Done():
				return
			}
		}
	}
}
