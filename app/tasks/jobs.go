package tasks

import (
	"fmt"
	"time"

	"github.com/lysyi3m/newsdesk/app/entity"
	"github.com/lysyi3m/newsdesk/app/feed"
	"github.com/lysyi3m/newsdesk/app/runs"
)

// Mode selects how much work a classify run picks up.
type Mode string

const (
	ModeFull    Mode = "full"
	ModeTrigger Mode = "trigger"
)

func ParseMode(s string) Mode {
	if Mode(s) == ModeTrigger {
		return ModeTrigger
	}
	return ModeFull
}

type JobsConfig struct {
	Sources          []*feed.Source
	BatchSize        int
	TriggerBatchSize int
	ClaimTTL         time.Duration
}

// Jobs builds fresh tasks for each invocation from long-lived dependencies.
type Jobs struct {
	config     JobsConfig
	fetcher    SourceFetcher
	news       NewsStore
	reference  entity.ReferenceSource
	prices     PriceSource
	classifier Classifier
	grouper    Grouper
	pool       *Pool
	tracker    *runs.Tracker
}

func NewJobs(config JobsConfig, fetcher SourceFetcher, news NewsStore, reference entity.ReferenceSource,
	prices PriceSource, classifier Classifier, grouper Grouper, pool *Pool, tracker *runs.Tracker) *Jobs {
	return &Jobs{
		config:     config,
		fetcher:    fetcher,
		news:       news,
		reference:  reference,
		prices:     prices,
		classifier: classifier,
		grouper:    grouper,
		pool:       pool,
		tracker:    tracker,
	}
}

func (j *Jobs) New(taskType TaskType, mode Mode) (TaskInterface, error) {
	switch taskType {
	case TaskTypeFetchNews:
		return NewFetchNewsTask(j.config.Sources, j.fetcher, j.news, j.tracker), nil
	case TaskTypeClassifyNews:
		batch := j.config.BatchSize
		if mode == ModeTrigger {
			batch = j.config.TriggerBatchSize
		}
		settings := ClassifySettings{BatchSize: batch, ClaimTTL: j.config.ClaimTTL}
		return NewClassifyNewsTask(settings, j.news, j.reference, j.prices, j.classifier, j.grouper, j.pool, j.tracker), nil
	}
	return nil, fmt.Errorf("unknown job: %s", taskType)
}
