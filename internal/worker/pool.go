package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/thrr87/hoard/internal/coordinator"
	"github.com/thrr87/hoard/internal/detector"
	"github.com/thrr87/hoard/internal/hoarderr"
	"github.com/thrr87/hoard/internal/log"
	"github.com/thrr87/hoard/internal/store"
)

// Pool drains the job queue with a fixed number of goroutines, each
// claiming one job at a time through the Write Coordinator's optimistic
// guard so two workers never run the same job twice.
type Pool struct {
	reader             *sql.DB
	sub                coordinator.Submitter
	concurrency        int
	pollInterval       time.Duration
	duplicateThreshold float64
}

// NewPool creates a Pool. concurrency and duplicateThreshold come from
// internal/config's worker and duplicates sections.
func NewPool(reader *sql.DB, sub coordinator.Submitter, concurrency int, duplicateThreshold float64) *Pool {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Pool{
		reader:             reader,
		sub:                sub,
		concurrency:        concurrency,
		pollInterval:       200 * time.Millisecond,
		duplicateThreshold: duplicateThreshold,
	}
}

// Run starts concurrency goroutines and blocks until ctx is cancelled.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.loop(ctx)
		}()
	}
	wg.Wait()
}

func (p *Pool) loop(ctx context.Context) {
	logger := log.Component("worker-pool")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.claim(ctx)
		if err != nil {
			if errors.Is(err, hoarderr.ErrNotFound) {
				select {
				case <-ctx.Done():
					return
				case <-time.After(p.pollInterval):
				}
				continue
			}
			logger.Error().Err(err).Msg("claim job failed")
			continue
		}

		if err := p.handle(ctx, job); err != nil {
			logger.Error().Err(err).Int64("job_id", job.ID).Str("kind", job.Kind).Msg("job failed")
			p.finish(ctx, job.ID, true, err.Error())
			continue
		}
		p.finish(ctx, job.ID, false, "")
	}
}

func (p *Pool) claim(ctx context.Context) (*store.Job, error) {
	result, err := p.sub.Submit(ctx, func(ctx context.Context, tx *sql.Tx) (any, error) {
		return store.ClaimNextJob(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return result.(*store.Job), nil
}

func (p *Pool) finish(ctx context.Context, id int64, failed bool, lastErr string) {
	_, err := p.sub.Submit(ctx, func(ctx context.Context, tx *sql.Tx) (any, error) {
		return nil, store.FinishJob(ctx, tx, id, failed, lastErr)
	})
	if err != nil {
		log.Component("worker-pool").Error().Err(err).Int64("job_id", id).Msg("finish job failed")
	}
}

func (p *Pool) handle(ctx context.Context, job *store.Job) error {
	switch job.Kind {
	case store.JobKindDetectDuplicate:
		_, err := detector.DetectDuplicates(ctx, p.reader, p.sub, p.duplicateThreshold)
		return err
	case store.JobKindDetectConflict:
		_, err := detector.DetectConflicts(ctx, p.reader, p.sub)
		return err
	case store.JobKindPruneExpired:
		return p.pruneExpired(ctx)
	default:
		return fmt.Errorf("worker: unknown job kind %q", job.Kind)
	}
}

func (p *Pool) pruneExpired(ctx context.Context) error {
	_, err := p.sub.Submit(ctx, func(ctx context.Context, tx *sql.Tx) (any, error) {
		n, err := store.PruneExpired(ctx, tx, time.Now())
		return n, err
	})
	return err
}

// jobPayload is the shape detect_duplicate/detect_conflict/prune_expired
// payloads share: currently empty, reserved for future per-job scoping
// (e.g. limiting a scan to one scope). This package's tests enqueue with
// it; dispatch's memory_put passes a literal "{}".
type jobPayload struct{}

func marshalJobPayload() string {
	b, _ := json.Marshal(jobPayload{})
	return string(b)
}
