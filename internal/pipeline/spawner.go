package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"horse.fit/polyglot/internal/db"
)

// Spawner runs one detached background task per job and supervises it: an
// error or panic escaping the task is written back to the job row as a
// failure instead of being lost.
type Spawner struct {
	store  Store
	logger zerolog.Logger
	wg     sync.WaitGroup
}

func NewSpawner(store Store, logger zerolog.Logger) *Spawner {
	return &Spawner{
		store:  store,
		logger: logger,
	}
}

// Spawn starts the task for jobID. The task outlives the originating HTTP
// request, so it runs under a fresh background context.
func (sp *Spawner) Spawn(jobID string, task func(ctx context.Context) error) {
	sp.wg.Add(1)
	go func() {
		defer sp.wg.Done()

		ctx := context.Background()
		err := runSupervised(ctx, task)
		if err == nil {
			return
		}

		sp.logger.Error().Err(err).Str("job_id", jobID).Msg("translation job failed")

		message := err.Error()
		if updateErr := sp.store.UpdateJobStatus(ctx, jobID, db.JobFailed, nil, &message); updateErr != nil {
			sp.logger.Error().Err(updateErr).Str("job_id", jobID).Msg("failed to record job failure")
		}
	}()
}

// Wait blocks until every spawned task has finished. Used on shutdown and in
// tests.
func (sp *Spawner) Wait() {
	sp.wg.Wait()
}

func runSupervised(ctx context.Context, task func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return task(ctx)
}
