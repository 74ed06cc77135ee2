package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cuongbtq/content-pipeline/internal/domain"
)

// spawnPool processes jobs on r.concurrency goroutines and waits for all of them.
// With concurrency 1 jobs run sequentially in claim order.
func (r *runner) spawnPool(ctx context.Context, jobs []*domain.Job, handle func(ctx context.Context, job *domain.Job)) {
	if len(jobs) == 0 {
		return
	}

	workers := min(r.concurrency, len(jobs))
	jobsChan := make(chan *domain.Job)

	r.logger.Debug("Spawning worker pool",
		slog.Int("concurrency", workers),
		slog.Int("jobs", len(jobs)),
	)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go r.workerLoop(ctx, &wg, i, jobsChan, handle)
	}

	for _, job := range jobs {
		jobsChan <- job
	}
	close(jobsChan)

	wg.Wait()
}

// workerLoop drains jobsChan. Jobs are still handled after ctx is canceled so every claimed
// job gets its outcome persisted.
func (r *runner) workerLoop(ctx context.Context, wg *sync.WaitGroup, workerNum int, jobsChan <-chan *domain.Job, handle func(ctx context.Context, job *domain.Job)) {
	defer wg.Done()

	workerName := fmt.Sprintf("%s-%d", r.claimer.WorkerID(), workerNum)

	for job := range jobsChan {
		r.logger.Debug("Worker received job",
			slog.String("worker_name", workerName),
			slog.String("job_id", job.ID),
		)
		handle(ctx, job)
	}
}
