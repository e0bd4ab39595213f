package transcode

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kulaginds/imaadpcm/internal/logging"
)

// Batch runs independent jobs on up to workers goroutines. Each job owns its
// codec state, so no coordination is needed beyond the worker limit. The
// first failure cancels jobs that have not started yet; results of jobs that
// finished are still returned in job order.
func Batch(ctx context.Context, jobs []Job, workers int) ([]*Result, error) {
	if workers <= 0 {
		workers = 1
	}

	results := make([]*Result, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			res, err := Run(ctx, job)
			if err != nil {
				return fmt.Errorf("%s %s: %w", job.Mode, job.Input, err)
			}
			results[i] = res
			return nil
		})
	}

	err := g.Wait()
	logging.Debug("batch finished: %d jobs, %d workers", len(jobs), workers)
	return results, err
}
