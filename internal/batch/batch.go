package batch

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/sokinpui/cssmerge/internal/config"
	"github.com/sokinpui/cssmerge/model"
)

// RunFunc performs the job at index i.
type RunFunc func(ctx context.Context, i int, job config.Job) (model.Summary, error)

// Run executes every job with at most concurrency in flight (no limit when
// concurrency <= 0). Summaries are returned in job order. A failing job does
// not stop the others; all failures are collected in the returned error.
//
// onDone is called once per finished job; it may be nil and must be safe for
// concurrent use.
func Run(ctx context.Context, jobs []config.Job, concurrency int, run RunFunc, onDone func()) ([]model.Summary, error) {
	summaries := make([]model.Summary, len(jobs))
	errs := make([]error, len(jobs))

	var g errgroup.Group
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	for i, job := range jobs {
		g.Go(func() error {
			if onDone != nil {
				defer onDone()
			}
			if err := ctx.Err(); err != nil {
				errs[i] = fmt.Errorf("%s: %w", job.Name, err)
				return nil
			}
			summary, err := run(ctx, i, job)
			summaries[i] = summary
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", job.Name, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	var result *multierror.Error
	for _, err := range errs {
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return summaries, result.ErrorOrNil()
}
