// Package parallel runs independent pieces of work with bounded
// concurrency while keeping input order in the results.
package parallel

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Result pairs one mapped value with the error of its computation.
type Result[D any] struct {
	Value D
	Err   error
}

// Map applies fn to every input with at most limit concurrent calls.
// The returned slice matches the input order. Individual failures land
// in their Result, a cancelled ctx aborts calls not yet started.
func Map[E, D any](ctx context.Context, limit int, inputs []E, fn func(context.Context, E) (D, error)) []Result[D] {
	if limit < 1 {
		limit = 1
	}

	results := make([]Result[D], len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, input := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = Result[D]{Err: err}
				return nil
			}
			d, err := fn(gctx, input)
			results[i] = Result[D]{Value: d, Err: err}
			return nil
		})
	}

	_ = g.Wait()
	return results
}
