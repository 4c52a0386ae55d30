package worker

import (
	"context"
	"fmt"
)

// gatherJob carries its input position so results can be put back in order
type gatherJob[T, R any] struct {
	ctx   context.Context
	index int
	item  T
	fn    func(ctx context.Context, item T) R
}

type gatherResult[R any] struct {
	index int
	value R
	err   error
}

func (r *gatherResult[R]) GetError() error {
	return r.err
}

func (j *gatherJob[T, R]) Execute(_ context.Context) (res Result) {
	out := &gatherResult[R]{index: j.index}
	defer func() {
		if rec := recover(); rec != nil {
			out.err = fmt.Errorf("job %d panicked: %v", j.index, rec)
			res = out
		}
	}()
	out.value = j.fn(j.ctx, j.item)
	return out
}

// Gather runs fn for every item with at most workers in flight and returns one
// result per item, in input order. It returns only after every item has settled.
// fn is expected to encode failures in R; a panicking fn yields the zero R and is
// reported through onPanic when non-nil.
func Gather[T, R any](ctx context.Context, workers int, items []T, fn func(ctx context.Context, item T) R, onPanic func(item T, err error) R) []R {
	out := make([]R, len(items))
	if len(items) == 0 {
		return out
	}
	if workers > len(items) {
		workers = len(items)
	}

	jobs := make([]Job, len(items))
	for i, item := range items {
		jobs[i] = &gatherJob[T, R]{ctx: ctx, index: i, item: item, fn: fn}
	}

	pool := NewPool(workers)
	for _, r := range pool.Run(jobs) {
		gr := r.(*gatherResult[R])
		if gr.err != nil && onPanic != nil {
			out[gr.index] = onPanic(items[gr.index], gr.err)
			continue
		}
		out[gr.index] = gr.value
	}
	return out
}
