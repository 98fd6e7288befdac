// Package batch splits work into fixed-size chunks and drives them
// through a processing step on a small worker pool.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/user/linkchecker-service/pkg/metrics"
)

// Chunk splits items into consecutive slices of at most size items. The
// last chunk may be smaller. Chunks share the backing array of items.
func Chunk[T any](items []T, size int) [][]T {
	if size < 1 {
		panic(fmt.Sprintf("batch: chunk size must be positive, got %d", size))
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end:end])
	}
	return chunks
}

// Operation is one named unit of work handed to a Step.
type Operation[T any] struct {
	Name  string
	Index int
	Items []T
}

// Plan turns items into an ordered list of operations named name.
func Plan[T any](name string, items []T, size int) []Operation[T] {
	chunks := Chunk(items, size)
	ops := make([]Operation[T], len(chunks))
	for i, c := range chunks {
		ops[i] = Operation[T]{Name: name, Index: i, Items: c}
	}
	return ops
}

// Step processes one operation and reports how many of its items were
// processed and how many of those failed.
type Step[T any] func(ctx context.Context, op Operation[T]) (processed, failed int)

// Progress is the aggregate state after a chunk finishes.
type Progress struct {
	Total     int
	Processed int
	Failed    int
}

// Summary is the terminal state of a run.
type Summary struct {
	Progress
	Chunks   int
	Skipped  int
	Canceled bool
	Elapsed  time.Duration
}

// Runner executes operations on a fixed number of workers. Operations
// start in submission order; with one worker they also finish in order.
type Runner[T any] struct {
	workers int
	log     *zap.Logger
}

// NewRunner returns a Runner with at least one worker.
func NewRunner[T any](workers int, log *zap.Logger) *Runner[T] {
	if workers < 1 {
		workers = 1
	}
	return &Runner[T]{workers: workers, log: log}
}

// Run drives ops through step. onProgress is called after every chunk and
// onFinished once at the end; either may be nil. Calls are serialized.
// Cancelling ctx stops new chunks from starting; running chunks finish.
// Failed chunks are not retried.
func (r *Runner[T]) Run(
	ctx context.Context,
	ops []Operation[T],
	step Step[T],
	onProgress func(Progress),
	onFinished func(Summary),
) Summary {
	start := time.Now()
	var sum Summary
	for _, op := range ops {
		sum.Total += len(op.Items)
	}

	var mu sync.Mutex
	taskQueue := make(chan Operation[T])
	var wg sync.WaitGroup
	for i := 0; i < min(r.workers, max(len(ops), 1)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for op := range taskQueue {
				opStart := time.Now()
				processed, failed := step(ctx, op)
				metrics.ChunkDuration.WithLabelValues(op.Name).Observe(time.Since(opStart).Seconds())

				mu.Lock()
				sum.Chunks++
				sum.Processed += processed
				sum.Failed += failed
				p := sum.Progress
				if onProgress != nil {
					onProgress(p)
				}
				mu.Unlock()

				r.log.Debug("Chunk finished",
					zap.String("operation", op.Name),
					zap.Int("chunk", op.Index),
					zap.Int("processed", p.Processed),
					zap.Int("total", p.Total))
			}
		}()
	}

	cancelAt := -1
submit:
	for i, op := range ops {
		if ctx.Err() != nil {
			cancelAt = i
			break
		}
		select {
		case taskQueue <- op:
		case <-ctx.Done():
			cancelAt = i
			break submit
		}
	}
	close(taskQueue)
	wg.Wait()

	if cancelAt >= 0 {
		sum.Canceled = true
		sum.Skipped = len(ops) - cancelAt
		r.log.Warn("Run canceled between chunks", zap.Int("skipped_chunks", sum.Skipped))
	}
	sum.Elapsed = time.Since(start)
	if onFinished != nil {
		onFinished(sum)
	}
	return sum
}
