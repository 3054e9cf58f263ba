package worker

import (
	"context"
	"sync"

	"github.com/akolanti/ClinicRAG/internal/config"
	"github.com/akolanti/ClinicRAG/internal/metrics"
	"github.com/akolanti/ClinicRAG/pkg/logger_i"
)

var logger = logger_i.NewLogger("WorkerPool")

type result[T any] struct {
	index int
	value T
}

// Run executes task for every index in [0, n) on at most workers goroutines. Results are returned in
// index order regardless of completion order. The first failure cancels the remaining tasks and is
// returned; no partial result is returned with it.
func Run[T any](ctx context.Context, workers int, n int, task func(ctx context.Context, index int) (T, error)) ([]T, error) {
	if n == 0 {
		return []T{}, nil
	}
	workers = max(1, min(workers, n, config.MaxWorkerCount))

	poolCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobChannel := make(chan int)
	resultChannel := make(chan result[T], n)
	var (
		waitGroup sync.WaitGroup
		errOnce   sync.Once
		firstErr  error
	)

	for w := 0; w < workers; w++ {
		waitGroup.Add(1)
		metrics.IncrementActiveWorkerCount()
		go func() {
			defer waitGroup.Done()
			defer metrics.DecrementActiveWorkerCount()
			for index := range jobChannel {
				value, err := task(poolCtx, index)
				if err != nil {
					errOnce.Do(func() {
						firstErr = err
						cancel()
					})
					continue
				}
				resultChannel <- result[T]{index: index, value: value}
			}
		}()
	}

	logger.Debug("worker pool started", "workers", workers, "tasks", n)
dispatch:
	for i := 0; i < n; i++ {
		select {
		case jobChannel <- i:
		case <-poolCtx.Done():
			break dispatch
		}
	}
	close(jobChannel)
	waitGroup.Wait()
	close(resultChannel)

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]T, n)
	for r := range resultChannel {
		out[r.index] = r.value
	}
	return out, nil
}
