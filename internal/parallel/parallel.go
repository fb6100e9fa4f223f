// Package parallel provides a bounded-concurrency map-and-collect pool
// used by the execution engine's parallel mode.
package parallel

import (
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/tidyops/organize/internal/logger"
)

// Map runs fn over every item on a pool of at most workers goroutines and
// collects the results in completion order. A failing item is logged and
// skipped; it never cancels sibling items, and the pool always drains.
// workers < 1 selects runtime.NumCPU().
func Map[T, R any](items []T, fn func(T) (R, error), workers int, log *zap.Logger) []R {
	log = logger.OrNop(log)
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	if len(items) == 0 {
		return nil
	}
	if workers > len(items) {
		workers = len(items)
	}

	tasks := make(chan T, workers)
	results := make([]R, 0, len(items))

	var workerWg sync.WaitGroup
	var resultLock sync.Mutex

	for i := 0; i < workers; i++ {
		workerWg.Add(1)
		go func() {
			defer workerWg.Done()
			for item := range tasks {
				result, err := fn(item)
				if err != nil {
					log.Error("parallel unit failed", zap.Any("item", item), zap.Error(err))
					continue
				}
				resultLock.Lock()
				results = append(results, result)
				resultLock.Unlock()
			}
		}()
	}

	for _, item := range items {
		tasks <- item
	}
	close(tasks)
	workerWg.Wait()

	return results
}
