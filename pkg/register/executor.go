package register

import (
	"fmt"
	"sync"

	"sarseq/internal/models"
)

// Task describes one registration: align Target to the subset reference Ref
// over the given window.
type Task struct {
	Ref    string
	Target string
	Window models.Window
}

// Executor runs a list of registration tasks and returns the registered
// raster paths in task order.
type Executor interface {
	Run(tasks []Task) ([]string, error)
}

// SequentialExecutor runs tasks one after another in the calling goroutine.
type SequentialExecutor struct{}

// Run executes every task in order, stopping at the first failure.
func (SequentialExecutor) Run(tasks []Task) ([]string, error) {
	paths := make([]string, len(tasks))
	for i, t := range tasks {
		p, err := Register(t.Ref, t.Target, t.Window)
		if err != nil {
			return nil, fmt.Errorf("registration of %s failed: %w", t.Target, err)
		}
		paths[i] = p
	}
	return paths, nil
}

// ParallelExecutor fans tasks out to a bounded pool of worker goroutines.
// Results are index-addressed, so output order matches task order exactly
// as the sequential executor produces it.
type ParallelExecutor struct {
	// Workers bounds the pool size; values below 1 are rejected at Run
	Workers int
}

// Run executes all tasks concurrently. The first error wins; remaining
// results are discarded.
func (e ParallelExecutor) Run(tasks []Task) ([]string, error) {
	if e.Workers < 1 {
		return nil, fmt.Errorf("parallel executor needs at least 1 worker, have %d", e.Workers)
	}

	paths := make([]string, len(tasks))
	errs := make([]error, len(tasks))
	taskCh := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < e.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range taskCh {
				t := tasks[i]
				p, err := Register(t.Ref, t.Target, t.Window)
				if err != nil {
					errs[i] = fmt.Errorf("registration of %s failed: %w", t.Target, err)
					continue
				}
				paths[i] = p
			}
		}()
	}

	for i := range tasks {
		taskCh <- i
	}
	close(taskCh)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return paths, nil
}

// RegisterAll registers every task, preferring parallel execution and
// falling back to the sequential executor on any failure. Parallelism is a
// performance optimization only: both paths run the identical task list and
// produce identical outputs, so the fallback never changes results. Only a
// failure of the sequential path is reported to the caller.
func RegisterAll(tasks []Task, workers int) ([]string, error) {
	paths, err := (ParallelExecutor{Workers: workers}).Run(tasks)
	if err == nil {
		return paths, nil
	}
	fmt.Printf("Parallel co-registration failed (%v), falling back to sequential execution...\n", err)
	return SequentialExecutor{}.Run(tasks)
}
