package narrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Worker is one long-running component of the pipeline, named for
// error reports.
type Worker struct {
	Name string
	Run  func(context.Context) error
}

// RunWorkers starts every worker on its own goroutine and blocks
// until all of them return. The first failure cancels the rest and is
// returned; a worker finishing cleanly leaves the others running.
// Panics inside a worker become errors instead of tearing the process
// down.
func RunWorkers(ctx context.Context, workers ...Worker) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, len(workers))
	var wg sync.WaitGroup
	for _, worker := range workers {
		run := panicSafeNamedWorker(worker.Name, worker.Run)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil {
				if !errors.Is(err, context.Canceled) {
					errs <- err
				}
				cancel()
			}
		}()
	}
	wg.Wait()
	close(errs)

	return <-errs
}

func panicSafeNamedWorker(name string, run func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) (err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = fmt.Errorf("%s worker panicked: %v", name, recovered)
			}
		}()

		if err = run(ctx); err != nil {
			return fmt.Errorf("%s worker failed: %w", name, err)
		}

		return nil
	}
}
