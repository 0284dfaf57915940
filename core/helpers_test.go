package narrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRunWorkersPropagatesFirstFailure(t *testing.T) {
	boom := errors.New("boom")

	err := RunWorkers(context.Background(),
		Worker{Name: "exploder", Run: func(ctx context.Context) error {
			return boom
		}},
		Worker{Name: "idler", Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	)

	if !errors.Is(err, boom) {
		t.Fatalf("expected the worker error, got %v", err)
	}
	if !strings.Contains(err.Error(), "exploder worker failed") {
		t.Fatalf("expected the worker name in %q", err.Error())
	}
}

func TestRunWorkersRecoversPanics(t *testing.T) {
	err := RunWorkers(context.Background(),
		Worker{Name: "reckless", Run: func(ctx context.Context) error {
			panic("kaboom")
		}},
	)

	if err == nil || !strings.Contains(err.Error(), "reckless worker panicked") {
		t.Fatalf("expected a panic error, got %v", err)
	}
}

func TestRunWorkersCleanExitLeavesOthersRunning(t *testing.T) {
	interrupted := errors.New("cut short")

	err := RunWorkers(context.Background(),
		Worker{Name: "short lived", Run: func(ctx context.Context) error {
			return nil
		}},
		Worker{Name: "long lived", Run: func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return interrupted
			case <-time.After(20 * time.Millisecond):
				return nil
			}
		}},
	)

	if errors.Is(err, interrupted) {
		t.Fatal("a clean exit cancelled the remaining workers")
	}
	if err != nil {
		t.Fatalf("expected a clean shutdown, got %v", err)
	}
}

func TestRunWorkersCancellationIsNotAFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := RunWorkers(ctx,
		Worker{Name: "patient", Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	)

	if err != nil {
		t.Fatalf("expected cancellation to be silent, got %v", err)
	}
}
