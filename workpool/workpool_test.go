package workpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRun_AllTasks(t *testing.T) {
	var mu sync.Mutex
	seen := map[int]bool{}
	tasks := []int{1, 2, 3, 4, 5, 6, 7, 8}

	err := Run(context.Background(), tasks, 3, 0, func(_ context.Context, n int) error {
		mu.Lock()
		seen[n] = true
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(seen) != len(tasks) {
		t.Fatalf("ran %d tasks, want %d", len(seen), len(tasks))
	}
}

func TestRun_RespectsLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	tasks := make([]int, 20)

	_ = Run(context.Background(), tasks, 2, 0, func(_ context.Context, _ int) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		inFlight.Add(-1)
		return nil
	})
	if peak.Load() > 2 {
		t.Fatalf("peak concurrency = %d, want <= 2", peak.Load())
	}
}

func TestRun_ReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	err := Run(context.Background(), []int{1, 2, 3}, 1, 0, func(_ context.Context, n int) error {
		if n == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}
}

func TestRun_StopsLaunchingOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Int32

	err := Run(ctx, make([]int, 50), 1, 0, func(_ context.Context, _ int) error {
		if ran.Add(1) == 3 {
			cancel()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := ran.Load(); got >= 50 {
		t.Fatalf("ran %d tasks after cancel, want fewer than 50", got)
	}
}
