package workerpool

import (
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"log/slog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPoolRunsSubmittedTasks(t *testing.T) {
	pool := New(3, 8, testLogger())

	var count atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		ok := pool.TrySubmit(func() {
			defer wg.Done()
			count.Add(1)
		})
		if !ok {
			wg.Done()
		}
	}

	wg.Wait()
	pool.Stop()

	if count.Load() == 0 {
		t.Fatal("no tasks ran")
	}
}

func TestTrySubmitRejectsWhenFull(t *testing.T) {
	pool := New(1, 1, testLogger())
	defer pool.Stop()

	block := make(chan struct{})
	// Occupy the single worker, then fill the single queue slot.
	if !pool.TrySubmit(func() { <-block }) {
		t.Fatal("first submit rejected")
	}

	// The worker may not have picked up the first task yet; allow one or two
	// accepted submissions before rejection.
	accepted := 0
	for i := 0; i < 3; i++ {
		if pool.TrySubmit(func() { <-block }) {
			accepted++
		}
	}
	if accepted > 2 {
		t.Fatalf("accepted %d submissions beyond capacity", accepted)
	}

	close(block)
}

func TestTrySubmitRejectsAfterStop(t *testing.T) {
	pool := New(1, 4, testLogger())
	pool.Stop()

	if pool.TrySubmit(func() {}) {
		t.Fatal("submit accepted after stop")
	}
}

func TestPanicDoesNotKillWorker(t *testing.T) {
	pool := New(1, 4, testLogger())
	defer pool.Stop()

	done := make(chan struct{})
	pool.TrySubmit(func() { panic("boom") })
	pool.TrySubmit(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive panic")
	}
}
