package uthreads_test

import (
	"context"
	"sync"
	"testing"
	"time"

	uthreads "github.com/go-uthreads/uthreads"
)

// bootCtx carries the bootstrap thread's identity for every test in this
// file. Init arms a real ITIMER_VIRTUAL/SIGVTALRM quantum timer exactly
// once for the whole process, matching spec §9's "one CPU, one timer, one
// scheduler" model — so unlike core/scheduler_test.go (which builds a
// fresh Scheduler per test and drives ticks manually), these tests share
// one initialized scheduler and rely on real virtual-time preemption.
//
// terminate(0) is deliberately never exercised here: Terminate(ctx,
// BootstrapTID) calls os.Exit(0) at this package boundary, which would
// kill the test binary. That scenario is covered at the core package
// level in core/scheduler_test.go's TestSchedulerTerminateZeroCascades.
var bootCtx context.Context

func TestMain(m *testing.M) {
	ctx, err := uthreads.Init(uthreads.WithQuantumMicros(2000), uthreads.WithMaxThreads(64))
	if err != nil {
		panic(err)
	}
	bootCtx = ctx
	m.Run()
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for condition")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRoundRobinFairness(t *testing.T) {
	var mu sync.Mutex
	var c1, c2 int
	done := make(chan struct{})

	counter := func(dst *int) uthreads.EntryPoint {
		return func(ctx context.Context) {
			for i := 0; i < 200; i++ {
				mu.Lock()
				*dst++
				mu.Unlock()
				if err := uthreads.CheckPoint(ctx); err != nil {
					return
				}
			}
			done <- struct{}{}
		}
	}

	if _, err := uthreads.Spawn(counter(&c1)); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if _, err := uthreads.Spawn(counter(&c2)); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	<-done
	<-done

	mu.Lock()
	diff := c1 - c2
	mu.Unlock()
	if diff < 0 {
		diff = -diff
	}
	if diff > 50 {
		t.Errorf("round-robin fairness violated: c1=%d c2=%d", c1, c2)
	}
}

func TestSleepWakeOrdering(t *testing.T) {
	before, err := uthreads.GetTotalQuantums(bootCtx)
	if err != nil {
		t.Fatalf("GetTotalQuantums: %v", err)
	}

	woke := make(chan int, 1)
	if _, err := uthreads.Spawn(func(ctx context.Context) {
		if err := uthreads.Sleep(ctx, 3); err != nil {
			t.Errorf("Sleep: %v", err)
			return
		}
		total, _ := uthreads.GetTotalQuantums(ctx)
		woke <- total
	}); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	select {
	case after := <-woke:
		if after <= before {
			t.Errorf("total quantums did not advance across a sleep: before=%d after=%d", before, after)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for sleeper to wake")
	}
}

func TestBlockResume(t *testing.T) {
	id, err := uthreads.Spawn(func(ctx context.Context) {
		for {
			if err := uthreads.CheckPoint(ctx); err != nil {
				return
			}
		}
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		q, err := uthreads.GetQuantums(bootCtx, id)
		return err == nil && q >= 1
	})

	if err := uthreads.Block(bootCtx, id); err != nil {
		t.Fatalf("Block: %v", err)
	}
	frozen, err := uthreads.GetQuantums(bootCtx, id)
	if err != nil {
		t.Fatalf("GetQuantums: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	stillFrozen, err := uthreads.GetQuantums(bootCtx, id)
	if err != nil {
		t.Fatalf("GetQuantums: %v", err)
	}
	if stillFrozen != frozen {
		t.Errorf("blocked thread's quanta_run advanced: %d -> %d", frozen, stillFrozen)
	}

	if err := uthreads.Resume(bootCtx, id); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool {
		q, err := uthreads.GetQuantums(bootCtx, id)
		return err == nil && q > frozen
	})

	if err := uthreads.Terminate(bootCtx, id); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
}

func TestIDRecyclingAfterTerminate(t *testing.T) {
	id, err := uthreads.Spawn(func(ctx context.Context) {
		_ = uthreads.Sleep(ctx, 1000) // parked out of the way for the rest of the test
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if err := uthreads.Terminate(bootCtx, id); err != nil {
		t.Fatalf("Terminate: %v", err)
	}

	recycled, err := uthreads.Spawn(func(context.Context) {})
	if err != nil {
		t.Fatalf("Spawn after Terminate: %v", err)
	}
	if recycled != id {
		t.Errorf("Spawn after Terminate returned %d, want recycled id %d", recycled, id)
	}
}

func TestSelfTermination(t *testing.T) {
	done := make(chan uthreads.TID, 1)
	id, err := uthreads.Spawn(func(ctx context.Context) {
		self, err := uthreads.GetTid(ctx)
		if err != nil {
			t.Errorf("GetTid: %v", err)
			return
		}
		done <- self
		_ = uthreads.Terminate(ctx, self) // never returns
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	select {
	case got := <-done:
		if got != id {
			t.Errorf("GetTid inside entry point = %d, want %d", got, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for spawned thread to run")
	}

	waitFor(t, 2*time.Second, func() bool {
		_, err := uthreads.GetQuantums(bootCtx, id)
		return err != nil
	})
}

func TestSleepingAndBlockedDoubleState(t *testing.T) {
	id, err := uthreads.Spawn(func(ctx context.Context) {
		_ = uthreads.Sleep(ctx, 5)
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	findState := func() (uthreads.State, bool) {
		snap, err := uthreads.Snapshot()
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		for _, st := range snap {
			if st.ID == id {
				return st.State, true
			}
		}
		return 0, false
	}

	waitFor(t, 2*time.Second, func() bool {
		st, ok := findState()
		return ok && st == uthreads.Sleeping
	})

	if err := uthreads.Block(bootCtx, id); err != nil {
		t.Fatalf("Block: %v", err)
	}
	if st, ok := findState(); !ok || st != uthreads.SleepingAndBlocked {
		t.Errorf("state after blocking a sleeping thread = %v, want SleepingAndBlocked", st)
	}

	waitFor(t, 2*time.Second, func() bool {
		st, ok := findState()
		return ok && st == uthreads.Blocked
	})

	if err := uthreads.Resume(bootCtx, id); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if st, ok := findState(); ok && st != uthreads.Ready {
		t.Errorf("state after resuming a blocked thread = %v, want Ready", st)
	}

	if err := uthreads.Terminate(bootCtx, id); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
}

func TestGetQuantumsUnknownIDReturnsCallerError(t *testing.T) {
	// The not-initialized error from current() cannot be reached here,
	// since TestMain has already called Init for this binary; this checks
	// that a bad argument surfaces as a *CallerError through the facade.
	if _, err := uthreads.GetQuantums(bootCtx, uthreads.TID(9999)); err == nil {
		t.Error("expected a CallerError for an unknown thread id")
	} else if _, ok := err.(*uthreads.CallerError); !ok {
		t.Errorf("GetQuantums(unknown id) error type = %T, want *uthreads.CallerError", err)
	}
}
