package uthreads

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/go-uthreads/uthreads/core"
)

// sched is the process-wide scheduler singleton (spec §9: "the scheduler's
// state is inherently global — one CPU, one timer, one signal"). It is
// guarded by mu: Init holds mu while it builds and installs a scheduler,
// and every other operation holds it only to read sched (see current)
// before delegating to core.Scheduler, which does its own locking around
// scheduler state.
var (
	mu    sync.Mutex
	sched *core.Scheduler
)

// Init installs the bootstrap thread and arms the quantum timer. The
// returned context.Context carries the bootstrap thread's identity and
// must be passed to Sleep, CheckPoint, GetTid, or any Block/Terminate call
// the bootstrap thread makes against itself.
//
// A SystemError here is fatal per spec §7.2: it is written to stderr and
// the process exits with status 1. core.Scheduler itself never calls
// os.Exit — only this boundary does, so core stays testable in-process.
func Init(opts ...Option) (context.Context, error) {
	mu.Lock()
	defer mu.Unlock()

	s := core.NewScheduler(core.NewConfig(opts...))
	ctx, err := s.Init()
	if err != nil {
		if sysErr, ok := err.(*core.SystemError); ok {
			fatal(sysErr)
		}
		return nil, err
	}
	sched = s
	return ctx, nil
}

// Spawn allocates the smallest free id and starts a new READY thread.
func Spawn(entry EntryPoint) (TID, error) {
	s, err := current()
	if err != nil {
		return 0, err
	}
	return s.Spawn(entry)
}

// Terminate implements terminate(id). Terminate(ctx, BootstrapTID) tears
// down every other thread and exits the process with status 0 — the one
// place this package calls os.Exit on a non-error path, matching the
// original library's terminate(0) contract.
func Terminate(ctx context.Context, id TID) error {
	s, err := current()
	if err != nil {
		return err
	}
	if err := s.Terminate(ctx, id); err != nil {
		return err
	}
	if id == BootstrapTID {
		os.Exit(0)
	}
	return nil
}

// Block implements block(id).
func Block(ctx context.Context, id TID) error {
	s, err := current()
	if err != nil {
		return err
	}
	return s.Block(ctx, id)
}

// Resume implements resume(id).
func Resume(ctx context.Context, id TID) error {
	s, err := current()
	if err != nil {
		return err
	}
	return s.Resume(ctx, id)
}

// Sleep implements sleep(N).
func Sleep(ctx context.Context, n int) error {
	s, err := current()
	if err != nil {
		return err
	}
	return s.Sleep(ctx, n)
}

// CheckPoint yields to the scheduler if the calling thread has already
// been preempted asynchronously but hasn't noticed yet — see the package
// doc and SPEC_FULL's Open Question 1.
func CheckPoint(ctx context.Context) error {
	s, err := current()
	if err != nil {
		return err
	}
	return s.CheckPoint(ctx)
}

// GetTid returns the id of the calling thread.
func GetTid(ctx context.Context) (TID, error) {
	s, err := current()
	if err != nil {
		return 0, err
	}
	return s.GetTid(ctx)
}

// GetQuantums returns the named thread's quanta_run.
func GetQuantums(ctx context.Context, id TID) (int, error) {
	s, err := current()
	if err != nil {
		return -1, err
	}
	return s.GetQuantums(ctx, id)
}

// GetTotalQuantums returns the scheduler-wide quantum counter.
func GetTotalQuantums(ctx context.Context) (int, error) {
	s, err := current()
	if err != nil {
		return -1, err
	}
	return s.GetTotalQuantums(ctx), nil
}

// Snapshot returns a point-in-time view of every live thread.
func Snapshot() ([]ThreadStats, error) {
	s, err := current()
	if err != nil {
		return nil, err
	}
	return s.Snapshot(), nil
}

// Stats returns a point-in-time summary of the scheduler.
func Stats() (SchedulerStats, error) {
	s, err := current()
	if err != nil {
		return SchedulerStats{}, err
	}
	return s.Stats(), nil
}

// History returns up to limit most-recent scheduler events.
func History(limit int) ([]Event, error) {
	s, err := current()
	if err != nil {
		return nil, err
	}
	return s.History(limit), nil
}

func current() (*core.Scheduler, error) {
	mu.Lock()
	defer mu.Unlock()
	if sched == nil {
		return nil, core.NewUninitializedError("current")
	}
	return sched, nil
}

// fatal writes a SystemError to stderr and exits with status 1, mirroring
// the original uthreads.cpp's system-error path.
func fatal(err *core.SystemError) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
