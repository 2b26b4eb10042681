// Package uthreads implements a cooperative-preemptive user-level thread
// library: many logical threads of execution multiplexed over a single
// scheduler, rotated round-robin on a fixed-length virtual-time quantum.
//
// The engine — the quantum timer, the READY/BLOCKED/SLEEPING state
// machine, and the dispatcher — lives in the core subpackage. This
// package is the public surface a host program calls: Init, Spawn,
// Terminate, Block, Resume, Sleep, GetTid, GetQuantums,
// GetTotalQuantums, and the cooperative CheckPoint.
//
// # Quick Start
//
//	ctx, err := uthreads.Init(uthreads.WithQuantumMicros(1000), uthreads.WithMaxThreads(64))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer uthreads.Terminate(ctx, uthreads.BootstrapTID)
//
//	id, _ := uthreads.Spawn(func(threadCtx context.Context) {
//		for i := 0; i < 10; i++ {
//			println("hello from spawned thread")
//			uthreads.CheckPoint(threadCtx)
//		}
//	})
//
// # Thread identity
//
// Go cannot force an arbitrary goroutine to suspend between two arbitrary
// instructions, so self-referential calls (Sleep, CheckPoint, GetTid, a
// thread blocking or terminating itself) identify their caller through the
// context.Context they were handed — by Init for the bootstrap thread, or
// as the sole argument to a spawned entry point. Passing a bare
// context.Background() to Sleep, CheckPoint or GetTid returns a
// CallerError. Block and Terminate accept such a context, but then cannot
// tell that the target is the caller and handle it like any other thread.
//
// # Signal usage
//
// The scheduler claims SIGVTALRM for quantum preemption via
// golang.org/x/sys/unix. A host process must not install a competing
// SIGVTALRM handler or otherwise alter its mask while the scheduler is
// running.
package uthreads
