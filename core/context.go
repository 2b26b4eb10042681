package core

import (
	"context"
	"runtime/debug"
)

// selfKey is the context.Context key a thread's own *tcb is stored under,
// letting Sleep/CheckPoint/GetTid/self-Block/self-Terminate identify their
// caller without goroutine-local storage: the context is created once per
// thread (at Spawn for spawned threads, at Init for the bootstrap thread)
// and is the one piece of state every self-referential call must thread
// through, the same way the teacher threads context.Context through Task.
type selfKey struct{}

// withSelf attaches t as the thread identity carried by ctx.
func withSelf(ctx context.Context, t *tcb) context.Context {
	return context.WithValue(ctx, selfKey{}, t)
}

// selfFrom recovers the thread identity attached by withSelf, if any.
func selfFrom(ctx context.Context) (*tcb, bool) {
	t, ok := ctx.Value(selfKey{}).(*tcb)
	return t, ok
}

// threadContext is the per-TCB machine-context analogue (C1). Go gives no
// safe way to save an arbitrary goroutine's register file the way
// sigsetjmp/ucontext do, so a context here is a channel: the goroutine
// that owns a TCB blocks receiving from resume until the dispatcher hands
// it the baton, which is the structural guarantee behind I1 (see Open
// Question 1 in SPEC_FULL.md — at most one TCB's goroutine is ever
// unblocked at a time).
type threadContext struct {
	// resume is the baton. Buffered by one so wake never blocks the
	// dispatcher even if the receiving goroutine has not reached its
	// park point yet.
	resume chan struct{}

	// exited is closed exactly once, when the owning goroutine leaves the
	// entry point: by returning, by panicking, or through Terminate(self)'s
	// runtime.Goexit. It is never closed for a thread torn down by
	// Terminate from another thread, whose goroutine stays parked. The
	// owning goroutine closes it; the scheduler does not read it.
	exited chan struct{}
}

func newThreadContext() *threadContext {
	return &threadContext{
		resume: make(chan struct{}, 1),
		exited: make(chan struct{}),
	}
}

// wake hands the baton to this context's owner. Never blocks.
func (c *threadContext) wake() {
	select {
	case c.resume <- struct{}{}:
	default:
	}
}

// park blocks the calling goroutine until wake is called elsewhere. This
// is the Go-level analogue of restore_context blocking until a later
// matching dispatch: a preempted thread's goroutine actually stops
// executing here, and a freshly spawned thread's goroutine starts here,
// before ever touching its entry point.
func (c *threadContext) park() {
	<-c.resume
}

// primeAndRun starts t's entry point on a dedicated goroutine, gated by
// its context's baton (prime_context, realized as "park before the first
// dispatch"). t.ctx must already be set (newTCB does this) before
// primeAndRun is called, since t can already be sitting on the ready
// queue — visible to the dispatcher — by the time this runs. onExit is
// invoked once the entry point returns, whether naturally or via a
// recovered panic — it is what distinguishes "the thread fell off the
// end of its function" from an explicit Terminate call, so the
// scheduler can reap it identically to self-termination. panicInfo/stack
// are non-nil only when the entry point panicked; a panicking entry
// point never crashes the process, matching the way a panicking task
// never crashes the teacher's worker pool.
func (t *tcb) primeAndRun(onExit func(t *tcb, panicInfo any, stack []byte)) {
	ctx := withSelf(context.Background(), t)
	go func() {
		t.ctx.park()
		var panicInfo any
		var stack []byte
		func() {
			defer close(t.ctx.exited)
			defer func() {
				if r := recover(); r != nil {
					panicInfo = r
					stack = debug.Stack()
				}
			}()
			t.entry(ctx)
		}()
		onExit(t, panicInfo, stack)
	}()
}
