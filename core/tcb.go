package core

import (
	"context"
	"time"
)

// TID identifies a thread. The bootstrap thread is permanently bound to id 0.
type TID uint32

// BootstrapTID is the id reserved for the thread that called Init.
const BootstrapTID TID = 0

// State is a thread's lifecycle state. Exactly one holds at any instant for
// a given TCB.
type State int

const (
	// Ready threads are eligible to run and waiting in the ready queue.
	Ready State = iota
	// Running is the single thread currently executing.
	Running
	// Blocked threads were explicitly suspended by Block and are not
	// eligible until Resume.
	Blocked
	// Sleeping threads are suspended until N quanta have elapsed.
	Sleeping
	// SleepingAndBlocked threads satisfy both Sleeping and Blocked; they
	// become Blocked once the sleep expires.
	SleepingAndBlocked
	// Terminated threads are marked for reaping; resources are freed at
	// the next scheduling point.
	Terminated
)

func (s State) String() string {
	switch s {
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Blocked:
		return "BLOCKED"
	case Sleeping:
		return "SLEEPING"
	case SleepingAndBlocked:
		return "SLEEPING_AND_BLOCKED"
	case Terminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// EntryPoint is the body of a spawned thread. It runs on a dedicated
// goroutine gated by the scheduler's baton (see context.go); it should call
// CheckPoint periodically in tight loops so the scheduler can honor a
// quantum expiry that arrived while it was running uninterrupted Go code.
//
// The context.Context argument is how a thread learns its own identity
// (see withSelf/selfFrom in context.go) for the self-referential API calls
// (Sleep, CheckPoint, GetTid, self-Block, self-Terminate) — the same shape
// the teacher's Task type threads a context through, repurposed here to
// carry thread identity instead of cancellation.
type EntryPoint func(ctx context.Context)

// tcb is the Thread Control Block: per-thread state, quantum counters, the
// owned execution context, and the entry point (unused after first
// dispatch).
type tcb struct {
	id    TID
	state State

	entry EntryPoint
	ctx   *threadContext

	quantaRun        int
	sleepRemaining   int
	createdAt        time.Time
	lastDispatchedAt time.Time
}

func newTCB(id TID, entry EntryPoint) *tcb {
	return &tcb{
		id:        id,
		state:     Ready,
		entry:     entry,
		ctx:       newThreadContext(),
		createdAt: time.Now(),
	}
}

func newBootstrapTCB() *tcb {
	return &tcb{
		id:        BootstrapTID,
		state:     Running,
		quantaRun: 1,
		createdAt: time.Now(),
	}
}
