package uthreads

import "github.com/go-uthreads/uthreads/core"

// Re-exported so callers only need to import the root package for common
// use, the way the teacher's types.go re-exports core's task types.

// TID identifies a thread.
type TID = core.TID

// BootstrapTID is the id reserved for the thread that called Init.
const BootstrapTID = core.BootstrapTID

// State is a thread's lifecycle state.
type State = core.State

// Lifecycle state constants.
const (
	Ready              = core.Ready
	Running            = core.Running
	Blocked            = core.Blocked
	Sleeping           = core.Sleeping
	SleepingAndBlocked = core.SleepingAndBlocked
	Terminated         = core.Terminated
)

// EntryPoint is the body of a spawned thread.
type EntryPoint = core.EntryPoint

// CallerError is returned for recoverable mistakes (bad arguments, unknown
// ids, an exhausted id pool, blocking/sleeping the bootstrap thread).
type CallerError = core.CallerError

// SystemError is returned for fatal environment failures (installing the
// preemption handler, arming the timer, building the signal mask).
type SystemError = core.SystemError

// Logger is the structured logging interface the scheduler emits through.
type Logger = core.Logger

// Field is a key-value pair attached to a log line.
type Field = core.Field

// F creates a Field.
var F = core.F

// Metrics collects scheduler observability data.
type Metrics = core.Metrics

// PanicHandler is invoked when a spawned entry point panics.
type PanicHandler = core.PanicHandler

// ThreadStats is a point-in-time snapshot of one thread.
type ThreadStats = core.ThreadStats

// SchedulerStats is a point-in-time snapshot of the whole scheduler.
type SchedulerStats = core.SchedulerStats

// Event is one entry in the scheduler's introspection event log.
type Event = core.Event

// Option configures Init.
type Option = core.Option

// Configuration options, re-exported from core.
var (
	WithQuantumMicros = core.WithQuantumMicros
	WithMaxThreads    = core.WithMaxThreads
	WithStackSize     = core.WithStackSize
	WithLogger        = core.WithLogger
	WithMetrics       = core.WithMetrics
	WithPanicHandler  = core.WithPanicHandler
)
