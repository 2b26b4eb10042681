package core

// Metrics collects scheduler observability data. All methods must be
// non-blocking and safe to call from the timer-tick goroutine. A nil
// Metrics is never passed to a component — NilMetrics is substituted by
// Config.withDefaults instead.
type Metrics interface {
	// RecordDispatch is called every time the dispatcher hands the CPU to
	// a thread, with the thread's new quanta_run total and the global
	// quantum counter.
	RecordDispatch(tid TID, quantaRun int, totalQuantums int)

	// RecordStateTransition is called on every lifecycle transition.
	RecordStateTransition(tid TID, from, to State)

	// RecordEntryPointPanic is called when a spawned entry point panics;
	// the panic is always recovered and the thread is terminated.
	RecordEntryPointPanic(tid TID, panicInfo any)

	// RecordQueueDepth reports the current length of one of the three
	// scheduler queues.
	RecordQueueDepth(queue string, depth int)
}

// NilMetrics discards everything; it is the default.
type NilMetrics struct{}

func (NilMetrics) RecordDispatch(TID, int, int)            {}
func (NilMetrics) RecordStateTransition(TID, State, State) {}
func (NilMetrics) RecordEntryPointPanic(TID, any)          {}
func (NilMetrics) RecordQueueDepth(string, int)            {}

// PanicHandler is invoked when a spawned entry point panics. The default
// implementation logs and lets the scheduler terminate the thread as if it
// had called Terminate(self) — a panic never escapes to crash the process.
type PanicHandler interface {
	HandlePanic(tid TID, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler logs the panic through a Logger.
type DefaultPanicHandler struct {
	Logger Logger
}

func (h *DefaultPanicHandler) HandlePanic(tid TID, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Error("entry point panicked",
		F("tid", tid),
		F("panic", panicInfo),
		F("stack", string(stackTrace)),
	)
}
