package core

import (
	"context"
	"runtime"
	"sort"
	"time"
)

// Scheduler is the C7 dispatcher: the process-wide (per spec §9's "process
// -wide scheduler singleton" guidance) owner of the queues, the id table,
// the id allocator, and the currently RUNNING TCB. Tests construct their
// own Scheduler instances rather than sharing a package-level global, so
// that they stay hermetic — the "create / init / teardown" lifecycle §9
// explicitly allows.
type Scheduler struct {
	cfg Config
	cs  *critSection

	ids   *idAllocator
	table map[TID]*tcb

	ready    *tcbQueue
	blocked  *tcbQueue
	sleeping *tcbQueue

	current        *tcb
	quantumCounter int

	timer  *quantumTimer
	events *eventLog

	logger       Logger
	metrics      Metrics
	panicHandler PanicHandler
}

// NewScheduler allocates a Scheduler in its pre-Init state.
func NewScheduler(cfg Config) *Scheduler {
	cfg = cfg.withDefaults()
	return &Scheduler{
		cfg:          cfg,
		table:        make(map[TID]*tcb, cfg.MaxThreads),
		ready:        newTCBQueue(),
		blocked:      newTCBQueue(),
		sleeping:     newTCBQueue(),
		events:       newEventLog(defaultEventLogCapacity),
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		panicHandler: cfg.PanicHandler,
	}
}

// Init installs the bootstrap thread as id 0 (state RUNNING, quanta_run=1,
// per SPEC_FULL's quantum-counter-seeding note) and arms the quantum timer.
// The returned context.Context carries the bootstrap thread's identity and
// must be passed to any later self-referential call (Sleep, CheckPoint,
// GetTid, ...) made from the goroutine that called Init.
func (s *Scheduler) Init() (context.Context, error) {
	if s.cfg.QuantumMicros <= 0 {
		return nil, newCallerError("Init", errInvalidQuantumTime)
	}

	cs, err := newCritSection()
	if err != nil {
		return nil, err
	}
	s.cs = cs
	s.ids = newIDAllocator(TID(s.cfg.MaxThreads))

	bootstrap := newBootstrapTCB()
	bootstrap.ctx = newThreadContext()
	s.table[BootstrapTID] = bootstrap
	s.current = bootstrap
	s.quantumCounter = 1

	s.timer = newQuantumTimer(s.cfg.QuantumMicros, s.onTick)
	if err := s.timer.start(); err != nil {
		return nil, err
	}

	s.logger.Info("scheduler initialized",
		F("quantumMicros", s.cfg.QuantumMicros),
		F("maxThreads", s.cfg.MaxThreads),
	)

	return withSelf(context.Background(), bootstrap), nil
}

// Teardown stops the quantum timer without touching thread state, so tests
// can construct and discard many Schedulers without leaking timer
// goroutines or signal registrations. It does not call os.Exit or run the
// terminate(0) cascade — that is Terminate(BootstrapTID)'s job.
func (s *Scheduler) Teardown() {
	if s.timer != nil {
		s.timer.stop()
	}
}

// ---------------------------------------------------------------------
// Dispatch core (§4.6)
// ---------------------------------------------------------------------

// dispatchLocked runs the full preemption-handler algorithm against
// s.current. Callers must hold cs.
func (s *Scheduler) dispatchLocked() {
	outgoing := s.current
	if outgoing != nil {
		switch outgoing.state {
		case Running:
			outgoing.state = Ready
			s.ready.pushBack(outgoing)
			s.recordTransitionLocked(outgoing.id, Running, Ready)
		case Terminated:
			s.reapLocked(outgoing)
		default:
			// Blocked / Sleeping / SleepingAndBlocked: the caller already
			// placed outgoing on its queue before invoking dispatch.
		}
	}

	s.decrementSleepersLocked()

	next, ok := s.ready.popFront()
	if !ok {
		// Nothing runnable. Unreachable in practice: I8 keeps the
		// bootstrap thread perpetually eligible, so the ready queue can
		// only be transiently empty between its own dispatches.
		s.current = nil
		s.logger.Error("dispatch found no runnable thread")
		return
	}

	next.state = Running
	next.quantaRun++
	s.quantumCounter++
	next.lastDispatchedAt = time.Now()
	s.current = next

	s.metrics.RecordDispatch(next.id, next.quantaRun, s.quantumCounter)
	s.metrics.RecordQueueDepth("ready", s.ready.len())
	s.metrics.RecordQueueDepth("blocked", s.blocked.len())
	s.metrics.RecordQueueDepth("sleeping", s.sleeping.len())
	s.events.add(Event{
		Kind:          EventDispatch,
		TID:           next.id,
		QuantaRun:     next.quantaRun,
		TotalQuantums: s.quantumCounter,
		At:            next.lastDispatchedAt,
	})

	if s.timer != nil {
		_ = s.timer.rearm()
	}
	next.ctx.wake()
}

func (s *Scheduler) decrementSleepersLocked() {
	for _, t := range s.sleeping.snapshot() {
		t.sleepRemaining--
		if t.sleepRemaining > 0 {
			continue
		}
		s.sleeping.remove(t)
		t.sleepRemaining = 0
		switch t.state {
		case Sleeping:
			s.recordTransitionLocked(t.id, Sleeping, Ready)
			t.state = Ready
			s.ready.pushBack(t)
		case SleepingAndBlocked:
			s.recordTransitionLocked(t.id, SleepingAndBlocked, Blocked)
			t.state = Blocked
			// stays on the blocked queue, placed there at block time
		}
	}
}

func (s *Scheduler) reapLocked(t *tcb) {
	delete(s.table, t.id)
	s.ids.release(t.id)
	s.events.add(Event{Kind: EventTerminate, TID: t.id, At: time.Now()})
}

func (s *Scheduler) removeFromQueuesLocked(t *tcb) {
	s.ready.remove(t)
	s.blocked.remove(t)
	s.sleeping.remove(t)
}

func (s *Scheduler) recordTransitionLocked(id TID, from, to State) {
	s.metrics.RecordStateTransition(id, from, to)
	s.events.add(Event{Kind: EventTransition, TID: id, From: from, To: to, At: time.Now()})
}

// onTick is the timer-signal-driven preemption handler (C5 -> C7). It runs
// on the dedicated timer goroutine, never on a thread's own goroutine —
// see Open Question 1 for why the outgoing thread's own goroutine only
// actually stops at its next checkpoint.
func (s *Scheduler) onTick() {
	s.cs.Enter()
	defer s.cs.Exit()
	s.dispatchLocked()
}

// observeCheckpoint is the synchronous half of Open Question 1's
// checkpoint discipline: every self-referential public API call passes
// through here first. If an asynchronous tick already moved self off
// RUNNING (it is sitting in a queue, and someone else has been dispatched)
// this parks until the scheduler dispatches self again, exactly mimicking
// a signal that logically fired between the caller's last instruction and
// this one.
func (s *Scheduler) observeCheckpoint(self *tcb) {
	if self == nil {
		return
	}
	s.cs.Enter()
	running := self.state == Running
	s.cs.Exit()
	if !running {
		s.awaitRunning(self)
	}
}

// awaitRunning parks self's goroutine until self.state is actually
// RUNNING again. A bare park is not enough: self.ctx's resume channel is
// woken by dispatchLocked whenever self is (re-)dispatched, but a wake
// that lands before self's goroutine has reached its park point is
// still queued in the channel's one-slot buffer and would otherwise be
// consumed by some later, unrelated park call (a subsequent Sleep or
// self-Block), which would then wrongly return immediately instead of
// actually blocking. Re-checking state under cs after every wake and
// looping on a stale one makes a resume only ever satisfy the park it
// was actually meant for.
func (s *Scheduler) awaitRunning(self *tcb) {
	for {
		self.ctx.park()
		s.cs.Enter()
		running := self.state == Running
		s.cs.Exit()
		if running {
			return
		}
	}
}

// enterAsRunning acquires cs and returns with self confirmed RUNNING and
// cs still held, so a self-mutating call (Sleep, self-Block) can check
// "am I still current?" and act on it as one unbroken critical section.
// observeCheckpoint alone is not enough for these callers: it releases cs
// right after the check, and a tick landing in the gap between that
// release and the caller's own cs.Enter() can dispatch self away first —
// exactly the race that corrupted queue membership in Sleep and skipped
// the yield in self-Block. This is the same "re-check under the lock you
// mutate under" fix already applied to Terminate's self-case.
func (s *Scheduler) enterAsRunning(self *tcb) {
	s.cs.Enter()
	for self.state != Running {
		s.cs.Exit()
		s.awaitRunning(self)
		s.cs.Enter()
	}
}

// yieldLocked performs a synchronous dispatch on behalf of self (Block
// (self) or Sleep) and parks self's goroutine until it is
// dispatched again. Callers must hold cs on entry; it is released before
// parking, since the goroutine that will eventually wake self needs cs to
// do so.
func (s *Scheduler) yieldLocked(self *tcb) {
	s.dispatchLocked()
	s.cs.Exit()
	s.awaitRunning(self)
}

// ---------------------------------------------------------------------
// Public API (C8, spec §4.7)
// ---------------------------------------------------------------------

// Spawn allocates the smallest free id, creates a new READY TCB, and
// starts its dedicated goroutine parked at the top (prime_context).
func (s *Scheduler) Spawn(entry EntryPoint) (TID, error) {
	s.cs.Enter()
	id, ok := s.ids.allocate()
	if !ok {
		s.cs.Exit()
		return 0, newCallerError("Spawn", errIDPoolExhausted)
	}
	t := newTCB(id, entry)
	s.table[id] = t
	s.ready.pushBack(t)
	s.metrics.RecordQueueDepth("ready", s.ready.len())
	s.events.add(Event{Kind: EventSpawn, TID: id, At: t.createdAt})
	s.cs.Exit()

	t.primeAndRun(s.onNaturalExit)
	return id, nil
}

// onNaturalExit reaps t after its entry point returns — naturally or via a
// recovered panic — without an explicit Terminate call, dispatching a
// replacement if t was still RUNNING.
func (s *Scheduler) onNaturalExit(t *tcb, panicInfo any, stack []byte) {
	if panicInfo != nil {
		s.metrics.RecordEntryPointPanic(t.id, panicInfo)
		s.panicHandler.HandlePanic(t.id, panicInfo, stack)
	}

	s.cs.Enter()
	defer s.cs.Exit()
	if t.state == Terminated {
		return
	}
	t.state = Terminated
	if s.current == t {
		s.dispatchLocked()
		return
	}
	s.removeFromQueuesLocked(t)
	s.reapLocked(t)
}

// Terminate implements the terminate(id) transition, including the
// terminate(0) cascade documented in SPEC_FULL's SUPPLEMENTED FEATURES.
// Terminating self does not return: the entry point's goroutine is ended
// with runtime.Goexit after the dispatcher has handed off to the next
// thread, matching §4.7's "does not return" guarantee.
func (s *Scheduler) Terminate(ctx context.Context, id TID) error {
	self, hasSelf := selfFrom(ctx)
	if hasSelf {
		s.observeCheckpoint(self)
	}

	s.cs.Enter()

	if id == BootstrapTID {
		s.cascadeTerminateLocked()
		s.cs.Exit()
		return nil
	}

	target, ok := s.table[id]
	if !ok {
		s.cs.Exit()
		return newCallerError("Terminate", errUnknownTID)
	}

	if hasSelf && target == self {
		target.state = Terminated
		if s.current == target {
			s.yieldLockedNoReturn(target)
			// unreachable: yieldLockedNoReturn never returns
			return nil
		}
		// observeCheckpoint's park/wake round trip released cs in
		// between, and an async tick already dispatched someone else
		// away from self before this call re-acquired it: self is
		// sitting Terminated in whichever queue that tick's dispatch
		// left it on (never the running slot), so there is no
		// dispatch to perform — just reap it directly.
		s.removeFromQueuesLocked(target)
		s.reapLocked(target)
		s.cs.Exit()
		runtime.Goexit()
		// unreachable: runtime.Goexit never returns
		return nil
	}

	s.removeFromQueuesLocked(target)
	s.reapLocked(target)
	s.cs.Exit()
	return nil
}

// yieldLockedNoReturn is Terminate's self-case: it dispatches away from
// self (which is already marked Terminated and gets reaped inline by
// dispatchLocked) and then ends self's goroutine, so no application code
// downstream of Terminate(self) ever executes again.
func (s *Scheduler) yieldLockedNoReturn(self *tcb) {
	s.dispatchLocked()
	s.cs.Exit()
	runtime.Goexit()
}

func (s *Scheduler) cascadeTerminateLocked() {
	ids := make([]TID, 0, len(s.table))
	for id := range s.table {
		if id == BootstrapTID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		t := s.table[id]
		s.removeFromQueuesLocked(t)
		s.reapLocked(t)
	}
	if s.timer != nil {
		s.timer.stop()
	}
	s.logger.Info("terminate(0) cascade complete", F("threadsTornDown", len(ids)))
}

// Block implements the block(id) transition.
func (s *Scheduler) Block(ctx context.Context, id TID) error {
	self, hasSelf := selfFrom(ctx)
	if hasSelf {
		s.observeCheckpoint(self)
	}

	if id == BootstrapTID {
		return newCallerError("Block", errBlockBootstrap)
	}

	if hasSelf && id == self.id {
		s.enterAsRunning(self)
		s.recordTransitionLocked(id, Running, Blocked)
		self.state = Blocked
		s.blocked.pushBack(self)
		s.yieldLocked(self)
		return nil
	}

	s.cs.Enter()
	target, ok := s.table[id]
	if !ok {
		s.cs.Exit()
		return newCallerError("Block", errUnknownTID)
	}

	switch target.state {
	case Ready:
		s.ready.remove(target)
		s.recordTransitionLocked(id, Ready, Blocked)
		target.state = Blocked
		s.blocked.pushBack(target)
		s.cs.Exit()
	case Sleeping:
		s.recordTransitionLocked(id, Sleeping, SleepingAndBlocked)
		target.state = SleepingAndBlocked
		s.blocked.pushBack(target)
		s.cs.Exit()
	case Running:
		// The target is RUNNING: a tick dispatched it between the
		// caller's checkpoint and this cs.Enter, or the caller's context
		// carries no thread identity. It is marked Blocked and queued; its
		// goroutine parks at its next checkpoint, and the next dispatch
		// finds it already on the blocked queue.
		s.recordTransitionLocked(id, Running, Blocked)
		target.state = Blocked
		s.blocked.pushBack(target)
		s.cs.Exit()
	default:
		// Blocked, SleepingAndBlocked, Terminated: no-op.
		s.cs.Exit()
	}
	return nil
}

// Resume implements the resume(id) transition.
func (s *Scheduler) Resume(ctx context.Context, id TID) error {
	if self, ok := selfFrom(ctx); ok {
		s.observeCheckpoint(self)
	}

	s.cs.Enter()
	defer s.cs.Exit()

	target, ok := s.table[id]
	if !ok {
		return newCallerError("Resume", errUnknownTID)
	}

	switch target.state {
	case Blocked:
		s.blocked.remove(target)
		s.recordTransitionLocked(id, Blocked, Ready)
		target.state = Ready
		s.ready.pushBack(target)
	case SleepingAndBlocked:
		s.blocked.remove(target)
		s.recordTransitionLocked(id, SleepingAndBlocked, Sleeping)
		target.state = Sleeping
		// stays on the sleeping queue
	default:
		// Ready, Running, Sleeping, Terminated: no-op.
	}
	return nil
}

// Sleep implements sleep(N).
func (s *Scheduler) Sleep(ctx context.Context, n int) error {
	self, ok := selfFrom(ctx)
	if !ok {
		return newCallerError("Sleep", errNoSelfInContext)
	}
	s.observeCheckpoint(self)

	if self.id == BootstrapTID {
		return newCallerError("Sleep", errSleepBootstrap)
	}
	if n < 0 {
		return newCallerError("Sleep", errNegativeSleep)
	}
	if n == 0 {
		return nil
	}

	s.enterAsRunning(self)
	self.sleepRemaining = n + 1
	s.recordTransitionLocked(self.id, Running, Sleeping)
	self.state = Sleeping
	s.sleeping.pushBack(self)
	s.yieldLocked(self)
	return nil
}

// CheckPoint is the cooperative-preemption escape hatch documented in
// Open Question 1: a spawned entry point spinning in a tight loop with no
// other library calls should call this periodically so a quantum expiry
// that arrived mid-loop is still honored promptly.
func (s *Scheduler) CheckPoint(ctx context.Context) error {
	self, ok := selfFrom(ctx)
	if !ok {
		return newCallerError("CheckPoint", errNoSelfInContext)
	}
	s.observeCheckpoint(self)
	return nil
}

// GetTid returns the id of the calling thread.
func (s *Scheduler) GetTid(ctx context.Context) (TID, error) {
	self, ok := selfFrom(ctx)
	if !ok {
		return 0, newCallerError("GetTid", errNoSelfInContext)
	}
	s.observeCheckpoint(self)
	return self.id, nil
}

// GetQuantums returns the named TCB's quanta_run.
func (s *Scheduler) GetQuantums(ctx context.Context, id TID) (int, error) {
	if self, ok := selfFrom(ctx); ok {
		s.observeCheckpoint(self)
	}
	s.cs.Enter()
	defer s.cs.Exit()
	t, ok := s.table[id]
	if !ok {
		return -1, newCallerError("GetQuantums", errUnknownTID)
	}
	return t.quantaRun, nil
}

// GetTotalQuantums returns the global quantum_counter.
func (s *Scheduler) GetTotalQuantums(ctx context.Context) int {
	if self, ok := selfFrom(ctx); ok {
		s.observeCheckpoint(self)
	}
	s.cs.Enter()
	defer s.cs.Exit()
	return s.quantumCounter
}

// ---------------------------------------------------------------------
// Introspection (SPEC_FULL's SUPPLEMENTED FEATURES)
// ---------------------------------------------------------------------

// Snapshot returns a point-in-time view of every live thread.
func (s *Scheduler) Snapshot() []ThreadStats {
	s.cs.Enter()
	defer s.cs.Exit()

	out := make([]ThreadStats, 0, len(s.table))
	for _, t := range s.table {
		out = append(out, ThreadStats{
			ID:             t.id,
			State:          t.state,
			QuantaRun:      t.quantaRun,
			SleepRemaining: t.sleepRemaining,
			CreatedAt:      t.createdAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Stats returns a point-in-time summary of the whole scheduler.
func (s *Scheduler) Stats() SchedulerStats {
	s.cs.Enter()
	defer s.cs.Exit()

	stats := SchedulerStats{
		TotalQuantums: s.quantumCounter,
		ReadyCount:    s.ready.len(),
		BlockedCount:  s.blocked.len(),
		SleepingCount: s.sleeping.len(),
		ThreadCount:   len(s.table),
		FreeIDCount:   len(s.ids.free),
	}
	if s.current != nil {
		stats.CurrentTID = s.current.id
	}
	return stats
}

// History returns up to limit most-recent scheduler events, most-recent
// first. limit <= 0 means "all retained events".
func (s *Scheduler) History(limit int) []Event {
	return s.events.recent(limit)
}
