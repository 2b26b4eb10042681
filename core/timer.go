package core

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// quantumTimer arms ITIMER_VIRTUAL (C5): a genuine virtual-CPU-time
// interval clock, so ticks are driven by time the process actually
// consumes rather than wall clock, matching spec §1's rationale for
// choosing virtual time and §9's "process-wide scheduler singleton"
// guidance — exactly one quantumTimer is ever live.
type quantumTimer struct {
	period   int64 // microseconds
	sigCh    chan os.Signal
	stopOnce sync.Once
	stopCh   chan struct{}
	onTick   func()
}

func newQuantumTimer(periodMicros int64, onTick func()) *quantumTimer {
	return &quantumTimer{
		period: periodMicros,
		sigCh:  make(chan os.Signal, 1),
		stopCh: make(chan struct{}),
		onTick: onTick,
	}
}

// start installs the SIGVTALRM handler, arms the timer for the first
// quantum, and launches the goroutine that turns each signal delivery
// into a call to onTick.
func (t *quantumTimer) start() error {
	signal.Notify(t.sigCh, syscall.SIGVTALRM)
	if err := t.rearm(); err != nil {
		signal.Stop(t.sigCh)
		return err
	}
	go t.loop()
	return nil
}

func (t *quantumTimer) loop() {
	for {
		select {
		case <-t.sigCh:
			t.onTick()
		case <-t.stopCh:
			return
		}
	}
}

// rearm arms the timer from zero for one more quantum, as spec §4.4
// requires after every dispatch.
func (t *quantumTimer) rearm() error {
	usec := t.period
	spec := unix.Itimerval{
		Interval: unix.Timeval{Sec: 0, Usec: 0},
		Value: unix.Timeval{
			Sec:  usec / 1_000_000,
			Usec: usec % 1_000_000,
		},
	}
	if _, err := unix.Setitimer(unix.ITIMER_VIRTUAL, spec); err != nil {
		return newSystemError("rearm", errSetTimerFailed, err)
	}
	return nil
}

// stop disarms the timer and tears down the tick goroutine. Safe to call
// more than once; used by teardown so tests stay hermetic.
func (t *quantumTimer) stop() {
	t.stopOnce.Do(func() {
		zero := unix.Itimerval{}
		_, _ = unix.Setitimer(unix.ITIMER_VIRTUAL, zero)
		signal.Stop(t.sigCh)
		close(t.stopCh)
	})
}
