package core

import (
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// critSection is the C6 signal-safe critical section: every public API
// entry point and the timer-tick handler acquire it before touching
// shared scheduler state (current, the queues, quantumCounter, the id
// table) and release it on every exit path, via defer where a function
// holds it to the end and by an explicit Exit on each return path
// elsewhere.
//
// Two mechanisms are engaged together (Open Question 2): PthreadSigmask
// genuinely blocks delivery of the preemption signal to the calling OS
// thread, matching §4.5's "process-level mask-modify primitive" as
// literally as a memory-safe host language allows; the mutex is the actual
// mutual-exclusion guarantee, since a goroutine can migrate OS threads
// between blocking calls and the timer-tick goroutine is never the same
// OS thread as an API caller's.
type critSection struct {
	mu       sync.Mutex
	sigset   unix.Sigset_t
	disabled bool // true when signal masking could not be installed (tests)
}

func newCritSection() (*critSection, error) {
	cs := &critSection{}
	set, err := sigsetOf(syscall.SIGVTALRM)
	if err != nil {
		return nil, newSystemError("newCritSection", errSigSetFailed, err)
	}
	cs.sigset = set

	// Probe the masking primitive once, here, rather than on every
	// Enter/Exit: disabled is then never written again, so concurrent
	// Enter/Exit calls from an API caller and the timer goroutine only
	// ever read it.
	var old unix.Sigset_t
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &cs.sigset, &old); err != nil {
		cs.disabled = true
	} else {
		_ = unix.PthreadSigmask(unix.SIG_SETMASK, &old, nil)
	}
	return cs, nil
}

// sigsetOf builds a Sigset_t containing exactly sig, using the same
// bit layout PthreadSigmask expects: word (sig-1)/64, bit (sig-1)%64.
func sigsetOf(sig syscall.Signal) (unix.Sigset_t, error) {
	var set unix.Sigset_t
	n := int(sig)
	if n < 1 || n > len(set.Val)*64 {
		return set, syscall.EINVAL
	}
	set.Val[(n-1)/64] |= 1 << (uint(n-1) % 64)
	return set, nil
}

// Enter masks SIGVTALRM for the calling OS thread and takes the mutex.
// Callers must defer Exit immediately after a successful Enter.
func (cs *critSection) Enter() {
	if !cs.disabled {
		var old unix.Sigset_t
		// Masking is belt-and-suspenders over the mutex (Open Question 2);
		// if the OS primitive fails here despite the newCritSection probe
		// succeeding, fall back to the mutex alone for this call rather
		// than failing the API call outright. disabled itself is set only
		// once, at construction.
		_ = unix.PthreadSigmask(unix.SIG_BLOCK, &cs.sigset, &old)
	}
	cs.mu.Lock()
}

// Exit releases the mutex and restores the preemption signal mask.
func (cs *critSection) Exit() {
	cs.mu.Unlock()
	if !cs.disabled {
		var old unix.Sigset_t
		_ = unix.PthreadSigmask(unix.SIG_UNBLOCK, &cs.sigset, &old)
	}
}
