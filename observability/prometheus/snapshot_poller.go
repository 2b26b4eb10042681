package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/go-uthreads/uthreads/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// SchedulerSnapshotProvider supplies the poller with a scheduler's current
// SchedulerStats. *core.Scheduler satisfies it directly; callers using the
// root uthreads package facade can pass a small closure-based adapter
// around uthreads.Stats instead.
type SchedulerSnapshotProvider interface {
	Stats() core.SchedulerStats
}

// SnapshotProviderFunc adapts a func() core.SchedulerStats, such as one
// built from uthreads.Stats, to SchedulerSnapshotProvider.
type SnapshotProviderFunc func() core.SchedulerStats

// Stats implements SchedulerSnapshotProvider.
func (f SnapshotProviderFunc) Stats() core.SchedulerStats { return f() }

// SnapshotPoller periodically exports Scheduler.Stats() snapshots into
// Prometheus gauges, the way the teacher's poller exports RunnerStats/
// PoolStats snapshots.
type SnapshotPoller struct {
	interval time.Duration
	provider SchedulerSnapshotProvider

	readyDepth    prom.Gauge
	blockedDepth  prom.Gauge
	sleepingDepth prom.Gauge
	threadCount   prom.Gauge
	freeIDCount   prom.Gauge
	currentTID    prom.Gauge
	totalQuantums prom.Gauge

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, provider SchedulerSnapshotProvider, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	mk := func(name, help string) (prom.Gauge, error) {
		g := prom.NewGauge(prom.GaugeOpts{Namespace: "uthreads", Name: name, Help: help})
		return registerCollector(reg, g)
	}

	readyDepth, err := mk("ready_queue_depth", "Number of threads in the READY queue.")
	if err != nil {
		return nil, err
	}
	blockedDepth, err := mk("blocked_queue_depth", "Number of threads in the BLOCKED queue.")
	if err != nil {
		return nil, err
	}
	sleepingDepth, err := mk("sleeping_queue_depth", "Number of threads in the SLEEPING queue.")
	if err != nil {
		return nil, err
	}
	threadCount, err := mk("thread_count", "Number of live threads, including bootstrap.")
	if err != nil {
		return nil, err
	}
	freeIDCount, err := mk("free_id_count", "Number of unallocated thread ids.")
	if err != nil {
		return nil, err
	}
	currentTID, err := mk("current_tid", "id of the currently RUNNING thread.")
	if err != nil {
		return nil, err
	}
	totalQuantums, err := mk("total_quantums", "Global quantum counter.")
	if err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:      interval,
		provider:      provider,
		readyDepth:    readyDepth,
		blockedDepth:  blockedDepth,
		sleepingDepth: sleepingDepth,
		threadCount:   threadCount,
		freeIDCount:   freeIDCount,
		currentTID:    currentTID,
		totalQuantums: totalQuantums,
	}, nil
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	stats := p.provider.Stats()
	p.readyDepth.Set(float64(stats.ReadyCount))
	p.blockedDepth.Set(float64(stats.BlockedCount))
	p.sleepingDepth.Set(float64(stats.SleepingCount))
	p.threadCount.Set(float64(stats.ThreadCount))
	p.freeIDCount.Set(float64(stats.FreeIDCount))
	p.currentTID.Set(float64(stats.CurrentTID))
	p.totalQuantums.Set(float64(stats.TotalQuantums))
}
