package prometheus

import (
	"context"
	"testing"
	"time"

	"github.com/go-uthreads/uthreads/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

type fakeProvider struct{ stats core.SchedulerStats }

func (p fakeProvider) Stats() core.SchedulerStats { return p.stats }

func TestSnapshotPollerCollectOnce(t *testing.T) {
	reg := prom.NewRegistry()
	provider := fakeProvider{stats: core.SchedulerStats{
		TotalQuantums: 7,
		CurrentTID:    2,
		ReadyCount:    3,
		BlockedCount:  1,
		SleepingCount: 0,
		ThreadCount:   5,
		FreeIDCount:   10,
	}}

	p, err := NewSnapshotPoller(reg, provider, time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller: %v", err)
	}
	p.collectOnce()

	if got := gaugeValue(t, p.totalQuantums, nil); got != 7 {
		t.Errorf("totalQuantums = %v, want 7", got)
	}
	if got := gaugeValue(t, p.readyDepth, nil); got != 3 {
		t.Errorf("readyDepth = %v, want 3", got)
	}
	if got := gaugeValue(t, p.currentTID, nil); got != 2 {
		t.Errorf("currentTID = %v, want 2", got)
	}
}

func TestSnapshotPollerStartStopIsIdempotent(t *testing.T) {
	reg := prom.NewRegistry()
	p, err := NewSnapshotPoller(reg, fakeProvider{}, time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller: %v", err)
	}

	p.Start(context.Background())
	p.Start(context.Background()) // no-op, must not deadlock or double-register
	p.Stop()
	p.Stop() // no-op
}

func TestSnapshotProviderFuncAdapts(t *testing.T) {
	want := core.SchedulerStats{TotalQuantums: 42}
	var provider SchedulerSnapshotProvider = SnapshotProviderFunc(func() core.SchedulerStats { return want })
	if got := provider.Stats(); got != want {
		t.Errorf("SnapshotProviderFunc.Stats() = %+v, want %+v", got, want)
	}
}
