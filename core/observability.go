package core

import "time"

// ThreadStats is a point-in-time snapshot of one thread, for introspection.
type ThreadStats struct {
	ID             TID
	State          State
	QuantaRun      int
	SleepRemaining int
	CreatedAt      time.Time
}

// SchedulerStats is a point-in-time snapshot of the whole scheduler,
// modeled on the teacher's RunnerStats/PoolStats pair.
type SchedulerStats struct {
	TotalQuantums int
	CurrentTID    TID
	ReadyCount    int
	BlockedCount  int
	SleepingCount int
	ThreadCount   int
	FreeIDCount   int
}
