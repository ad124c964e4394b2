package port

import "time"

// CycleObserver receives a summary of every collection cycle.
type CycleObserver interface {
	ObserveCycle(devices int, duration time.Duration, err error)
}
