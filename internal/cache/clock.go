package cache

import "time"

// Timer is a stoppable scheduled callback.
type Timer interface {
	// Stop prevents the callback from firing. Reports whether it was
	// stopped before firing.
	Stop() bool
}

// Clock schedules callbacks after a delay. Injected so the debounced flush
// is testable without real timers.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// realClock schedules via time.AfterFunc.
type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
