package scheduler

import "time"

type (
	// Clock reports the time used to compute when tasks fire
	Clock func() time.Time

	// Timer is the single resettable timer a Scheduler waits on
	Timer interface {
		Channel() <-chan time.Time
		Reset(delay time.Duration) bool
		Stop() bool
	}

	// TimerConstructor makes the scheduler's timer. Tests swap in fakes
	TimerConstructor func(delay time.Duration) Timer

	wallTimer struct {
		t *time.Timer
	}
)

// NewTimer returns a Timer on the wall clock
func NewTimer(delay time.Duration) Timer {
	return wallTimer{t: time.NewTimer(delay)}
}

func (w wallTimer) Channel() <-chan time.Time {
	return w.t.C
}

func (w wallTimer) Reset(delay time.Duration) bool {
	return w.t.Reset(delay)
}

func (w wallTimer) Stop() bool {
	return w.t.Stop()
}
