package poller

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Task is a cancellable one-shot event scheduled on a clock.
//
// A nil *Task is valid: its channel is nil (never ready in a select) and
// Cancel is a no-op. This lets the event loop select on "no pending task".
type Task struct {
	timer clockwork.Timer
	due   time.Time
}

// After schedules a task that fires once after d on clock.
func After(clock clockwork.Clock, d time.Duration) *Task {
	return &Task{
		timer: clock.NewTimer(d),
		due:   clock.Now().Add(d),
	}
}

// C returns the channel the firing time is delivered on.
func (t *Task) C() <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.timer.Chan()
}

// Due returns when the task is scheduled to fire.
func (t *Task) Due() time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.due
}

// Cancel stops the task. It reports whether the task was still pending.
func (t *Task) Cancel() bool {
	if t == nil {
		return false
	}
	return t.timer.Stop()
}
