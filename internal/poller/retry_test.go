package poller

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestRetryPolicy_LinearDelay(t *testing.T) {
	p := DefaultRetryPolicy()

	tests := []struct {
		retryCount int
		want       time.Duration
	}{
		{0, 5000 * time.Millisecond},
		{1, 10000 * time.Millisecond},
		{2, 15000 * time.Millisecond},
	}

	for _, tt := range tests {
		got, ok := p.Next(tt.retryCount)
		if !ok {
			t.Errorf("Next(%d) ok = false, want true", tt.retryCount)
		}
		if got != tt.want {
			t.Errorf("Next(%d) = %v, want %v", tt.retryCount, got, tt.want)
		}
	}
}

func TestRetryPolicy_Exhausted(t *testing.T) {
	p := DefaultRetryPolicy()

	for _, n := range []int{3, 4, 10} {
		if d, ok := p.Next(n); ok {
			t.Errorf("Next(%d) = %v, true; want no retry", n, d)
		}
	}
}

func TestRetryPolicy_Disabled(t *testing.T) {
	p := RetryPolicy{}
	if _, ok := p.Next(0); ok {
		t.Error("Next(0) ok = true with MaxRetries 0, want false")
	}
}

func TestRetryPolicy_NegativeCountClamped(t *testing.T) {
	p := DefaultRetryPolicy()
	if got := p.Delay(-1); got != DefaultRetryDelay {
		t.Errorf("Delay(-1) = %v, want %v", got, DefaultRetryDelay)
	}
}

func TestTask_FiresOnFakeClock(t *testing.T) {
	fc := clockwork.NewFakeClock()
	task := After(fc, 5*time.Second)

	if want := fc.Now().Add(5 * time.Second); !task.Due().Equal(want) {
		t.Errorf("Due() = %v, want %v", task.Due(), want)
	}

	fc.Advance(5 * time.Second)

	select {
	case <-task.C():
	case <-time.After(time.Second):
		t.Fatal("task did not fire after advancing the clock")
	}
}

func TestTask_Cancel(t *testing.T) {
	fc := clockwork.NewFakeClock()
	task := After(fc, 5*time.Second)

	if !task.Cancel() {
		t.Error("Cancel() = false, want true for a pending task")
	}
	if task.Cancel() {
		t.Error("second Cancel() = true, want false")
	}

	fc.Advance(10 * time.Second)

	select {
	case <-task.C():
		t.Error("cancelled task fired")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTask_NilIsSafe(t *testing.T) {
	var task *Task

	if task.C() != nil {
		t.Error("nil task C() != nil")
	}
	if task.Cancel() {
		t.Error("nil task Cancel() = true")
	}
	if !task.Due().IsZero() {
		t.Error("nil task Due() is not zero")
	}
}
