package chat

import (
	"context"
	"time"
)

// Cadence is the pause before each reveal step.
type Cadence struct {
	Plan   time.Duration `json:"plan"`
	Act    time.Duration `json:"act"`
	Notify time.Duration `json:"notify"`
	Settle time.Duration `json:"settle"`
}

func DefaultCadence() Cadence {
	return Cadence{
		Plan:   800 * time.Millisecond,
		Act:    1000 * time.Millisecond,
		Notify: 800 * time.Millisecond,
		Settle: 600 * time.Millisecond,
	}
}

func (c Cadence) Total() time.Duration {
	return c.Plan + c.Act + c.Notify + c.Settle
}

// Scheduler waits between reveal steps.
type Scheduler interface {
	Sleep(ctx context.Context, d time.Duration)
}

// TimerScheduler sleeps on a real timer and returns early if ctx ends.
type TimerScheduler struct{}

func (TimerScheduler) Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// Immediate never waits. Tests and the one-shot CLI use it.
type Immediate struct{}

func (Immediate) Sleep(context.Context, time.Duration) {}

// Stage is the display state published with every status change.
type Stage struct {
	Status Status   `json:"status"`
	Intent string   `json:"intent,omitempty"`
	Plan   []string `json:"plan,omitempty"`
	Action string   `json:"action,omitempty"`
}

func (s Stage) clone() Stage {
	s.Plan = append([]string(nil), s.Plan...)
	return s
}
