package drive

import (
	"testing"
	"time"
)

func TestSmootherDisabledPassesThrough(t *testing.T) {
	s := NewSmoother(false, DefaultSlewRates())
	for _, target := range []int{0, 50, 100, -40} {
		if got := s.Next(target, ModeComfort); got != target {
			t.Errorf("Disabled smoother should pass through %d, got %d", target, got)
		}
	}
}

func TestSmootherApproachesTarget(t *testing.T) {
	s := NewSmoother(true, DefaultSlewRates())

	prev := 0
	for i := 0; i < 200; i++ {
		got := s.Next(100, ModeSport)
		if got < prev {
			t.Fatalf("tick %d: smoothed power decreased (%d -> %d) while accelerating", i, prev, got)
		}
		if got > 100 {
			t.Fatalf("tick %d: smoothed power overshot target: %d", i, got)
		}
		prev = got
	}
	if prev < 95 {
		t.Errorf("Expected smoothed power near 100 after 200 ticks, got %d", prev)
	}
}

func TestSmootherBrakesFasterThanAccel(t *testing.T) {
	accel := NewSmoother(true, DefaultSlewRates())
	brake := NewSmoother(true, DefaultSlewRates())
	brake.Reset(100)

	upStep := accel.Next(100, ModeComfort)          // from 0 toward 100
	downStep := 100 - brake.Next(0, ModeComfort)    // from 100 toward 0
	if downStep <= upStep {
		t.Errorf("Expected braking (step %d) faster than accel (step %d) in Comfort", downStep, upStep)
	}
}

func TestSmootherReset(t *testing.T) {
	s := NewSmoother(true, DefaultSlewRates())
	s.Next(100, ModeSport)
	s.Reset(0)
	if got := s.Next(0, ModeSport); got != 0 {
		t.Errorf("Expected 0 after reset, got %d", got)
	}
}

func TestEnforceInnerDeadzone(t *testing.T) {
	cases := []struct {
		power    int
		expected int
	}{
		{0, 0},
		{5, 10},
		{-5, -10},
		{10, 10},
		{-42, -42},
		{80, 80},
	}
	for _, c := range cases {
		if got := EnforceInnerDeadzone(c.power, 10); got != c.expected {
			t.Errorf("power %d: expected %d, got %d", c.power, c.expected, got)
		}
	}
	if got := EnforceInnerDeadzone(5, 0); got != 5 {
		t.Errorf("Zero inner deadzone must pass through, got %d", got)
	}
}

func TestPowerStats(t *testing.T) {
	stats := NewPowerStats(2 * time.Minute)
	base := time.Now()
	current := base
	stats.now = func() time.Time { return current }

	// Old values fall out of the window but stay in the full average.
	stats.Record(100)
	current = base.Add(3 * time.Minute)
	stats.Record(50)
	stats.Record(30)

	full, windowed := stats.Averages()
	if full != 60 {
		t.Errorf("Expected full average 60, got %v", full)
	}
	if windowed != 40 {
		t.Errorf("Expected windowed average 40, got %v", windowed)
	}
}

func TestPowerStatsEmpty(t *testing.T) {
	stats := NewPowerStats(time.Minute)
	full, windowed := stats.Averages()
	if full != 0 || windowed != 0 {
		t.Errorf("Expected zero averages with no samples, got %v / %v", full, windowed)
	}
}
