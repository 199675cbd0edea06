package drive

import (
	"errors"
	"math"
	"testing"

	"github.com/movehub-pilot/controller/pkg/gamepad"
)

func sampleWith(mutate func(*gamepad.Sample)) gamepad.Sample {
	s := gamepad.Sample{Buttons: map[gamepad.Button]bool{}}
	if mutate != nil {
		mutate(&s)
	}
	return s
}

func mapOne(t *testing.T, s gamepad.Sample, st State) (Command, State) {
	t.Helper()
	cmd, next, err := NewMapper(DefaultTuning()).Map(s, st)
	if err != nil {
		t.Fatalf("Map returned unexpected error: %v", err)
	}
	return cmd, next
}

func TestNeutralSample(t *testing.T) {
	cmd, _ := mapOne(t, sampleWith(nil), NewState())
	if cmd.Power != 0 {
		t.Errorf("Expected power 0 for neutral sample, got %d", cmd.Power)
	}
	if cmd.BrakeActive {
		t.Errorf("Expected brake inactive for neutral sample")
	}
	if cmd.ShouldExit {
		t.Errorf("Expected no exit for neutral sample")
	}
}

func TestForwardThrottlePerGear(t *testing.T) {
	multipliers := map[int]float64{1: 0.25, 2: 0.50, 3: 1.00}
	for gear, mult := range multipliers {
		for _, rt := range []float64{0.1, 0.25, 0.5, 0.75, 1.0} {
			s := sampleWith(func(s *gamepad.Sample) { s.RightTrigger = rt })
			st := NewState()
			st.Gear = gear
			cmd, _ := mapOne(t, s, st)

			expected := int(math.Round(rt * mult * 100))
			if cmd.Power != expected {
				t.Errorf("gear %d rt %.2f: expected power %d, got %d", gear, rt, expected, cmd.Power)
			}
			if cmd.BrakeActive {
				t.Errorf("gear %d rt %.2f: expected brake inactive", gear, rt)
			}
		}
	}
}

func TestForwardThrottleMonotonic(t *testing.T) {
	st := NewState()
	st.Gear = 3
	prev := -1
	for rt := 0.0; rt <= 1.0; rt += 0.05 {
		s := sampleWith(func(s *gamepad.Sample) { s.RightTrigger = rt })
		cmd, _ := mapOne(t, s, st)
		if cmd.Power < prev {
			t.Fatalf("power not monotonic in rightTrigger: %d after %d at rt=%.2f", cmd.Power, prev, rt)
		}
		prev = cmd.Power
	}
}

func TestTrailBrakeSubtraction(t *testing.T) {
	// Left trigger in (0, 0.8] subtracts proportionally, unscaled by gear,
	// floored at zero.
	s := sampleWith(func(s *gamepad.Sample) {
		s.RightTrigger = 1.0
		s.LeftTrigger = 0.3
	})
	st := NewState()
	st.Gear = 3
	cmd, _ := mapOne(t, s, st)
	if cmd.Power != 70 {
		t.Errorf("Expected power 70 (100 - 30), got %d", cmd.Power)
	}
	if cmd.BrakeActive {
		t.Errorf("Expected trail braking without full brake")
	}

	// Subtraction can only floor at zero, never flip to reverse.
	st.Gear = 1
	cmd, _ = mapOne(t, s, st)
	if cmd.Power != 0 {
		t.Errorf("Expected power floored at 0 (25 - 30), got %d", cmd.Power)
	}
}

func TestBrakePrecedenceButtonA(t *testing.T) {
	cases := []gamepad.Sample{
		sampleWith(func(s *gamepad.Sample) { s.Buttons[gamepad.ButtonA] = true }),
		sampleWith(func(s *gamepad.Sample) {
			s.Buttons[gamepad.ButtonA] = true
			s.RightTrigger = 1.0
		}),
		sampleWith(func(s *gamepad.Sample) {
			s.Buttons[gamepad.ButtonA] = true
			s.LeftTrigger = 0.5 // reverse intent loses to brake
		}),
	}
	for i, s := range cases {
		cmd, _ := mapOne(t, s, NewState())
		if !cmd.BrakeActive {
			t.Errorf("case %d: expected brake active with A pressed", i)
		}
		if cmd.Power != 0 {
			t.Errorf("case %d: expected power 0 while braking, got %d", i, cmd.Power)
		}
	}
}

func TestBrakeOnDeepLeftTriggerWhileForward(t *testing.T) {
	s := sampleWith(func(s *gamepad.Sample) {
		s.RightTrigger = 1.0
		s.LeftTrigger = 0.9
	})
	st := NewState()
	st.Gear = 3
	cmd, _ := mapOne(t, s, st)
	if !cmd.BrakeActive || cmd.Power != 0 {
		t.Errorf("Expected full brake at lt=0.9 with forward throttle, got brake=%v power=%d",
			cmd.BrakeActive, cmd.Power)
	}

	// Without forward throttle the same trigger level is reverse, not brake.
	s.RightTrigger = 0
	cmd, _ = mapOne(t, s, st)
	if cmd.BrakeActive {
		t.Errorf("Expected no brake at rt=0, deep left trigger is reverse")
	}
	if cmd.Power != -36 {
		t.Errorf("Expected reverse power -36 (0.9*40), got %d", cmd.Power)
	}
}

func TestReverseCap(t *testing.T) {
	for _, lt := range []float64{0.0, 0.25, 0.5, 0.75, 1.0} {
		s := sampleWith(func(s *gamepad.Sample) { s.LeftTrigger = lt })
		for gear := MinGear; gear <= MaxGear; gear++ {
			st := NewState()
			st.Gear = gear
			cmd, _ := mapOne(t, s, st)
			if cmd.Power < -40 || cmd.Power > 0 {
				t.Errorf("gear %d lt %.2f: reverse power %d outside [-40, 0]", gear, lt, cmd.Power)
			}
			expected := -int(math.Round(lt * 40))
			if cmd.Power != expected {
				t.Errorf("gear %d lt %.2f: expected reverse %d, got %d", gear, lt, expected, cmd.Power)
			}
		}
	}
}

func TestReverseScenario(t *testing.T) {
	s := sampleWith(func(s *gamepad.Sample) { s.LeftTrigger = 0.5 })
	cmd, _ := mapOne(t, s, NewState())
	if cmd.Power != -20 {
		t.Errorf("Expected power -20, got %d", cmd.Power)
	}
	if cmd.BrakeActive {
		t.Errorf("Expected brake inactive in plain reverse")
	}
}

func TestGearTwoScenario(t *testing.T) {
	s := sampleWith(func(s *gamepad.Sample) { s.RightTrigger = 1.0 })
	st := NewState()
	st.Gear = 2
	cmd, _ := mapOne(t, s, st)
	if cmd.Power != 50 {
		t.Errorf("Expected power 50 in gear 2, got %d", cmd.Power)
	}
	if cmd.BrakeActive {
		t.Errorf("Expected brake inactive")
	}
}

func TestGearShiftEdgeTriggered(t *testing.T) {
	held := sampleWith(func(s *gamepad.Sample) { s.Buttons[gamepad.ButtonRB] = true })
	st := NewState()

	cmd, st := mapOne(t, held, st)
	if st.Gear != 2 {
		t.Fatalf("Expected gear 2 after RB press, got %d", st.Gear)
	}
	if !cmd.ShouldVibrate {
		t.Errorf("Expected vibrate on accepted shift")
	}

	// Holding RB across further ticks must not shift again.
	for i := 0; i < 5; i++ {
		cmd, st = mapOne(t, held, st)
		if st.Gear != 2 {
			t.Fatalf("tick %d: gear auto-repeated to %d while RB held", i, st.Gear)
		}
		if cmd.ShouldVibrate {
			t.Errorf("tick %d: unexpected vibrate while RB held", i)
		}
	}

	// Release and press again: one more shift.
	_, st = mapOne(t, sampleWith(nil), st)
	_, st = mapOne(t, held, st)
	if st.Gear != 3 {
		t.Errorf("Expected gear 3 after release and re-press, got %d", st.Gear)
	}
}

func TestGearShiftBounds(t *testing.T) {
	up := sampleWith(func(s *gamepad.Sample) { s.Buttons[gamepad.ButtonRB] = true })
	down := sampleWith(func(s *gamepad.Sample) { s.Buttons[gamepad.ButtonLB] = true })
	release := sampleWith(nil)

	st := NewState()
	st.Gear = MaxGear
	cmd, st := mapOne(t, up, st)
	if st.Gear != MaxGear {
		t.Errorf("Expected gear clamped at %d, got %d", MaxGear, st.Gear)
	}
	if cmd.ShouldVibrate {
		t.Errorf("Unaccepted upshift at bound must not vibrate")
	}

	st = NewState()
	_, st = mapOne(t, down, st)
	if st.Gear != MinGear {
		t.Errorf("Expected gear clamped at %d, got %d", MinGear, st.Gear)
	}

	// Rumble strength follows the gear shifted into.
	st = NewState()
	cmd, st = mapOne(t, up, st)
	if cmd.Rumble != gearRumble[2] {
		t.Errorf("Expected gear 2 rumble pulse, got %+v", cmd.Rumble)
	}
	_, st = mapOne(t, release, st)
	cmd, _ = mapOne(t, up, st)
	if cmd.Rumble != gearRumble[3] {
		t.Errorf("Expected gear 3 rumble pulse, got %+v", cmd.Rumble)
	}
}

func TestLightToggle(t *testing.T) {
	press := sampleWith(func(s *gamepad.Sample) { s.Buttons[gamepad.ButtonY] = true })
	release := sampleWith(nil)

	st := NewState()
	if !st.LightsOn {
		t.Fatalf("Expected lights on at startup")
	}

	_, st = mapOne(t, press, st)
	if st.LightsOn {
		t.Errorf("Expected lights off after first Y press")
	}

	// Held Y must not re-toggle.
	_, st = mapOne(t, press, st)
	if st.LightsOn {
		t.Errorf("Lights re-toggled while Y held")
	}

	_, st = mapOne(t, release, st)
	_, st = mapOne(t, press, st)
	if !st.LightsOn {
		t.Errorf("Expected lights back on after press-release-press")
	}
}

func TestModeToggle(t *testing.T) {
	press := sampleWith(func(s *gamepad.Sample) { s.Buttons[gamepad.ButtonX] = true })
	st := NewState()

	_, st = mapOne(t, press, st)
	if st.Mode != ModeSport {
		t.Errorf("Expected Sport after X press, got %s", st.Mode)
	}
	_, st = mapOne(t, press, st)
	if st.Mode != ModeSport {
		t.Errorf("Mode re-toggled while X held")
	}
	_, st = mapOne(t, sampleWith(nil), st)
	_, st = mapOne(t, press, st)
	if st.Mode != ModeComfort {
		t.Errorf("Expected Comfort after second press, got %s", st.Mode)
	}
}

func TestExitCondition(t *testing.T) {
	both := sampleWith(func(s *gamepad.Sample) {
		s.LeftStick = gamepad.Vec2{X: 1.0}
		s.RightStick = gamepad.Vec2{Y: -1.0}
	})
	cmd, _ := mapOne(t, both, NewState())
	if !cmd.ShouldExit {
		t.Errorf("Expected exit with both sticks at full deflection")
	}

	leftOnly := sampleWith(func(s *gamepad.Sample) {
		s.LeftStick = gamepad.Vec2{X: 1.0}
	})
	cmd, _ = mapOne(t, leftOnly, NewState())
	if cmd.ShouldExit {
		t.Errorf("Left stick alone must not trigger exit")
	}

	rightOnly := sampleWith(func(s *gamepad.Sample) {
		s.RightStick = gamepad.Vec2{X: 0.7, Y: 0.7}
	})
	cmd, _ = mapOne(t, rightOnly, NewState())
	if cmd.ShouldExit {
		t.Errorf("Right stick alone must not trigger exit")
	}

	// Exit does not suppress the rest of the command.
	driving := sampleWith(func(s *gamepad.Sample) {
		s.LeftStick = gamepad.Vec2{X: 1.0}
		s.RightStick = gamepad.Vec2{X: 1.0}
		s.RightTrigger = 1.0
	})
	st := NewState()
	st.Gear = 3
	cmd, _ = mapOne(t, driving, st)
	if !cmd.ShouldExit {
		t.Errorf("Expected exit flag")
	}
	if cmd.Power != 100 {
		t.Errorf("Exit must not suppress power, got %d", cmd.Power)
	}
}

func TestSteeringScaling(t *testing.T) {
	cases := []struct {
		x        float64
		expected int
	}{
		{0, 0},
		{0.4, 50},
		{0.8, 100},
		{0.9, 100},
		{-0.4, -50},
		{-1.0, -100},
	}
	for _, c := range cases {
		s := sampleWith(func(s *gamepad.Sample) { s.LeftStick.X = c.x })
		cmd, _ := mapOne(t, s, NewState())
		if cmd.Steering != c.expected {
			t.Errorf("x=%.2f: expected steering %d, got %d", c.x, c.expected, cmd.Steering)
		}
	}
}

func TestMalformedSample(t *testing.T) {
	bad := sampleWith(func(s *gamepad.Sample) { s.LeftTrigger = 3.5 })
	st := NewState()
	st.Gear = 2

	cmd, next, err := NewMapper(DefaultTuning()).Map(bad, st)
	if err == nil {
		t.Fatalf("Expected error for out-of-range trigger")
	}
	var inputErr *InputError
	if !errors.As(err, &inputErr) {
		t.Errorf("Expected *InputError, got %T", err)
	}
	if cmd.Power != 0 || cmd.BrakeActive {
		t.Errorf("Malformed sample must map to a neutral command, got power=%d brake=%v",
			cmd.Power, cmd.BrakeActive)
	}
	if next.Gear != st.Gear {
		t.Errorf("Malformed sample must not mutate state")
	}

	nan := sampleWith(func(s *gamepad.Sample) { s.RightStick.X = math.NaN() })
	if _, _, err := NewMapper(DefaultTuning()).Map(nan, st); err == nil {
		t.Errorf("Expected error for NaN axis")
	}
}
