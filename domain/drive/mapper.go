package drive

import (
	"fmt"
	"math"
	"time"

	"github.com/movehub-pilot/controller/pkg/gamepad"
)

// Gear bounds. Gears scale forward throttle only.
const (
	MinGear = 1
	MaxGear = 3
)

// exitDeflection is the stick magnitude both sticks must exceed in the same
// tick to request shutdown.
const exitDeflection = 0.95

// steeringFullLockAt is the stick deflection that already commands full
// steering; everything beyond saturates.
const steeringFullLockAt = 0.8

// Mode is the drive mode, selecting how aggressively power changes are
// slewed toward the target.
type Mode string

const (
	ModeComfort Mode = "Comfort"
	ModeSport   Mode = "Sport"
)

// RumblePulse describes a feedback pulse for the input device.
type RumblePulse struct {
	Strength float64
	Duration time.Duration
}

// Per-gear shift feedback, stronger in higher gears.
var gearRumble = map[int]RumblePulse{
	1: {Strength: 0.1, Duration: 150 * time.Millisecond},
	2: {Strength: 0.2, Duration: 200 * time.Millisecond},
	3: {Strength: 0.4, Duration: 250 * time.Millisecond},
}

// Tuning holds the drive policy parameters.
type Tuning struct {
	GearMultipliers [3]float64 // indexed by gear-1
	BrakeThreshold  float64    // left trigger level that forces a full brake while moving forward
	ReverseCap      int        // max reverse power in percent, gear-independent
}

// DefaultTuning returns the stock policy: 25/50/100% gears, 0.8 brake
// threshold, reverse capped at 40%.
func DefaultTuning() Tuning {
	return Tuning{
		GearMultipliers: [3]float64{0.25, 0.50, 1.00},
		BrakeThreshold:  0.8,
		ReverseCap:      40,
	}
}

// State is the mapper state carried between ticks. It is owned by the
// control loop and passed by value; the mapper never mutates shared data.
type State struct {
	Gear     int
	LightsOn bool
	Mode     Mode

	// previous-tick button levels for rising edge detection
	lbHeld bool
	rbHeld bool
	yHeld  bool
	xHeld  bool
}

// NewState returns the startup state: first gear, lights on, comfort mode.
func NewState() State {
	return State{Gear: MinGear, LightsOn: true, Mode: ModeComfort}
}

// Command is the drive decision for one tick.
type Command struct {
	Power         int         `json:"power"`    // [-100, 100], positive forward
	Steering      int         `json:"steering"` // [-100, 100]
	BrakeActive   bool        `json:"brake_active"`
	LightsOn      bool        `json:"lights_on"`
	Gear          int         `json:"gear"`
	Mode          Mode        `json:"mode"`
	ShouldVibrate bool        `json:"-"`
	Rumble        RumblePulse `json:"-"`
	ShouldExit    bool        `json:"-"`
}

// InputError reports a malformed sample. The tick is treated as neutral by
// the caller; the error is never turned into a drive command.
type InputError struct {
	Field string
	Value float64
}

func (e *InputError) Error() string {
	return fmt.Sprintf("malformed gamepad sample: %s=%v out of range", e.Field, e.Value)
}

// Mapper converts gamepad samples into drive commands. It is pure and
// deterministic: all persistence lives in the State passed through Map.
type Mapper struct {
	tuning Tuning
}

// NewMapper creates a mapper with the given tuning.
func NewMapper(tuning Tuning) *Mapper {
	return &Mapper{tuning: tuning}
}

// Map computes the drive command for one tick and the successor state.
// On a malformed sample it returns a zero command, the prior state and an
// *InputError.
func (m *Mapper) Map(sample gamepad.Sample, state State) (Command, State, error) {
	if err := validateSample(sample); err != nil {
		return Command{Gear: state.Gear, Mode: state.Mode, LightsOn: state.LightsOn}, state, err
	}

	next := state
	cmd := Command{}

	// Gear shifting: edge-triggered, no auto-repeat. Only an accepted
	// shift (not already at the bound) vibrates.
	lb := sample.Pressed(gamepad.ButtonLB)
	rb := sample.Pressed(gamepad.ButtonRB)
	if rb && !state.rbHeld && state.Gear < MaxGear {
		next.Gear = state.Gear + 1
		cmd.ShouldVibrate = true
	}
	if lb && !state.lbHeld && next.Gear > MinGear {
		next.Gear = next.Gear - 1
		cmd.ShouldVibrate = true
	}
	if cmd.ShouldVibrate {
		cmd.Rumble = gearRumble[next.Gear]
	}

	// Lights toggle on Y rising edge, independent of the drive branch.
	y := sample.Pressed(gamepad.ButtonY)
	if y && !state.yHeld {
		next.LightsOn = !state.LightsOn
	}

	// Mode toggle on X rising edge.
	x := sample.Pressed(gamepad.ButtonX)
	if x && !state.xHeld {
		if state.Mode == ModeComfort {
			next.Mode = ModeSport
		} else {
			next.Mode = ModeComfort
		}
	}

	lt := clamp01(sample.LeftTrigger)
	rt := clamp01(sample.RightTrigger)
	a := sample.Pressed(gamepad.ButtonA)

	// Exactly one of brake, forward, reverse decides power for this tick.
	switch {
	case a || (lt > m.tuning.BrakeThreshold && rt > 0):
		cmd.BrakeActive = true
		cmd.Power = 0
	case rt > 0:
		power := int(math.Round(rt * m.tuning.GearMultipliers[next.Gear-1] * 100))
		if lt > 0 {
			// Proportional trail brake; the gear multiplier never
			// applies to the subtraction.
			power -= int(math.Round(lt * 100))
			if power < 0 {
				power = 0
			}
		}
		cmd.Power = power
	default:
		cmd.Power = -int(math.Round(lt * float64(m.tuning.ReverseCap)))
	}

	cmd.Steering = scaleSteering(sample.LeftStick.X)
	cmd.Gear = next.Gear
	cmd.LightsOn = next.LightsOn
	cmd.Mode = next.Mode

	// Exit check runs last and suppresses nothing else.
	if sample.LeftStick.Magnitude() > exitDeflection && sample.RightStick.Magnitude() > exitDeflection {
		cmd.ShouldExit = true
	}

	next.lbHeld = lb
	next.rbHeld = rb
	next.yHeld = y
	next.xHeld = x

	return cmd, next, nil
}

// scaleSteering maps stick deflection to a steering angle where 80%
// deflection is already full lock.
func scaleSteering(x float64) int {
	scaled := int(math.Round(x / steeringFullLockAt * 100))
	if scaled > 100 {
		return 100
	}
	if scaled < -100 {
		return -100
	}
	return scaled
}

// validateSample rejects grossly out-of-range values. Small float noise is
// absorbed by clamping instead.
func validateSample(s gamepad.Sample) error {
	const slack = 1e-6
	checks := []struct {
		field    string
		value    float64
		min, max float64
	}{
		{"left_stick.x", s.LeftStick.X, -1, 1},
		{"left_stick.y", s.LeftStick.Y, -1, 1},
		{"right_stick.x", s.RightStick.X, -1, 1},
		{"right_stick.y", s.RightStick.Y, -1, 1},
		{"left_trigger", s.LeftTrigger, 0, 1},
		{"right_trigger", s.RightTrigger, 0, 1},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) || c.value < c.min-slack || c.value > c.max+slack {
			return &InputError{Field: c.field, Value: c.value}
		}
	}
	return nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
