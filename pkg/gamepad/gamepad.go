package gamepad

import (
	"errors"
	"math"
	"time"
)

// Button identifies a gamepad button.
type Button string

const (
	ButtonA  Button = "A"
	ButtonB  Button = "B"
	ButtonX  Button = "X"
	ButtonY  Button = "Y"
	ButtonLB Button = "LB"
	ButtonRB Button = "RB"
)

// ErrDeviceLost is reported when the gamepad device disappeared and could
// not be reopened.
var ErrDeviceLost = errors.New("gamepad device lost")

// Vec2 is a 2D stick position with both axes in [-1, 1].
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Magnitude returns the euclidean deflection of the stick.
func (v Vec2) Magnitude() float64 {
	return math.Hypot(v.X, v.Y)
}

// Sample is an immutable snapshot of the gamepad state for one tick.
// Sticks are in [-1, 1], triggers in [0, 1].
type Sample struct {
	LeftStick    Vec2            `json:"left_stick"`
	RightStick   Vec2            `json:"right_stick"`
	LeftTrigger  float64         `json:"left_trigger"`
	RightTrigger float64         `json:"right_trigger"`
	Buttons      map[Button]bool `json:"buttons"`
}

// Pressed reports whether b is currently held.
func (s Sample) Pressed(b Button) bool {
	return s.Buttons[b]
}

// Device is the input device boundary. Poll never blocks; it returns the
// last-known state when no new events arrived. Rumble is best-effort and
// its failure may be ignored by callers.
type Device interface {
	Poll() (Sample, error)
	Rumble(strength float64, duration time.Duration) error
	Close() error
}
