package drive

import "math"

// SlewRates holds the exponential smoothing factors for one mode. Braking
// uses a larger factor so power drops faster than it ramps up.
type SlewRates struct {
	Accel float64
	Brake float64
}

// Smoother slews commanded power toward the mapper's target so that the
// vehicle does not jerk on trigger spikes. It is applied between mapping
// and sending; the mapped command itself stays untouched.
type Smoother struct {
	enabled bool
	rates   map[Mode]SlewRates
	value   float64
}

// NewSmoother creates a smoother with per-mode rates. A disabled smoother
// passes targets through unchanged.
func NewSmoother(enabled bool, rates map[Mode]SlewRates) *Smoother {
	return &Smoother{enabled: enabled, rates: rates}
}

// DefaultSlewRates matches the stock comfort/sport behavior.
func DefaultSlewRates() map[Mode]SlewRates {
	return map[Mode]SlewRates{
		ModeComfort: {Accel: 0.01, Brake: 0.15},
		ModeSport:   {Accel: 0.15, Brake: 0.35},
	}
}

// Next advances the smoothed power one tick toward target and returns it.
func (s *Smoother) Next(target int, mode Mode) int {
	if !s.enabled {
		s.value = float64(target)
		return target
	}

	r, ok := s.rates[mode]
	if !ok {
		r = SlewRates{Accel: 1, Brake: 1}
	}

	alpha := r.Brake
	if float64(target) > s.value {
		alpha = r.Accel
	}
	s.value += (float64(target) - s.value) * alpha
	return int(s.value)
}

// Reset snaps the smoothed value, used when a brake demands an immediate
// stop.
func (s *Smoother) Reset(value int) {
	s.value = float64(value)
}

// EnforceInnerDeadzone snaps a nonzero power whose magnitude is below the
// motor's stall threshold up to that threshold, so a small command still
// turns the motor.
func EnforceInnerDeadzone(power, innerDeadzone int) int {
	if power == 0 || innerDeadzone <= 0 {
		return power
	}
	if int(math.Abs(float64(power))) < innerDeadzone {
		if power > 0 {
			return innerDeadzone
		}
		return -innerDeadzone
	}
	return power
}
