package gamepad

import (
	"math"
	"testing"
)

func TestVec2Magnitude(t *testing.T) {
	tests := []struct {
		name string
		v    Vec2
		want float64
	}{
		{"zero", Vec2{}, 0},
		{"unit x", Vec2{X: 1}, 1},
		{"unit y", Vec2{Y: -1}, 1},
		{"diagonal", Vec2{X: 0.6, Y: 0.8}, 1},
		{"deflected", Vec2{X: 0.96, Y: 0.0}, 0.96},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Magnitude(); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Magnitude() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSamplePressed(t *testing.T) {
	s := Sample{Buttons: map[Button]bool{ButtonA: true, ButtonY: false}}

	if !s.Pressed(ButtonA) {
		t.Errorf("Expected A pressed")
	}
	if s.Pressed(ButtonY) || s.Pressed(ButtonRB) {
		t.Errorf("Expected Y and RB released")
	}

	var empty Sample
	if empty.Pressed(ButtonA) {
		t.Errorf("Zero sample must report no buttons pressed")
	}
}
