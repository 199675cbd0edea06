package display

import (
	"strings"
	"testing"

	"github.com/movehub-pilot/controller/domain/drive"
	"github.com/movehub-pilot/controller/domain/pilot"
)

func TestFormatStatusLine(t *testing.T) {
	line := format(pilot.Snapshot{
		Gear:        2,
		Mode:        drive.ModeSport,
		PowerSent:   50,
		Command:     drive.Command{Steering: -30},
		BrakeActive: false,
		LightsOn:    true,
		HubState:    "connected",
		Simulated:   true,
	})

	for _, want := range []string{"G2", "Sport", "+50", "-30", "lights:on", "SIM connected"} {
		if !strings.Contains(line, want) {
			t.Errorf("Status line missing %q: %s", want, line)
		}
	}
}

func TestFormatBrakeAndLinkLoss(t *testing.T) {
	line := format(pilot.Snapshot{
		Gear:        1,
		Mode:        drive.ModeComfort,
		BrakeActive: true,
		HubState:    "disconnected",
		LinkLost:    true,
	})

	if !strings.Contains(line, "BRAKE") {
		t.Errorf("Expected brake marker: %s", line)
	}
	if !strings.Contains(line, "(link lost)") {
		t.Errorf("Expected link loss marker: %s", line)
	}
}
