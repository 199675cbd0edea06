package display

import (
	"fmt"

	"github.com/movehub-pilot/controller/domain/pilot"
	customlog "github.com/movehub-pilot/controller/pkg/log"
)

// Console renders a condensed one-line drive status to the log. Changes are
// logged at info level; unchanged ticks only at debug so the log stays
// readable at 50 ticks per second.
type Console struct {
	logger   customlog.Logger
	lastLine string
}

// NewConsole creates a console display sink.
func NewConsole(logger customlog.Logger) *Console {
	return &Console{logger: logger}
}

// Publish implements pilot.Sink.
func (c *Console) Publish(s pilot.Snapshot) {
	line := format(s)
	if line == c.lastLine {
		c.logger.Debugf("%s", line)
		return
	}
	c.lastLine = line
	c.logger.Infof("%s", line)
}

func format(s pilot.Snapshot) string {
	brake := " "
	if s.BrakeActive {
		brake = "BRAKE"
	}
	lights := "off"
	if s.LightsOn {
		lights = "on"
	}
	hubState := s.HubState
	if s.Simulated {
		hubState = "SIM " + hubState
	}
	if s.LinkLost {
		hubState += " (link lost)"
	}
	return fmt.Sprintf("G%d %-7s pwr:%+4d steer:%+4d %-5s lights:%-3s hub:%s avg:%.1f/%.1f",
		s.Gear, s.Mode, s.PowerSent, s.Command.Steering, brake, lights, hubState,
		s.AvgPowerFull, s.AvgPower2Min)
}
