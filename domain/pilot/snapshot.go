package pilot

import (
	"time"

	"github.com/movehub-pilot/controller/domain/drive"
	"github.com/movehub-pilot/controller/pkg/gamepad"
)

// Snapshot is the read-only per-tick status projection handed to display
// and telemetry sinks. Sinks never feed back into the loop.
type Snapshot struct {
	Timestamp    time.Time      `json:"timestamp"`
	Sample       gamepad.Sample `json:"sample"`
	Command      drive.Command  `json:"command"`
	PowerSent    int            `json:"power_sent"`
	AvgPowerFull float64        `json:"avg_power_full"`
	AvgPower2Min float64        `json:"avg_power_2min"`
	Gear         int            `json:"gear"`
	Mode         drive.Mode     `json:"mode"`
	LightsOn     bool           `json:"lights_on"`
	BrakeActive  bool           `json:"brake_active"`
	HubState     string         `json:"hub_state"`
	Simulated    bool           `json:"simulated"`
	LinkLost     bool           `json:"link_lost"`  // this tick's drive command was dropped
	InputStale   bool           `json:"input_stale"` // gamepad poll failed this tick
}

// Sink consumes snapshots. Publish must not block the control loop beyond a
// small bounded time.
type Sink interface {
	Publish(Snapshot)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Snapshot)

// Publish calls the function.
func (f SinkFunc) Publish(s Snapshot) { f(s) }

// MultiSink fans a snapshot out to several sinks in order.
type MultiSink []Sink

// Publish delivers the snapshot to every sink.
func (m MultiSink) Publish(s Snapshot) {
	for _, sink := range m {
		sink.Publish(s)
	}
}
