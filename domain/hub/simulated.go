package hub

import (
	"context"
	"sync"

	customlog "github.com/movehub-pilot/controller/pkg/log"
)

// SimulatedHub logs every command instead of writing to a BLE link. It is
// always connected after Connect and never fails, which makes it the
// hardware-free test and development path.
type SimulatedHub struct {
	mu     sync.Mutex
	logger customlog.Logger
	state  ConnState

	lastPower    int
	lastSteering int
	lastBrake    bool
	lightsOn     bool
	driveCount   int
}

var _ Hub = (*SimulatedHub)(nil)

// NewSimulatedHub creates a simulated hub. It starts out connected; there
// is no link to lose.
func NewSimulatedHub(logger customlog.Logger) *SimulatedHub {
	return &SimulatedHub{logger: logger, state: Connected, lightsOn: true}
}

func (h *SimulatedHub) Connect(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = Connected
	h.logger.Infof("[SIMULATION] skipping BLE connect")
	return nil
}

func (h *SimulatedHub) SendDrive(power, steering int, brake bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastPower = power
	h.lastSteering = steering
	h.lastBrake = brake
	h.driveCount++
	h.logger.Debugf("[SIMULATION] drive power=%d steering=%d brake=%v lights=0x%02x",
		power, steering, brake, lightCode(brake, h.lightsOn))
	return nil
}

func (h *SimulatedHub) SetLight(on bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lightsOn != on {
		h.logger.Debugf("[SIMULATION] lights %v", on)
	}
	h.lightsOn = on
	return nil
}

func (h *SimulatedHub) Disconnect() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = Disconnected
	h.logger.Infof("[SIMULATION] disconnected")
	return nil
}

func (h *SimulatedHub) State() ConnState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// LastDrive returns the most recent drive command, for tests and the
// condensed status display.
func (h *SimulatedHub) LastDrive() (power, steering int, brake bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastPower, h.lastSteering, h.lastBrake
}

// DriveCount returns how many drive frames were recorded.
func (h *SimulatedHub) DriveCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.driveCount
}
