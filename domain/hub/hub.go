package hub

import (
	"context"
	"errors"
)

// ConnState is the hub connection lifecycle state.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	default:
		return "Disconnected"
	}
}

var (
	// ErrLinkLost marks a write failure that dropped the connection. The
	// caller gets one reconnect attempt before the next send; the failed
	// command is dropped, not queued.
	ErrLinkLost = errors.New("hub link lost")

	// ErrNotConnected is returned for sends while disconnected.
	ErrNotConnected = errors.New("hub not connected")

	// ErrDeviceNotFound is returned when scanning finds no matching hub.
	ErrDeviceNotFound = errors.New("hub device not found")
)

// Hub is the capability interface over the motorized hub. The control loop
// only ever talks to this interface; the variant (real BLE or simulated) is
// chosen once at startup.
type Hub interface {
	// Connect discovers and connects the hub. It transitions
	// Disconnected -> Connecting -> Connected and may be called again
	// after a link loss.
	Connect(ctx context.Context) error

	// SendDrive writes one drive frame. power and steering are in
	// [-100, 100]; brake selects the brake light code.
	SendDrive(power, steering int, brake bool) error

	// SetLight switches the headlights. Independent of SendDrive: a
	// light failure must not block a drive send.
	SetLight(on bool) error

	// Disconnect releases the connection. Safe to call when already
	// disconnected.
	Disconnect() error

	// State reports the current connection state.
	State() ConnState
}
