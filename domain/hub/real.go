package hub

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	customlog "github.com/movehub-pilot/controller/pkg/log"
)

// RealHub drives the Technic Move hub over Bluetooth LE. All writes go
// through the single LWP3 characteristic; any write failure drops the
// connection and surfaces as ErrLinkLost so the control loop can attempt
// one reconnect.
type RealHub struct {
	mu sync.Mutex

	deviceName     string
	scanTimeout    time.Duration
	connectTimeout time.Duration
	logger         customlog.Logger

	adapter *bluetooth.Adapter
	enabled bool
	device  bluetooth.Device
	char    bluetooth.DeviceCharacteristic
	state   ConnState

	headlights bool

	// last frame sent, for send-on-change suppression
	haveFrame    bool
	lastPower    int
	lastSteering int
	lastLights   byte
	wasBraking   bool
}

var _ Hub = (*RealHub)(nil)

// RealHubOptions configures a RealHub.
type RealHubOptions struct {
	DeviceName     string
	ScanTimeout    time.Duration
	ConnectTimeout time.Duration
}

// NewRealHub creates a BLE hub client. No radio activity happens until
// Connect.
func NewRealHub(opts RealHubOptions, logger customlog.Logger) *RealHub {
	return &RealHub{
		deviceName:     opts.DeviceName,
		scanTimeout:    opts.ScanTimeout,
		connectTimeout: opts.ConnectTimeout,
		logger:         logger,
		adapter:        bluetooth.DefaultAdapter,
		state:          Disconnected,
		headlights:     true,
	}
}

// Connect scans for the hub by advertised name, connects, resolves the LWP3
// characteristic and runs the steering calibration sequence.
func (h *RealHub) Connect(ctx context.Context) error {
	h.mu.Lock()
	if h.state == Connected {
		h.mu.Unlock()
		return nil
	}
	h.state = Connecting
	h.mu.Unlock()

	if err := h.connect(ctx); err != nil {
		h.mu.Lock()
		h.state = Disconnected
		h.mu.Unlock()
		return err
	}

	h.mu.Lock()
	h.state = Connected
	h.haveFrame = false
	h.mu.Unlock()
	h.logger.Infof("Connected to hub '%s'", h.deviceName)
	return nil
}

func (h *RealHub) connect(ctx context.Context) error {
	if !h.enabled {
		if err := h.adapter.Enable(); err != nil {
			return fmt.Errorf("failed to enable BLE adapter: %w", err)
		}
		h.enabled = true
	}

	h.logger.Infof("Searching for hub '%s'...", h.deviceName)
	result, err := h.scan(ctx)
	if err != nil {
		return err
	}

	device, err := h.adapter.Connect(result.Address, bluetooth.ConnectionParams{
		ConnectionTimeout: bluetooth.NewDuration(h.connectTimeout),
	})
	if err != nil {
		return fmt.Errorf("connection error: %w", err)
	}

	serviceUUID, _ := bluetooth.ParseUUID(legoServiceUUID)
	charUUID, _ := bluetooth.ParseUUID(legoCharacteristicUUID)

	services, err := device.DiscoverServices([]bluetooth.UUID{serviceUUID})
	if err != nil || len(services) == 0 {
		device.Disconnect()
		return fmt.Errorf("LWP3 service discovery failed: %w", err)
	}
	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{charUUID})
	if err != nil || len(chars) == 0 {
		device.Disconnect()
		return fmt.Errorf("LWP3 characteristic discovery failed: %w", err)
	}

	h.mu.Lock()
	h.device = device
	h.char = chars[0]
	h.mu.Unlock()

	return h.calibrateSteering()
}

// scan looks for an advertisement whose local name contains the configured
// device name, bounded by the scan timeout and the caller's context.
func (h *RealHub) scan(ctx context.Context) (bluetooth.ScanResult, error) {
	resultCh := make(chan bluetooth.ScanResult, 1)
	errCh := make(chan error, 1)

	go func() {
		err := h.adapter.Scan(func(adapter *bluetooth.Adapter, res bluetooth.ScanResult) {
			if res.LocalName() != "" && strings.Contains(res.LocalName(), h.deviceName) {
				select {
				case resultCh <- res:
				default:
				}
				adapter.StopScan()
			}
		})
		if err != nil {
			errCh <- fmt.Errorf("BLE scan failed: %w", err)
		}
	}()

	timer := time.NewTimer(h.scanTimeout)
	defer timer.Stop()

	select {
	case res := <-resultCh:
		return res, nil
	case err := <-errCh:
		return bluetooth.ScanResult{}, err
	case <-timer.C:
		h.adapter.StopScan()
		return bluetooth.ScanResult{}, fmt.Errorf("%w: '%s' is not advertising", ErrDeviceNotFound, h.deviceName)
	case <-ctx.Done():
		h.adapter.StopScan()
		return bluetooth.ScanResult{}, ctx.Err()
	}
}

// calibrateSteering runs the two-step steering calibration the hub expects
// after connecting.
func (h *RealHub) calibrateSteering() error {
	for _, frame := range calibrationFrames {
		if err := h.write(frame); err != nil {
			return fmt.Errorf("steering calibration failed: %w", err)
		}
		time.Sleep(100 * time.Millisecond)
	}
	return nil
}

// SendDrive writes one combined drive frame. Unchanged frames are
// suppressed, except on a brake edge which always forces a write.
func (h *RealHub) SendDrive(power, steering int, brake bool) error {
	h.mu.Lock()
	if h.state != Connected {
		h.mu.Unlock()
		return ErrNotConnected
	}

	lights := lightCode(brake, h.headlights)
	brakeEdge := brake != h.wasBraking
	unchanged := h.haveFrame &&
		power == h.lastPower && steering == h.lastSteering && lights == h.lastLights
	if unchanged && !brakeEdge {
		h.mu.Unlock()
		return nil
	}

	h.lastPower = power
	h.lastSteering = steering
	h.lastLights = lights
	h.wasBraking = brake
	h.haveFrame = true
	h.mu.Unlock()

	return h.write(driveFrame(power, steering, lights))
}

// SetLight switches the headlights. The new light code goes out with the
// last-known speed and steering so lights react without a drive change.
func (h *RealHub) SetLight(on bool) error {
	h.mu.Lock()
	if h.state != Connected {
		h.mu.Unlock()
		return ErrNotConnected
	}
	if h.headlights == on {
		h.mu.Unlock()
		return nil
	}
	h.headlights = on
	power := h.lastPower
	steering := h.lastSteering
	lights := lightCode(h.wasBraking, on)
	h.lastLights = lights
	h.mu.Unlock()

	return h.write(driveFrame(power, steering, lights))
}

// write pushes raw bytes to the LWP3 characteristic. A failure transitions
// the hub to Disconnected and reports a link loss.
func (h *RealHub) write(data []byte) error {
	h.mu.Lock()
	char := h.char
	h.mu.Unlock()

	if _, err := char.WriteWithoutResponse(data); err != nil {
		h.mu.Lock()
		h.state = Disconnected
		h.mu.Unlock()
		h.logger.Errorf("Hub write failed: %v", err)
		return fmt.Errorf("%w: %v", ErrLinkLost, err)
	}
	return nil
}

// Disconnect sends a final zero-power frame on a best-effort basis and
// releases the BLE connection.
func (h *RealHub) Disconnect() error {
	h.mu.Lock()
	if h.state == Disconnected {
		h.mu.Unlock()
		return nil
	}
	wasConnected := h.state == Connected
	h.state = Disconnected
	char := h.char
	device := h.device
	h.mu.Unlock()

	if wasConnected {
		// fail open: leave the motor stopped
		char.WriteWithoutResponse(driveFrame(0, 0, lightsOff))
	}
	if err := device.Disconnect(); err != nil {
		return fmt.Errorf("hub disconnect failed: %w", err)
	}
	h.logger.Infof("Hub disconnected")
	return nil
}

func (h *RealHub) State() ConnState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}
