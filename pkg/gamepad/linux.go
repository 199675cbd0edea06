//go:build linux

package gamepad

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	customlog "github.com/movehub-pilot/controller/pkg/log"
)

// joydev ioctls, see linux/joystick.h.
const (
	jsName    = 0x80006a13 + (128 << 16)
	jsAxes    = 0x80016a11
	jsButtons = 0x80016a12
)

// joydev event types
const (
	jsEventButton = 0x01
	jsEventAxis   = 0x02
	jsEventInit   = 0x80
)

// Axis and button numbers for the xpad layout (Xbox-class controllers).
const (
	axisLeftX        = 0
	axisLeftY        = 1
	axisLeftTrigger  = 2
	axisRightX       = 3
	axisRightY       = 4
	axisRightTrigger = 5
)

var buttonNumbers = map[uint8]Button{
	0: ButtonA,
	1: ButtonB,
	2: ButtonX,
	3: ButtonY,
	4: ButtonLB,
	5: ButtonRB,
}

// jsEvent mirrors struct js_event from linux/joystick.h.
type jsEvent struct {
	Timestamp uint32
	Value     int16
	Type      uint8
	Number    uint8
}

// Options configures a LinuxDevice.
type Options struct {
	DevicePath      string // joydev node, e.g. /dev/input/js0
	EventPath       string // matching evdev node for rumble, optional
	StickDeadzone   float64
	TriggerDeadzone float64
}

// LinuxDevice reads the Linux joystick interface in a background goroutine
// and keeps the latest state for non-blocking Poll calls.
type LinuxDevice struct {
	mu      sync.Mutex
	axes    [8]int16
	buttons map[Button]bool
	readErr error

	opts    Options
	file    *os.File
	rumbler *ffRumbler
	logger  customlog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// OpenLinuxDevice opens the joystick node and starts the reader goroutine.
func OpenLinuxDevice(opts Options, logger customlog.Logger) (*LinuxDevice, error) {
	f, err := os.Open(opts.DevicePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open joystick '%s': %w", opts.DevicePath, err)
	}

	var name string
	var axisCount, buttonCount uint8
	if err := ioctlStr(f, jsName, &name); err != nil {
		name = "unknown"
	}
	if err := ioctl(f, jsAxes, unsafe.Pointer(&axisCount)); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to query axes on '%s': %w", opts.DevicePath, err)
	}
	if err := ioctl(f, jsButtons, unsafe.Pointer(&buttonCount)); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to query buttons on '%s': %w", opts.DevicePath, err)
	}

	logger.Infof("Joystick: %s (%d axes, %d buttons)", name, axisCount, buttonCount)

	ctx, cancel := context.WithCancel(context.Background())
	d := &LinuxDevice{
		opts:    opts,
		file:    f,
		buttons: make(map[Button]bool),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	// Triggers rest at -32767 on xpad; without the INIT events the zero
	// value would read as half-pulled.
	d.axes[axisLeftTrigger] = math.MinInt16 + 1
	d.axes[axisRightTrigger] = math.MinInt16 + 1

	if opts.EventPath != "" {
		r, err := openRumbler(opts.EventPath)
		if err != nil {
			logger.Warnf("Rumble unavailable on '%s': %v", opts.EventPath, err)
		} else {
			d.rumbler = r
		}
	}

	go d.readLoop()
	return d, nil
}

func (d *LinuxDevice) readLoop() {
	defer close(d.done)
	reopened := false

	for {
		var e jsEvent
		if err := binary.Read(d.file, binary.LittleEndian, &e); err != nil {
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			// One reopen attempt; a controller that dropped off the bus
			// for good is fatal to the loop.
			if !reopened {
				reopened = true
				d.logger.Warnf("Joystick read failed (%v), attempting reopen", err)
				time.Sleep(250 * time.Millisecond)
				if f, openErr := os.Open(d.opts.DevicePath); openErr == nil {
					d.file.Close()
					d.file = f
					continue
				}
			}

			d.mu.Lock()
			d.readErr = fmt.Errorf("%w: %v", ErrDeviceLost, err)
			d.mu.Unlock()
			return
		}

		d.mu.Lock()
		switch e.Type &^ jsEventInit {
		case jsEventAxis:
			if int(e.Number) < len(d.axes) {
				d.axes[e.Number] = e.Value
			}
		case jsEventButton:
			if b, ok := buttonNumbers[e.Number]; ok {
				d.buttons[b] = e.Value != 0
			}
		}
		d.mu.Unlock()
	}
}

// Poll returns the current normalized state. It never blocks; once the
// device is lost it keeps returning the last state together with the error.
func (d *LinuxDevice) Poll() (Sample, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := Sample{
		LeftStick: Vec2{
			X: stickValue(d.axes[axisLeftX], d.opts.StickDeadzone),
			Y: -stickValue(d.axes[axisLeftY], d.opts.StickDeadzone),
		},
		RightStick: Vec2{
			X: stickValue(d.axes[axisRightX], d.opts.StickDeadzone),
			Y: -stickValue(d.axes[axisRightY], d.opts.StickDeadzone),
		},
		LeftTrigger:  triggerValue(d.axes[axisLeftTrigger], d.opts.TriggerDeadzone),
		RightTrigger: triggerValue(d.axes[axisRightTrigger], d.opts.TriggerDeadzone),
		Buttons:      make(map[Button]bool, len(d.buttons)),
	}
	for b, held := range d.buttons {
		s.Buttons[b] = held
	}
	return s, d.readErr
}

// Rumble plays a rumble pulse. Failures are reported but safe to ignore;
// some controllers have no force feedback at all.
func (d *LinuxDevice) Rumble(strength float64, duration time.Duration) error {
	if d.rumbler == nil {
		return nil
	}
	return d.rumbler.play(strength, duration)
}

// Close stops the reader and releases the device nodes.
func (d *LinuxDevice) Close() error {
	d.cancel()
	err := d.file.Close()
	<-d.done
	if d.rumbler != nil {
		d.rumbler.close()
	}
	return err
}

// stickValue normalizes a raw axis to [-1, 1] and applies the deadzone.
func stickValue(raw int16, deadzone float64) float64 {
	v := float64(raw) / 32767.0
	v = math.Max(-1, math.Min(1, v))
	if math.Abs(v) < deadzone {
		return 0
	}
	return v
}

// triggerValue normalizes a raw trigger axis (resting at -32767) to [0, 1]
// and applies the deadzone.
func triggerValue(raw int16, deadzone float64) float64 {
	v := (float64(raw) + 32767.0) / 65534.0
	v = math.Max(0, math.Min(1, v))
	if v < deadzone {
		return 0
	}
	return v
}

func ioctl(f *os.File, req int, dest unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), uintptr(req), uintptr(dest))
	if errno != 0 {
		return fmt.Errorf("ioctl error: %d", errno)
	}
	return nil
}

func ioctlStr(f *os.File, req int, dest *string) error {
	buf := make([]byte, 128)
	if err := ioctl(f, req, unsafe.Pointer(&buf[0])); err != nil {
		return err
	}
	for i, c := range buf {
		if c == 0 {
			*dest = string(buf[:i])
			return nil
		}
	}
	*dest = string(buf)
	return nil
}
