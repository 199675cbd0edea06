//go:build linux

package gamepad

import (
	"fmt"
	"math"
	"os"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Force feedback plumbing, see linux/input.h. A single rumble effect is
// uploaded once and replayed with updated magnitudes for each pulse.
const (
	eviocsFF = 0x40304580 // _IOW('E', 0x80, struct ff_effect)
	evFF     = 0x15
	ffRumble = 0x50
)

// ffEffect mirrors struct ff_effect for the rumble variant. The trailing
// padding covers the largest union member (ff_periodic_effect).
type ffEffect struct {
	typ             uint16
	id              int16
	direction       uint16
	triggerButton   uint16
	triggerIntvl    uint16
	replayLength    uint16
	replayDelay     uint16
	_               [2]byte
	strongMagnitude uint16
	weakMagnitude   uint16
	_               [28]byte
}

// inputEvent mirrors struct input_event on 64-bit platforms.
type inputEvent struct {
	sec   int64
	usec  int64
	typ   uint16
	code  uint16
	value int32
}

type ffRumbler struct {
	mu       sync.Mutex
	file     *os.File
	effectID int16
}

func openRumbler(eventPath string) (*ffRumbler, error) {
	f, err := os.OpenFile(eventPath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open event device '%s': %w", eventPath, err)
	}
	return &ffRumbler{file: f, effectID: -1}, nil
}

// play uploads (or re-uploads) the rumble effect and starts one pulse.
func (r *ffRumbler) play(strength float64, duration time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	strength = math.Max(0, math.Min(1, strength))
	effect := ffEffect{
		typ:             ffRumble,
		id:              r.effectID,
		replayLength:    uint16(duration / time.Millisecond),
		strongMagnitude: uint16(strength * 0xFFFF),
		weakMagnitude:   uint16(strength * 0xFFFF),
	}

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, r.file.Fd(), uintptr(eviocsFF), uintptr(unsafe.Pointer(&effect)))
	if errno != 0 {
		return fmt.Errorf("failed to upload rumble effect: %d", errno)
	}
	r.effectID = effect.id

	ev := inputEvent{typ: evFF, code: uint16(effect.id), value: 1}
	buf := (*[unsafe.Sizeof(ev)]byte)(unsafe.Pointer(&ev))[:]
	if _, err := r.file.Write(buf); err != nil {
		return fmt.Errorf("failed to start rumble effect: %w", err)
	}
	return nil
}

func (r *ffRumbler) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.file.Close()
}
