package pilot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/movehub-pilot/controller/domain/drive"
	"github.com/movehub-pilot/controller/domain/hub"
	"github.com/movehub-pilot/controller/pkg/gamepad"
	customlog "github.com/movehub-pilot/controller/pkg/log"
)

// ExitStatus tells the caller why Run returned.
type ExitStatus int

const (
	// ExitNormal is the operator-requested shutdown (exit gesture or
	// context cancellation).
	ExitNormal ExitStatus = iota
	// ExitHubInitFailed means the hub could not be connected at startup.
	ExitHubInitFailed
	// ExitInputLost means the gamepad disappeared and did not come back.
	ExitInputLost
)

// reconnectCooldown paces reconnect attempts after a failed one so the
// radio is not hammered while the hub is away.
const reconnectCooldown = 2 * time.Second

// Options configures a Loop.
type Options struct {
	TickRate      int // ticks per second
	InnerDeadzone int
	Simulated     bool
}

// Loop is the fixed-rate orchestrator: sample, map, send, render, exit
// check. A single goroutine owns all mapper state; hub reconnects are the
// only offloaded work.
type Loop struct {
	device   gamepad.Device
	hub      hub.Hub
	mapper   *drive.Mapper
	smoother *drive.Smoother
	stats    *drive.PowerStats
	sink     Sink
	logger   customlog.Logger
	opts     Options

	state drive.State

	reconnecting  bool
	reconnectDone chan error
	nextReconnect time.Time
}

// New creates a control loop. sink may be a MultiSink; pass a NopSink-like
// SinkFunc if no display is attached.
func New(
	device gamepad.Device,
	h hub.Hub,
	mapper *drive.Mapper,
	smoother *drive.Smoother,
	sink Sink,
	logger customlog.Logger,
	opts Options,
) *Loop {
	if opts.TickRate <= 0 {
		opts.TickRate = 50
	}
	return &Loop{
		device:        device,
		hub:           h,
		mapper:        mapper,
		smoother:      smoother,
		stats:         drive.NewPowerStats(2 * time.Minute),
		sink:          sink,
		logger:        logger,
		opts:          opts,
		state:         drive.NewState(),
		reconnectDone: make(chan error, 1),
	}
}

// Run connects the hub and drives the tick loop until the exit gesture,
// context cancellation, or a fatal input loss. It always releases the hub
// and the input device before returning.
func (l *Loop) Run(ctx context.Context) (ExitStatus, error) {
	if err := l.hub.Connect(ctx); err != nil {
		return ExitHubInitFailed, fmt.Errorf("hub initialization failed: %w", err)
	}

	interval := time.Second / time.Duration(l.opts.TickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer l.shutdown()

	pollFailures := 0

	for {
		select {
		case <-ctx.Done():
			l.logger.Infof("Context cancelled, shutting down")
			return ExitNormal, nil
		case err := <-l.reconnectDone:
			l.reconnecting = false
			if err != nil {
				l.logger.Errorf("Hub reconnect failed: %v", err)
				l.nextReconnect = time.Now().Add(reconnectCooldown)
			} else {
				l.logger.Infof("Hub reconnected")
			}
		case <-ticker.C:
			exit, status := l.tick(ctx, &pollFailures)
			if exit {
				return status, nil
			}
		}
	}
}

// tick runs one sample-map-send-render cycle. It reports whether the loop
// should stop and with which status.
func (l *Loop) tick(ctx context.Context, pollFailures *int) (bool, ExitStatus) {
	sample, pollErr := l.device.Poll()
	if pollErr != nil {
		*pollFailures++
		l.logger.Errorf("Gamepad poll failed (%d): %v", *pollFailures, pollErr)
		if *pollFailures > 1 {
			l.logger.Errorf("Input device lost, stopping")
			l.safeStop()
			return true, ExitInputLost
		}
		// fail safe toward zero power while the device gets one tick
		// to come back
		l.safeStop()
		l.publish(sample, drive.Command{Gear: l.state.Gear, Mode: l.state.Mode}, 0, true, true)
		return false, ExitNormal
	}
	*pollFailures = 0

	cmd, next, mapErr := l.mapper.Map(sample, l.state)
	if mapErr != nil {
		// malformed sample: neutral tick, state untouched, keep going
		l.logger.Warnf("Dropping tick: %v", mapErr)
		l.safeStop()
		l.publish(sample, cmd, 0, false, false)
		return false, ExitNormal
	}
	l.state = next

	if cmd.ShouldVibrate {
		// fire and forget; some controllers have no rumble
		if err := l.device.Rumble(cmd.Rumble.Strength, cmd.Rumble.Duration); err != nil {
			l.logger.Debugf("Rumble failed: %v", err)
		}
		l.logger.Infof("Gear changed to %d", cmd.Gear)
	}

	sent := l.smoother.Next(cmd.Power, cmd.Mode)
	if cmd.BrakeActive {
		// a full brake is immediate, not slewed
		l.smoother.Reset(0)
		sent = 0
	}
	sent = drive.EnforceInnerDeadzone(sent, l.opts.InnerDeadzone)

	linkLost := false
	if err := l.hub.SendDrive(sent, cmd.Steering, cmd.BrakeActive); err != nil {
		linkLost = true
		sent = 0
		// the dropped command is not queued; fail open to zero so a
		// stale nonzero command is never repeated
		l.smoother.Reset(0)
		if errors.Is(err, hub.ErrLinkLost) {
			l.logger.Warnf("Drive command dropped: %v", err)
		}
		l.maybeReconnect(ctx)
	}

	// lights are sent independently; their failure must not block driving
	if err := l.hub.SetLight(cmd.LightsOn); err != nil {
		if errors.Is(err, hub.ErrLinkLost) {
			l.maybeReconnect(ctx)
		}
		l.logger.Debugf("Light command dropped: %v", err)
	}

	l.stats.Record(sent)
	l.publish(sample, cmd, sent, linkLost, false)

	if cmd.ShouldExit {
		l.logger.Infof("Exit gesture detected, shutting down")
		return true, ExitNormal
	}
	return false, ExitNormal
}

// maybeReconnect starts a single offloaded reconnect attempt if none is in
// flight and the cooldown from the previous failure has passed. The loop
// cadence is never blocked by the attempt itself.
func (l *Loop) maybeReconnect(ctx context.Context) {
	if l.reconnecting || l.hub.State() != hub.Disconnected || time.Now().Before(l.nextReconnect) {
		return
	}
	l.reconnecting = true
	l.logger.Infof("Attempting hub reconnect")
	go func() {
		l.reconnectDone <- l.hub.Connect(ctx)
	}()
}

// safeStop pushes a zero-power frame on a best-effort basis.
func (l *Loop) safeStop() {
	l.smoother.Reset(0)
	if l.hub.State() == hub.Connected {
		if err := l.hub.SendDrive(0, 0, false); err != nil {
			l.logger.Debugf("Safe stop send failed: %v", err)
		}
	}
}

func (l *Loop) publish(sample gamepad.Sample, cmd drive.Command, sent int, linkLost, inputStale bool) {
	full, windowed := l.stats.Averages()
	l.sink.Publish(Snapshot{
		Timestamp:    time.Now(),
		Sample:       sample,
		Command:      cmd,
		PowerSent:    sent,
		AvgPowerFull: full,
		AvgPower2Min: windowed,
		Gear:         l.state.Gear,
		Mode:         l.state.Mode,
		LightsOn:     l.state.LightsOn,
		BrakeActive:  cmd.BrakeActive,
		HubState:     l.hub.State().String(),
		Simulated:    l.opts.Simulated,
		LinkLost:     linkLost,
		InputStale:   inputStale,
	})
}

// shutdown releases the hub and the input device in order. The hub's own
// Disconnect leaves the motor stopped.
func (l *Loop) shutdown() {
	l.safeStop()
	if err := l.hub.Disconnect(); err != nil {
		l.logger.Errorf("Hub disconnect failed: %v", err)
	}
	if err := l.device.Close(); err != nil {
		l.logger.Errorf("Input device close failed: %v", err)
	}
}
