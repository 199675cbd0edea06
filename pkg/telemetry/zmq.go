package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pebbe/zmq4"

	"github.com/movehub-pilot/controller/domain/pilot"
	customlog "github.com/movehub-pilot/controller/pkg/log"
)

// ErrPublisherClosed is returned when publishing after Close.
var ErrPublisherClosed = errors.New("zeromq publisher is closed")

// MsgTypeSnapshot labels drive status messages on the wire.
const MsgTypeSnapshot = "DRIVE_SNAPSHOT"

// envelope is the generic message structure published on the PUB socket.
type envelope struct {
	Type      string      `json:"type"`
	Timestamp float64     `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// ZMQPublisher pushes snapshots on a ZeroMQ PUB socket so external dashboards
// can subscribe without touching the HTTP surface. It is fed through a
// Broadcaster, never directly from the control loop.
type ZMQPublisher struct {
	ctx     *zmq4.Context
	socket  *zmq4.Socket
	topic   string
	logger  customlog.Logger
	running bool
	mu      sync.Mutex
}

// NewZMQPublisher creates a PUB socket bound to the given address.
func NewZMQPublisher(bindAddress, topic string, logger customlog.Logger) (*ZMQPublisher, error) {
	ctx, err := zmq4.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create ZeroMQ context: %w", err)
	}

	socket, err := ctx.NewSocket(zmq4.PUB)
	if err != nil {
		ctx.Term()
		return nil, fmt.Errorf("failed to create PUB socket: %w", err)
	}

	if err := socket.Bind(bindAddress); err != nil {
		socket.Close()
		ctx.Term()
		return nil, fmt.Errorf("failed to bind to %s: %w", bindAddress, err)
	}

	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		ctx.Term()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}

	logger.Infof("ZeroMQ publisher bound on %s (topic %s)", bindAddress, topic)

	return &ZMQPublisher{
		ctx:     ctx,
		socket:  socket,
		topic:   topic,
		logger:  logger,
		running: true,
	}, nil
}

// Publish sends the snapshot as a two-part message: topic frame, then a JSON
// envelope. Errors are logged, not returned; a missing subscriber must never
// disturb driving.
func (p *ZMQPublisher) Publish(s pilot.Snapshot) {
	payload, err := json.Marshal(envelope{
		Type:      MsgTypeSnapshot,
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
		Data:      s,
	})
	if err != nil {
		p.logger.Errorf("Failed to marshal snapshot: %v", err)
		return
	}

	if err := p.publishBytes(payload); err != nil && !errors.Is(err, ErrPublisherClosed) {
		p.logger.Warnf("ZeroMQ publish failed: %v", err)
	}
}

func (p *ZMQPublisher) publishBytes(payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return ErrPublisherClosed
	}

	if _, err := p.socket.Send(p.topic, zmq4.SNDMORE); err != nil {
		return fmt.Errorf("failed to send topic: %w", err)
	}
	if _, err := p.socket.SendBytes(payload, 0); err != nil {
		return fmt.Errorf("failed to send payload: %w", err)
	}
	return nil
}

// Close releases the socket and context.
func (p *ZMQPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.running = false

	if p.socket != nil {
		p.socket.Close()
		p.socket = nil
	}
	if p.ctx != nil {
		p.ctx.Term()
		p.ctx = nil
	}
	p.logger.Infof("ZeroMQ publisher closed")
}
