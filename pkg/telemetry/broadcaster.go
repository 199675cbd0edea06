package telemetry

import (
	"sync"

	"github.com/movehub-pilot/controller/domain/pilot"
	customlog "github.com/movehub-pilot/controller/pkg/log"
)

// Broadcaster decouples the fixed-rate control loop from telemetry sinks of
// unpredictable latency (websocket peers, ZeroMQ, console). Snapshots are
// queued and delivered by a single worker; when the queue is full the
// snapshot is dropped, never blocking the loop.
type Broadcaster struct {
	name      string
	logger    customlog.Logger
	queue     chan pilot.Snapshot
	sinks     []pilot.Sink
	running   bool
	wg        sync.WaitGroup
	mu        sync.Mutex
	queueSize int
	metrics   *BroadcastMetrics
}

// BroadcastMetrics tracks delivery counters for a broadcaster.
type BroadcastMetrics struct {
	PublishedCount int64
	DroppedCount   int64
	mu             sync.Mutex
}

// NewBroadcaster creates a broadcaster fanning out to the given sinks.
func NewBroadcaster(name string, queueSize int, logger customlog.Logger, sinks ...pilot.Sink) *Broadcaster {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Broadcaster{
		name:      name,
		logger:    logger,
		queue:     make(chan pilot.Snapshot, queueSize),
		sinks:     sinks,
		queueSize: queueSize,
		metrics:   &BroadcastMetrics{},
	}
}

// Publish enqueues a snapshot for delivery. Non-blocking: if the queue is
// full the snapshot is discarded and counted.
func (b *Broadcaster) Publish(s pilot.Snapshot) {
	b.mu.Lock()
	running := b.running
	b.mu.Unlock()

	if !running {
		return
	}

	select {
	case b.queue <- s:
	default:
		b.metrics.mu.Lock()
		b.metrics.DroppedCount++
		dropped := b.metrics.DroppedCount
		b.metrics.mu.Unlock()
		// log the first drop and every 100th after; a slow peer can
		// otherwise flood the log at tick rate
		if dropped == 1 || dropped%100 == 0 {
			b.logger.Warnf("%s broadcaster queue full, %d snapshots dropped", b.name, dropped)
		}
	}
}

// Start launches the delivery worker.
func (b *Broadcaster) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return
	}
	b.running = true
	b.logger.Infof("Starting %s broadcaster (queue size %d)", b.name, b.queueSize)

	b.wg.Add(1)
	go b.worker()
}

// Stop drains the queue and waits for the worker to finish.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	b.mu.Unlock()

	close(b.queue)
	b.wg.Wait()

	b.metrics.mu.Lock()
	published, dropped := b.metrics.PublishedCount, b.metrics.DroppedCount
	b.metrics.mu.Unlock()
	b.logger.Infof("%s broadcaster stopped: %d delivered, %d dropped", b.name, published, dropped)
}

// Metrics returns a copy of the current counters.
func (b *Broadcaster) Metrics() (published, dropped int64) {
	b.metrics.mu.Lock()
	defer b.metrics.mu.Unlock()
	return b.metrics.PublishedCount, b.metrics.DroppedCount
}

func (b *Broadcaster) worker() {
	defer b.wg.Done()

	for snap := range b.queue {
		for _, sink := range b.sinks {
			sink.Publish(snap)
		}
		b.metrics.mu.Lock()
		b.metrics.PublishedCount++
		b.metrics.mu.Unlock()
	}
}
