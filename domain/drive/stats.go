package drive

import (
	"sync"
	"time"
)

type timedPower struct {
	at    time.Time
	power float64
}

// PowerStats tracks the average sent power over the whole session and over
// a sliding window. Snapshots and the stats endpoint read it concurrently
// with the control loop writing it.
type PowerStats struct {
	mu     sync.Mutex
	count  int64
	sum    float64
	window []timedPower
	span   time.Duration
	now    func() time.Time
}

// NewPowerStats creates a tracker with the given sliding window span.
func NewPowerStats(span time.Duration) *PowerStats {
	return &PowerStats{span: span, now: time.Now}
}

// Record adds one tick's sent power.
func (p *PowerStats) Record(power int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	p.count++
	p.sum += float64(power)

	p.window = append(p.window, timedPower{at: now, power: float64(power)})
	cutoff := now.Add(-p.span)
	drop := 0
	for drop < len(p.window) && p.window[drop].at.Before(cutoff) {
		drop++
	}
	p.window = p.window[drop:]
}

// Averages returns the full-session average and the windowed average.
func (p *PowerStats) Averages() (full, windowed float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.count > 0 {
		full = p.sum / float64(p.count)
	}
	if len(p.window) > 0 {
		var sum float64
		for _, tp := range p.window {
			sum += tp.power
		}
		windowed = sum / float64(len(p.window))
	}
	return full, windowed
}
