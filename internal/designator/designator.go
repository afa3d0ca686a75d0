// Package designator narrows the channel-hopping set of a capture probe
// toward the channels a bandit was recently seen on.
//
// Every cycle the designator looks at the channels reported through
// OnBanditTrace. With no contact in the cycle the full configured channel
// list is restored (UNLOCKED). With a contact the hopper is locked onto the
// channels seen (LOCKED), except on every SweepBreak-th cycle, when the full
// list is swept once so the bandit can be found again if it moved (SWEEPING).
package designator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nzymedefense/nzyme/internal/config"
	"github.com/nzymedefense/nzyme/internal/monitoring"
	"github.com/nzymedefense/nzyme/internal/timeutil"
)

// SweepBreak is the cycle rotation length; the last cycle of each rotation
// sweeps all channels when a contact is present.
const SweepBreak = 5

// Status is the designator state.
type Status string

const (
	StatusUnlocked Status = "UNLOCKED"
	StatusLocked   Status = "LOCKED"
	StatusSweeping Status = "SWEEPING"
)

// Hopper is the channel-hopping actuator of a capture probe.
type Hopper interface {
	SetChannels(channels []int) error
}

// Config holds the designator parameters.
type Config struct {
	Channels []int         // statically configured hop channels
	Interval time.Duration // cycle length
}

// ConfigFromSettings builds a Config from loaded settings.
func ConfigFromSettings(cfg *config.BanditsConfig) Config {
	return Config{
		Channels: cfg.GetChannels(),
		Interval: cfg.GetDesignatorInterval(),
	}
}

// Designator is a clocked controller fed by bandit trace events.
type Designator struct {
	hopper   Hopper
	clock    timeutil.Clock
	interval time.Duration
	logf     func(format string, v ...interface{})

	configured []int
	allowed    map[int]struct{}

	events chan int
	done   chan struct{}
	once   sync.Once

	// Owned by the control loop.
	loop          int
	contact       bool
	cycleChannels map[int]struct{}

	mu     sync.RWMutex
	status Status
	active []int
}

// New returns an UNLOCKED designator. A nil clock uses the wall clock.
func New(cfg Config, hopper Hopper, clock timeutil.Clock) *Designator {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	configured := append([]int(nil), cfg.Channels...)
	allowed := make(map[int]struct{}, len(configured))
	for _, ch := range configured {
		allowed[ch] = struct{}{}
	}
	return &Designator{
		hopper:        hopper,
		clock:         clock,
		interval:      cfg.Interval,
		logf:          monitoring.Prefixed("designator"),
		configured:    configured,
		allowed:       allowed,
		events:        make(chan int, 1024),
		done:          make(chan struct{}),
		cycleChannels: make(map[int]struct{}),
		status:        StatusUnlocked,
		active:        append([]int(nil), configured...),
	}
}

// OnBanditTrace reports that a bandit was seen on channel. It may be called
// from any goroutine. It blocks only when the event queue is full and the
// control loop is still running.
func (d *Designator) OnBanditTrace(channel int) {
	select {
	case d.events <- channel:
	case <-d.done:
	}
}

// Run drives the designator until ctx is cancelled.
func (d *Designator) Run(ctx context.Context) {
	defer d.once.Do(func() { close(d.done) })

	ticker := d.clock.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ch := <-d.events:
			d.observe(ch)
		case <-ticker.C():
			d.tick()
		}
	}
}

// Status returns the current state.
func (d *Designator) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

// ActiveChannels returns the channel set last sent to the hopper.
func (d *Designator) ActiveChannels() []int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]int(nil), d.active...)
}

func (d *Designator) observe(channel int) {
	d.contact = true
	d.cycleChannels[channel] = struct{}{}
}

// drain moves every queued trace into the current cycle so a tick never
// misses events reported before it fired.
func (d *Designator) drain() {
	for {
		select {
		case ch := <-d.events:
			d.observe(ch)
		default:
			return
		}
	}
}

func (d *Designator) tick() {
	d.drain()

	var (
		status   Status
		channels []int
	)
	locked := d.intersect()
	switch {
	case d.contact && d.loop%SweepBreak == SweepBreak-1:
		status, channels = StatusSweeping, d.configured
	case d.contact && len(locked) > 0:
		status, channels = StatusLocked, locked
	default:
		// Also taken when every traced channel is outside the configured
		// list: locking onto nothing would stop the hopper.
		status, channels = StatusUnlocked, d.configured
	}

	d.cycleChannels = make(map[int]struct{})
	d.contact = false
	d.loop++

	channels = append([]int(nil), channels...)
	d.mu.Lock()
	changed := d.status != status
	d.status = status
	d.active = channels
	d.mu.Unlock()

	if changed {
		d.logf("status %s, channels %v", status, channels)
	}
	if err := d.hopper.SetChannels(channels); err != nil {
		d.logf("failed to set hopper channels %v: %v", channels, err)
	}
}

// intersect returns the cycle's channels that are also configured, in
// ascending order.
func (d *Designator) intersect() []int {
	out := make([]int, 0, len(d.cycleChannels))
	for ch := range d.cycleChannels {
		if _, ok := d.allowed[ch]; ok {
			out = append(out, ch)
		}
	}
	sort.Ints(out)
	return out
}
