package bandits

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nzymedefense/nzyme/internal/timeutil"
)

// ChannelTraceSink receives the channel of every hit on the tracked bandit.
// The channel designator implements it.
type ChannelTraceSink interface {
	OnBanditTrace(channel int)
}

// TrackState is the in-flight tracking state of the current target.
type TrackState struct {
	Bandit     uuid.UUID
	Since      time.Time
	LastSeen   time.Time // zero until the first trace
	FrameCount int64
	LastSignal int
	Channels   []int // distinct channels the target was seen on, ascending
}

// TargetTracker follows a single bandit on a tracker device. It consumes
// BanditTraceHandler callbacks and ignores every bandit except the current
// target.
type TargetTracker struct {
	clock timeutil.Clock
	sink  ChannelTraceSink

	mu       sync.Mutex
	target   uuid.UUID
	tracking bool
	state    TrackState
	channels map[int]struct{}
}

// NewTargetTracker returns an idle tracker. sink may be nil.
func NewTargetTracker(clock timeutil.Clock, sink ChannelTraceSink) *TargetTracker {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &TargetTracker{clock: clock, sink: sink}
}

// SetCurrentlyTrackedBandit starts tracking id. It is a no-op when id is
// already the target; switching targets discards the previous state.
func (t *TargetTracker) SetCurrentlyTrackedBandit(id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tracking && t.target == id {
		return
	}
	t.target = id
	t.tracking = true
	t.resetLocked()
}

// CancelTracking clears the target and any in-flight track state.
func (t *TargetTracker) CancelTracking() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.target = uuid.Nil
	t.tracking = false
	t.state = TrackState{}
	t.channels = nil
}

// CurrentlyTrackedBandit returns the target, if any.
func (t *TargetTracker) CurrentlyTrackedBandit() (uuid.UUID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.target, t.tracking
}

// State returns a copy of the in-flight state. ok is false when idle.
func (t *TargetTracker) State() (TrackState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.tracking {
		return TrackState{}, false
	}
	s := t.state
	s.Channels = append([]int(nil), t.state.Channels...)
	return s, true
}

// HandleTrace is a BanditTraceHandler.
func (t *TargetTracker) HandleTrace(b *Bandit, signal int, channel int) {
	t.mu.Lock()
	if !t.tracking || b.UUID != t.target {
		t.mu.Unlock()
		return
	}
	t.state.LastSeen = t.clock.Now()
	t.state.FrameCount++
	t.state.LastSignal = signal
	if _, seen := t.channels[channel]; !seen {
		t.channels[channel] = struct{}{}
		t.state.Channels = append(t.state.Channels, channel)
		sort.Ints(t.state.Channels)
	}
	sink := t.sink
	t.mu.Unlock()

	if sink != nil {
		sink.OnBanditTrace(channel)
	}
}

func (t *TargetTracker) resetLocked() {
	t.state = TrackState{Bandit: t.target, Since: t.clock.Now()}
	t.channels = make(map[int]struct{})
}
