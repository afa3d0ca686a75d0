package bandits

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nzymedefense/nzyme/internal/config"
	"github.com/nzymedefense/nzyme/internal/dot11"
	"github.com/nzymedefense/nzyme/internal/monitoring"
	"github.com/nzymedefense/nzyme/internal/timeutil"
)

// InitialTrackHandler is called once when a contact opens. The snapshot has
// FrameCount 0; the opening frame is recorded right after. Handlers receive a
// copy of the bandit, never the registered value.
type InitialTrackHandler func(b *Bandit, c Contact)

// BanditTraceHandler is called for every frame that hits a bandit.
type BanditTraceHandler func(b *Bandit, signal int, channel int)

// ContactRetiredHandler is called when the watchdog retires a contact.
type ContactRetiredHandler func(c Contact)

// ManagerConfig holds the contact lifecycle parameters.
type ManagerConfig struct {
	Node              string
	Role              Role
	ContactTimeout    time.Duration // contacts without hits for longer are retired
	WatchdogInterval  time.Duration // how often the watchdog looks for stale contacts
	MaxRollingEntries int           // cap on remembered SSIDs/BSSIDs per contact
}

// DefaultManagerConfig returns the built-in defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfigFromSettings(config.EmptyBanditsConfig())
}

// ManagerConfigFromSettings builds a ManagerConfig from loaded settings.
func ManagerConfigFromSettings(cfg *config.BanditsConfig) ManagerConfig {
	return ManagerConfig{
		Node:              cfg.GetNodeName(),
		Role:              Role(cfg.GetRole()),
		ContactTimeout:    cfg.GetContactTimeout(),
		WatchdogInterval:  cfg.GetWatchdogInterval(),
		MaxRollingEntries: cfg.GetMaxRollingEntries(),
	}
}

// Stats are cumulative engine counters.
type Stats struct {
	FramesEvaluated int64
	Hits            int64
	ContactsOpened  int64
	ContactsRetired int64
}

// Manager evaluates frames against registered bandits and maintains contacts.
// Identify is safe to call from any number of capture goroutines.
type Manager struct {
	cfg   ManagerConfig
	clock timeutil.Clock
	logf  func(format string, v ...interface{})

	registryMu sync.RWMutex
	bandits    map[uuid.UUID]*Bandit

	mu       sync.Mutex
	contacts map[contactKey]*contact

	handlersMu      sync.RWMutex
	initialHandlers []InitialTrackHandler
	traceHandlers   []BanditTraceHandler
	retiredHandlers []ContactRetiredHandler

	framesEvaluated atomic.Int64
	hits            atomic.Int64
	contactsOpened  atomic.Int64
	contactsRetired atomic.Int64
}

// NewManager creates a Manager. A nil clock uses the wall clock.
func NewManager(cfg ManagerConfig, clock timeutil.Clock) *Manager {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Manager{
		cfg:      cfg,
		clock:    clock,
		logf:     monitoring.Prefixed("bandits"),
		bandits:  make(map[uuid.UUID]*Bandit),
		contacts: make(map[contactKey]*contact),
	}
}

// Config returns the manager configuration.
func (m *Manager) Config() ManagerConfig { return m.cfg }

// OnInitialContact registers a handler for newly opened contacts. Handlers
// should be registered before frames are fed in.
func (m *Manager) OnInitialContact(h InitialTrackHandler) {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()
	m.initialHandlers = append(m.initialHandlers, h)
}

// OnBanditTrace registers a handler called for every hit.
func (m *Manager) OnBanditTrace(h BanditTraceHandler) {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()
	m.traceHandlers = append(m.traceHandlers, h)
}

// OnContactRetired registers a handler called when a contact times out.
func (m *Manager) OnContactRetired(h ContactRetiredHandler) {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()
	m.retiredHandlers = append(m.retiredHandlers, h)
}

// RegisterBandit inserts b keyed by UUID. Registering a UUID that is already
// present leaves the registry untouched and returns false.
func (m *Manager) RegisterBandit(b *Bandit) bool {
	m.registryMu.Lock()
	defer m.registryMu.Unlock()
	if _, ok := m.bandits[b.UUID]; ok {
		return false
	}
	m.bandits[b.UUID] = b.clone()
	m.logf("registered bandit %s: %s", b, b.Descriptor())
	return true
}

// UpdateBandit replaces an already registered bandit, typically after its
// identifiers were edited. Open contacts are kept.
func (m *Manager) UpdateBandit(b *Bandit) error {
	m.registryMu.Lock()
	defer m.registryMu.Unlock()
	if _, ok := m.bandits[b.UUID]; !ok {
		return fmt.Errorf("bandit %s is not registered", b.UUID)
	}
	m.bandits[b.UUID] = b.clone()
	return nil
}

// RemoveBandit deletes the registry entry and reports whether it existed.
// Open contacts of the bandit are retained until the watchdog retires them.
func (m *Manager) RemoveBandit(id uuid.UUID) bool {
	m.registryMu.Lock()
	defer m.registryMu.Unlock()
	if _, ok := m.bandits[id]; !ok {
		return false
	}
	delete(m.bandits, id)
	m.logf("removed bandit %s", id)
	return true
}

// Bandit returns a copy of the registered bandit.
func (m *Manager) Bandit(id uuid.UUID) (*Bandit, bool) {
	m.registryMu.RLock()
	defer m.registryMu.RUnlock()
	b, ok := m.bandits[id]
	if !ok {
		return nil, false
	}
	return b.clone(), true
}

// Bandits returns copies of all registered bandits ordered by name.
func (m *Manager) Bandits() []*Bandit {
	m.registryMu.RLock()
	out := make([]*Bandit, 0, len(m.bandits))
	for _, b := range m.bandits {
		out = append(out, b.clone())
	}
	m.registryMu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].UUID.String() < out[j].UUID.String()
	})
	return out
}

// LoadBandits registers every bandit stored in repo and returns how many
// were newly registered.
func (m *Manager) LoadBandits(ctx context.Context, repo Repository) (int, error) {
	stored, err := repo.ListBandits(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list bandits: %w", err)
	}
	n := 0
	for _, b := range stored {
		if m.RegisterBandit(b) {
			n++
		}
	}
	return n, nil
}

func (m *Manager) registered() []*Bandit {
	m.registryMu.RLock()
	defer m.registryMu.RUnlock()
	out := make([]*Bandit, 0, len(m.bandits))
	for _, b := range m.bandits {
		out = append(out, b)
	}
	return out
}

// Identify evaluates f against every registered bandit. It never fails;
// frames that hit nothing are ignored.
func (m *Manager) Identify(f dot11.Frame) {
	m.framesEvaluated.Add(1)
	for _, b := range m.registered() {
		if b.Matches(f) {
			m.recordHit(b, f)
		}
	}
}

func (m *Manager) recordHit(b *Bandit, f dot11.Frame) {
	m.hits.Add(1)
	meta := f.Metadata()
	key := contactKey{
		bandit: b.UUID,
		source: Source{Node: m.cfg.Node, Role: m.cfg.Role, Name: meta.Probe},
	}

	m.mu.Lock()
	now := m.clock.Now()
	c, ok := m.contacts[key]
	var retired *Contact
	if ok && !c.IsActive(now, m.cfg.ContactTimeout) {
		// Expired but not yet collected by the watchdog.
		snap := m.retireLocked(key, c)
		retired = &snap
		ok = false
	}
	var opened *Contact
	if !ok {
		c = newContact(b, key.source, now, m.cfg.MaxRollingEntries)
		m.contacts[key] = c
		snap := c.snapshot()
		opened = &snap
	}
	c.record(f, now)
	m.mu.Unlock()

	m.handlersMu.RLock()
	initial, traces, retiredHandlers := m.initialHandlers, m.traceHandlers, m.retiredHandlers
	m.handlersMu.RUnlock()

	if retired != nil {
		for _, h := range retiredHandlers {
			h(*retired)
		}
	}

	// Handlers get their own copy; b is shared with the registry.
	view := b.clone()

	if opened != nil {
		m.contactsOpened.Add(1)
		m.logf("new contact %s with bandit %s on %s", opened.UUID, view, key.source.Name)
		for _, h := range initial {
			h(view, *opened)
		}
	}
	for _, h := range traces {
		h(view, meta.AntennaSignal, meta.Channel)
	}
}

// BanditHasActiveContactOnSource reports whether an unexpired contact exists
// for the bandit on the named source.
func (m *Manager) BanditHasActiveContactOnSource(banditID uuid.UUID, source Source) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[contactKey{bandit: banditID, source: source}]
	return ok && c.IsActive(m.clock.Now(), m.cfg.ContactTimeout)
}

// SourceFor returns the Source this manager assigns to frames from probe.
func (m *Manager) SourceFor(probe string) Source {
	return Source{Node: m.cfg.Node, Role: m.cfg.Role, Name: probe}
}

// Contacts returns snapshots of all open contacts ordered by first sighting.
func (m *Manager) Contacts() []Contact {
	m.mu.Lock()
	out := make([]Contact, 0, len(m.contacts))
	for _, c := range m.contacts {
		out = append(out, c.snapshot())
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].FirstSeen.Equal(out[j].FirstSeen) {
			return out[i].FirstSeen.Before(out[j].FirstSeen)
		}
		return out[i].UUID.String() < out[j].UUID.String()
	})
	return out
}

// Stats returns the cumulative counters.
func (m *Manager) Stats() Stats {
	return Stats{
		FramesEvaluated: m.framesEvaluated.Load(),
		Hits:            m.hits.Load(),
		ContactsOpened:  m.contactsOpened.Load(),
		ContactsRetired: m.contactsRetired.Load(),
	}
}
