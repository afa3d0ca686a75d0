package bandits

import (
	"context"
)

// RunWatchdog retires stale contacts every WatchdogInterval until ctx is
// cancelled.
func (m *Manager) RunWatchdog(ctx context.Context) {
	ticker := m.clock.NewTicker(m.cfg.WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if n := len(m.RetireStaleContacts()); n > 0 {
				m.logf("watchdog retired %d contact(s)", n)
			}
		}
	}
}

// RetireStaleContacts removes every contact whose last hit is older than the
// contact timeout and returns their final snapshots.
func (m *Manager) RetireStaleContacts() []Contact {
	var retired []Contact

	m.mu.Lock()
	now := m.clock.Now()
	for key, c := range m.contacts {
		if !c.IsActive(now, m.cfg.ContactTimeout) {
			retired = append(retired, m.retireLocked(key, c))
		}
	}
	m.mu.Unlock()

	if len(retired) == 0 {
		return nil
	}
	m.handlersMu.RLock()
	handlers := m.retiredHandlers
	m.handlersMu.RUnlock()
	for _, c := range retired {
		for _, h := range handlers {
			h(c)
		}
	}
	return retired
}

// retireLocked must be called with m.mu held.
func (m *Manager) retireLocked(key contactKey, c *contact) Contact {
	delete(m.contacts, key)
	m.contactsRetired.Add(1)
	snap := c.snapshot()
	m.logf("contact %s with bandit %s ended after %d frames", snap.UUID, snap.BanditName, snap.FrameCount)
	return snap
}
