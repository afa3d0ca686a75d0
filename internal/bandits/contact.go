package bandits

import (
	"time"

	"github.com/google/uuid"

	"github.com/nzymedefense/nzyme/internal/dot11"
)

// Role of the nzyme instance that observed a contact.
type Role string

const (
	RoleNode    Role = "NODE"
	RoleTracker Role = "TRACKER"
)

// Source identifies where a contact was observed.
type Source struct {
	Node string
	Role Role
	Name string // capture probe
}

// Contact is an observation session of one bandit from one source. Values
// handed out by the Manager are snapshots.
type Contact struct {
	UUID       uuid.UUID
	BanditUUID uuid.UUID
	BanditName string
	Source     Source
	FirstSeen  time.Time
	LastSeen   time.Time
	FrameCount int64
	LastSignal int
	SSIDs      []string
	BSSIDs     []string
}

// IsActive reports whether the contact was hit within timeout of now.
func (c Contact) IsActive(now time.Time, timeout time.Duration) bool {
	return now.Sub(c.LastSeen) <= timeout
}

type contactKey struct {
	bandit uuid.UUID
	source Source
}

// contact is the live record. It is only touched under Manager.mu.
type contact struct {
	Contact
	maxRolling int
}

func newContact(b *Bandit, src Source, now time.Time, maxRolling int) *contact {
	return &contact{
		Contact: Contact{
			UUID:       uuid.New(),
			BanditUUID: b.UUID,
			BanditName: b.Name,
			Source:     src,
			FirstSeen:  now,
			LastSeen:   now,
		},
		maxRolling: maxRolling,
	}
}

func (c *contact) record(f dot11.Frame, now time.Time) {
	c.LastSeen = now
	c.FrameCount++
	if meta := f.Metadata(); meta.HasSignal {
		c.LastSignal = meta.AntennaSignal
	}
	if ssid, ok := dot11.SSIDOf(f); ok {
		c.SSIDs = appendRolling(c.SSIDs, ssid, c.maxRolling)
	}
	if bssid := f.Transmitter(); bssid != "" {
		c.BSSIDs = appendRolling(c.BSSIDs, bssid, c.maxRolling)
	}
}

func (c *contact) snapshot() Contact {
	s := c.Contact
	s.SSIDs = append([]string(nil), c.SSIDs...)
	s.BSSIDs = append([]string(nil), c.BSSIDs...)
	return s
}

// appendRolling adds v if absent, evicting the oldest entry beyond limit.
func appendRolling(list []string, v string, limit int) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	list = append(list, v)
	if limit > 0 && len(list) > limit {
		list = append(list[:0:0], list[len(list)-limit:]...)
	}
	return list
}
