package identifiers

import (
	"fmt"

	"github.com/nzymedefense/nzyme/internal/dot11"
)

// Bounds of a usable antenna signal reading, in dBm.
const (
	MaxSignal = 0
	MinSignal = -100
)

// SignalStrength matches any frame whose antenna signal lies within
// [To, From] inclusive. From is the stronger (closer to zero) bound.
type SignalStrength struct {
	from int
	to   int
}

// NewSignalStrength rejects from > 0, to < -100 and from <= to.
func NewSignalStrength(from, to int) (*SignalStrength, error) {
	if from > MaxSignal {
		return nil, fmt.Errorf("%w: signal strength from %d must be <= %d", ErrInvalidConfiguration, from, MaxSignal)
	}
	if to < MinSignal {
		return nil, fmt.Errorf("%w: signal strength to %d must be >= %d", ErrInvalidConfiguration, to, MinSignal)
	}
	if from <= to {
		return nil, fmt.Errorf("%w: signal strength from %d must be greater than to %d", ErrInvalidConfiguration, from, to)
	}
	return &SignalStrength{from: from, to: to}, nil
}

func (i *SignalStrength) Type() Type { return TypeSignalStrength }

func (i *SignalStrength) From() int { return i.from }
func (i *SignalStrength) To() int   { return i.to }

func (i *SignalStrength) Descriptor() string {
	return fmt.Sprintf("signal_strength >= %d AND signal_strength <= %d", i.to, i.from)
}

func (i *SignalStrength) Configuration() map[string]any {
	return map[string]any{"from": i.from, "to": i.to}
}

func (i *SignalStrength) MatchBeacon(f dot11.Beacon) Match { return i.match(f.Meta) }

func (i *SignalStrength) MatchProbeResponse(f dot11.ProbeResponse) Match { return i.match(f.Meta) }

func (i *SignalStrength) MatchDeauth(f dot11.Deauthentication) Match { return i.match(f.Meta) }

// A frame without a signal reading never matches.
func (i *SignalStrength) match(m dot11.Meta) Match {
	if !m.HasSignal {
		return False
	}
	return matchOf(m.AntennaSignal >= i.to && m.AntennaSignal <= i.from)
}
