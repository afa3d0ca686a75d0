package identifiers

import (
	"fmt"
	"strings"

	"github.com/nzymedefense/nzyme/internal/dot11"
)

// SSIDs matches beacons and probe responses advertising one of a configured
// set of network names. Comparison is exact and case-sensitive.
type SSIDs struct {
	ssids map[string]struct{}
	order []string
}

// NewSSIDs rejects an empty list and empty names.
func NewSSIDs(ssids []string) (*SSIDs, error) {
	if len(ssids) == 0 {
		return nil, fmt.Errorf("%w: ssid list must not be empty", ErrInvalidConfiguration)
	}
	i := &SSIDs{ssids: make(map[string]struct{}, len(ssids))}
	for _, s := range ssids {
		if s == "" {
			return nil, fmt.Errorf("%w: ssid list contains an empty name", ErrInvalidConfiguration)
		}
		if _, dup := i.ssids[s]; dup {
			continue
		}
		i.ssids[s] = struct{}{}
		i.order = append(i.order, s)
	}
	return i, nil
}

func (i *SSIDs) Type() Type { return TypeSSID }

func (i *SSIDs) Descriptor() string {
	return fmt.Sprintf("ssid IN [%s]", strings.Join(i.order, ", "))
}

func (i *SSIDs) Configuration() map[string]any {
	return map[string]any{"ssids": append([]string(nil), i.order...)}
}

func (i *SSIDs) MatchBeacon(f dot11.Beacon) Match {
	return i.match(f.SSID)
}

func (i *SSIDs) MatchProbeResponse(f dot11.ProbeResponse) Match {
	return i.match(f.SSID)
}

func (i *SSIDs) MatchDeauth(dot11.Deauthentication) Match { return NotApplicable }

func (i *SSIDs) match(ssid string) Match {
	if ssid == "" {
		return False
	}
	_, ok := i.ssids[ssid]
	return matchOf(ok)
}
