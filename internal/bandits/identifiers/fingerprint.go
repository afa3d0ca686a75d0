package identifiers

import (
	"fmt"
	"strings"

	"github.com/nzymedefense/nzyme/internal/dot11"
)

// Fingerprint matches beacons and probe responses whose tagged-parameter
// fingerprint equals a known value.
type Fingerprint struct {
	fingerprint string
}

// NewFingerprint validates fp and returns the identifier.
func NewFingerprint(fp string) (*Fingerprint, error) {
	fp = strings.TrimSpace(fp)
	if fp == "" {
		return nil, fmt.Errorf("%w: fingerprint must not be empty", ErrInvalidConfiguration)
	}
	return &Fingerprint{fingerprint: fp}, nil
}

func (i *Fingerprint) Type() Type { return TypeFingerprint }

func (i *Fingerprint) Descriptor() string {
	return fmt.Sprintf("fingerprint == %q", i.fingerprint)
}

func (i *Fingerprint) Configuration() map[string]any {
	return map[string]any{"fingerprint": i.fingerprint}
}

func (i *Fingerprint) MatchBeacon(f dot11.Beacon) Match {
	return matchOf(f.Fingerprint != "" && f.Fingerprint == i.fingerprint)
}

func (i *Fingerprint) MatchProbeResponse(f dot11.ProbeResponse) Match {
	return matchOf(f.Fingerprint != "" && f.Fingerprint == i.fingerprint)
}

func (i *Fingerprint) MatchDeauth(dot11.Deauthentication) Match { return NotApplicable }
