// Package identifiers implements the rules that decide whether a captured
// frame belongs to a bandit. Identifiers are immutable after construction and
// safe for concurrent use.
package identifiers

import (
	"errors"

	"github.com/nzymedefense/nzyme/internal/dot11"
)

// Type discriminates identifier variants. The values are persisted.
type Type string

const (
	TypeFingerprint        Type = "FINGERPRINT"
	TypeSSID               Type = "SSID"
	TypeSignalStrength     Type = "SIGNAL_STRENGTH"
	TypePwnagotchiIdentity Type = "PWNAGOTCHI_IDENTITY"
)

// Match is the three-valued result of evaluating an identifier.
type Match int

const (
	// NotApplicable means the identifier has no opinion on this frame kind.
	NotApplicable Match = iota
	False
	True
)

func (m Match) String() string {
	switch m {
	case False:
		return "false"
	case True:
		return "true"
	}
	return "not_applicable"
}

var (
	// ErrInvalidConfiguration wraps every construction-time validation failure.
	ErrInvalidConfiguration = errors.New("invalid identifier configuration")
	// ErrUnimplemented is returned for identifier types that exist in stored
	// configuration but have no working matcher.
	ErrUnimplemented = errors.New("identifier type not implemented")
)

// Identifier is a single bandit matching rule. There is one Match method per
// frame kind so a rule can report NotApplicable for kinds it cannot judge.
type Identifier interface {
	Type() Type
	Descriptor() string
	Configuration() map[string]any

	MatchBeacon(f dot11.Beacon) Match
	MatchProbeResponse(f dot11.ProbeResponse) Match
	MatchDeauth(f dot11.Deauthentication) Match
}

// Evaluate dispatches f to the Match method for its kind.
func Evaluate(id Identifier, f dot11.Frame) Match {
	switch fr := f.(type) {
	case dot11.Beacon:
		return id.MatchBeacon(fr)
	case dot11.ProbeResponse:
		return id.MatchProbeResponse(fr)
	case dot11.Deauthentication:
		return id.MatchDeauth(fr)
	}
	return NotApplicable
}

func matchOf(b bool) Match {
	if b {
		return True
	}
	return False
}
