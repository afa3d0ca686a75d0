package identifiers

import (
	"fmt"
	"math"
)

// Definition is the serialized form of an identifier, as stored in the
// database and in bandit seed files.
type Definition struct {
	Type          Type           `json:"type" yaml:"type"`
	Configuration map[string]any `json:"configuration" yaml:"configuration"`
}

// Define returns the Definition that Parse turns back into id.
func Define(id Identifier) Definition {
	return Definition{Type: id.Type(), Configuration: id.Configuration()}
}

// Parse builds an identifier from its Definition. All validation happens
// here so a stored rule that cannot match sensibly never reaches the engine.
func Parse(def Definition) (Identifier, error) {
	cfg := def.Configuration
	switch def.Type {
	case TypeFingerprint:
		fp, err := stringField(cfg, "fingerprint")
		if err != nil {
			return nil, err
		}
		return NewFingerprint(fp)
	case TypeSSID:
		ssids, err := stringsField(cfg, "ssids")
		if err != nil {
			return nil, err
		}
		return NewSSIDs(ssids)
	case TypeSignalStrength:
		from, err := intField(cfg, "from")
		if err != nil {
			return nil, err
		}
		to, err := intField(cfg, "to")
		if err != nil {
			return nil, err
		}
		return NewSignalStrength(from, to)
	case TypePwnagotchiIdentity:
		// Pwnagotchi identity matching needs the decoded vendor advertisement,
		// which dot11 frames do not carry. Refuse the rule rather than
		// register one that never matches.
		return nil, fmt.Errorf("%w: %s", ErrUnimplemented, def.Type)
	}
	return nil, fmt.Errorf("%w: unknown identifier type %q", ErrInvalidConfiguration, def.Type)
}

func stringField(cfg map[string]any, key string) (string, error) {
	v, ok := cfg[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %q", ErrInvalidConfiguration, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q must be a string, got %T", ErrInvalidConfiguration, key, v)
	}
	return s, nil
}

func stringsField(cfg map[string]any, key string) ([]string, error) {
	v, ok := cfg[key]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrInvalidConfiguration, key)
	}
	switch list := v.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, 0, len(list))
		for idx, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %q[%d] must be a string, got %T", ErrInvalidConfiguration, key, idx, item)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %q must be a list of strings, got %T", ErrInvalidConfiguration, key, v)
}

// intField accepts the numeric types produced by encoding/json, yaml.v3 and
// literal Go maps.
func intField(cfg map[string]any, key string) (int, error) {
	v, ok := cfg[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %q", ErrInvalidConfiguration, key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%w: %q must be a whole number, got %v", ErrInvalidConfiguration, key, n)
		}
		return int(n), nil
	}
	return 0, fmt.Errorf("%w: %q must be a number, got %T", ErrInvalidConfiguration, key, v)
}
