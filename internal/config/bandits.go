package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/bandits.defaults.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// BanditsConfig is the root configuration of the bandit engine. Every field
// is optional; the Get* accessors supply defaults for omitted values.
type BanditsConfig struct {
	// Contact manager
	NodeName          *string `json:"node_name,omitempty" yaml:"node_name,omitempty"`
	Role              *string `json:"role,omitempty" yaml:"role,omitempty"`                       // NODE or TRACKER
	ContactTimeout    *string `json:"contact_timeout,omitempty" yaml:"contact_timeout,omitempty"` // duration string like "5m"
	WatchdogInterval  *string `json:"watchdog_interval,omitempty" yaml:"watchdog_interval,omitempty"`
	MaxRollingEntries *int    `json:"max_rolling_entries,omitempty" yaml:"max_rolling_entries,omitempty"`

	// Channel designator
	DesignatorInterval *string `json:"designator_interval,omitempty" yaml:"designator_interval,omitempty"`
	Channels           []int   `json:"channels,omitempty" yaml:"channels,omitempty"`

	// Track detector
	TrackFrameThreshold        *int64  `json:"track_frame_threshold,omitempty" yaml:"track_frame_threshold,omitempty"`
	TrackGapThreshold          *int    `json:"track_gap_threshold,omitempty" yaml:"track_gap_threshold,omitempty"`
	TrackCenterlineJitter      *int    `json:"track_centerline_jitter,omitempty" yaml:"track_centerline_jitter,omitempty"`
	TrackHistogramBucketLength *string `json:"track_histogram_bucket_length,omitempty" yaml:"track_histogram_bucket_length,omitempty"`

	// Notifications
	MQTTBroker      *string `json:"mqtt_broker,omitempty" yaml:"mqtt_broker,omitempty"` // e.g. "tcp://localhost:1883"; empty disables
	MQTTTopicPrefix *string `json:"mqtt_topic_prefix,omitempty" yaml:"mqtt_topic_prefix,omitempty"`
	NATSURL         *string `json:"nats_url,omitempty" yaml:"nats_url,omitempty"` // e.g. "nats://localhost:4222"; empty disables

	// Bandits seeded into an empty database on first start.
	Bandits []BanditSeed `json:"bandits,omitempty" yaml:"bandits,omitempty"`
}

// BanditSeed describes a bandit in a configuration file.
type BanditSeed struct {
	UUID        string           `json:"uuid,omitempty" yaml:"uuid,omitempty"`
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	ReadOnly    bool             `json:"read_only,omitempty" yaml:"read_only,omitempty"`
	Identifiers []IdentifierSeed `json:"identifiers" yaml:"identifiers"`
}

// IdentifierSeed is the type/configuration pair of one identifier.
type IdentifierSeed struct {
	Type          string         `json:"type" yaml:"type"`
	Configuration map[string]any `json:"configuration" yaml:"configuration"`
}

// EmptyBanditsConfig returns a BanditsConfig with all fields unset.
func EmptyBanditsConfig() *BanditsConfig {
	return &BanditsConfig{}
}

// LoadBanditsConfig loads a BanditsConfig from a .json, .yaml or .yml file.
// Omitted fields fall back to their defaults.
func LoadBanditsConfig(path string) (*BanditsConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyBanditsConfig()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", ext, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching parent directories
// so tests can call it from any package. Panics if the file is missing.
func MustLoadDefaultConfig() *BanditsConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadBanditsConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configured values are usable.
func (c *BanditsConfig) Validate() error {
	if c.Role != nil && *c.Role != "NODE" && *c.Role != "TRACKER" {
		return fmt.Errorf("role must be NODE or TRACKER, got %q", *c.Role)
	}

	durations := []struct {
		name  string
		value *string
	}{
		{"contact_timeout", c.ContactTimeout},
		{"watchdog_interval", c.WatchdogInterval},
		{"designator_interval", c.DesignatorInterval},
		{"track_histogram_bucket_length", c.TrackHistogramBucketLength},
	}
	for _, d := range durations {
		if d.value == nil || *d.value == "" {
			continue
		}
		v, err := time.ParseDuration(*d.value)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.value, err)
		}
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, v)
		}
	}

	if c.MaxRollingEntries != nil && *c.MaxRollingEntries < 1 {
		return fmt.Errorf("max_rolling_entries must be at least 1, got %d", *c.MaxRollingEntries)
	}

	seen := make(map[int]bool, len(c.Channels))
	for _, ch := range c.Channels {
		if ch < 1 || ch > 233 {
			return fmt.Errorf("channel %d out of range", ch)
		}
		if seen[ch] {
			return fmt.Errorf("channel %d listed twice", ch)
		}
		seen[ch] = true
	}

	if c.TrackFrameThreshold != nil && *c.TrackFrameThreshold < 0 {
		return fmt.Errorf("track_frame_threshold must be non-negative, got %d", *c.TrackFrameThreshold)
	}
	if c.TrackGapThreshold != nil && *c.TrackGapThreshold < 1 {
		return fmt.Errorf("track_gap_threshold must be at least 1, got %d", *c.TrackGapThreshold)
	}
	if c.TrackCenterlineJitter != nil && *c.TrackCenterlineJitter < 0 {
		return fmt.Errorf("track_centerline_jitter must be non-negative, got %d", *c.TrackCenterlineJitter)
	}

	for i, b := range c.Bandits {
		if b.Name == "" {
			return fmt.Errorf("bandits[%d]: name is required", i)
		}
		if len(b.Identifiers) == 0 {
			return fmt.Errorf("bandits[%d] %q: at least one identifier is required", i, b.Name)
		}
	}
	return nil
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def // default on parse error
	}
	return d
}

// GetNodeName returns node_name or the default.
func (c *BanditsConfig) GetNodeName() string {
	if c.NodeName == nil || *c.NodeName == "" {
		return "nzyme-node"
	}
	return *c.NodeName
}

// GetRole returns role or the default.
func (c *BanditsConfig) GetRole() string {
	if c.Role == nil {
		return "NODE"
	}
	return *c.Role
}

// GetContactTimeout returns contact_timeout or the default.
func (c *BanditsConfig) GetContactTimeout() time.Duration {
	return durationOr(c.ContactTimeout, 5*time.Minute)
}

// GetWatchdogInterval returns watchdog_interval or the default.
func (c *BanditsConfig) GetWatchdogInterval() time.Duration {
	return durationOr(c.WatchdogInterval, 10*time.Second)
}

// GetMaxRollingEntries returns max_rolling_entries or the default.
func (c *BanditsConfig) GetMaxRollingEntries() int {
	if c.MaxRollingEntries == nil {
		return 32
	}
	return *c.MaxRollingEntries
}

// GetDesignatorInterval returns designator_interval or the default.
func (c *BanditsConfig) GetDesignatorInterval() time.Duration {
	return durationOr(c.DesignatorInterval, 30*time.Second)
}

// GetChannels returns the configured hop channels or the 2.4GHz default.
func (c *BanditsConfig) GetChannels() []int {
	if len(c.Channels) == 0 {
		return []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	}
	return append([]int(nil), c.Channels...)
}

// GetTrackFrameThreshold returns track_frame_threshold or the default.
func (c *BanditsConfig) GetTrackFrameThreshold() int64 {
	if c.TrackFrameThreshold == nil {
		return 20
	}
	return *c.TrackFrameThreshold
}

// GetTrackGapThreshold returns track_gap_threshold or the default.
func (c *BanditsConfig) GetTrackGapThreshold() int {
	if c.TrackGapThreshold == nil {
		return 8
	}
	return *c.TrackGapThreshold
}

// GetTrackCenterlineJitter returns track_centerline_jitter or the default.
func (c *BanditsConfig) GetTrackCenterlineJitter() int {
	if c.TrackCenterlineJitter == nil {
		return 8
	}
	return *c.TrackCenterlineJitter
}

// GetTrackHistogramBucketLength returns track_histogram_bucket_length or the default.
func (c *BanditsConfig) GetTrackHistogramBucketLength() time.Duration {
	return durationOr(c.TrackHistogramBucketLength, time.Minute)
}

// GetMQTTBroker returns mqtt_broker; empty means notifications are disabled.
func (c *BanditsConfig) GetMQTTBroker() string {
	if c.MQTTBroker == nil {
		return ""
	}
	return *c.MQTTBroker
}

// GetMQTTTopicPrefix returns mqtt_topic_prefix or the default.
func (c *BanditsConfig) GetMQTTTopicPrefix() string {
	if c.MQTTTopicPrefix == nil || *c.MQTTTopicPrefix == "" {
		return "nzyme/bandits"
	}
	return *c.MQTTTopicPrefix
}

// GetNATSURL returns nats_url; empty means NATS publishing is disabled.
func (c *BanditsConfig) GetNATSURL() string {
	if c.NATSURL == nil {
		return ""
	}
	return *c.NATSURL
}
