package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }
func ptrInt64(v int64) *int64    { return &v }

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := EmptyBanditsConfig()

	assert.Equal(t, "nzyme-node", cfg.GetNodeName())
	assert.Equal(t, "NODE", cfg.GetRole())
	assert.Equal(t, 5*time.Minute, cfg.GetContactTimeout())
	assert.Equal(t, 10*time.Second, cfg.GetWatchdogInterval())
	assert.Equal(t, 30*time.Second, cfg.GetDesignatorInterval())
	assert.Equal(t, 32, cfg.GetMaxRollingEntries())
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, cfg.GetChannels())
	assert.Equal(t, int64(20), cfg.GetTrackFrameThreshold())
	assert.Equal(t, 8, cfg.GetTrackGapThreshold())
	assert.Equal(t, 8, cfg.GetTrackCenterlineJitter())
	assert.Equal(t, time.Minute, cfg.GetTrackHistogramBucketLength())
	assert.Equal(t, "", cfg.GetMQTTBroker())
	assert.Equal(t, "nzyme/bandits", cfg.GetMQTTTopicPrefix())
	assert.Equal(t, "", cfg.GetNATSURL())
	assert.NoError(t, cfg.Validate())
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	require.NotNil(t, cfg.ContactTimeout)
	assert.Equal(t, 5*time.Minute, cfg.GetContactTimeout())
	assert.Equal(t, 8, cfg.GetTrackGapThreshold())
}

func TestLoadBanditsConfig_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bandits.json")
	data := `{
  "node_name": "tracker-1",
  "role": "TRACKER",
  "contact_timeout": "90s",
  "channels": [1, 6, 11],
  "bandits": [
    {
      "name": "WiFi Pineapple",
      "identifiers": [
        {"type": "SSID", "configuration": {"ssids": ["Free WiFi"]}},
        {"type": "SIGNAL_STRENGTH", "configuration": {"from": -20, "to": -60}}
      ]
    }
  ]
}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadBanditsConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "tracker-1", cfg.GetNodeName())
	assert.Equal(t, "TRACKER", cfg.GetRole())
	assert.Equal(t, 90*time.Second, cfg.GetContactTimeout())
	assert.Equal(t, []int{1, 6, 11}, cfg.GetChannels())
	require.Len(t, cfg.Bandits, 1)
	require.Len(t, cfg.Bandits[0].Identifiers, 2)
	assert.Equal(t, float64(-20), cfg.Bandits[0].Identifiers[1].Configuration["from"])
}

func TestLoadBanditsConfig_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bandits.yaml")
	data := `node_name: yaml-node
watchdog_interval: 5s
channels: [36, 40, 44]
nats_url: nats://broker:4222
bandits:
  - name: Deauther
    identifiers:
      - type: SIGNAL_STRENGTH
        configuration:
          from: -10
          to: -80
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadBanditsConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "yaml-node", cfg.GetNodeName())
	assert.Equal(t, 5*time.Second, cfg.GetWatchdogInterval())
	assert.Equal(t, []int{36, 40, 44}, cfg.GetChannels())
	assert.Equal(t, "nats://broker:4222", cfg.GetNATSURL())
	require.Len(t, cfg.Bandits, 1)
	assert.Equal(t, -10, cfg.Bandits[0].Identifiers[0].Configuration["from"])
}

func TestLoadBanditsConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadBanditsConfig(filepath.Join(dir, "missing.json"))
	assert.Error(t, err, "missing file")

	txt := filepath.Join(dir, "bandits.txt")
	require.NoError(t, os.WriteFile(txt, []byte("{}"), 0644))
	_, err = LoadBanditsConfig(txt)
	assert.Error(t, err, "wrong extension")

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{"contact_timeout": `), 0644))
	_, err = LoadBanditsConfig(broken)
	assert.Error(t, err, "malformed JSON")

	invalid := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"contact_timeout": "soon"}`), 0644))
	_, err = LoadBanditsConfig(invalid)
	assert.Error(t, err, "invalid duration")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *BanditsConfig
		wantErr bool
	}{
		{"empty config is valid", &BanditsConfig{}, false},
		{"bad role", &BanditsConfig{Role: ptrString("LEADER")}, true},
		{"negative timeout", &BanditsConfig{ContactTimeout: ptrString("-1s")}, true},
		{"unparsable interval", &BanditsConfig{DesignatorInterval: ptrString("often")}, true},
		{"zero rolling entries", &BanditsConfig{MaxRollingEntries: ptrInt(0)}, true},
		{"channel zero", &BanditsConfig{Channels: []int{0, 6}}, true},
		{"duplicate channel", &BanditsConfig{Channels: []int{6, 6}}, true},
		{"negative frame threshold", &BanditsConfig{TrackFrameThreshold: ptrInt64(-1)}, true},
		{"zero gap threshold", &BanditsConfig{TrackGapThreshold: ptrInt(0)}, true},
		{"negative jitter", &BanditsConfig{TrackCenterlineJitter: ptrInt(-2)}, true},
		{"bandit without name", &BanditsConfig{Bandits: []BanditSeed{{Identifiers: []IdentifierSeed{{Type: "SSID"}}}}}, true},
		{"bandit without identifiers", &BanditsConfig{Bandits: []BanditSeed{{Name: "x"}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDurationFallbackOnParseError(t *testing.T) {
	cfg := &BanditsConfig{ContactTimeout: ptrString("garbage")}
	assert.Equal(t, 5*time.Minute, cfg.GetContactTimeout())
}
