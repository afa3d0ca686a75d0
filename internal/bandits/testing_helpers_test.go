package bandits

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nzymedefense/nzyme/internal/bandits/identifiers"
	"github.com/nzymedefense/nzyme/internal/dot11"
	"github.com/nzymedefense/nzyme/internal/monitoring"
	"github.com/nzymedefense/nzyme/internal/timeutil"
)

var testEpoch = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func quietLogs(t *testing.T) {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })
}

func testConfig() ManagerConfig {
	return ManagerConfig{
		Node:              "node-1",
		Role:              RoleNode,
		ContactTimeout:    time.Minute,
		WatchdogInterval:  10 * time.Second,
		MaxRollingEntries: 3,
	}
}

func newTestManager(t *testing.T) (*Manager, *timeutil.MockClock) {
	t.Helper()
	quietLogs(t)
	clock := timeutil.NewMockClock(testEpoch)
	return NewManager(testConfig(), clock), clock
}

func ssidBandit(t *testing.T, name string, ssids ...string) *Bandit {
	t.Helper()
	id, err := identifiers.NewSSIDs(ssids)
	require.NoError(t, err)
	b, err := NewBandit(name, "", testEpoch, id)
	require.NoError(t, err)
	return b
}

func beaconFrom(bssid, ssid string, signal, channel int, probe string) dot11.Beacon {
	return dot11.Beacon{
		TransmitterAddr: bssid,
		SSID:            ssid,
		Meta:            dot11.Meta{AntennaSignal: signal, HasSignal: true, Channel: channel, Probe: probe},
	}
}

type fakeRepository struct {
	mu      sync.Mutex
	bandits []*Bandit
	err     error
}

func (r *fakeRepository) CreateBandit(_ context.Context, b *Bandit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bandits = append(r.bandits, b)
	return nil
}

func (r *fakeRepository) UpdateBandit(context.Context, *Bandit) error { return nil }
func (r *fakeRepository) DeleteBandit(context.Context, uuid.UUID) error {
	return nil
}

func (r *fakeRepository) ListBandits(context.Context) ([]*Bandit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bandits, r.err
}
