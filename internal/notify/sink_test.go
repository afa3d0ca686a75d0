package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nzymedefense/nzyme/internal/bandits"
	"github.com/nzymedefense/nzyme/internal/bandits/identifiers"
	"github.com/nzymedefense/nzyme/internal/config"
	"github.com/nzymedefense/nzyme/internal/dot11"
	"github.com/nzymedefense/nzyme/internal/monitoring"
	"github.com/nzymedefense/nzyme/internal/timeutil"
)

var testEpoch = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func muteLogs(t *testing.T) {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })
}

func newMQTTSink(pub *fakePublisher, cfg Config, clock timeutil.Clock) *Sink {
	return NewSink(NewMQTTTransport(pub, cfg.QoS, cfg.PublishTimeout), cfg, clock)
}

func testSinkConfig() Config {
	return Config{TopicPrefix: "nzyme/bandits", QoS: 1, QueueSize: 8, PublishTraces: true}
}

func decodeEvent(t *testing.T, p published) Event {
	t.Helper()
	var ev Event
	require.NoError(t, json.Unmarshal(p.payload, &ev))
	return ev
}

func runSink(t *testing.T, s *Sink) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestSink_ManagerEvents(t *testing.T) {
	muteLogs(t)
	clock := timeutil.NewMockClock(testEpoch)
	pub := &fakePublisher{}
	sink := newMQTTSink(pub, testSinkConfig(), clock)

	cfg := bandits.DefaultManagerConfig()
	cfg.Node = "node-1"
	m := bandits.NewManager(cfg, clock)
	sink.Attach(m)

	ssids, err := identifiers.NewSSIDs([]string{"WTF"})
	require.NoError(t, err)
	b, err := bandits.NewBandit("wtf", "", testEpoch, ssids)
	require.NoError(t, err)
	m.RegisterBandit(b)

	m.Identify(dot11.Beacon{
		TransmitterAddr: "00:c0:ca:95:68:3b",
		SSID:            "WTF",
		Meta:            dot11.Meta{AntennaSignal: -55, HasSignal: true, Channel: 6, Probe: "wlan0"},
	})
	clock.Advance(cfg.ContactTimeout + time.Second)
	m.RetireStaleContacts()

	runSink(t, sink)
	require.Eventually(t, func() bool { return len(pub.sent()) == 3 }, time.Second, 5*time.Millisecond)

	msgs := pub.sent()
	prefix := "nzyme/bandits/" + b.UUID.String() + "/"
	assert.Equal(t, prefix+EventInitialContact, msgs[0].topic)
	assert.Equal(t, prefix+EventTrace, msgs[1].topic)
	assert.Equal(t, prefix+EventContactRetired, msgs[2].topic)
	assert.Equal(t, byte(1), msgs[0].qos)

	initial := decodeEvent(t, msgs[0])
	assert.Equal(t, "wtf", initial.BanditName)
	assert.Equal(t, "node-1", initial.Node)
	assert.Equal(t, "wlan0", initial.Probe)
	assert.NotEmpty(t, initial.ContactUUID)
	assert.True(t, testEpoch.Equal(initial.Timestamp))

	trace := decodeEvent(t, msgs[1])
	require.NotNil(t, trace.Signal)
	require.NotNil(t, trace.Channel)
	assert.Equal(t, -55, *trace.Signal)
	assert.Equal(t, 6, *trace.Channel)

	retired := decodeEvent(t, msgs[2])
	assert.Equal(t, initial.ContactUUID, retired.ContactUUID)
	assert.Equal(t, int64(1), retired.FrameCount)

	assert.Eventually(t, func() bool { return sink.Stats().Published == 3 }, time.Second, 5*time.Millisecond)
}

func TestSink_TracesOptional(t *testing.T) {
	muteLogs(t)
	clock := timeutil.NewMockClock(testEpoch)
	cfg := testSinkConfig()
	cfg.PublishTraces = false
	sink := newMQTTSink(&fakePublisher{}, cfg, clock)

	m := bandits.NewManager(bandits.DefaultManagerConfig(), clock)
	sink.Attach(m)

	ssids, err := identifiers.NewSSIDs([]string{"WTF"})
	require.NoError(t, err)
	b, err := bandits.NewBandit("wtf", "", testEpoch, ssids)
	require.NoError(t, err)
	m.RegisterBandit(b)
	m.Identify(dot11.Beacon{SSID: "WTF", TransmitterAddr: "aa:bb:cc:dd:ee:ff"})

	assert.Len(t, sink.queue, 1)
}

func TestSink_DropsWhenFull(t *testing.T) {
	muteLogs(t)
	cfg := testSinkConfig()
	cfg.QueueSize = 2
	sink := newMQTTSink(&fakePublisher{}, cfg, timeutil.NewMockClock(testEpoch))

	b := &bandits.Bandit{Name: "x"}
	for i := 0; i < 5; i++ {
		sink.HandleTrace(b, -40, 1)
	}

	assert.Equal(t, SinkStats{Dropped: 3}, sink.Stats())
}

func TestSink_PublishFailures(t *testing.T) {
	muteLogs(t)
	cases := map[string]*fakePublisher{
		"error":   {err: errors.New("not connected")},
		"timeout": {timeout: true},
	}
	for name, pub := range cases {
		t.Run(name, func(t *testing.T) {
			sink := newMQTTSink(pub, testSinkConfig(), timeutil.NewMockClock(testEpoch))
			sink.HandleTrace(&bandits.Bandit{Name: "x"}, -40, 1)
			sink.HandleTrace(&bandits.Bandit{Name: "x"}, -41, 1)

			runSink(t, sink)
			require.Eventually(t, func() bool { return sink.Stats().Failed == 2 }, time.Second, 5*time.Millisecond)
			assert.Zero(t, sink.Stats().Published)
		})
	}
}

func TestSink_RunFlushesOnCancel(t *testing.T) {
	muteLogs(t)
	pub := &fakePublisher{}
	sink := newMQTTSink(pub, testSinkConfig(), timeutil.NewMockClock(testEpoch))
	for i := 0; i < 4; i++ {
		sink.HandleTrace(&bandits.Bandit{Name: "x"}, -40, i)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink.Run(ctx)

	assert.Len(t, pub.sent(), 4)
	assert.Equal(t, int64(4), sink.Stats().Published)
}

func TestConfigFromSettings(t *testing.T) {
	cfg := config.EmptyBanditsConfig()
	broker := "tcp://localhost:1883"
	node := "sensor-7"
	natsURL := "nats://localhost:4222"
	cfg.MQTTBroker = &broker
	cfg.NATSURL = &natsURL
	cfg.NodeName = &node

	got := ConfigFromSettings(cfg)
	assert.Equal(t, broker, got.Broker)
	assert.Equal(t, natsURL, got.NATSURL)
	assert.Equal(t, "nzyme-bandits-sensor-7", got.ClientID)
	assert.Equal(t, "nzyme/bandits", got.TopicPrefix)
	assert.False(t, got.PublishTraces)
}
