package notify

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nzymedefense/nzyme/internal/bandits"
	"github.com/nzymedefense/nzyme/internal/timeutil"
)

type fakeNATS struct {
	mu       sync.Mutex
	subjects []string
	err      error
}

func (f *fakeNATS) Publish(subject string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	return f.err
}

func (f *fakeNATS) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subjects...)
}

func TestSubject(t *testing.T) {
	cases := map[string]string{
		"nzyme/bandits/abc/trace":  "nzyme.bandits.abc.trace",
		"/nzyme/bandits/abc/trace": "nzyme.bandits.abc.trace",
		"bandits":                  "bandits",
	}
	for topic, want := range cases {
		assert.Equal(t, want, Subject(topic), topic)
	}
}

func TestNATSTransport_Sink(t *testing.T) {
	muteLogs(t)
	conn := &fakeNATS{}
	sink := NewSink(NewNATSTransport(conn), testSinkConfig(), timeutil.NewMockClock(testEpoch))
	assert.Equal(t, "nats", sink.Name())

	b := &bandits.Bandit{Name: "x"}
	sink.HandleTrace(b, -40, 6)

	runSink(t, sink)
	require.Eventually(t, func() bool { return sink.Stats().Published == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{Subject(sink.Topic(Event{BanditUUID: b.UUID.String(), Type: EventTrace}))}, conn.sent())
}

func TestNATSTransport_Failure(t *testing.T) {
	muteLogs(t)
	sink := NewSink(NewNATSTransport(&fakeNATS{err: errors.New("connection closed")}), testSinkConfig(), timeutil.NewMockClock(testEpoch))
	sink.HandleTrace(&bandits.Bandit{Name: "x"}, -40, 6)

	runSink(t, sink)
	require.Eventually(t, func() bool { return sink.Stats().Failed == 1 }, time.Second, 5*time.Millisecond)
}
