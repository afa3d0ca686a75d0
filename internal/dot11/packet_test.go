package dot11

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	rates  = element{id: 1, body: []byte{0x82, 0x84, 0x8b, 0x96}}
	rates2 = element{id: 1, body: []byte{0x82, 0x84, 0x0c, 0x12}}
)

func ssidElement(s string) element { return element{id: 0, body: []byte(s)} }
func dsElement(ch byte) element    { return element{id: 3, body: []byte{ch}} }

func TestFromPacket_Beacon(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	data := radiotapFrame(2437, -57, mgmtFrame(subtypeBeacon, "ff:ff:ff:ff:ff:ff", "00:c0:ca:95:68:3b",
		beaconBody(ssidElement("WTF"), dsElement(6), rates)))

	frame, err := FromPacket(decode(data, ts), "wlan0")
	require.NoError(t, err)

	beacon, ok := frame.(Beacon)
	require.True(t, ok, "expected Beacon, got %T", frame)
	assert.Equal(t, "00:c0:ca:95:68:3b", beacon.Transmitter())
	assert.Equal(t, "WTF", beacon.SSID)
	assert.Len(t, beacon.Fingerprint, 64)
	assert.Equal(t, Meta{AntennaSignal: -57, HasSignal: true, Frequency: 2437, Channel: 6, Timestamp: ts, Probe: "wlan0"}, beacon.Metadata())
}

func TestFromPacket_ProbeResponse(t *testing.T) {
	data := radiotapFrame(5180, -70, mgmtFrame(subtypeProbeResp, "b0:70:2d:56:0f:a1", "00:c0:ca:95:68:3b",
		beaconBody(ssidElement("home"), rates)))

	frame, err := FromPacket(decode(data, time.Now()), "wlan1")
	require.NoError(t, err)

	resp, ok := frame.(ProbeResponse)
	require.True(t, ok, "expected ProbeResponse, got %T", frame)
	assert.Equal(t, "b0:70:2d:56:0f:a1", resp.DestinationAddr)
	assert.Equal(t, "home", resp.SSID)
	assert.Equal(t, 36, resp.Meta.Channel)
	assert.Equal(t, -70, resp.Meta.AntennaSignal)
}

func TestFromPacket_Deauthentication(t *testing.T) {
	data := radiotapFrame(2412, -40, mgmtFrame(subtypeDeauth, "b0:70:2d:56:0f:a1", "00:c0:ca:95:68:3b", []byte{0x07, 0x00}))

	frame, err := FromPacket(decode(data, time.Now()), "wlan0")
	require.NoError(t, err)

	deauth, ok := frame.(Deauthentication)
	require.True(t, ok, "expected Deauthentication, got %T", frame)
	assert.Equal(t, uint16(7), deauth.ReasonCode)
	assert.Equal(t, 1, deauth.Meta.Channel)

	_, hasSSID := SSIDOf(deauth)
	assert.False(t, hasSSID)
}

func TestFromPacket_NoSignalReading(t *testing.T) {
	data := radiotapChannelOnly(2442, mgmtFrame(subtypeDeauth, "b0:70:2d:56:0f:a1", "00:c0:ca:95:68:3b", []byte{0x07, 0x00}))

	frame, err := FromPacket(decode(data, time.Now()), "wlan0")
	require.NoError(t, err)

	meta := frame.Metadata()
	assert.False(t, meta.HasSignal)
	assert.Zero(t, meta.AntennaSignal)
	assert.Equal(t, 7, meta.Channel)
}

func TestFromPacket_Unsupported(t *testing.T) {
	// Probe request (subtype 4) is not evaluated by the engine.
	data := radiotapFrame(2412, -40, mgmtFrame(0x4, "ff:ff:ff:ff:ff:ff", "00:c0:ca:95:68:3b",
		[]byte{0x00, 0x02, 'a', 'b', 0x01, 0x02, 0x82, 0x84}))

	_, err := FromPacket(decode(data, time.Now()), "wlan0")
	assert.ErrorIs(t, err, ErrUnsupportedFrame)
}

func TestFingerprint_IgnoresVolatileElements(t *testing.T) {
	fp := func(elements ...element) string {
		data := radiotapFrame(2412, -40, mgmtFrame(subtypeBeacon, "ff:ff:ff:ff:ff:ff", "00:c0:ca:95:68:3b", beaconBody(elements...)))
		frame, err := FromPacket(decode(data, time.Now()), "wlan0")
		require.NoError(t, err)
		return frame.(Beacon).Fingerprint
	}

	a := fp(ssidElement("one"), dsElement(1), rates)
	b := fp(ssidElement("other"), dsElement(11), rates)
	c := fp(ssidElement("one"), dsElement(1), rates2)

	assert.Equal(t, a, b, "SSID and DS parameter set must not change the fingerprint")
	assert.NotEqual(t, a, c, "different supported rates must change the fingerprint")
}

func TestFrequencyToChannel(t *testing.T) {
	tests := []struct {
		freq int
		want int
	}{
		{2412, 1},
		{2437, 6},
		{2462, 11},
		{2484, 14},
		{5180, 36},
		{5825, 165},
		{5955, 1},
		{6115, 33},
		{900, 0},
	}
	for _, tt := range tests {
		if got := FrequencyToChannel(tt.freq); got != tt.want {
			t.Errorf("FrequencyToChannel(%d) = %d, want %d", tt.freq, got, tt.want)
		}
	}
}

func TestReadPCAPFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeIEEE80211Radio))

	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	packets := [][]byte{
		radiotapFrame(2437, -57, mgmtFrame(subtypeBeacon, "ff:ff:ff:ff:ff:ff", "00:c0:ca:95:68:3b",
			beaconBody(ssidElement("WTF"), dsElement(6), rates))),
		radiotapFrame(2412, -40, mgmtFrame(0x4, "ff:ff:ff:ff:ff:ff", "00:c0:ca:95:68:3b",
			[]byte{0x00, 0x02, 'a', 'b', 0x01, 0x02, 0x82, 0x84})),
		radiotapFrame(2412, -40, mgmtFrame(subtypeDeauth, "b0:70:2d:56:0f:a1", "00:c0:ca:95:68:3b", []byte{0x07, 0x00})),
	}
	for i, data := range packets {
		ci := gopacket.CaptureInfo{Timestamp: start.Add(time.Duration(i) * time.Second), CaptureLength: len(data), Length: len(data)}
		require.NoError(t, w.WritePacket(ci, data))
	}
	require.NoError(t, f.Close())

	var frames []Frame
	stats, err := ReadPCAPFile(context.Background(), path, "replay", func(f Frame) {
		frames = append(frames, f)
	})
	require.NoError(t, err)

	assert.Equal(t, ReplayStats{Packets: 3, Frames: 2, Unsupported: 1}, stats)
	require.Len(t, frames, 2)
	assert.Equal(t, KindBeacon, frames[0].Kind())
	assert.Equal(t, KindDeauthentication, frames[1].Kind())
	assert.True(t, frames[1].Metadata().Timestamp.Equal(start.Add(2*time.Second)))
}

func TestReadPCAPFile_MissingFile(t *testing.T) {
	_, err := ReadPCAPFile(context.Background(), filepath.Join(t.TempDir(), "nope.pcap"), "replay", func(Frame) {})
	assert.Error(t, err)
}
