package dot11

import "time"

// Kind identifies the management frame subtype.
type Kind string

const (
	KindBeacon           Kind = "beacon"
	KindProbeResponse    Kind = "probe_response"
	KindDeauthentication Kind = "deauthentication"
)

// Meta is the capture metadata attached to every frame.
type Meta struct {
	AntennaSignal int       // dBm, only meaningful when HasSignal is set
	HasSignal     bool      // false when the capture carried no dBm reading
	Frequency     int       // MHz
	Channel       int       // derived from Frequency
	Timestamp     time.Time // capture time
	Probe         string    // name of the capture probe that saw the frame
}

// Frame is implemented by Beacon, ProbeResponse and Deauthentication.
type Frame interface {
	Kind() Kind
	Transmitter() string
	Metadata() Meta
}

// Beacon is an access point beacon.
type Beacon struct {
	TransmitterAddr string
	SSID            string // empty for hidden networks
	Fingerprint     string
	Meta            Meta
}

func (b Beacon) Kind() Kind          { return KindBeacon }
func (b Beacon) Transmitter() string { return b.TransmitterAddr }
func (b Beacon) Metadata() Meta      { return b.Meta }

// ProbeResponse answers a client probe request.
type ProbeResponse struct {
	TransmitterAddr string
	DestinationAddr string
	SSID            string
	Fingerprint     string
	Meta            Meta
}

func (p ProbeResponse) Kind() Kind          { return KindProbeResponse }
func (p ProbeResponse) Transmitter() string { return p.TransmitterAddr }
func (p ProbeResponse) Metadata() Meta      { return p.Meta }

// Deauthentication carries no SSID and no fingerprint.
type Deauthentication struct {
	TransmitterAddr string
	DestinationAddr string
	ReasonCode      uint16
	Meta            Meta
}

func (d Deauthentication) Kind() Kind          { return KindDeauthentication }
func (d Deauthentication) Transmitter() string { return d.TransmitterAddr }
func (d Deauthentication) Metadata() Meta      { return d.Meta }

// SSIDOf returns the advertised SSID of f. ok is false for frame kinds that
// never advertise one, and for hidden networks.
func SSIDOf(f Frame) (ssid string, ok bool) {
	switch fr := f.(type) {
	case Beacon:
		ssid = fr.SSID
	case ProbeResponse:
		ssid = fr.SSID
	default:
		return "", false
	}
	return ssid, ssid != ""
}

// FrequencyToChannel maps a centre frequency in MHz to its 802.11 channel
// number. Unknown frequencies map to 0.
func FrequencyToChannel(freq int) int {
	switch {
	case freq == 2484:
		return 14
	case freq >= 2412 && freq < 2484:
		return (freq - 2407) / 5
	case freq >= 5955 && freq <= 7115:
		return (freq - 5950) / 5
	case freq >= 5000 && freq < 5955:
		return (freq - 5000) / 5
	}
	return 0
}
