package dot11

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ErrUnsupportedFrame is returned by FromPacket for packets that are not a
// beacon, probe response or deauthentication.
var ErrUnsupportedFrame = errors.New("unsupported 802.11 frame")

// Tagged parameters whose content changes between otherwise identical
// transmissions. They are left out of the fingerprint.
var volatileElements = map[layers.Dot11InformationElementID]bool{
	layers.Dot11InformationElementIDSSID:  true,
	layers.Dot11InformationElementIDDSSet: true,
	layers.Dot11InformationElementIDTIM:   true,
}

// FromPacket converts a radiotap-encapsulated 802.11 packet that gopacket has
// already decoded into a Frame. probe names the capture source.
func FromPacket(packet gopacket.Packet, probe string) (Frame, error) {
	rt, ok := packet.Layer(layers.LayerTypeRadioTap).(*layers.RadioTap)
	if !ok {
		return nil, fmt.Errorf("%w: missing radiotap header", ErrUnsupportedFrame)
	}
	hdr, ok := packet.Layer(layers.LayerTypeDot11).(*layers.Dot11)
	if !ok {
		return nil, fmt.Errorf("%w: missing 802.11 header", ErrUnsupportedFrame)
	}
	// A truncated trailing tagged parameter surfaces as an error layer while
	// the frame body itself decoded fine, so decode errors are not fatal here.
	meta := metaFromRadioTap(rt, probe)
	meta.Timestamp = packet.Metadata().Timestamp

	switch {
	case packet.Layer(layers.LayerTypeDot11MgmtBeacon) != nil:
		ssid, fp := taggedParameters(packet)
		return Beacon{
			TransmitterAddr: hdr.Address2.String(),
			SSID:            ssid,
			Fingerprint:     fp,
			Meta:            meta,
		}, nil
	case packet.Layer(layers.LayerTypeDot11MgmtProbeResp) != nil:
		ssid, fp := taggedParameters(packet)
		return ProbeResponse{
			TransmitterAddr: hdr.Address2.String(),
			DestinationAddr: hdr.Address1.String(),
			SSID:            ssid,
			Fingerprint:     fp,
			Meta:            meta,
		}, nil
	case packet.Layer(layers.LayerTypeDot11MgmtDeauthentication) != nil:
		deauth := packet.Layer(layers.LayerTypeDot11MgmtDeauthentication).(*layers.Dot11MgmtDeauthentication)
		return Deauthentication{
			TransmitterAddr: hdr.Address2.String(),
			DestinationAddr: hdr.Address1.String(),
			ReasonCode:      uint16(deauth.Reason),
			Meta:            meta,
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFrame, hdr.Type)
}

func metaFromRadioTap(rt *layers.RadioTap, probe string) Meta {
	m := Meta{Probe: probe}
	if rt.Present.DBMAntennaSignal() {
		m.AntennaSignal = int(rt.DBMAntennaSignal)
		m.HasSignal = true
	}
	if rt.Present.Channel() {
		m.Frequency = int(rt.ChannelFrequency)
		m.Channel = FrequencyToChannel(m.Frequency)
	}
	return m
}

// taggedParameters extracts the SSID and computes the transmitter fingerprint:
// the SHA-256 over id, length and body of every non-volatile tagged parameter
// in transmission order.
func taggedParameters(packet gopacket.Packet) (ssid, fingerprint string) {
	h := sha256.New()
	for _, l := range packet.Layers() {
		ie, ok := l.(*layers.Dot11InformationElement)
		if !ok {
			continue
		}
		if ie.ID == layers.Dot11InformationElementIDSSID {
			ssid = string(ie.Info)
		}
		if volatileElements[ie.ID] {
			continue
		}
		h.Write([]byte{byte(ie.ID), ie.Length})
		h.Write(ie.OUI)
		h.Write(ie.Info)
	}
	return ssid, hex.EncodeToString(h.Sum(nil))
}
