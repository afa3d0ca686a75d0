package dot11

import (
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	subtypeProbeResp = 0x5
	subtypeBeacon    = 0x8
	subtypeDeauth    = 0xc
)

type element struct {
	id   byte
	body []byte
}

// radiotapFrame prepends a minimal radiotap header carrying channel and dBm
// antenna signal fields.
func radiotapFrame(freq uint16, signal int8, dot11 []byte) []byte {
	hdr := []byte{
		0x00, 0x00, // version, pad
		0x0d, 0x00, // header length 13
		0x28, 0x00, 0x00, 0x00, // present: channel | dbm antenna signal
		byte(freq), byte(freq >> 8), 0xa0, 0x00,
		byte(signal),
	}
	return append(hdr, dot11...)
}

// radiotapChannelOnly prepends a radiotap header without a signal field.
func radiotapChannelOnly(freq uint16, dot11 []byte) []byte {
	hdr := []byte{
		0x00, 0x00, // version, pad
		0x0c, 0x00, // header length 12
		0x08, 0x00, 0x00, 0x00, // present: channel
		byte(freq), byte(freq >> 8), 0xa0, 0x00,
	}
	return append(hdr, dot11...)
}

func mgmtFrame(subtype byte, dst, src string, body []byte) []byte {
	b := []byte{subtype << 4, 0x00, 0x00, 0x00}
	b = append(b, mustMAC(dst)...)
	b = append(b, mustMAC(src)...)
	b = append(b, mustMAC(src)...)
	b = append(b, 0x10, 0x00)
	return append(b, body...)
}

func beaconBody(elements ...element) []byte {
	b := make([]byte, 12)
	b[8] = 0x64 // beacon interval
	for _, e := range elements {
		b = append(b, e.id, byte(len(e.body)))
		b = append(b, e.body...)
	}
	return b
}

func mustMAC(s string) net.HardwareAddr {
	hw, err := net.ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return hw
}

func decode(data []byte, ts time.Time) gopacket.Packet {
	p := gopacket.NewPacket(data, layers.LayerTypeRadioTap, gopacket.Default)
	p.Metadata().Timestamp = ts
	return p
}
