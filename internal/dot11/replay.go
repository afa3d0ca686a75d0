package dot11

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/nzymedefense/nzyme/internal/monitoring"
)

// ReplayStats summarises a ReadPCAPFile run.
type ReplayStats struct {
	Packets     int
	Frames      int
	Unsupported int
}

type packetDataSource interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// ReadPCAPFile replays a radiotap capture (pcap or pcapng) and hands every
// supported management frame to fn. It returns when the file is exhausted or
// ctx is cancelled.
func ReadPCAPFile(ctx context.Context, path, probe string, fn func(Frame)) (ReplayStats, error) {
	var stats ReplayStats

	f, err := os.Open(path)
	if err != nil {
		return stats, fmt.Errorf("failed to open capture %s: %w", path, err)
	}
	defer f.Close()

	src, err := openCapture(bufio.NewReader(f))
	if err != nil {
		return stats, fmt.Errorf("failed to read capture header %s: %w", path, err)
	}
	if lt := src.LinkType(); lt != layers.LinkTypeIEEE80211Radio {
		return stats, fmt.Errorf("capture %s has link type %s, want radiotap", path, lt)
	}

	packets := gopacket.NewPacketSource(src, layers.LayerTypeRadioTap)
	packets.DecodeOptions = gopacket.Lazy

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("capture replay stopping after %d packets: %v", stats.Packets, ctx.Err())
			return stats, ctx.Err()
		default:
		}

		packet, err := packets.NextPacket()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("read packet %d: %w", stats.Packets+1, err)
		}
		stats.Packets++

		frame, err := FromPacket(packet, probe)
		if err != nil {
			stats.Unsupported++
			continue
		}
		stats.Frames++
		fn(frame)
	}
}

// openCapture sniffs the block magic to pick the pcap or pcapng reader.
func openCapture(r *bufio.Reader) (packetDataSource, error) {
	magic, err := r.Peek(4)
	if err != nil {
		return nil, err
	}
	if magic[0] == 0x0a && magic[1] == 0x0d && magic[2] == 0x0d && magic[3] == 0x0a {
		return pcapgo.NewNgReader(r, pcapgo.DefaultNgReaderOptions)
	}
	return pcapgo.NewReader(r)
}
