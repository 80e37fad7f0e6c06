package pcap

import (
	"FlowSleuth/internal/engine/protocol"
	"FlowSleuth/internal/model"
	"bufio"
	"fmt"
	"log"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// packetDataSource is implemented by both the pcap and the pcapng readers.
type packetDataSource interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// Reader reads packets from a pcap or pcapng file.
type Reader struct {
	file   *os.File
	source packetDataSource
	// Skipped counts packets that could not be parsed.
	Skipped int
}

// NewReader creates a new pcap reader for the given file path.
func NewReader(filePath string) (*Reader, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReader(file)
	magic, err := br.Peek(4)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read capture header: %w", err)
	}

	var source packetDataSource
	if magic[0] == 0x0a && magic[1] == 0x0d && magic[2] == 0x0d && magic[3] == 0x0a {
		source, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		source, err = pcapgo.NewReader(br)
	}
	if err != nil {
		file.Close()
		return nil, err
	}
	return &Reader{file: file, source: source}, nil
}

// Close closes the capture file.
func (r *Reader) Close() {
	r.file.Close()
}

// ReadPackets reads all packets from the capture file and sends the parsed
// PacketInfo to the provided channel. It closes the channel when done.
func (r *Reader) ReadPackets(out chan<- *model.PacketInfo) {
	defer close(out)

	packetSource := gopacket.NewPacketSource(r.source, r.source.LinkType())
	for packet := range packetSource.Packets() {
		info, err := protocol.ParsePacket(packet)
		if err != nil {
			// Unsupported link/transport types are expected in real captures.
			r.Skipped++
			continue
		}
		out <- info
	}
	if r.Skipped > 0 {
		log.Printf("Skipped %d unsupported packets in '%s'", r.Skipped, r.file.Name())
	}
}
