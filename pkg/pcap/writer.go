package pcap

import (
	"FlowSleuth/internal/model"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

var (
	srcMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	dstMAC = net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA}
)

// Writer synthesises Ethernet/IPv4 TCP and UDP packets into a pcap stream.
type Writer struct {
	w *pcapgo.Writer
}

// NewWriter writes a pcap file header to w and returns a packet writer.
func NewWriter(w io.Writer) (*Writer, error) {
	pcapWriter := pcapgo.NewWriter(w)
	if err := pcapWriter.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}
	return &Writer{w: pcapWriter}, nil
}

// WritePacket serialises a single packet for the given tuple. Protocol 6 is
// written as TCP, anything else as UDP.
func (w *Writer) WritePacket(ts time.Time, ft model.FiveTuple, payload []byte) error {
	ethLayer := &layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ipLayer := &layers.IPv4{
		SrcIP:   ft.SrcIP.To4(),
		DstIP:   ft.DstIP.To4(),
		Version: 4,
		TTL:     64,
	}

	var transport gopacket.SerializableLayer
	if ft.Protocol == uint8(layers.IPProtocolTCP) {
		ipLayer.Protocol = layers.IPProtocolTCP
		tcpLayer := &layers.TCP{
			SrcPort: layers.TCPPort(ft.SrcPort),
			DstPort: layers.TCPPort(ft.DstPort),
			ACK:     true,
			Window:  14600,
		}
		tcpLayer.SetNetworkLayerForChecksum(ipLayer)
		transport = tcpLayer
	} else {
		ipLayer.Protocol = layers.IPProtocolUDP
		udpLayer := &layers.UDP{
			SrcPort: layers.UDPPort(ft.SrcPort),
			DstPort: layers.UDPPort(ft.DstPort),
		}
		udpLayer.SetNetworkLayerForChecksum(ipLayer)
		transport = udpLayer
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		ComputeChecksums: true,
		FixLengths:       true,
	}
	if err := gopacket.SerializeLayers(buf, opts, ethLayer, ipLayer, transport, gopacket.Payload(payload)); err != nil {
		return fmt.Errorf("failed to serialize layers: %w", err)
	}

	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(buf.Bytes()),
		Length:        len(buf.Bytes()),
	}
	return w.w.WritePacket(ci, buf.Bytes())
}
