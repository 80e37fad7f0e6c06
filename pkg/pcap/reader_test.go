package pcap

import (
	"FlowSleuth/internal/model"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeCapture(t *testing.T, packets int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.pcap")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create capture: %v", err)
	}
	defer f.Close()

	w, err := NewWriter(f)
	if err != nil {
		t.Fatalf("Failed to create pcap writer: %v", err)
	}
	ft := model.FiveTuple{
		SrcIP:    net.ParseIP("192.168.0.1"),
		DstIP:    net.ParseIP("8.8.8.8"),
		SrcPort:  12345,
		DstPort:  53,
		Protocol: 17,
	}
	start := time.Unix(1700000000, 0)
	for i := 0; i < packets; i++ {
		if err := w.WritePacket(start.Add(time.Duration(i)*time.Second), ft, []byte("query")); err != nil {
			t.Fatalf("Failed to write packet: %v", err)
		}
	}
	return path
}

func TestReader_ReadPackets(t *testing.T) {
	reader, err := NewReader(writeCapture(t, 3))
	if err != nil {
		t.Fatalf("Failed to create reader: %v", err)
	}
	defer reader.Close()

	out := make(chan *model.PacketInfo)

	go reader.ReadPackets(out)

	count := 0
	for info := range out {
		count++
		if info.FiveTuple.DstPort != 53 || info.FiveTuple.Protocol != 17 {
			t.Errorf("Unexpected tuple: %+v", info.FiveTuple)
		}
		if string(info.Payload) != "query" {
			t.Errorf("Expected payload 'query', got %q", info.Payload)
		}
	}

	expectedCount := 3
	if count != expectedCount {
		t.Errorf("Expected to read %d packets, but got %d", expectedCount, count)
	}
}

func TestNewReader_NotACapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.pcap")
	if err := os.WriteFile(path, []byte("definitely not pcap"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := NewReader(path); err == nil {
		t.Errorf("Expected an error for a non-capture file")
	}
}
