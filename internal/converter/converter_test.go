package converter

import (
	"FlowSleuth/internal/config"
	"FlowSleuth/internal/model"
	"FlowSleuth/internal/stitch"
	"FlowSleuth/pkg/pcap"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var (
	client = model.FiveTuple{
		SrcIP:    net.ParseIP("10.1.1.1"),
		DstIP:    net.ParseIP("10.2.2.2"),
		SrcPort:  40000,
		DstPort:  443,
		Protocol: 6,
	}
	server = client.Reverse()
)

// writeSession writes a conversation of 70 seconds: the client sends one
// packet per second and the server answers every second one.
func writeSession(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.pcap")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create capture: %v", err)
	}
	defer f.Close()

	w, err := pcap.NewWriter(f)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	start := time.Unix(1700000000, 0)
	for i := 0; i < 70; i++ {
		ts := start.Add(time.Duration(i) * time.Second)
		if err := w.WritePacket(ts, client, []byte{0x01}); err != nil {
			t.Fatalf("Failed to write packet: %v", err)
		}
		if i%2 == 1 {
			if err := w.WritePacket(ts.Add(time.Millisecond), server, []byte{0x02, 0x02}); err != nil {
				t.Fatalf("Failed to write packet: %v", err)
			}
		}
	}
	return path
}

func TestConverter_SplitsOnActiveTimeout(t *testing.T) {
	c := New(Options{ActiveTimeout: 30 * time.Second, IdleTimeout: 10 * time.Second, ByteDistribution: true})

	records, err := c.ConvertFile(writeSession(t))
	if err != nil {
		t.Fatalf("ConvertFile failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 timeout-split records, got %d", len(records))
	}

	var outPkts, inPkts int64
	for _, rec := range records {
		if rec["sa"] != "10.1.1.1" || rec["dp"] != int64(443) {
			t.Errorf("Expected client orientation, got %v", rec)
		}
		outPkts += rec["op"].(int64)
		if ip, ok := rec["ip"]; ok {
			inPkts += ip.(int64)
		}
		if len(rec["bd"].([]int64)) != ByteDistributionSize {
			t.Errorf("Expected bd of %d bins", ByteDistributionSize)
		}
	}
	if outPkts != 70 || inPkts != 35 {
		t.Errorf("Expected 70 outbound and 35 inbound packets, got %d and %d", outPkts, inPkts)
	}
}

func TestConverter_StitchedBackTogether(t *testing.T) {
	c := New(Options{ActiveTimeout: 30 * time.Second, IdleTimeout: time.Minute, ByteDistribution: true})
	records, err := c.ConvertFile(writeSession(t))
	if err != nil {
		t.Fatalf("ConvertFile failed: %v", err)
	}

	sessions, err := stitch.New(stitch.PolicyFail).StitchRecords(records)
	if err != nil {
		t.Fatalf("StitchRecords failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Expected one stitched session, got %d", len(sessions))
	}

	s := sessions[0]
	if s["op"] != int64(70) || s["ip"] != int64(35) {
		t.Errorf("Expected op=70 ip=35, got op=%v ip=%v", s["op"], s["ip"])
	}
	if s["ts"] != records[0]["ts"] || s["te"] != records[len(records)-1]["te"] {
		t.Errorf("Expected session to span ts=%v te=%v, got ts=%v te=%v",
			records[0]["ts"], records[len(records)-1]["te"], s["ts"], s["te"])
	}
	bd := s["bd"].([]int64)
	if bd[0x01] != 70 || bd[0x02] != 70 {
		t.Errorf("Expected bd[1]=70 bd[2]=70, got %d and %d", bd[0x01], bd[0x02])
	}
}

func TestConverter_ReverseOrientationAfterSplit(t *testing.T) {
	start := time.Unix(1700000000, 0)
	packets := make(chan *model.PacketInfo, 3)
	packets <- &model.PacketInfo{Timestamp: start, FiveTuple: client, Length: 100}
	packets <- &model.PacketInfo{Timestamp: start.Add(40 * time.Second), FiveTuple: server, Length: 60}
	close(packets)

	records := New(Options{ActiveTimeout: time.Minute, IdleTimeout: 30 * time.Second}).Convert(packets)
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[1]["sa"] != "10.2.2.2" {
		t.Errorf("Expected second record in server orientation, got %v", records[1])
	}
	if _, ok := records[0]["bd"]; ok {
		t.Errorf("Expected no bd when byte distribution is disabled")
	}

	sessions, err := stitch.New(stitch.PolicyFail).StitchRecords(records)
	if err != nil {
		t.Fatalf("StitchRecords failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0]["ib"] != int64(60) || sessions[0]["ob"] != int64(100) {
		t.Errorf("Unexpected stitched session: %v", sessions)
	}
}

func TestConvertFile_Missing(t *testing.T) {
	_, err := New(Options{}).ConvertFile(filepath.Join(t.TempDir(), "nope.pcap"))
	var convErr *ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("Expected ConversionError, got %v", err)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := OptionsFromConfig(config.ConverterConfig{ActiveTimeout: "30s", IdleTimeout: "5s", ByteDistribution: true})
	if err != nil {
		t.Fatalf("OptionsFromConfig failed: %v", err)
	}
	if opts.ActiveTimeout != 30*time.Second || opts.IdleTimeout != 5*time.Second || !opts.ByteDistribution {
		t.Errorf("Unexpected options: %+v", opts)
	}
	if _, err := OptionsFromConfig(config.ConverterConfig{ActiveTimeout: "soon", IdleTimeout: "5s"}); err == nil {
		t.Errorf("Expected an error for an invalid duration")
	}
}

func TestConverter_StreamExpiresIdleFlows(t *testing.T) {
	start := time.Unix(1700000000, 0)
	other := model.FiveTuple{
		SrcIP:    net.ParseIP("10.3.3.3"),
		DstIP:    net.ParseIP("10.4.4.4"),
		SrcPort:  5353,
		DstPort:  53,
		Protocol: 17,
	}

	packets := make(chan *model.PacketInfo)
	emitted := make(chan model.Record, 4)
	done := make(chan struct{})
	go func() {
		New(Options{ActiveTimeout: time.Minute, IdleTimeout: 5 * time.Second}).Stream(packets, func(rec model.Record) {
			emitted <- rec
		})
		close(done)
	}()

	packets <- &model.PacketInfo{Timestamp: start, FiveTuple: other, Length: 80}
	for i := 1; i <= 10; i++ {
		packets <- &model.PacketInfo{Timestamp: start.Add(time.Duration(i) * time.Second), FiveTuple: client, Length: 100}
	}

	select {
	case rec := <-emitted:
		if rec["sa"] != "10.3.3.3" || rec["op"] != int64(1) {
			t.Errorf("Expected the idle DNS flow first, got %v", rec)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Idle flow was not emitted while the capture was running")
	}

	close(packets)
	<-done
	rec := <-emitted
	if rec["sa"] != "10.1.1.1" || rec["op"] != int64(10) {
		t.Errorf("Expected the client flow on flush, got %v", rec)
	}
}
