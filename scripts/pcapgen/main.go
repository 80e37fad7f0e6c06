package main

import (
	"FlowSleuth/internal/model"
	"FlowSleuth/pkg/pcap"
	"flag"
	"log"
	"math/rand"
	"net"
	"os"
	"time"
)

// session is one generated bidirectional conversation.
type session struct {
	client model.FiveTuple
	// replyEvery makes the server answer every n-th client packet.
	replyEvery int
}

func main() {
	outputFile := flag.String("o", "test.pcap", "Output pcap file path")
	sessionCount := flag.Int("s", 20, "Number of bidirectional sessions to generate")
	duration := flag.Duration("d", 2*time.Minute, "Length of every session; longer than the active timeout yields split records")
	interval := flag.Duration("i", time.Second, "Gap between two client packets of a session")
	udpShare := flag.Float64("udp", 0.25, "Share of UDP sessions")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	w, err := pcap.NewWriter(f)
	if err != nil {
		log.Fatalf("Failed to create pcap writer: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	sessions := make([]session, *sessionCount)
	for i := range sessions {
		proto := uint8(6)
		if rng.Float64() < *udpShare {
			proto = 17
		}
		sessions[i] = session{
			client: model.FiveTuple{
				SrcIP:    net.IPv4(10, 0, byte(rng.Intn(256)), byte(rng.Intn(254)+1)),
				DstIP:    net.IPv4(192, 168, byte(rng.Intn(256)), byte(rng.Intn(254)+1)),
				SrcPort:  uint16(rng.Intn(65535-1024) + 1024),
				DstPort:  []uint16{53, 80, 443, 8080}[rng.Intn(4)],
				Protocol: proto,
			},
			replyEvery: rng.Intn(3) + 1,
		}
	}

	log.Printf("Generating %d sessions of %s into %s...", *sessionCount, *duration, *outputFile)

	start := time.Now().Truncate(time.Second)
	steps := int(*duration / *interval)
	written := 0
	for step := 0; step < steps; step++ {
		ts := start.Add(time.Duration(step) * *interval)
		for i, s := range sessions {
			// Spread sessions inside the interval so packets stay in time order.
			offset := time.Duration(i) * *interval / time.Duration(len(sessions)+1)
			if err := w.WritePacket(ts.Add(offset), s.client, randomPayload(rng)); err != nil {
				log.Fatalf("Failed to write packet: %v", err)
			}
			written++
			if step%s.replyEvery == 0 {
				if err := w.WritePacket(ts.Add(offset+time.Millisecond), s.client.Reverse(), randomPayload(rng)); err != nil {
					log.Fatalf("Failed to write packet: %v", err)
				}
				written++
			}
		}
	}

	log.Printf("Successfully generated %d packets into %s.", written, *outputFile)
}

func randomPayload(rng *rand.Rand) []byte {
	payload := make([]byte, rng.Intn(1400)+50)
	rng.Read(payload)
	return payload
}
