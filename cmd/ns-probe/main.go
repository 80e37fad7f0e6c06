package main

import (
	"FlowSleuth/internal/config"
	"FlowSleuth/internal/converter"
	"FlowSleuth/internal/engine/protocol"
	"FlowSleuth/internal/model"
	"FlowSleuth/internal/transport"
	"FlowSleuth/pkg/pcap"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/gopacket"
	livepcap "github.com/google/gopacket/pcap"
)

const (
	snapshotLen int32 = 1600
	promiscuous       = true
	timeout           = livepcap.BlockForever
)

func main() {
	// --- Command-Line Flag Parsing ---
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	mode := flag.String("mode", "pub", "Operating mode: 'pub' to convert and publish flow records, 'sub' to subscribe and print.")
	iface := flag.String("iface", "", "Interface to capture packets from (pub mode).")
	pcapFile := flag.String("pcap", "", "Capture file to convert (pub mode, instead of -iface).")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// --- Mode Dispatch ---
	switch *mode {
	case "pub":
		runProbe(cfg, *iface, *pcapFile)
	case "sub":
		runSubscriber(cfg)
	default:
		fmt.Fprintf(os.Stderr, "Invalid mode: %s\n", *mode)
		flag.Usage()
		os.Exit(1)
	}
}

// runProbe converts packets into flow records and publishes them to NATS
// unstitched, the way an exporter would.
func runProbe(cfg *config.Config, interfaceName, pcapFile string) {
	if (interfaceName == "") == (pcapFile == "") {
		log.Println("Error: exactly one of -iface or -pcap is required for probe mode.")
		flag.Usage()
		os.Exit(1)
	}

	opts, err := converter.OptionsFromConfig(cfg.Converter)
	if err != nil {
		log.Fatalf("Invalid converter configuration: %v", err)
	}
	conv := converter.New(opts)

	// Initialize NATS Publisher
	pub, err := transport.NewPublisherFromConfig(cfg.NATS)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer pub.Close()

	published := 0
	emit := func(rec model.Record) {
		if err := pub.Publish(rec); err != nil {
			log.Printf("Failed to publish flow record: %v", err)
			return
		}
		published++
		if published%1000 == 0 {
			log.Printf("%d flow records published...", published)
		}
	}

	if pcapFile != "" {
		log.Printf("Starting ns-probe on capture file: %s", pcapFile)
		reader, err := pcap.NewReader(pcapFile)
		if err != nil {
			log.Fatalf("Failed to open pcap file: %v", err)
		}
		defer reader.Close()

		packets := make(chan *model.PacketInfo, 1024)
		go reader.ReadPackets(packets)
		conv.Stream(packets, emit)
		if err := pub.Flush(); err != nil {
			log.Printf("Failed to flush NATS connection: %v", err)
		}
		log.Printf("Published %d flow records from '%s'.", published, pcapFile)
		return
	}

	log.Printf("Starting ns-probe in PROBE mode on interface: %s", interfaceName)

	// Open device for live capture
	handle, err := livepcap.OpenLive(interfaceName, snapshotLen, promiscuous, timeout)
	if err != nil {
		log.Fatalf("Error opening device %s: %v", interfaceName, err)
	}

	log.Println("Capture started successfully. Publishing flow records to NATS...")

	// Set up a channel to handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	packets := make(chan *model.PacketInfo, 1024)
	done := make(chan struct{})
	go func() {
		conv.Stream(packets, emit)
		close(done)
	}()

	// Packet source goroutine; closing the handle ends it
	go func() {
		defer close(packets)
		packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
		for packet := range packetSource.Packets() {
			info, err := protocol.ParsePacket(packet)
			if err != nil {
				continue // Skip non-IP packets
			}
			packets <- info
		}
	}()

	// Wait for a shutdown signal, then flush the open flows
	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	handle.Close()
	<-done
	log.Printf("Published %d flow records.", published)
}

// runSubscriber subscribes to the record subject and prints what it receives.
func runSubscriber(cfg *config.Config) {
	log.Println("Starting ns-probe in SUBSCRIBER mode...")

	sub, err := transport.NewSubscriber(cfg.NATS)
	if err != nil {
		log.Fatalf("Failed to create subscriber: %v", err)
	}
	defer sub.Close()

	handler := func(rec model.Record) {
		log.Printf("Received flow record: %v", rec)
	}

	if err := sub.Start(handler); err != nil {
		log.Fatalf("Subscriber failed to start: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
}
