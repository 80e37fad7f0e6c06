package main

import (
	"FlowSleuth/internal/model"
	"FlowSleuth/pkg/pcap"
	"flag"
	"fmt"
	"log"
)

func main() {
	count := flag.Int("n", 5, "Number of packets to print")
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Println("Usage: go run ./scripts/pcapana/main.go [-n count] <path_to_pcap_file>")
		return
	}

	reader, err := pcap.NewReader(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}
	defer reader.Close()

	packets := make(chan *model.PacketInfo, 64)
	go reader.ReadPackets(packets)

	i := 0
	for info := range packets {
		if i < *count {
			fmt.Printf("[%s] %s:%d -> %s:%d proto=%d len=%d\n",
				info.Timestamp.Format("15:04:05.000"),
				info.FiveTuple.SrcIP, info.FiveTuple.SrcPort,
				info.FiveTuple.DstIP, info.FiveTuple.DstPort,
				info.FiveTuple.Protocol, info.Length,
			)
		}
		i++
	}
	fmt.Printf("%d packets parsed, %d skipped\n", i, reader.Skipped)
}
