package main

import (
	"FlowSleuth/internal/config"
	"FlowSleuth/internal/engine/streamstitcher"
	"FlowSleuth/internal/factory"
	_ "FlowSleuth/internal/writer"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	log.Println("Starting ns-engine...")

	// 1. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	// 2. Create the writers and the stream stitcher
	writers, err := factory.CreateWriters(cfg)
	if err != nil {
		log.Fatalf("Failed to create writers: %v", err)
	}
	if len(writers) == 0 {
		log.Fatalf("No writer is enabled, refusing to start.")
	}

	ss, err := streamstitcher.New(cfg, writers)
	if err != nil {
		log.Fatalf("Failed to create stream stitcher: %v", err)
	}

	// 3. Start consuming
	if err := ss.Start(); err != nil {
		log.Fatalf("Failed to start stream stitcher: %v", err)
	}

	// 4. Wait for a shutdown signal for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan

	log.Println("Shutdown signal received, stopping stream stitcher...")
	ss.Stop()
	log.Println("Shutdown complete.")
}
