package main

import (
	"FlowSleuth/internal/writer"
	"fmt"
	"log"
	"os"

	"github.com/goccy/go-json"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/gobana/main.go <sessions.dat>")
		os.Exit(1)
	}
	gobFile := os.Args[1]

	sessions, err := writer.ReadGobBatch(gobFile)
	if err != nil {
		log.Fatalf("Failed to decode gob data: %v", err)
	}

	summary := writer.Summarize(sessions)
	log.Printf("Decoded %d sessions: %+v", len(sessions), summary)

	enc := json.NewEncoder(os.Stdout)
	for _, s := range sessions {
		if err := enc.Encode(s); err != nil {
			log.Fatalf("Failed to encode session: %v", err)
		}
	}
}
