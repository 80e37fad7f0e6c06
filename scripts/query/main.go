package main

import (
	"FlowSleuth/internal/config"
	"FlowSleuth/internal/query"
	"FlowSleuth/internal/stitch"
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

func main() {
	mode := flag.String("mode", "api", "Query mode: 'api' to query via HTTP API, 'direct' to query ClickHouse directly.")
	apiAddr := flag.String("api", "http://localhost:8080", "Base URL of ns-api.")
	configPath := flag.String("config", "configs/config.yaml", "Configuration file holding the clickhouse writer (direct mode).")
	sa := flag.String("sa", "", "Source address of the session.")
	da := flag.String("da", "", "Destination address of the session.")
	sp := flag.Int64("sp", 0, "Source port of the session.")
	dp := flag.Int64("dp", 0, "Destination port of the session.")
	pr := flag.Int64("pr", 6, "IP protocol number of the session.")
	limit := flag.Int("limit", 0, "Maximum number of sessions (0 uses the server default).")
	flag.Parse()

	key := stitch.Key{SrcAddr: *sa, DstAddr: *da, SrcPort: *sp, DstPort: *dp, Protocol: *pr}
	if key.SrcAddr == "" || key.DstAddr == "" {
		log.Fatalf("Both -sa and -da are required.")
	}
	log.Printf("Running in '%s' mode for %s.", *mode, key)

	switch *mode {
	case "api":
		queryViaAPI(*apiAddr, key, *limit)
	case "direct":
		directQueryClickHouse(*configPath, key, *limit)
	default:
		log.Fatalf("Invalid mode: %s. Use 'api' or 'direct'.", *mode)
	}
}

func queryViaAPI(base string, key stitch.Key, limit int) {
	params := url.Values{}
	params.Set("sa", key.SrcAddr)
	params.Set("da", key.DstAddr)
	params.Set("sp", strconv.FormatInt(key.SrcPort, 10))
	params.Set("dp", strconv.FormatInt(key.DstPort, 10))
	params.Set("pr", strconv.FormatInt(key.Protocol, 10))
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	apiURL := base + "/api/v1/sessions?" + params.Encode()
	log.Printf("Sending request to %s", apiURL)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(apiURL)
	if err != nil {
		log.Fatalf("Error sending request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Error reading response body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("API returned non-200 status code: %d\nResponse: %s", resp.StatusCode, string(respBody))
	}

	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, respBody, "", "  "); err != nil {
		log.Fatalf("Error formatting JSON response: %v", err)
	}
	fmt.Println(prettyJSON.String())
}

func directQueryClickHouse(configPath string, key stitch.Key, limit int) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var q query.Querier
	for _, def := range cfg.Writers {
		if def.Type == "clickhouse" {
			q, err = query.NewClickHouseQuerier(def.ClickHouse)
			if err != nil {
				log.Fatalf("Failed to connect to ClickHouse: %v", err)
			}
			break
		}
	}
	if q == nil {
		log.Fatalf("No clickhouse writer found in %s.", configPath)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sessions, err := q.FindSessions(ctx, key, limit)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	log.Printf("Found %d sessions.", len(sessions))
	out, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal sessions: %v", err)
	}
	fmt.Println(string(out))
}
