package main

import (
	"FlowSleuth/internal/config"
	"FlowSleuth/internal/converter"
	"FlowSleuth/internal/factory"
	"FlowSleuth/internal/model"
	"FlowSleuth/internal/source"
	"FlowSleuth/internal/stitch"
	"FlowSleuth/internal/writer"
	"flag"
	"fmt"
	"log"
	"os"
	"time"
)

func main() {
	configPath := flag.String("config", "", "path to the configuration file (defaults are used when empty)")
	fromPcap := flag.Bool("pcap", false, "inputs are pcap/pcapng captures to convert instead of JSON records")
	output := flag.String("o", "", "write stitched sessions as JSON lines to this file ('-' for stdout) instead of the configured writers")
	policyFlag := flag.String("policy", "", "override the missing key policy: passthrough, skip or fail")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] [input ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// 1. Load configuration
	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		log.Println("Configuration loaded successfully.")
	}
	if *policyFlag != "" {
		cfg.Stitch.MissingKeyPolicy = *policyFlag
	}
	policy, err := stitch.ParsePolicy(cfg.Stitch.MissingKeyPolicy)
	if err != nil {
		log.Fatalf("Invalid stitch configuration: %v", err)
	}

	inputs := flag.Args()
	if len(inputs) == 0 {
		if *fromPcap {
			log.Fatalf("At least one capture file is required with -pcap")
		}
		inputs = []string{"-"}
	}

	// 2. Build the source; all inputs form a single batch
	src, closeFn, err := openInputs(cfg, inputs, *fromPcap)
	if err != nil {
		log.Fatalf("Failed to open inputs: %v", err)
	}
	defer closeFn()

	// 3. Stitch
	stitcher := stitch.New(policy)
	sessions, err := stitcher.Stitch(src)
	if err != nil {
		log.Fatalf("Failed to stitch flow records: %v", err)
	}
	st := stitcher.Stats()
	log.Printf("Stitched %d records into %d sessions (merged=%d reversed=%d skipped=%d unkeyed=%d)",
		st.Records, st.Sessions, st.Merged, st.Reversed, st.Skipped, st.Unkeyed)

	// 4. Write
	writers, err := createWriters(cfg, *output)
	if err != nil {
		log.Fatalf("Failed to create writers: %v", err)
	}
	if len(writers) == 0 {
		log.Fatalf("No writer is enabled.")
	}
	batch := "ns-stitch-" + time.Now().Format("20060102-150405")
	failed := false
	for _, w := range writers {
		if err := w.Write(sessions, batch); err != nil {
			log.Printf("Error writing batch %s: %v", batch, err)
			failed = true
		}
		if err := w.Close(); err != nil {
			log.Printf("Error closing writer: %v", err)
		}
	}
	if failed {
		os.Exit(1)
	}
}

func openInputs(cfg *config.Config, inputs []string, fromPcap bool) (model.Source, func(), error) {
	if fromPcap {
		opts, err := converter.OptionsFromConfig(cfg.Converter)
		if err != nil {
			return nil, nil, err
		}
		conv := converter.New(opts)
		var records []model.Record
		for _, path := range inputs {
			recs, err := conv.ConvertFile(path)
			if err != nil {
				return nil, nil, err
			}
			records = append(records, recs...)
		}
		return source.NewSliceSource(records), func() {}, nil
	}

	var (
		sources []model.Source
		files   []*source.FileSource
	)
	closeFn := func() {
		for _, f := range files {
			f.Close()
		}
	}
	for _, path := range inputs {
		f, err := source.Open(path)
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		files = append(files, f)
		sources = append(sources, f)
	}
	return source.Concat(sources...), closeFn, nil
}

func createWriters(cfg *config.Config, output string) ([]model.Writer, error) {
	if output == "" {
		return factory.CreateWriters(cfg)
	}
	w, err := writer.NewJSONFileWriter(output)
	if err != nil {
		return nil, err
	}
	return []model.Writer{w}, nil
}
