package writer

import (
	"FlowSleuth/internal/config"
	"FlowSleuth/internal/factory"
	"FlowSleuth/internal/model"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
)

func init() {
	// Register the concrete value types a record can hold.
	gob.Register(map[string]interface{}{})
	gob.Register([]interface{}{})
	gob.Register([]int64{})

	factory.RegisterWriter("gob", func(def config.WriterDef, cfg *config.Config) (model.Writer, error) {
		if def.Gob.RootPath == "" {
			return nil, fmt.Errorf("gob writer requires root_path")
		}
		return NewGobWriter(def.Gob.RootPath), nil
	})
}

// SummaryData holds the metadata for a stitched batch, internal to the writer.
type SummaryData struct {
	Batch     string `json:"batch"`
	Sessions  int    `json:"sessions"`
	InPkts    int64  `json:"in_packets"`
	InBytes   int64  `json:"in_bytes"`
	OutPkts   int64  `json:"out_packets"`
	OutBytes  int64  `json:"out_bytes"`
	Timestamp string `json:"timestamp"`
}

// GobWriter handles writing stitched batches to disk in gob format.
// It implements the model.Writer interface.
type GobWriter struct {
	rootPath string
}

// NewGobWriter creates a new writer rooted at rootPath.
func NewGobWriter(rootPath string) *GobWriter {
	return &GobWriter{rootPath: rootPath}
}

// Write stores the batch as <root>/<batch>/sessions.dat with a summary.json
// next to it. Empty batches are not written.
func (w *GobWriter) Write(records []model.Record, batch string) error {
	if len(records) == 0 {
		return nil
	}

	// 1. Create the batch directory
	batchDir := filepath.Join(w.rootPath, batch)
	if err := os.MkdirAll(batchDir, 0755); err != nil {
		return fmt.Errorf("failed to create batch directory: %w", err)
	}

	// 2. Write the sessions
	filePath := filepath.Join(batchDir, "sessions.dat")
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create session file '%s': %w", filePath, err)
	}
	defer file.Close()

	encoder := gob.NewEncoder(file)
	if err := encoder.Encode(records); err != nil {
		return fmt.Errorf("failed to encode sessions to gob for file '%s': %w", filePath, err)
	}

	// 3. Write the summary
	summary := Summarize(records)
	summary.Batch = batch
	summary.Timestamp = time.Now().UTC().Format(time.RFC3339)

	summaryFilePath := filepath.Join(batchDir, "summary.json")
	summaryFile, err := os.Create(summaryFilePath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer summaryFile.Close()

	jsonEncoder := json.NewEncoder(summaryFile)
	jsonEncoder.SetIndent("", "  ")
	if err := jsonEncoder.Encode(summary); err != nil {
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}

	return nil
}

// Close is a no-op; every batch is written to its own files.
func (w *GobWriter) Close() error {
	return nil
}

// ReadGobBatch loads the sessions written for one batch.
func ReadGobBatch(path string) ([]model.Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var records []model.Record
	if err := gob.NewDecoder(file).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode sessions from '%s': %w", path, err)
	}
	return records, nil
}

// Summarize totals the traffic counters of a batch.
func Summarize(records []model.Record) SummaryData {
	summary := SummaryData{Sessions: len(records)}
	for _, rec := range records {
		summary.InPkts += counter(rec, model.FieldInPkts)
		summary.InBytes += counter(rec, model.FieldInBytes)
		summary.OutPkts += counter(rec, model.FieldOutPkts)
		summary.OutBytes += counter(rec, model.FieldOutBytes)
	}
	return summary
}

func counter(rec model.Record, field string) int64 {
	switch v := rec[field].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}
