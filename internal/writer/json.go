package writer

import (
	"FlowSleuth/internal/config"
	"FlowSleuth/internal/factory"
	"FlowSleuth/internal/model"
	"FlowSleuth/internal/source"
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
)

func init() {
	factory.RegisterWriter("json", func(def config.WriterDef, cfg *config.Config) (model.Writer, error) {
		return NewJSONFileWriter(def.JSON.Path)
	})
}

// JSONWriter writes stitched records as JSON lines.
// It implements the model.Writer interface.
type JSONWriter struct {
	mu     sync.Mutex
	out    *bufio.Writer
	closer io.Closer
}

// NewJSONWriter creates a writer over w. w is not closed by Close.
func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{out: bufio.NewWriter(w)}
}

// NewJSONFileWriter creates a writer appending to path; "-" or "" is stdout.
func NewJSONFileWriter(path string) (*JSONWriter, error) {
	if path == "" || path == "-" {
		return NewJSONWriter(os.Stdout), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file '%s': %w", path, err)
	}
	w := NewJSONWriter(f)
	w.closer = f
	return w, nil
}

// Write appends one JSON line per record and flushes.
func (w *JSONWriter) Write(records []model.Record, batch string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, rec := range records {
		if err := source.EncodeRecord(w.out, rec); err != nil {
			return fmt.Errorf("batch %s: %w", batch, err)
		}
	}
	return w.out.Flush()
}

// Close flushes buffered output and closes the file, if any.
func (w *JSONWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.out.Flush(); err != nil {
		return err
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
