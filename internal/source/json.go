package source

import (
	"FlowSleuth/internal/model"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// JSONReader reads a stream of JSON flow records, one object per line.
type JSONReader struct {
	dec *json.Decoder
	n   int
}

// NewJSONReader creates a reader over newline-delimited JSON records.
func NewJSONReader(r io.Reader) *JSONReader {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &JSONReader{dec: dec}
}

// Next decodes the next record. It returns io.EOF at the end of the stream.
func (r *JSONReader) Next() (model.Record, error) {
	var obj map[string]interface{}
	if err := r.dec.Decode(&obj); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to decode flow record %d: %w", r.n, err)
	}
	r.n++
	if obj == nil {
		return nil, fmt.Errorf("flow record %d is not a JSON object", r.n-1)
	}
	return NormalizeRecord(obj), nil
}

// DecodeArray decodes a JSON array of flow records.
func DecodeArray(data []byte) ([]model.Record, error) {
	var objs []map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&objs); err != nil {
		return nil, fmt.Errorf("failed to decode flow record array: %w", err)
	}
	records := make([]model.Record, 0, len(objs))
	for i, obj := range objs {
		if obj == nil {
			return nil, fmt.Errorf("flow record %d is not a JSON object", i)
		}
		records = append(records, NormalizeRecord(obj))
	}
	return records, nil
}

// EncodeRecord writes a record as a single JSON line.
func EncodeRecord(w io.Writer, rec model.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode flow record: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
