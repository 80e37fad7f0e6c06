// Package source provides upstream flow record producers for the stitcher.
package source

import (
	"FlowSleuth/internal/model"
	"errors"
	"io"
)

// SliceSource yields records from an in-memory slice.
type SliceSource struct {
	records []model.Record
	pos     int
}

// NewSliceSource creates a source over records.
func NewSliceSource(records []model.Record) *SliceSource {
	return &SliceSource{records: records}
}

// Next returns the next record or io.EOF.
func (s *SliceSource) Next() (model.Record, error) {
	if s.pos >= len(s.records) {
		return nil, io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}

type concatSource struct {
	sources []model.Source
}

// Concat yields the records of each source in turn.
func Concat(sources ...model.Source) model.Source {
	return &concatSource{sources: sources}
}

func (c *concatSource) Next() (model.Record, error) {
	for len(c.sources) > 0 {
		rec, err := c.sources[0].Next()
		if errors.Is(err, io.EOF) {
			c.sources = c.sources[1:]
			continue
		}
		return rec, err
	}
	return nil, io.EOF
}

// Drain reads src to exhaustion.
func Drain(src model.Source) ([]model.Record, error) {
	var records []model.Record
	for {
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}
