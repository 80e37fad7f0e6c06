// Package stitch reassembles bidirectional sessions from flow records that an
// exporter split apart on active timeout.
package stitch

import (
	"FlowSleuth/internal/model"
	"FlowSleuth/internal/source"
	"errors"
	"fmt"
	"io"
	"log"
)

// MissingKeyPolicy decides what happens to records that cannot be keyed.
type MissingKeyPolicy string

const (
	// PolicyPassthrough emits an unkeyable record as its own session.
	PolicyPassthrough MissingKeyPolicy = "passthrough"
	// PolicySkip drops unkeyable records.
	PolicySkip MissingKeyPolicy = "skip"
	// PolicyFail aborts the batch on the first unkeyable record.
	PolicyFail MissingKeyPolicy = "fail"
)

// ParsePolicy validates a policy name. The empty string selects PolicyPassthrough.
func ParsePolicy(s string) (MissingKeyPolicy, error) {
	switch p := MissingKeyPolicy(s); p {
	case "":
		return PolicyPassthrough, nil
	case PolicyPassthrough, PolicySkip, PolicyFail:
		return p, nil
	}
	return "", fmt.Errorf("unknown missing key policy: '%s'", s)
}

// Stats describes the last stitched batch.
type Stats struct {
	Records  int // records read from the source
	Sessions int // records emitted
	Merged   int // records folded into an existing session
	Reversed int // of Merged, how many matched in reverse orientation
	Skipped  int // unkeyable records dropped
	Unkeyed  int // unkeyable records passed through
}

// Stitcher merges timeout-split flow records into one record per session.
//
// Stitching is a batch boundary: the whole input is drained before any output
// is produced, and memory grows with the number of distinct sessions.
type Stitcher struct {
	policy MissingKeyPolicy
	stats  Stats
}

// New creates a Stitcher.
func New(policy MissingKeyPolicy) *Stitcher {
	if policy == "" {
		policy = PolicyPassthrough
	}
	return &Stitcher{policy: policy}
}

// Stats returns the statistics of the most recent Stitch call.
func (s *Stitcher) Stats() Stats {
	return s.stats
}

// Stitch drains src and returns one record per session in the order each
// session's first record appeared. Errors from src are returned wrapped.
func (s *Stitcher) Stitch(src model.Source) ([]model.Record, error) {
	s.stats = Stats{}
	index := NewIndex(0)

	for n := 0; ; n++ {
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading flow record %d: %w", n, err)
		}
		s.stats.Records++
		if err := s.add(index, n, rec); err != nil {
			return nil, err
		}
	}

	s.stats.Sessions = index.Len()
	return index.Records(), nil
}

// StitchRecords stitches an in-memory batch.
func (s *Stitcher) StitchRecords(records []model.Record) ([]model.Record, error) {
	return s.Stitch(source.NewSliceSource(records))
}

func (s *Stitcher) add(index *Index, n int, rec model.Record) error {
	forward, reverse, err := ExtractKeys(rec)
	if err != nil {
		switch s.policy {
		case PolicySkip:
			log.Printf("Skipping flow record %d: %v", n, err)
			s.stats.Skipped++
			return nil
		case PolicyFail:
			return fmt.Errorf("flow record %d: %w", n, err)
		default:
			index.InsertUnkeyed(rec)
			s.stats.Unkeyed++
			return nil
		}
	}

	entry, orientation, ok := index.Lookup(forward, reverse)
	if !ok {
		index.Insert(forward, rec)
		return nil
	}
	if err := index.MergeInto(entry, rec, orientation); err != nil {
		return fmt.Errorf("merging flow record %d into session %s (%s): %w", n, entry.Key, orientation, err)
	}
	s.stats.Merged++
	if orientation == Reverse {
		s.stats.Reversed++
	}
	return nil
}
