package stitch

import (
	"FlowSleuth/internal/model"
	"fmt"
)

// Orientation tells how a record's 5-tuple relates to the session it matched.
type Orientation int

const (
	Forward Orientation = iota
	Reverse
)

func (o Orientation) String() string {
	switch o {
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	}
	return fmt.Sprintf("Orientation(%d)", int(o))
}

// Entry is one session held by the Index.
type Entry struct {
	// Key is the orientation the session was first seen in. Unkeyed entries
	// have a zero Key.
	Key     Key
	Record  model.Record
	// Records counts the flow records folded into this session.
	Records int
}

// Index is an insertion-ordered store of the sessions of one stitching batch.
// It is not safe for concurrent use.
type Index struct {
	sessions map[Key]*Entry
	order    []*Entry
}

// NewIndex creates an empty index. sizeHint pre-sizes the session map.
func NewIndex(sizeHint int) *Index {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &Index{sessions: make(map[Key]*Entry, sizeHint)}
}

// Lookup finds the session a record belongs to, trying its forward key first
// and its reverse key second.
func (ix *Index) Lookup(forward, reverse Key) (*Entry, Orientation, bool) {
	if e, ok := ix.sessions[forward]; ok {
		return e, Forward, true
	}
	if e, ok := ix.sessions[reverse]; ok {
		return e, Reverse, true
	}
	return nil, Forward, false
}

// Insert starts a new session keyed by key. The record is copied.
func (ix *Index) Insert(key Key, rec model.Record) *Entry {
	e := &Entry{Key: key, Record: rec.Clone(), Records: 1}
	ix.sessions[key] = e
	ix.order = append(ix.order, e)
	return e
}

// InsertUnkeyed appends a record that cannot be keyed as its own session.
// It is never returned by Lookup.
func (ix *Index) InsertUnkeyed(rec model.Record) *Entry {
	e := &Entry{Record: rec.Clone(), Records: 1}
	ix.order = append(ix.order, e)
	return e
}

// MergeInto applies the merge policy for orientation to the entry.
func (ix *Index) MergeInto(e *Entry, incoming model.Record, orientation Orientation) error {
	var err error
	switch orientation {
	case Forward:
		err = MergeForward(e.Record, incoming)
	case Reverse:
		err = MergeReverse(e.Record, incoming)
	default:
		return fmt.Errorf("unknown orientation %v", orientation)
	}
	if err != nil {
		return err
	}
	e.Records++
	return nil
}

// Len returns the number of sessions, keyed or not.
func (ix *Index) Len() int {
	return len(ix.order)
}

// Records returns the session records in first-seen order.
func (ix *Index) Records() []model.Record {
	out := make([]model.Record, len(ix.order))
	for i, e := range ix.order {
		out[i] = e.Record
	}
	return out
}
