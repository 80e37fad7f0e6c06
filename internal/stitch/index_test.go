package stitch

import (
	"FlowSleuth/internal/model"
	"testing"
)

func TestIndex_LookupOrientation(t *testing.T) {
	ix := NewIndex(4)
	key := Key{SrcAddr: "10.0.0.1", DstAddr: "10.0.0.2", SrcPort: 1, DstPort: 2, Protocol: 6}
	ix.Insert(key, model.Record{"sa": "10.0.0.1"})

	if _, _, ok := ix.Lookup(Key{SrcAddr: "x"}, Key{SrcAddr: "y"}); ok {
		t.Errorf("Expected no match for unrelated keys")
	}

	e, o, ok := ix.Lookup(key, key.Reverse())
	if !ok || o != Forward || e.Key != key {
		t.Errorf("Expected forward match, got %v %v %v", e, o, ok)
	}

	e, o, ok = ix.Lookup(key.Reverse(), key)
	if !ok || o != Reverse || e.Key != key {
		t.Errorf("Expected reverse match, got %v %v %v", e, o, ok)
	}
}

func TestIndex_MergeIntoCountsRecords(t *testing.T) {
	ix := NewIndex(0)
	key := Key{SrcAddr: "a", DstAddr: "b", SrcPort: 1, DstPort: 2, Protocol: 6}
	e := ix.Insert(key, model.Record{"op": int64(1)})

	if err := ix.MergeInto(e, model.Record{"ip": int64(4)}, Reverse); err != nil {
		t.Fatalf("MergeInto failed: %v", err)
	}
	if e.Records != 2 {
		t.Errorf("Expected 2 records in session, got %d", e.Records)
	}
	if e.Record["op"] != int64(5) {
		t.Errorf("Expected op 5, got %v", e.Record["op"])
	}
	if err := ix.MergeInto(e, model.Record{}, Orientation(7)); err == nil {
		t.Errorf("Expected an error for unknown orientation")
	}
}

func TestIndex_RecordsInInsertionOrder(t *testing.T) {
	ix := NewIndex(0)
	ix.Insert(Key{SrcAddr: "b"}, model.Record{"n": int64(1)})
	ix.InsertUnkeyed(model.Record{"n": int64(2)})
	ix.Insert(Key{SrcAddr: "a"}, model.Record{"n": int64(3)})

	records := ix.Records()
	if ix.Len() != 3 || len(records) != 3 {
		t.Fatalf("Expected 3 sessions, got %d", ix.Len())
	}
	for i, rec := range records {
		if rec["n"] != int64(i+1) {
			t.Errorf("Record %d out of order: %v", i, rec)
		}
	}
}
