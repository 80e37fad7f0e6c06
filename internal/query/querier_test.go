package query

import (
	"FlowSleuth/internal/stitch"
	"FlowSleuth/internal/writer"
	"context"
	"reflect"
	"strings"
	"testing"
)

func TestBuildSessionQuery(t *testing.T) {
	key := stitch.Key{SrcAddr: "1.1.1.1", DstAddr: "2.2.2.2", SrcPort: 1000, DstPort: 80, Protocol: 6}
	query, args := buildSessionQuery(key, 0)

	if strings.Count(query, "?") != len(args) {
		t.Fatalf("Placeholder count %d does not match %d args", strings.Count(query, "?"), len(args))
	}
	if args[0] != uint8(6) {
		t.Errorf("Expected protocol first, got %v", args[0])
	}
	if args[1] != "1.1.1.1" || args[5] != "2.2.2.2" || args[7] != uint16(80) {
		t.Errorf("Expected forward then reverse key, got %v", args)
	}
	if args[len(args)-1] != defaultLimit {
		t.Errorf("Expected default limit, got %v", args[len(args)-1])
	}
}

func TestRowToRecord(t *testing.T) {
	row := writer.SessionRow{
		SrcAddr: "1.1.1.1", DstAddr: "2.2.2.2", SrcPort: 1000, DstPort: 80, Protocol: 6,
		EndTime: 20, InPkts: 12, ByteDist: []int64{1}, Extra: `{"app":"http","sa":"ignored"}`,
	}
	rec, err := rowToRecord(row)
	if err != nil {
		t.Fatalf("rowToRecord failed: %v", err)
	}
	if rec["app"] != "http" || rec["sa"] != "1.1.1.1" || rec["sp"] != int64(1000) || rec["ip"] != int64(12) {
		t.Errorf("Unexpected record: %v", rec)
	}

	row.Extra = `{"vlan":12,"hops":[1,2,3],"rtt":1.5}`
	rec, err = rowToRecord(row)
	if err != nil {
		t.Fatalf("rowToRecord failed: %v", err)
	}
	if rec["vlan"] != int64(12) || rec["rtt"] != 1.5 {
		t.Errorf("Expected extra numbers to keep their record kinds, got vlan=%v (%T) rtt=%v (%T)",
			rec["vlan"], rec["vlan"], rec["rtt"], rec["rtt"])
	}
	if !reflect.DeepEqual(rec["hops"], []int64{1, 2, 3}) {
		t.Errorf("Expected integer array to decode as []int64, got %v (%T)", rec["hops"], rec["hops"])
	}

	row.Extra = "{broken"
	if _, err := rowToRecord(row); err == nil {
		t.Errorf("Expected an error for malformed extra fields")
	}
}

func TestFindSessions_RejectsOutOfRangeKey(t *testing.T) {
	q := &clickhouseQuerier{}
	key := stitch.Key{SrcAddr: "1.1.1.1", DstAddr: "2.2.2.2", SrcPort: 70000, DstPort: 80, Protocol: 6}
	if _, err := q.FindSessions(context.Background(), key, 0); err == nil {
		t.Fatalf("Expected an out-of-range port to be rejected before querying")
	}
}
