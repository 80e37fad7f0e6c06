package stitch

import (
	"FlowSleuth/internal/model"
	"errors"
	"fmt"
	"io"
	"reflect"
	"testing"
)

func flow(sa, da string, sp, dp int64, extra model.Record) model.Record {
	rec := model.Record{"sa": sa, "da": da, "sp": sp, "dp": dp, "pr": int64(6)}
	for k, v := range extra {
		rec[k] = v
	}
	return rec
}

func TestStitcher_ReverseScenario(t *testing.T) {
	a := flow("1.1.1.1", "2.2.2.2", 1000, 80, model.Record{"ip": int64(5), "ib": int64(500), "te": int64(10)})
	b := flow("2.2.2.2", "1.1.1.1", 80, 1000, model.Record{"op": int64(7), "ob": int64(700), "te": int64(20)})

	s := New(PolicyPassthrough)
	out, err := s.StitchRecords([]model.Record{a, b})
	if err != nil {
		t.Fatalf("StitchRecords failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(out))
	}

	got := out[0]
	if got["ip"] != int64(12) {
		t.Errorf("Expected ip 12, got %v", got["ip"])
	}
	if got["ib"] != int64(1200) {
		t.Errorf("Expected ib 1200, got %v", got["ib"])
	}
	if got["te"] != int64(20) {
		t.Errorf("Expected te 20, got %v", got["te"])
	}
	for field, want := range map[string]interface{}{"sa": "1.1.1.1", "da": "2.2.2.2", "sp": int64(1000), "dp": int64(80), "pr": int64(6)} {
		if got[field] != want {
			t.Errorf("Expected %s to stay %v, got %v", field, want, got[field])
		}
	}

	stats := s.Stats()
	if stats.Records != 2 || stats.Sessions != 1 || stats.Merged != 1 || stats.Reversed != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestStitcher_DoesNotMutateInput(t *testing.T) {
	a := flow("1.1.1.1", "2.2.2.2", 1000, 80, model.Record{"ip": int64(5), "bd": []int64{1, 2}})
	b := flow("1.1.1.1", "2.2.2.2", 1000, 80, model.Record{"ip": int64(3), "bd": []int64{1, 1}})

	if _, err := New(PolicyPassthrough).StitchRecords([]model.Record{a, b}); err != nil {
		t.Fatalf("StitchRecords failed: %v", err)
	}
	if a["ip"] != int64(5) || !reflect.DeepEqual(a["bd"], []int64{1, 2}) {
		t.Errorf("First input record was mutated: %v", a)
	}
}

func TestStitcher_SessionCountInvariant(t *testing.T) {
	tests := []struct {
		name     string
		records  []model.Record
		sessions int
	}{
		{"empty", nil, 0},
		{
			name: "distinct",
			records: []model.Record{
				flow("10.0.0.1", "10.0.0.2", 1, 2, nil),
				flow("10.0.0.1", "10.0.0.2", 1, 3, nil),
				flow("10.0.0.3", "10.0.0.2", 1, 2, nil),
			},
			sessions: 3,
		},
		{
			name: "same and reverse",
			records: []model.Record{
				flow("10.0.0.1", "10.0.0.2", 1, 2, nil),
				flow("10.0.0.2", "10.0.0.1", 2, 1, nil),
				flow("10.0.0.1", "10.0.0.2", 1, 2, nil),
				flow("10.0.0.9", "10.0.0.2", 1, 2, nil),
			},
			sessions: 2,
		},
		{
			name: "different protocol is a different session",
			records: []model.Record{
				flow("10.0.0.1", "10.0.0.2", 1, 2, nil),
				flow("10.0.0.1", "10.0.0.2", 1, 2, model.Record{"pr": int64(17)}),
			},
			sessions: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := New(PolicyPassthrough).StitchRecords(tt.records)
			if err != nil {
				t.Fatalf("StitchRecords failed: %v", err)
			}
			if len(out) != tt.sessions {
				t.Errorf("Expected %d sessions, got %d", tt.sessions, len(out))
			}
			if len(out) > len(tt.records) {
				t.Errorf("Output (%d) larger than input (%d)", len(out), len(tt.records))
			}
		})
	}
}

func TestStitcher_FirstSeenOrder(t *testing.T) {
	records := []model.Record{
		flow("10.0.0.1", "10.0.0.9", 100, 443, model.Record{"id": "a"}),
		flow("10.0.0.2", "10.0.0.9", 100, 443, model.Record{"id": "b"}),
		flow("10.0.0.9", "10.0.0.1", 443, 100, model.Record{"id": "a2"}),
		flow("10.0.0.3", "10.0.0.9", 100, 443, model.Record{"id": "c"}),
		flow("10.0.0.2", "10.0.0.9", 100, 443, model.Record{"id": "b2"}),
		flow("10.0.0.1", "10.0.0.9", 100, 443, model.Record{"id": "a3"}),
	}

	out, err := New(PolicyPassthrough).StitchRecords(records)
	if err != nil {
		t.Fatalf("StitchRecords failed: %v", err)
	}

	var ids []string
	for _, rec := range out {
		ids = append(ids, rec["id"].(string))
	}
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("Expected order %v, got %v", want, ids)
	}
}

func TestStitcher_EndTimeIsMaximum(t *testing.T) {
	records := []model.Record{
		flow("10.0.0.1", "10.0.0.2", 5, 6, model.Record{"te": 30.5}),
		flow("10.0.0.2", "10.0.0.1", 6, 5, model.Record{"te": 90.25}),
		flow("10.0.0.1", "10.0.0.2", 5, 6, model.Record{"te": 60.0}),
	}

	out, err := New(PolicyPassthrough).StitchRecords(records)
	if err != nil {
		t.Fatalf("StitchRecords failed: %v", err)
	}
	if out[0]["te"] != 90.25 {
		t.Errorf("Expected te 90.25, got %v", out[0]["te"])
	}
}

func TestStitcher_SameOrientationAccumulation(t *testing.T) {
	var records []model.Record
	var wantIP, wantIB, wantOP, wantOB int64
	for i := int64(1); i <= 5; i++ {
		records = append(records, flow("192.168.1.1", "8.8.8.8", 5353, 53, model.Record{
			"ip": i, "ib": i * 100, "op": i * 2, "ob": i * 200,
		}))
		wantIP += i
		wantIB += i * 100
		wantOP += i * 2
		wantOB += i * 200
	}

	out, err := New(PolicyPassthrough).StitchRecords(records)
	if err != nil {
		t.Fatalf("StitchRecords failed: %v", err)
	}
	got := out[0]
	if got["ip"] != wantIP || got["ib"] != wantIB || got["op"] != wantOP || got["ob"] != wantOB {
		t.Errorf("Expected ip=%d ib=%d op=%d ob=%d, got %v", wantIP, wantIB, wantOP, wantOB, got)
	}
}

func TestStitcher_ByteDistribution(t *testing.T) {
	records := []model.Record{
		flow("10.0.0.1", "10.0.0.2", 5, 6, model.Record{"bd": []int64{1, 0, 2}}),
		flow("10.0.0.2", "10.0.0.1", 6, 5, model.Record{"bd": []int64{0, 3, 1}}),
		flow("10.0.0.1", "10.0.0.2", 5, 6, model.Record{"bd": []int64{4, 4, 4}}),
	}

	out, err := New(PolicyPassthrough).StitchRecords(records)
	if err != nil {
		t.Fatalf("StitchRecords failed: %v", err)
	}
	if want := []int64{5, 7, 7}; !reflect.DeepEqual(out[0]["bd"], want) {
		t.Errorf("Expected bd %v, got %v", want, out[0]["bd"])
	}

	records = append(records, flow("10.0.0.1", "10.0.0.2", 5, 6, model.Record{"bd": []int64{1}}))
	_, err = New(PolicyPassthrough).StitchRecords(records)
	var arity *ArityMismatchError
	if !errors.As(err, &arity) {
		t.Fatalf("Expected ArityMismatchError, got %v", err)
	}
	if arity.Existing != 3 || arity.Incoming != 1 {
		t.Errorf("Unexpected arity error: %+v", arity)
	}
	if !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("Expected error to match ErrInvalidRecord")
	}
}

func TestStitcher_MissingKeyPolicies(t *testing.T) {
	records := []model.Record{
		flow("10.0.0.1", "10.0.0.2", 5, 6, model.Record{"ip": int64(1)}),
		{"sa": "10.0.0.7", "ip": int64(9)},
		flow("10.0.0.1", "10.0.0.2", 5, 6, model.Record{"ip": int64(1)}),
	}

	t.Run("passthrough", func(t *testing.T) {
		s := New(PolicyPassthrough)
		out, err := s.StitchRecords(records)
		if err != nil {
			t.Fatalf("StitchRecords failed: %v", err)
		}
		if len(out) != 2 {
			t.Fatalf("Expected 2 sessions, got %d", len(out))
		}
		if out[1]["ip"] != int64(9) {
			t.Errorf("Expected unkeyed record second, got %v", out[1])
		}
		if s.Stats().Unkeyed != 1 {
			t.Errorf("Expected 1 unkeyed record, got %d", s.Stats().Unkeyed)
		}
	})

	t.Run("skip", func(t *testing.T) {
		s := New(PolicySkip)
		out, err := s.StitchRecords(records)
		if err != nil {
			t.Fatalf("StitchRecords failed: %v", err)
		}
		if len(out) != 1 || out[0]["ip"] != int64(2) {
			t.Errorf("Expected one merged session with ip 2, got %v", out)
		}
		if s.Stats().Skipped != 1 {
			t.Errorf("Expected 1 skipped record, got %d", s.Stats().Skipped)
		}
	})

	t.Run("fail", func(t *testing.T) {
		_, err := New(PolicyFail).StitchRecords(records)
		var missing *MissingFieldError
		if !errors.As(err, &missing) {
			t.Fatalf("Expected MissingFieldError, got %v", err)
		}
		if missing.Field != "da" {
			t.Errorf("Expected missing field 'da', got '%s'", missing.Field)
		}
	})
}

type failingSource struct {
	records []model.Record
	err     error
}

func (f *failingSource) Next() (model.Record, error) {
	if len(f.records) == 0 {
		return nil, f.err
	}
	rec := f.records[0]
	f.records = f.records[1:]
	return rec, nil
}

func TestStitcher_PropagatesSourceError(t *testing.T) {
	upstream := fmt.Errorf("decode failure")
	src := &failingSource{records: []model.Record{flow("10.0.0.1", "10.0.0.2", 5, 6, nil)}, err: upstream}

	_, err := New(PolicyPassthrough).Stitch(src)
	if !errors.Is(err, upstream) {
		t.Fatalf("Expected upstream error to propagate, got %v", err)
	}

	src = &failingSource{err: io.EOF}
	out, err := New(PolicyPassthrough).Stitch(src)
	if err != nil || len(out) != 0 {
		t.Errorf("Expected empty result for empty source, got %v, %v", out, err)
	}
}

func TestParsePolicy(t *testing.T) {
	for _, name := range []string{"", "passthrough", "skip", "fail"} {
		if _, err := ParsePolicy(name); err != nil {
			t.Errorf("ParsePolicy(%q) failed: %v", name, err)
		}
	}
	if _, err := ParsePolicy("drop"); err == nil {
		t.Errorf("Expected an error for unknown policy")
	}
}
