package source

import (
	"FlowSleuth/internal/model"
	"math"

	"github.com/goccy/go-json"
)

// NormalizeRecord converts a decoded JSON object into a flow record whose
// values use the record value kinds: int64, float64, string and []int64.
func NormalizeRecord(obj map[string]interface{}) model.Record {
	rec := make(model.Record, len(obj))
	for k, v := range obj {
		rec[k] = Normalize(v)
	}
	return rec
}

// Normalize converts a single decoded JSON value. Integral numbers become
// int64, other numbers float64 and arrays of integers []int64. Nested values
// are normalised recursively and otherwise left alone.
func Normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case float64:
		if val == math.Trunc(val) && val >= math.MinInt64 && val < math.MaxInt64 {
			return int64(val)
		}
		return val
	case []interface{}:
		items := make([]interface{}, len(val))
		ints := make([]int64, len(val))
		allInts := true
		for i, e := range val {
			items[i] = Normalize(e)
			if n, ok := items[i].(int64); ok {
				ints[i] = n
			} else {
				allInts = false
			}
		}
		if allInts {
			return ints
		}
		return items
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, e := range val {
			out[k] = Normalize(e)
		}
		return out
	}
	return v
}
