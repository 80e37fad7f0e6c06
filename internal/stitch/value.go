package stitch

import "math"

// toInt64 converts integral numeric values. Floats are accepted only when
// they carry no fractional part.
func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		// float64(math.MaxInt64) rounds up to 2^63, which is out of range.
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func toFloat64(v interface{}) (float64, bool) {
	if f, ok := v.(float64); ok {
		return f, true
	}
	if f, ok := v.(float32); ok {
		return float64(f), true
	}
	n, ok := toInt64(v)
	return float64(n), ok
}

func isFloat(v interface{}) bool {
	switch v.(type) {
	case float64, float32:
		return true
	}
	return false
}

// addNumbers sums two counters. The result stays an int64 unless either
// operand is floating point.
func addNumbers(field string, a, b interface{}) (interface{}, error) {
	if !isFloat(a) && !isFloat(b) {
		x, okA := toInt64(a)
		y, okB := toInt64(b)
		if okA && okB {
			return x + y, nil
		}
	}
	x, ok := toFloat64(a)
	if !ok {
		return nil, &FieldTypeError{Field: field, Value: a}
	}
	y, ok := toFloat64(b)
	if !ok {
		return nil, &FieldTypeError{Field: field, Value: b}
	}
	return x + y, nil
}

// maxNumber returns whichever of a and b is larger, keeping its original type.
func maxNumber(field string, a, b interface{}) (interface{}, error) {
	x, ok := toFloat64(a)
	if !ok {
		return nil, &FieldTypeError{Field: field, Value: a}
	}
	y, ok := toFloat64(b)
	if !ok {
		return nil, &FieldTypeError{Field: field, Value: b}
	}
	if y > x {
		return b, nil
	}
	return a, nil
}

func toSequence(field string, v interface{}) ([]int64, error) {
	switch seq := v.(type) {
	case []int64:
		return seq, nil
	case []int:
		out := make([]int64, len(seq))
		for i, n := range seq {
			out[i] = int64(n)
		}
		return out, nil
	case []interface{}:
		out := make([]int64, len(seq))
		for i, e := range seq {
			n, ok := toInt64(e)
			if !ok {
				return nil, &FieldTypeError{Field: field, Value: v}
			}
			out[i] = n
		}
		return out, nil
	}
	return nil, &FieldTypeError{Field: field, Value: v}
}

// addSequences sums two equal-length integer sequences element by element.
func addSequences(field string, a, b interface{}) ([]int64, error) {
	x, err := toSequence(field, a)
	if err != nil {
		return nil, err
	}
	y, err := toSequence(field, b)
	if err != nil {
		return nil, err
	}
	if len(x) != len(y) {
		return nil, &ArityMismatchError{Field: field, Existing: len(x), Incoming: len(y)}
	}
	out := make([]int64, len(x))
	for i := range x {
		out[i] = x[i] + y[i]
	}
	return out, nil
}
