package transport

import (
	"FlowSleuth/internal/model"
	"FlowSleuth/internal/source"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Encode serialises a record as a protobuf google.protobuf.Struct.
//
// Struct numbers are doubles: integers above 2^53 lose precision and
// integral floats decode as int64.
func Encode(rec model.Record) ([]byte, error) {
	fields := make(map[string]interface{}, len(rec))
	for k, v := range rec {
		fields[k] = toStructValue(v)
	}
	pbStruct, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to convert flow record: %w", err)
	}
	return proto.Marshal(pbStruct)
}

// Decode parses a record produced by Encode.
func Decode(data []byte) (model.Record, error) {
	var pbStruct structpb.Struct
	if err := proto.Unmarshal(data, &pbStruct); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flow record: %w", err)
	}
	return source.NormalizeRecord(pbStruct.AsMap()), nil
}

// toStructValue rewrites the slice types structpb cannot take directly.
func toStructValue(v interface{}) interface{} {
	switch val := v.(type) {
	case []int64:
		out := make([]interface{}, len(val))
		for i, n := range val {
			out[i] = n
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = toStructValue(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, e := range val {
			out[k] = toStructValue(e)
		}
		return out
	case model.Record:
		return toStructValue(map[string]interface{}(val))
	}
	return v
}
