package stitch

import "FlowSleuth/internal/model"

// reverseFields maps a direction-sensitive field of a reverse-orientation
// record onto the field it feeds in the existing session.
var reverseFields = map[string]string{
	model.FieldOutPkts:  model.FieldInPkts,
	model.FieldOutBytes: model.FieldInBytes,
	model.FieldInPkts:   model.FieldOutPkts,
	model.FieldInBytes:  model.FieldOutBytes,
}

// MergeForward folds a later record of the same orientation into existing.
//
// Fields absent from existing are copied, te keeps the maximum, the packet and
// byte counters are summed, bd is summed element-wise and every other field
// keeps the existing value. On error existing is left untouched.
func MergeForward(existing, incoming model.Record) error {
	return merge(existing, incoming, func(field string) string { return field })
}

// MergeReverse folds a later record seen with swapped endpoints into existing.
// The incoming record's outbound counters accumulate into the session's
// inbound counters and vice versa; all other fields follow MergeForward.
func MergeReverse(existing, incoming model.Record) error {
	return merge(existing, incoming, func(field string) string {
		if target, ok := reverseFields[field]; ok {
			return target
		}
		return field
	})
}

func merge(existing, incoming model.Record, target func(string) string) error {
	updates := make(model.Record, len(incoming))
	for field, value := range incoming {
		dst := target(field)
		current, ok := existing[dst]
		if !ok || current == nil {
			if seq, isSeq := value.([]int64); isSeq {
				value = append([]int64(nil), seq...)
			}
			updates[dst] = value
			continue
		}
		if value == nil {
			continue
		}

		var (
			merged interface{}
			err    error
		)
		switch dst {
		case model.FieldEndTime:
			merged, err = maxNumber(dst, current, value)
		case model.FieldInPkts, model.FieldInBytes, model.FieldOutPkts, model.FieldOutBytes:
			merged, err = addNumbers(dst, current, value)
		case model.FieldByteDist:
			merged, err = addSequences(dst, current, value)
		default:
			continue
		}
		if err != nil {
			return err
		}
		updates[dst] = merged
	}

	for field, value := range updates {
		existing[field] = value
	}
	return nil
}
