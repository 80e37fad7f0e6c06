package stitch

import (
	"FlowSleuth/internal/model"
	"fmt"
	"math"
)

// Key is the session 5-tuple of a flow record.
type Key struct {
	SrcAddr  string
	DstAddr  string
	SrcPort  int64
	DstPort  int64
	Protocol int64
}

// Reverse returns the key with its endpoints swapped.
func (k Key) Reverse() Key {
	return Key{
		SrcAddr:  k.DstAddr,
		DstAddr:  k.SrcAddr,
		SrcPort:  k.DstPort,
		DstPort:  k.SrcPort,
		Protocol: k.Protocol,
	}
}

// CheckRange reports a FieldTypeError when a port lies outside 0..65535 or
// the protocol outside 0..255. Stitching compares keys as plain integers;
// storage layers with fixed-width columns call this before narrowing.
func (k Key) CheckRange() error {
	ports := []struct {
		field string
		value int64
	}{
		{model.FieldSrcPort, k.SrcPort},
		{model.FieldDstPort, k.DstPort},
	}
	for _, p := range ports {
		if p.value < 0 || p.value > math.MaxUint16 {
			return &FieldTypeError{Field: p.field, Value: p.value}
		}
	}
	if k.Protocol < 0 || k.Protocol > math.MaxUint8 {
		return &FieldTypeError{Field: model.FieldProtocol, Value: k.Protocol}
	}
	return nil
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d->%s:%d/%d", k.SrcAddr, k.SrcPort, k.DstAddr, k.DstPort, k.Protocol)
}

// ExtractKeys derives the forward key (sa,da,sp,dp,pr) and the reverse key
// (da,sa,dp,sp,pr) of a record.
func ExtractKeys(rec model.Record) (forward Key, reverse Key, err error) {
	if forward.SrcAddr, err = addrField(rec, model.FieldSrcAddr); err != nil {
		return Key{}, Key{}, err
	}
	if forward.DstAddr, err = addrField(rec, model.FieldDstAddr); err != nil {
		return Key{}, Key{}, err
	}
	if forward.SrcPort, err = intField(rec, model.FieldSrcPort); err != nil {
		return Key{}, Key{}, err
	}
	if forward.DstPort, err = intField(rec, model.FieldDstPort); err != nil {
		return Key{}, Key{}, err
	}
	if forward.Protocol, err = intField(rec, model.FieldProtocol); err != nil {
		return Key{}, Key{}, err
	}
	return forward, forward.Reverse(), nil
}

func addrField(rec model.Record, field string) (string, error) {
	v, ok := rec[field]
	if !ok || v == nil {
		return "", &MissingFieldError{Field: field}
	}
	s, ok := v.(string)
	if !ok {
		return "", &FieldTypeError{Field: field, Value: v}
	}
	return s, nil
}

func intField(rec model.Record, field string) (int64, error) {
	v, ok := rec[field]
	if !ok || v == nil {
		return 0, &MissingFieldError{Field: field}
	}
	n, ok := toInt64(v)
	if !ok {
		return 0, &FieldTypeError{Field: field, Value: v}
	}
	return n, nil
}
