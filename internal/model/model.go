package model

import (
	"net"
	"time"
)

// Well-known flow record field names. Every other field is opaque and is
// passed through unchanged.
const (
	FieldSrcAddr   = "sa"
	FieldDstAddr   = "da"
	FieldSrcPort   = "sp"
	FieldDstPort   = "dp"
	FieldProtocol  = "pr"
	FieldStartTime = "ts"
	FieldEndTime   = "te"
	FieldInPkts    = "ip"
	FieldInBytes   = "ib"
	FieldOutPkts   = "op"
	FieldOutBytes  = "ob"
	FieldByteDist  = "bd"
)

// Record is a single exported flow record: a mapping from field name to value.
// Values are int64, float64, string or []int64; anything else is carried as-is.
type Record map[string]interface{}

// Clone returns a copy of the record. Integer sequences are copied so that
// merging into the clone never mutates the source record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		if seq, ok := v.([]int64); ok {
			v = append([]int64(nil), seq...)
		}
		out[k] = v
	}
	return out
}

// FiveTuple represents the 5-tuple of a network packet.
type FiveTuple struct {
	SrcIP    net.IP
	DstIP    net.IP
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8
}

// Reverse returns the tuple with source and destination swapped.
func (ft FiveTuple) Reverse() FiveTuple {
	return FiveTuple{
		SrcIP:    ft.DstIP,
		DstIP:    ft.SrcIP,
		SrcPort:  ft.DstPort,
		DstPort:  ft.SrcPort,
		Protocol: ft.Protocol,
	}
}

// PacketInfo holds the metadata extracted from a single packet.
type PacketInfo struct {
	Timestamp time.Time
	FiveTuple FiveTuple
	Length    int
	Payload   []byte
}
