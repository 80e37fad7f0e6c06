package converter

import (
	"FlowSleuth/internal/model"
	"net"
	"time"
)

// tupleKey is a comparable form of model.FiveTuple.
type tupleKey struct {
	src, dst         string
	srcPort, dstPort uint16
	proto            uint8
}

func newTupleKey(ft model.FiveTuple) tupleKey {
	return tupleKey{
		src:     string(normalizeIP(ft.SrcIP)),
		dst:     string(normalizeIP(ft.DstIP)),
		srcPort: ft.SrcPort,
		dstPort: ft.DstPort,
		proto:   ft.Protocol,
	}
}

func normalizeIP(ip net.IP) net.IP {
	if v4 := ip.To4(); v4 != nil {
		return v4
	}
	return ip
}

// flow accumulates the packets of one exported record. Outbound counters
// cover packets sent by the record's source address.
type flow struct {
	key      tupleKey
	tuple    model.FiveTuple
	seq      uint64
	start    time.Time
	end      time.Time
	outPkts  int64
	outBytes int64
	inPkts   int64
	inBytes  int64
	bd       []int64
}

func newFlow(key tupleKey, info *model.PacketInfo, seq uint64, byteDist bool) *flow {
	f := &flow{
		key:   key,
		tuple: info.FiveTuple,
		seq:   seq,
		start: info.Timestamp,
		end:   info.Timestamp,
	}
	if byteDist {
		f.bd = make([]int64, ByteDistributionSize)
	}
	return f
}

func (f *flow) add(info *model.PacketInfo) {
	if info.Timestamp.After(f.end) {
		f.end = info.Timestamp
	}
	if newTupleKey(info.FiveTuple) == f.key {
		f.outPkts++
		f.outBytes += int64(info.Length)
	} else {
		f.inPkts++
		f.inBytes += int64(info.Length)
	}
	if f.bd != nil {
		for _, b := range info.Payload {
			f.bd[b]++
		}
	}
}

func (f *flow) record(byteDist bool) model.Record {
	rec := model.Record{
		model.FieldSrcAddr:   f.tuple.SrcIP.String(),
		model.FieldDstAddr:   f.tuple.DstIP.String(),
		model.FieldSrcPort:   int64(f.tuple.SrcPort),
		model.FieldDstPort:   int64(f.tuple.DstPort),
		model.FieldProtocol:  int64(f.tuple.Protocol),
		model.FieldStartTime: epochSeconds(f.start),
		model.FieldEndTime:   epochSeconds(f.end),
		model.FieldOutPkts:   f.outPkts,
		model.FieldOutBytes:  f.outBytes,
	}
	if f.inPkts > 0 {
		rec[model.FieldInPkts] = f.inPkts
		rec[model.FieldInBytes] = f.inBytes
	}
	if byteDist {
		rec[model.FieldByteDist] = f.bd
	}
	return rec
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
