// Package converter turns packet captures into flow records the way a flow
// exporter does, including active and idle timeout splitting.
package converter

import (
	"FlowSleuth/internal/config"
	"FlowSleuth/internal/model"
	"FlowSleuth/pkg/pcap"
	"fmt"
	"log"
	"sort"
	"time"
)

// ByteDistributionSize is the number of bins of the bd histogram.
const ByteDistributionSize = 256

// ConversionError reports a capture that could not be converted.
type ConversionError struct {
	Path string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("failed to convert '%s' to flow records: %v", e.Path, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Options controls how packets are grouped into flow records.
type Options struct {
	// ActiveTimeout closes a record once it has been open this long.
	ActiveTimeout time.Duration
	// IdleTimeout closes a record after this long without packets.
	IdleTimeout time.Duration
	// ByteDistribution adds a payload byte-value histogram (bd) to each record.
	ByteDistribution bool
}

// OptionsFromConfig parses the converter section of the config.
func OptionsFromConfig(cfg config.ConverterConfig) (Options, error) {
	active, err := config.ParseDuration(cfg.ActiveTimeout)
	if err != nil {
		return Options{}, fmt.Errorf("invalid active_timeout: %w", err)
	}
	idle, err := config.ParseDuration(cfg.IdleTimeout)
	if err != nil {
		return Options{}, fmt.Errorf("invalid idle_timeout: %w", err)
	}
	return Options{ActiveTimeout: active, IdleTimeout: idle, ByteDistribution: cfg.ByteDistribution}, nil
}

// Converter builds flow records from packets.
type Converter struct {
	opts Options
}

// New creates a Converter.
func New(opts Options) *Converter {
	return &Converter{opts: opts}
}

// ConvertFile reads a pcap or pcapng file and returns its flow records in
// the order the exporter would have emitted them.
func (c *Converter) ConvertFile(path string) ([]model.Record, error) {
	reader, err := pcap.NewReader(path)
	if err != nil {
		return nil, &ConversionError{Path: path, Err: err}
	}
	defer reader.Close()

	packets := make(chan *model.PacketInfo, 1024)
	go reader.ReadPackets(packets)

	records := c.Convert(packets)
	log.Printf("Converted '%s' into %d flow records", path, len(records))
	return records, nil
}

// Convert consumes packets until the channel is closed.
func (c *Converter) Convert(packets <-chan *model.PacketInfo) []model.Record {
	var out []model.Record
	table := newFlowTable(c.opts, func(rec model.Record) { out = append(out, rec) })
	for info := range packets {
		table.add(info)
	}
	table.flush()
	return out
}

// Stream consumes packets until the channel is closed and calls emit for
// every record as soon as its flow expires. Flows that receive no more
// packets are expired by packet time, so a live capture keeps emitting.
func (c *Converter) Stream(packets <-chan *model.PacketInfo, emit func(model.Record)) {
	table := newFlowTable(c.opts, emit)
	var lastSweep time.Time
	for info := range packets {
		table.add(info)
		if info.Timestamp.Sub(lastSweep) >= time.Second {
			table.sweep(info.Timestamp)
			lastSweep = info.Timestamp
		}
	}
	table.flush()
}

type flowTable struct {
	opts   Options
	active map[tupleKey]*flow
	emit   func(model.Record)
	seq    uint64
}

func newFlowTable(opts Options, emit func(model.Record)) *flowTable {
	return &flowTable{opts: opts, active: make(map[tupleKey]*flow), emit: emit}
}

// add accounts a packet to its flow, expiring the flow first when a timeout
// has passed. A packet arriving after expiry opens a new record in its own
// orientation.
func (t *flowTable) add(info *model.PacketInfo) {
	key := newTupleKey(info.FiveTuple)
	f, ok := t.active[key]
	if !ok {
		f, ok = t.active[newTupleKey(info.FiveTuple.Reverse())]
	}

	if ok && t.expired(f, info.Timestamp) {
		t.emit(f.record(t.opts.ByteDistribution))
		delete(t.active, f.key)
		ok = false
	}

	if !ok {
		t.seq++
		f = newFlow(key, info, t.seq, t.opts.ByteDistribution)
		t.active[key] = f
	}
	f.add(info)
}

func (t *flowTable) expired(f *flow, ts time.Time) bool {
	if t.opts.ActiveTimeout > 0 && ts.Sub(f.start) >= t.opts.ActiveTimeout {
		return true
	}
	return t.opts.IdleTimeout > 0 && ts.Sub(f.end) >= t.opts.IdleTimeout
}

// sweep emits every flow that has expired by now, in creation order.
func (t *flowTable) sweep(now time.Time) {
	t.drain(func(f *flow) bool { return t.expired(f, now) })
}

// flush emits every remaining flow in creation order.
func (t *flowTable) flush() {
	t.drain(func(*flow) bool { return true })
}

func (t *flowTable) drain(match func(*flow) bool) {
	var done []*flow
	for _, f := range t.active {
		if match(f) {
			done = append(done, f)
		}
	}
	sort.Slice(done, func(i, j int) bool { return done[i].seq < done[j].seq })
	for _, f := range done {
		t.emit(f.record(t.opts.ByteDistribution))
		delete(t.active, f.key)
	}
}
