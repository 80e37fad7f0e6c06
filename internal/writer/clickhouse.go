package writer

import (
	"FlowSleuth/internal/config"
	"FlowSleuth/internal/factory"
	"FlowSleuth/internal/model"
	"FlowSleuth/internal/stitch"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/goccy/go-json"
)

func init() {
	factory.RegisterWriter("clickhouse", func(def config.WriterDef, cfg *config.Config) (model.Writer, error) {
		return NewClickHouseWriter(def.ClickHouse)
	})
}

const createTableStatement = `
CREATE TABLE IF NOT EXISTS stitched_flows (
    Batch       String,
    InsertedAt  DateTime,
    SrcAddr     String,
    DstAddr     String,
    SrcPort     UInt16,
    DstPort     UInt16,
    Protocol    UInt8,
    StartTime   Float64,
    EndTime     Float64,
    InPkts      Int64,
    InBytes     Int64,
    OutPkts     Int64,
    OutBytes    Int64,
    ByteDist    Array(Int64),
    Extra       String
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(InsertedAt)
ORDER BY (SrcAddr, DstAddr, SrcPort, DstPort, Protocol, InsertedAt);
`

// ClickHouseWriter implements the model.Writer interface for ClickHouse.
type ClickHouseWriter struct {
	conn driver.Conn
}

// NewClickHouseWriter creates a new ClickHouse writer.
func NewClickHouseWriter(cfg config.ClickHouseConfig) (model.Writer, error) {
	conn, err := Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(context.Background(), createTableStatement); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	log.Println("Successfully connected to ClickHouse and ensured table exists.")

	return &ClickHouseWriter{conn: conn}, nil
}

// Connect opens and pings a ClickHouse connection.
func Connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: false,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})

	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	return conn, nil
}

// Write inserts the stitched sessions into the stitched_flows table.
// Records without a complete session key, or whose key does not fit the
// columns, cannot be stored and are skipped.
func (w *ClickHouseWriter) Write(records []model.Record, batch string) error {
	ctx := context.Background()
	batchInsert, err := w.conn.PrepareBatch(ctx, "INSERT INTO stitched_flows")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	insertedAt := time.Now()
	rows, skipped := 0, 0

	for _, rec := range records {
		row, err := NewSessionRow(rec)
		if err != nil {
			if skipped == 0 {
				log.Printf("Skipping session of batch %s for ClickHouse: %v", batch, err)
			}
			skipped++
			continue
		}
		err = batchInsert.Append(
			batch,
			insertedAt,
			row.SrcAddr,
			row.DstAddr,
			row.SrcPort,
			row.DstPort,
			row.Protocol,
			row.StartTime,
			row.EndTime,
			row.InPkts,
			row.InBytes,
			row.OutPkts,
			row.OutBytes,
			row.ByteDist,
			row.Extra,
		)
		if err != nil {
			return fmt.Errorf("failed to append session to batch: %w", err)
		}
		rows++
	}

	if skipped > 0 {
		log.Printf("Skipped %d sessions without a storable key in batch %s for ClickHouse", skipped, batch)
	}
	if rows == 0 {
		return batchInsert.Abort()
	}

	if err := batchInsert.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	log.Printf("Wrote %d sessions to ClickHouse for batch '%s'", rows, batch)
	return nil
}

// Close closes the ClickHouse connection.
func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}

// SessionRow is the column layout of one stitched_flows row.
type SessionRow struct {
	SrcAddr   string
	DstAddr   string
	SrcPort   uint16
	DstPort   uint16
	Protocol  uint8
	StartTime float64
	EndTime   float64
	InPkts    int64
	InBytes   int64
	OutPkts   int64
	OutBytes  int64
	ByteDist  []int64
	// Extra holds every non-standard field as a JSON object.
	Extra string
}

var standardFields = map[string]bool{
	model.FieldSrcAddr: true, model.FieldDstAddr: true, model.FieldSrcPort: true,
	model.FieldDstPort: true, model.FieldProtocol: true, model.FieldStartTime: true,
	model.FieldEndTime: true, model.FieldInPkts: true, model.FieldInBytes: true,
	model.FieldOutPkts: true, model.FieldOutBytes: true, model.FieldByteDist: true,
}

// NewSessionRow maps a record onto table columns. The session key is read
// the way the stitcher reads it; a record without a key, or whose ports or
// protocol do not fit the columns, is rejected with the reason.
func NewSessionRow(rec model.Record) (SessionRow, error) {
	key, _, err := stitch.ExtractKeys(rec)
	if err != nil {
		return SessionRow{}, err
	}
	if err := key.CheckRange(); err != nil {
		return SessionRow{}, err
	}

	row := SessionRow{
		SrcAddr:   key.SrcAddr,
		DstAddr:   key.DstAddr,
		SrcPort:   uint16(key.SrcPort),
		DstPort:   uint16(key.DstPort),
		Protocol:  uint8(key.Protocol),
		StartTime: seconds(rec[model.FieldStartTime]),
		EndTime:   seconds(rec[model.FieldEndTime]),
		InPkts:    counter(rec, model.FieldInPkts),
		InBytes:   counter(rec, model.FieldInBytes),
		OutPkts:   counter(rec, model.FieldOutPkts),
		OutBytes:  counter(rec, model.FieldOutBytes),
		ByteDist:  []int64{},
		Extra:     "{}",
	}
	if bd, ok := rec[model.FieldByteDist].([]int64); ok {
		row.ByteDist = bd
	}

	extra := make(map[string]interface{})
	for k, v := range rec {
		if !standardFields[k] {
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		if data, err := json.Marshal(extra); err == nil {
			row.Extra = string(data)
		}
	}
	return row, nil
}

func seconds(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	}
	return 0
}
