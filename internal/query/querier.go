package query

import (
	"FlowSleuth/internal/config"
	"FlowSleuth/internal/model"
	"FlowSleuth/internal/source"
	"FlowSleuth/internal/stitch"
	"FlowSleuth/internal/writer"
	"context"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/goccy/go-json"
)

const defaultLimit = 100

// Querier defines the interface for querying stitched sessions.
type Querier interface {
	// FindSessions returns the stored sessions of key in either orientation,
	// oldest batch first.
	FindSessions(ctx context.Context, key stitch.Key, limit int) ([]model.Record, error)
}

// clickhouseQuerier implements the Querier interface for ClickHouse.
type clickhouseQuerier struct {
	conn driver.Conn
}

// NewClickHouseQuerier creates a new querier for ClickHouse.
func NewClickHouseQuerier(cfg config.ClickHouseConfig) (Querier, error) {
	conn, err := writer.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &clickhouseQuerier{conn: conn}, nil
}

// buildSessionQuery matches a session key in both orientations. key must
// have passed CheckRange.
func buildSessionQuery(key stitch.Key, limit int) (string, []interface{}) {
	if limit <= 0 {
		limit = defaultLimit
	}
	reverse := key.Reverse()
	query := `
		SELECT
			Batch, SrcAddr, DstAddr, SrcPort, DstPort, Protocol,
			StartTime, EndTime, InPkts, InBytes, OutPkts, OutBytes, ByteDist, Extra
		FROM stitched_flows
		WHERE Protocol = ? AND (
			(SrcAddr = ? AND DstAddr = ? AND SrcPort = ? AND DstPort = ?) OR
			(SrcAddr = ? AND DstAddr = ? AND SrcPort = ? AND DstPort = ?)
		)
		ORDER BY InsertedAt
		LIMIT ?`
	args := []interface{}{
		uint8(key.Protocol),
		key.SrcAddr, key.DstAddr, uint16(key.SrcPort), uint16(key.DstPort),
		reverse.SrcAddr, reverse.DstAddr, uint16(reverse.SrcPort), uint16(reverse.DstPort),
		limit,
	}
	return query, args
}

// FindSessions executes the session lookup.
func (q *clickhouseQuerier) FindSessions(ctx context.Context, key stitch.Key, limit int) ([]model.Record, error) {
	if err := key.CheckRange(); err != nil {
		return nil, fmt.Errorf("invalid session key %s: %w", key, err)
	}
	query, args := buildSessionQuery(key, limit)
	rows, err := q.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var sessions []model.Record
	for rows.Next() {
		var (
			batch string
			row   writer.SessionRow
		)
		if err := rows.Scan(&batch, &row.SrcAddr, &row.DstAddr, &row.SrcPort, &row.DstPort, &row.Protocol,
			&row.StartTime, &row.EndTime, &row.InPkts, &row.InBytes, &row.OutPkts, &row.OutBytes,
			&row.ByteDist, &row.Extra); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		rec, err := rowToRecord(row)
		if err != nil {
			return nil, err
		}
		rec["batch"] = batch
		sessions = append(sessions, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session rows: %w", err)
	}
	return sessions, nil
}

// rowToRecord reverses writer.NewSessionRow.
func rowToRecord(row writer.SessionRow) (model.Record, error) {
	rec := model.Record{}
	if row.Extra != "" && row.Extra != "{}" {
		var extra map[string]interface{}
		dec := json.NewDecoder(strings.NewReader(row.Extra))
		dec.UseNumber()
		if err := dec.Decode(&extra); err != nil {
			return nil, fmt.Errorf("failed to decode extra fields: %w", err)
		}
		rec = source.NormalizeRecord(extra)
	}
	rec[model.FieldSrcAddr] = row.SrcAddr
	rec[model.FieldDstAddr] = row.DstAddr
	rec[model.FieldSrcPort] = int64(row.SrcPort)
	rec[model.FieldDstPort] = int64(row.DstPort)
	rec[model.FieldProtocol] = int64(row.Protocol)
	rec[model.FieldStartTime] = row.StartTime
	rec[model.FieldEndTime] = row.EndTime
	rec[model.FieldInPkts] = row.InPkts
	rec[model.FieldInBytes] = row.InBytes
	rec[model.FieldOutPkts] = row.OutPkts
	rec[model.FieldOutBytes] = row.OutBytes
	if len(row.ByteDist) > 0 {
		rec[model.FieldByteDist] = row.ByteDist
	}
	return rec, nil
}
