package extract

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
	"github.com/drsanjula/iOSBackupExplorer/internal/locate"
)

// CallHistory reads the call log.
type CallHistory struct {
	store store
	calls lazy[ibex.CallRecord]
}

// NewCallHistory returns a call history extractor over index.
func NewCallHistory(index ibex.Index, opts ...Option) *CallHistory {
	o := buildOptions(opts)
	return &CallHistory{store: newStore("call history", index, o, locate.CallHistory)}
}

var callProbes = []probe[ibex.CallRecord]{
	{name: "ZCALLRECORD", run: modernCalls},
	{name: "call", run: legacyCalls},
}

// All returns every call, newest first.
func (c *CallHistory) All(ctx context.Context) []ibex.CallRecord {
	return c.calls.get(ctx, func(ctx context.Context) []ibex.CallRecord {
		return load(ctx, c.store, callProbes)
	})
}

// Modern stores keep fractional seconds since the platform epoch. Dates are
// cast because the driver turns integers in TIMESTAMP columns into Unix times.
func modernCalls(ctx context.Context, db *sql.DB) ([]ibex.CallRecord, error) {
	return queryCalls(ctx, db, `
		SELECT Z_PK, ZADDRESS, CAST(ZDATE AS REAL), ZDURATION, ZCALLTYPE, ZANSWERED
		FROM ZCALLRECORD
		ORDER BY ZDATE DESC`, ibex.FromPlatformSeconds)
}

// Legacy stores keep Unix seconds and encode the type in flags.
func legacyCalls(ctx context.Context, db *sql.DB) ([]ibex.CallRecord, error) {
	return queryCalls(ctx, db, `
		SELECT ROWID, address, CAST(date AS REAL), duration, flags, read
		FROM call
		ORDER BY date DESC`, ibex.FromUnixSeconds)
}

func queryCalls(ctx context.Context, db *sql.DB, query string, toTime func(float64) time.Time) ([]ibex.CallRecord, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calls []ibex.CallRecord
	for rows.Next() {
		var (
			id       int64
			address  sql.NullString
			date     sql.NullFloat64
			duration sql.NullFloat64
			kind     sql.NullInt64
			answered sql.NullInt64
		)
		if err := rows.Scan(&id, &address, &date, &duration, &kind, &answered); err != nil {
			return nil, fmt.Errorf("scanning call: %w", err)
		}
		calls = append(calls, ibex.CallRecord{
			ID:       id,
			Address:  address.String,
			Date:     toTime(date.Float64),
			Duration: int64(duration.Float64),
			Type:     kind.Int64,
			Answered: answered.Int64 != 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return calls, nil
}

// CallStats summarises the call log.
type CallStats struct {
	Total         int
	Incoming      int
	Outgoing      int
	Missed        int
	TotalDuration time.Duration
}

// Stats summarises All.
func (c *CallHistory) Stats(ctx context.Context) CallStats {
	var s CallStats
	for _, call := range c.All(ctx) {
		s.Total++
		switch call.Type {
		case ibex.CallIncoming:
			s.Incoming++
		case ibex.CallOutgoing:
			s.Outgoing++
		case ibex.CallMissed:
			s.Missed++
		}
		s.TotalDuration += time.Duration(call.Duration) * time.Second
	}
	return s
}
