package extract_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/drsanjula/iOSBackupExplorer/internal/archive"
	"github.com/drsanjula/iOSBackupExplorer/internal/extract"
	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
	"github.com/drsanjula/iOSBackupExplorer/internal/testutil"
)

const (
	modernCallsPath = "Library/CallHistoryDB/CallHistory.storedata"
	legacyCallsPath = "Library/CallHistory/call_history.db"
)

func openArchive(t *testing.T, b *testutil.ArchiveBuilder) *archive.Archive {
	t.Helper()
	a, err := archive.Open(context.Background(), b.Build())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

// platformSeconds is the inverse of ibex.FromPlatformSeconds.
func platformSeconds(t time.Time) float64 {
	return float64(t.Unix()-ibex.PlatformEpochOffset) + float64(t.Nanosecond())/1e9
}

func TestCallHistoryEpochsAgree(t *testing.T) {
	instant := time.Date(2023, 3, 14, 15, 9, 26, 0, time.UTC)

	modern := testutil.NewArchiveBuilder(t)
	modern.AddDatabase("HomeDomain", modernCallsPath, testutil.CallHistoryModernSchema, func(db *sql.DB) {
		testutil.MustExec(t, db, `INSERT INTO ZCALLRECORD (Z_PK, ZADDRESS, ZDATE, ZDURATION, ZCALLTYPE, ZANSWERED)
			VALUES (1, '+15551234567', ?, 62.0, 1, 1)`, platformSeconds(instant))
	})

	legacy := testutil.NewArchiveBuilder(t)
	legacy.AddDatabase("WirelessDomain", legacyCallsPath, testutil.CallHistoryLegacySchema, func(db *sql.DB) {
		testutil.MustExec(t, db, `INSERT INTO call (address, date, duration, flags, read)
			VALUES ('+15551234567', ?, 62, 1, 1)`, instant.Unix())
	})

	ctx := context.Background()
	fromModern := extract.NewCallHistory(openArchive(t, modern)).All(ctx)
	fromLegacy := extract.NewCallHistory(openArchive(t, legacy)).All(ctx)

	if len(fromModern) != 1 || len(fromLegacy) != 1 {
		t.Fatalf("got %d modern and %d legacy calls, want 1 each", len(fromModern), len(fromLegacy))
	}
	if !fromModern[0].Date.Equal(instant) {
		t.Errorf("modern Date = %v, want %v", fromModern[0].Date, instant)
	}
	if !fromLegacy[0].Date.Equal(fromModern[0].Date) {
		t.Errorf("legacy Date = %v, modern Date = %v", fromLegacy[0].Date, fromModern[0].Date)
	}
	for _, c := range []ibex.CallRecord{fromModern[0], fromLegacy[0]} {
		if c.Duration != 62 || c.FormattedDuration() != "1:02" {
			t.Errorf("Duration = %d (%s), want 62 (1:02)", c.Duration, c.FormattedDuration())
		}
		if c.TypeName() != "Incoming" || !c.Answered {
			t.Errorf("TypeName() = %s, Answered = %v", c.TypeName(), c.Answered)
		}
	}
}

func TestCallHistoryOrderingAndStats(t *testing.T) {
	b := testutil.NewArchiveBuilder(t)
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	b.AddDatabase("HomeDomain", modernCallsPath, testutil.CallHistoryModernSchema, func(db *sql.DB) {
		rows := []struct {
			addr     any
			date     any
			duration float64
			kind     int
			answered int
		}{
			{"+1555000001", platformSeconds(base), 30, ibex.CallOutgoing, 1},
			{"+1555000002", platformSeconds(base.Add(2 * time.Hour)), 0, ibex.CallMissed, 0},
			{nil, platformSeconds(base.Add(time.Hour)) + 0.25, 3725, ibex.CallIncoming, 1},
			{"+1555000004", nil, 5, ibex.CallBlocked, 0},
		}
		for _, r := range rows {
			testutil.MustExec(t, db, `INSERT INTO ZCALLRECORD (ZADDRESS, ZDATE, ZDURATION, ZCALLTYPE, ZANSWERED)
				VALUES (?, ?, ?, ?, ?)`, r.addr, r.date, r.duration, r.kind, r.answered)
		}
	})

	calls := extract.NewCallHistory(openArchive(t, b))
	all := calls.All(context.Background())
	if len(all) != 4 {
		t.Fatalf("All() returned %d calls, want 4", len(all))
	}

	wantOrder := []string{"+1555000002", ibex.Unknown, "+1555000001", "+1555000004"}
	for i, want := range wantOrder {
		if got := all[i].PhoneNumber(); got != want {
			t.Errorf("call %d PhoneNumber() = %q, want %q", i, got, want)
		}
	}
	if !all[3].Date.IsZero() {
		t.Errorf("missing date decoded as %v, want zero", all[3].Date)
	}
	if got := all[1].Date.Nanosecond(); got != 250_000_000 {
		t.Errorf("fractional seconds lost: nanos = %d", got)
	}
	if got := all[1].FormattedDuration(); got != "1:02:05" {
		t.Errorf("FormattedDuration() = %q, want 1:02:05", got)
	}

	stats := calls.Stats(context.Background())
	want := extract.CallStats{
		Total:         4,
		Incoming:      1,
		Outgoing:      1,
		Missed:        1,
		TotalDuration: 3760 * time.Second,
	}
	if stats != want {
		t.Errorf("Stats() = %+v, want %+v", stats, want)
	}
}

func TestCallHistoryLegacySchemaAtModernPath(t *testing.T) {
	b := testutil.NewArchiveBuilder(t)
	b.AddDatabase("HomeDomain", modernCallsPath, testutil.CallHistoryLegacySchema, func(db *sql.DB) {
		testutil.MustExec(t, db, `INSERT INTO call (address, date, duration, flags, read) VALUES ('911', 1700000000, 10, 2, 1)`)
	})

	all := extract.NewCallHistory(openArchive(t, b)).All(context.Background())
	if len(all) != 1 {
		t.Fatalf("All() returned %d calls, want 1 from the legacy schema", len(all))
	}
	if want := time.Unix(1700000000, 0); !all[0].Date.Equal(want) {
		t.Errorf("Date = %v, want %v", all[0].Date, want)
	}
}

func TestCallHistoryUnusableStore(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *testutil.ArchiveBuilder)
	}{
		{
			name:  "absent",
			build: func(*testutil.ArchiveBuilder) {},
		},
		{
			name: "not a database",
			build: func(b *testutil.ArchiveBuilder) {
				b.AddFile("HomeDomain", modernCallsPath, []byte("definitely not sqlite, just bytes"), testutil.FileMeta{})
			},
		},
		{
			name: "unknown schema",
			build: func(b *testutil.ArchiveBuilder) {
				b.AddDatabase("HomeDomain", modernCallsPath, `CREATE TABLE unrelated (x INTEGER);`, nil)
			},
		},
		{
			name: "payload excluded from backup",
			build: func(b *testutil.ArchiveBuilder) {
				b.AddManifestEntry("HomeDomain", modernCallsPath, testutil.FileMeta{})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testutil.NewArchiveBuilder(t)
			tt.build(b)
			calls := extract.NewCallHistory(openArchive(t, b))
			if got := calls.All(context.Background()); len(got) != 0 {
				t.Errorf("All() = %v, want empty", got)
			}
			if got := calls.Stats(context.Background()); got != (extract.CallStats{}) {
				t.Errorf("Stats() = %+v, want zero", got)
			}
		})
	}
}

func TestCallHistoryCached(t *testing.T) {
	b := testutil.NewArchiveBuilder(t)
	b.AddDatabase("HomeDomain", modernCallsPath, testutil.CallHistoryModernSchema, func(db *sql.DB) {
		testutil.MustExec(t, db, `INSERT INTO ZCALLRECORD (ZADDRESS, ZDATE) VALUES ('1', 700000000)`)
	})
	a := openArchive(t, b)
	calls := extract.NewCallHistory(a)

	if n := len(calls.All(context.Background())); n != 1 {
		t.Fatalf("All() returned %d calls, want 1", n)
	}
	a.Close()
	if n := len(calls.All(context.Background())); n != 1 {
		t.Errorf("cached All() returned %d calls after archive close, want 1", n)
	}
}
