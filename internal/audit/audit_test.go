package audit

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	_, err = db.Exec(`CREATE TABLE audit_log (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		record_id    TEXT,
		trigger_type TEXT NOT NULL,
		source       TEXT,
		verdict      TEXT,
		detail_json  TEXT,
		reason       TEXT,
		created_at   TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// #endregion helpers

// #region log-tests
func TestLogSuccess(t *testing.T) {
	db := setupDB(t)

	entry := Entry{
		RecordID:    "rec-1",
		TriggerType: TriggerAnalyze,
		Source:      "remote",
		Verdict:     "Late Blight",
		DetailJSON:  `{"expectedLoss":55}`,
		CreatedAt:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := Log(db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM audit_log").Scan(&count)
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}

	var recordID, verdict string
	db.QueryRow("SELECT record_id, verdict FROM audit_log").Scan(&recordID, &verdict)
	if recordID != "rec-1" {
		t.Errorf("expected record_id 'rec-1', got %q", recordID)
	}
	if verdict != "Late Blight" {
		t.Errorf("expected verdict 'Late Blight', got %q", verdict)
	}
}

func TestLogZeroCreatedAt(t *testing.T) {
	db := setupDB(t)

	before := time.Now().UTC()
	if err := Log(db, Entry{TriggerType: TriggerSyncPass}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var createdAtStr string
	db.QueryRow("SELECT created_at FROM audit_log").Scan(&createdAtStr)
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		t.Fatalf("parse created_at: %v", err)
	}
	if createdAt.Before(before) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}
}

func TestLogEmptyOptionalFields(t *testing.T) {
	db := setupDB(t)

	if err := Log(db, Entry{TriggerType: TriggerRecordSync}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var recordID, source, verdict, detail, reason sql.NullString
	db.QueryRow("SELECT record_id, source, verdict, detail_json, reason FROM audit_log").Scan(
		&recordID, &source, &verdict, &detail, &reason,
	)
	for name, col := range map[string]sql.NullString{
		"record_id": recordID, "source": source, "verdict": verdict,
		"detail_json": detail, "reason": reason,
	} {
		if col.Valid {
			t.Errorf("expected NULL %s for empty string", name)
		}
	}
}

func TestLogClosedDB(t *testing.T) {
	db := setupDB(t)
	db.Close()

	if err := Log(db, Entry{TriggerType: TriggerAnalyze}); err == nil {
		t.Fatal("expected error on closed db")
	}
}

// #endregion log-tests

// #region recent-tests
func TestRecentNewestFirst(t *testing.T) {
	db := setupDB(t)

	for i, verdict := range []string{"first", "second", "third"} {
		err := Log(db, Entry{
			TriggerType: TriggerAnalyze,
			Verdict:     verdict,
			CreatedAt:   time.Date(2026, 3, 1, 0, i, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("log %d: %v", i, err)
		}
	}

	entries, err := Recent(db, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Verdict != "third" || entries[1].Verdict != "second" {
		t.Fatalf("order = %s,%s, want third,second", entries[0].Verdict, entries[1].Verdict)
	}
}

func TestRecentEmptyLog(t *testing.T) {
	db := setupDB(t)
	entries, err := Recent(db, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestRecentClosedDB(t *testing.T) {
	db := setupDB(t)
	db.Close()

	if _, err := Recent(db, 10); err == nil {
		t.Fatal("expected error on closed db")
	}
}

func TestForRecordFiltersAndOrders(t *testing.T) {
	db := setupDB(t)

	entries := []Entry{
		{RecordID: "rec-a", TriggerType: TriggerAnalyze, Verdict: "healthy"},
		{RecordID: "rec-b", TriggerType: TriggerAnalyze, Verdict: "stressed"},
		{RecordID: "rec-a", TriggerType: TriggerRecordSync, Verdict: "critical"},
		{TriggerType: TriggerSyncPass},
	}
	for i, e := range entries {
		e.CreatedAt = time.Date(2026, 3, 1, 0, i, 0, 0, time.UTC)
		if err := Log(db, e); err != nil {
			t.Fatalf("log %d: %v", i, err)
		}
	}

	got, err := ForRecord(db, "rec-a", 10)
	if err != nil {
		t.Fatalf("ForRecord: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].TriggerType != TriggerRecordSync || got[1].TriggerType != TriggerAnalyze {
		t.Fatalf("order = %s,%s, want record_sync,analyze", got[0].TriggerType, got[1].TriggerType)
	}
	for _, e := range got {
		if e.RecordID != "rec-a" {
			t.Errorf("entry %d leaked record %q", e.ID, e.RecordID)
		}
	}
}

func TestForRecordUnknownRecord(t *testing.T) {
	db := setupDB(t)

	if err := Log(db, Entry{RecordID: "rec-a", TriggerType: TriggerAnalyze}); err != nil {
		t.Fatalf("log: %v", err)
	}

	got, err := ForRecord(db, "ghost", 10)
	if err != nil {
		t.Fatalf("ForRecord: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no entries, got %d", len(got))
	}
}

// #endregion recent-tests
