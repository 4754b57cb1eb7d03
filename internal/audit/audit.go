package audit

import (
	"database/sql"
	"fmt"
	"time"
)

// Trigger types recorded in the audit trail.
const (
	TriggerAnalyze    = "analyze"
	TriggerRecordSync = "record_sync"
	TriggerSyncPass   = "sync_pass"
)

// #region entry
// Entry is a single row in the audit_log table. It records which path
// produced a verdict and why, so field results can be audited after
// the fact.
type Entry struct {
	ID          int64     `json:"id"`
	RecordID    string    `json:"recordId,omitempty"` // empty for analyses that were never saved
	TriggerType string    `json:"triggerType"`
	Source      string    `json:"source,omitempty"` // "local" | "remote"
	Verdict     string    `json:"verdict,omitempty"`
	DetailJSON  string    `json:"detail,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
// #endregion entry

// #region log
// Log writes an entry to the audit_log table.
func Log(db *sql.DB, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO audit_log (record_id, trigger_type, source, verdict, detail_json, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullIfEmpty(entry.RecordID),
		entry.TriggerType,
		nullIfEmpty(entry.Source),
		nullIfEmpty(entry.Verdict),
		nullIfEmpty(entry.DetailJSON),
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log audit entry: %w", err)
	}
	return nil
}
// #endregion log

// #region recent
// Recent returns the newest audit entries, most recent first.
func Recent(db *sql.DB, limit int) ([]Entry, error) {
	rows, err := db.Query(
		`SELECT id, record_id, trigger_type, source, verdict, detail_json, reason, created_at
		 FROM audit_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	return collectEntries(rows)
}

// ForRecord returns the audit entries attached to one record, most
// recent first.
func ForRecord(db *sql.DB, recordID string, limit int) ([]Entry, error) {
	rows, err := db.Query(
		`SELECT id, record_id, trigger_type, source, verdict, detail_json, reason, created_at
		 FROM audit_log WHERE record_id = ? ORDER BY id DESC LIMIT ?`, recordID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	return collectEntries(rows)
}

func collectEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var recordID, source, verdict, detail, reason sql.NullString
		var createdStr string
		if err := rows.Scan(&e.ID, &recordID, &e.TriggerType, &source, &verdict, &detail, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		if recordID.Valid {
			e.RecordID = recordID.String
		}
		if source.Valid {
			e.Source = source.String
		}
		if verdict.Valid {
			e.Verdict = verdict.String
		}
		if detail.Valid {
			e.DetailJSON = detail.String
		}
		if reason.Valid {
			e.Reason = reason.String
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
// #endregion recent

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
