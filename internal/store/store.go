package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/verdantlabs/leafsense/internal/diagnose"

	_ "modernc.org/sqlite"
)

// ErrNotFound marks lookups and mutations that touched no record.
var ErrNotFound = errors.New("record not found")

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS crop_records (
    id              TEXT PRIMARY KEY,
    created_at      TEXT NOT NULL,
    crop_type       TEXT NOT NULL,
    image_path      TEXT,
    status          TEXT NOT NULL,
    analysis_json   TEXT NOT NULL,
    feedback        TEXT,
    pending_sync    INTEGER NOT NULL DEFAULT 0,
    sync_attempts   INTEGER NOT NULL DEFAULT 0,
    last_sync_error TEXT
);

CREATE INDEX IF NOT EXISTS idx_crop_records_pending
    ON crop_records(pending_sync, created_at);

CREATE TABLE IF NOT EXISTS settings (
    id                  INTEGER PRIMARY KEY CHECK (id = 1),
    sensitivity         TEXT NOT NULL,
    stress_threshold    INTEGER NOT NULL,
    insurance_threshold INTEGER NOT NULL,
    auto_sync           INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    record_id    TEXT,
    trigger_type TEXT NOT NULL,
    source       TEXT,
    verdict      TEXT,
    detail_json  TEXT,
    reason       TEXT,
    created_at   TEXT NOT NULL
);
`
// #endregion schema

// #region store-struct
// Store persists scan records and grower settings in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an existing handle. The caller owns schema
// setup and closing. Used for in-memory test databases.
func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. audit).
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion db-accessor

// #region create-record
// CreateRecord inserts a new scan record. The caller supplies the ID.
func (s *Store) CreateRecord(rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record id required")
	}
	analysisJSON, err := json.Marshal(rec.Analysis)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}

	var imagePtr interface{}
	if rec.ImagePath != "" {
		imagePtr = rec.ImagePath
	}
	var feedbackPtr interface{}
	if rec.Feedback != "" {
		feedbackPtr = rec.Feedback
	}
	var syncErrPtr interface{}
	if rec.LastSyncError != "" {
		syncErrPtr = rec.LastSyncError
	}

	_, err = s.db.Exec(
		`INSERT INTO crop_records
		 (id, created_at, crop_type, image_path, status, analysis_json, feedback, pending_sync, sync_attempts, last_sync_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CreatedAt.UTC().Format(time.RFC3339Nano), rec.CropType, imagePtr,
		string(rec.Status), string(analysisJSON), feedbackPtr,
		boolToInt(rec.PendingSync), rec.SyncAttempts, syncErrPtr,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}
// #endregion create-record

// #region get-record
// GetRecord retrieves a single record by ID.
func (s *Store) GetRecord(id string) (Record, error) {
	row := s.db.QueryRow(
		`SELECT id, created_at, crop_type, image_path, status, analysis_json, feedback, pending_sync, sync_attempts, last_sync_error
		 FROM crop_records WHERE id = ?`, id,
	)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return Record{}, fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get record %s: %w", id, err)
	}
	return rec, nil
}
// #endregion get-record

// #region list-records
// ListRecords returns the most recent records, newest first.
func (s *Store) ListRecords(limit int) ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT id, created_at, crop_type, image_path, status, analysis_json, feedback, pending_sync, sync_attempts, last_sync_error
		 FROM crop_records ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return collectRecords(rows)
}
// #endregion list-records

// #region pending-records
// PendingRecords returns every record awaiting sync, oldest first, so
// a pass reconciles scans in the order they were taken.
func (s *Store) PendingRecords() ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT id, created_at, crop_type, image_path, status, analysis_json, feedback, pending_sync, sync_attempts, last_sync_error
		 FROM crop_records WHERE pending_sync = 1 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("pending records: %w", err)
	}
	return collectRecords(rows)
}
// #endregion pending-records

// #region sync-mutations
// ApplySyncSuccess replaces the analysis after a cloud verdict landed:
// new analysis and status, pending cleared, attempt counted, error
// wiped. One statement so a crash never leaves the record half-updated.
func (s *Store) ApplySyncSuccess(id string, a diagnose.Analysis, status diagnose.CropStatus) error {
	analysisJSON, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	res, err := s.db.Exec(
		`UPDATE crop_records
		 SET analysis_json = ?, status = ?, pending_sync = 0,
		     sync_attempts = sync_attempts + 1, last_sync_error = NULL
		 WHERE id = ?`,
		string(analysisJSON), string(status), id,
	)
	if err != nil {
		return fmt.Errorf("apply sync success: %w", err)
	}
	return requireRow(res, id)
}

// ApplySyncFailure counts a failed attempt and keeps the record pending.
func (s *Store) ApplySyncFailure(id string, cause string) error {
	res, err := s.db.Exec(
		`UPDATE crop_records
		 SET sync_attempts = sync_attempts + 1, last_sync_error = ?
		 WHERE id = ?`,
		cause, id,
	)
	if err != nil {
		return fmt.Errorf("apply sync failure: %w", err)
	}
	return requireRow(res, id)
}

// ResetSyncAttempts clears the attempt counter and last error so a
// record that hit the retry cap becomes eligible again.
func (s *Store) ResetSyncAttempts(id string) error {
	res, err := s.db.Exec(
		`UPDATE crop_records SET sync_attempts = 0, last_sync_error = NULL WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("reset sync attempts: %w", err)
	}
	return requireRow(res, id)
}
// #endregion sync-mutations

// #region user-edits
// UpdateStatus rewrites the stored status without touching the
// analysis, for re-grading records after a threshold change.
func (s *Store) UpdateStatus(id string, status diagnose.CropStatus) error {
	res, err := s.db.Exec(
		`UPDATE crop_records SET status = ? WHERE id = ?`, string(status), id,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return requireRow(res, id)
}

// UpdateFeedback stores a grower note on the record.
func (s *Store) UpdateFeedback(id, feedback string) error {
	res, err := s.db.Exec(
		`UPDATE crop_records SET feedback = ? WHERE id = ?`, feedback, id,
	)
	if err != nil {
		return fmt.Errorf("update feedback: %w", err)
	}
	return requireRow(res, id)
}

// DeleteRecord removes a record permanently.
func (s *Store) DeleteRecord(id string) error {
	res, err := s.db.Exec(`DELETE FROM crop_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return requireRow(res, id)
}
// #endregion user-edits

// #region settings
// GetSettings reads the grower settings, falling back to defaults when
// nothing was saved yet.
func (s *Store) GetSettings() (Settings, error) {
	var (
		sens               string
		stressThreshold    int
		insuranceThreshold int
		autoSync           int
	)
	err := s.db.QueryRow(
		`SELECT sensitivity, stress_threshold, insurance_threshold, auto_sync FROM settings WHERE id = 1`,
	).Scan(&sens, &stressThreshold, &insuranceThreshold, &autoSync)
	if err == sql.ErrNoRows {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return Settings{
		Sensitivity:        diagnose.Sensitivity(sens),
		StressThreshold:    stressThreshold,
		InsuranceThreshold: insuranceThreshold,
		AutoSync:           autoSync != 0,
	}, nil
}

// SaveSettings upserts the settings singleton.
func (s *Store) SaveSettings(cfg Settings) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (id, sensitivity, stress_threshold, insurance_threshold, auto_sync)
		 VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     sensitivity = excluded.sensitivity,
		     stress_threshold = excluded.stress_threshold,
		     insurance_threshold = excluded.insurance_threshold,
		     auto_sync = excluded.auto_sync`,
		string(cfg.Sensitivity), cfg.StressThreshold, cfg.InsuranceThreshold, boolToInt(cfg.AutoSync),
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
// #endregion settings

// #region row-scanning
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var createdStr string
	var imagePath, feedback, syncErr sql.NullString
	var status, analysisJSON string
	var pending int

	err := row.Scan(
		&rec.ID, &createdStr, &rec.CropType, &imagePath, &status,
		&analysisJSON, &feedback, &pending, &rec.SyncAttempts, &syncErr,
	)
	if err != nil {
		return Record{}, err
	}

	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	if imagePath.Valid {
		rec.ImagePath = imagePath.String
	}
	rec.Status = diagnose.CropStatus(status)
	if err := json.Unmarshal([]byte(analysisJSON), &rec.Analysis); err != nil {
		return Record{}, fmt.Errorf("unmarshal analysis: %w", err)
	}
	if feedback.Valid {
		rec.Feedback = feedback.String
	}
	rec.PendingSync = pending != 0
	if syncErr.Valid {
		rec.LastSyncError = syncErr.String
	}
	return rec, nil
}

func collectRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()
	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	return nil
}
// #endregion row-scanning
