// Package sqlite persists submissions and samples in a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/a3tai/pdf-slurper/internal/storage/sqlite/migrations"
	"github.com/a3tai/pdf-slurper/internal/submission"
)

const timeLayout = time.RFC3339Nano

const submissionColumns = `id, content_hash, source_file_name, source_size, source_mod_time,
	document_json, fields_json, created_at, updated_at`

const sampleColumns = `id, submission_id, page_index, table_index, row_index, name,
	volume_ul, qubit_ng_per_ul, nanodrop_ng_per_ul, concentration_ng_per_ul, a260_a280, a260_a230,
	extra_json, status, qc_json, edited_at`

// Store is the SQLite-backed submission repository
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewStore opens (creating if needed) the database at path and migrates it
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection serializes writers and keeps the pragmas in force
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: path,
		now:  func() time.Time { return time.Now().UTC() },
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// FindByContentHash returns the submission holding hash
func (s *Store) FindByContentHash(ctx context.Context, hash string) (*submission.Submission, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+submissionColumns+" FROM submissions WHERE content_hash = ?", hash)
	return scanSubmission(row)
}

// Get returns a submission by id
func (s *Store) Get(ctx context.Context, id string) (*submission.Submission, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+submissionColumns+" FROM submissions WHERE id = ?", id)
	return scanSubmission(row)
}

// List returns submissions newest first; limit <= 0 means all
func (s *Store) List(ctx context.Context, limit int) ([]submission.Submission, error) {
	query := "SELECT " + submissionColumns + " FROM submissions ORDER BY created_at DESC, id ASC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying submissions: %w", err)
	}
	defer rows.Close()

	var out []submission.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

// ListSamples returns a submission's samples in document order
func (s *Store) ListSamples(ctx context.Context, submissionID string) ([]submission.Sample, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM submissions WHERE id = ?", submissionID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking submission: %w", err)
	}
	if exists == 0 {
		return nil, submission.ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+sampleColumns+" FROM samples WHERE submission_id = ? "+
			"ORDER BY page_index, table_index, row_index", submissionID)
	if err != nil {
		return nil, fmt.Errorf("querying samples: %w", err)
	}
	defer rows.Close()

	samples := []submission.Sample{}
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, *sample)
	}
	return samples, rows.Err()
}

// Save upserts sub and replaces all of its samples in one transaction.
// A different submission holding the same content hash yields
// submission.ErrDuplicateHash.
func (s *Store) Save(ctx context.Context, sub *submission.Submission, samples []submission.Sample) error {
	documentJSON, err := json.Marshal(sub.Document)
	if err != nil {
		return fmt.Errorf("marshalling document info: %w", err)
	}
	fieldsJSON, err := json.Marshal(sub.Fields)
	if err != nil {
		return fmt.Errorf("marshalling fields: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO submissions (id, content_hash, source_file_name, source_size, source_mod_time,
			document_json, fields_json, requester, lab, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content_hash = excluded.content_hash,
			source_file_name = excluded.source_file_name,
			source_size = excluded.source_size,
			source_mod_time = excluded.source_mod_time,
			document_json = excluded.document_json,
			fields_json = excluded.fields_json,
			requester = excluded.requester,
			lab = excluded.lab,
			updated_at = excluded.updated_at
	`,
		sub.ID, sub.ContentHash, sub.SourceFileName, sub.SourceSize, formatTime(sub.SourceModTime),
		string(documentJSON), string(fieldsJSON), nullString(sub.Fields.Requester), nullString(sub.Fields.Lab),
		formatTime(sub.CreatedAt), formatTime(sub.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("saving submission %s: %w", sub.ID, submission.ErrDuplicateHash)
		}
		return fmt.Errorf("saving submission: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM samples WHERE submission_id = ?", sub.ID); err != nil {
		return fmt.Errorf("clearing samples: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO samples ("+sampleColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing sample insert: %w", err)
	}
	defer stmt.Close()

	for _, sample := range samples {
		args, err := sampleArgs(sample)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("saving sample %s: %w", sample.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing submission: %w", err)
	}
	return nil
}

// Delete removes a submission; its samples go with it
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM submissions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting submission: %w", err)
	}
	return requireAffected(res)
}

// UpdateSample replaces the editable fields of a sample and stamps EditedAt
func (s *Store) UpdateSample(ctx context.Context, sample submission.Sample) (*submission.Sample, error) {
	extraJSON, err := marshalOptional(sample.Extra, len(sample.Extra) > 0)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE samples SET
			name = ?, volume_ul = ?, qubit_ng_per_ul = ?, nanodrop_ng_per_ul = ?,
			concentration_ng_per_ul = ?, a260_a280 = ?, a260_a230 = ?, extra_json = ?,
			status = COALESCE(NULLIF(?, ''), status), edited_at = ?
		WHERE id = ?
	`,
		nullString(sample.Name), nullFloat(sample.VolumeUL), nullFloat(sample.QubitConcentration),
		nullFloat(sample.NanodropConcentration), nullFloat(sample.Concentration),
		nullFloat(sample.A260A280), nullFloat(sample.A260A230), extraJSON,
		string(sample.Status), formatTime(s.now()), sample.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating sample: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, "SELECT "+sampleColumns+" FROM samples WHERE id = ?", sample.ID)
	return scanSample(row)
}

// SaveQC records a quality evaluation on a sample
func (s *Store) SaveQC(ctx context.Context, sampleID string, qc submission.QCResult) error {
	qcJSON, err := json.Marshal(qc)
	if err != nil {
		return fmt.Errorf("marshalling qc result: %w", err)
	}
	res, err := s.db.ExecContext(ctx, "UPDATE samples SET qc_json = ? WHERE id = ?", string(qcJSON), sampleID)
	if err != nil {
		return fmt.Errorf("saving qc result: %w", err)
	}
	return requireAffected(res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (*submission.Submission, error) {
	var (
		sub                      submission.Submission
		modTime                  sql.NullString
		documentJSON, fieldsJSON string
		createdAt, updatedAt     string
	)
	err := row.Scan(&sub.ID, &sub.ContentHash, &sub.SourceFileName, &sub.SourceSize, &modTime,
		&documentJSON, &fieldsJSON, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, submission.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning submission: %w", err)
	}

	if err := json.Unmarshal([]byte(documentJSON), &sub.Document); err != nil {
		return nil, fmt.Errorf("unmarshalling document info: %w", err)
	}
	if err := json.Unmarshal([]byte(fieldsJSON), &sub.Fields); err != nil {
		return nil, fmt.Errorf("unmarshalling fields: %w", err)
	}
	if sub.SourceModTime, err = parseTime(modTime.String); err != nil {
		return nil, err
	}
	if sub.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if sub.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &sub, nil
}

func scanSample(row scanner) (*submission.Sample, error) {
	var (
		sample                                          submission.Sample
		name, extraJSON, status, qcJSON, editedAt       sql.NullString
		volume, qubit, nanodrop, conc, a260280, a260230 sql.NullFloat64
	)
	err := row.Scan(&sample.ID, &sample.SubmissionID, &sample.PageIndex, &sample.TableIndex, &sample.RowIndex,
		&name, &volume, &qubit, &nanodrop, &conc, &a260280, &a260230, &extraJSON, &status, &qcJSON, &editedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, submission.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning sample: %w", err)
	}

	if name.Valid {
		sample.Name = &name.String
	}
	sample.VolumeUL = floatPtr(volume)
	sample.QubitConcentration = floatPtr(qubit)
	sample.NanodropConcentration = floatPtr(nanodrop)
	sample.Concentration = floatPtr(conc)
	sample.A260A280 = floatPtr(a260280)
	sample.A260A230 = floatPtr(a260230)
	sample.Status = submission.WorkflowStatus(status.String)

	if extraJSON.Valid && extraJSON.String != "" {
		if err := json.Unmarshal([]byte(extraJSON.String), &sample.Extra); err != nil {
			return nil, fmt.Errorf("unmarshalling extra cells: %w", err)
		}
	}
	if qcJSON.Valid && qcJSON.String != "" {
		var qc submission.QCResult
		if err := json.Unmarshal([]byte(qcJSON.String), &qc); err != nil {
			return nil, fmt.Errorf("unmarshalling qc result: %w", err)
		}
		sample.QC = &qc
	}
	if editedAt.Valid && editedAt.String != "" {
		t, err := parseTime(editedAt.String)
		if err != nil {
			return nil, err
		}
		sample.EditedAt = &t
	}
	return &sample, nil
}

func sampleArgs(sample submission.Sample) ([]any, error) {
	extraJSON, err := marshalOptional(sample.Extra, len(sample.Extra) > 0)
	if err != nil {
		return nil, err
	}
	qcJSON, err := marshalOptional(sample.QC, sample.QC != nil)
	if err != nil {
		return nil, err
	}
	var editedAt any
	if sample.EditedAt != nil {
		editedAt = formatTime(*sample.EditedAt)
	}
	status := sample.Status
	if status == "" {
		status = submission.StatusReceived
	}

	return []any{
		sample.ID, sample.SubmissionID, sample.PageIndex, sample.TableIndex, sample.RowIndex,
		nullString(sample.Name),
		nullFloat(sample.VolumeUL), nullFloat(sample.QubitConcentration), nullFloat(sample.NanodropConcentration),
		nullFloat(sample.Concentration), nullFloat(sample.A260A280), nullFloat(sample.A260A230),
		extraJSON, string(status), qcJSON, editedAt,
	}, nil
}

func marshalOptional(v any, present bool) (any, error) {
	if !present {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshalling %T: %w", v, err)
	}
	return string(data), nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return submission.ErrNotFound
	}
	return nil
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing time %q: %w", s, err)
	}
	return t, nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
