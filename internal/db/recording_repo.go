package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const recordingColumns = `id, path, command, width, height, status, exit_code, duration_ms, events, upload_url, created_at, updated_at`

type RecordingRepo struct {
	db *sql.DB
}

func NewRecordingRepo(db *sql.DB) *RecordingRepo {
	return &RecordingRepo{db: db}
}

// Upsert registers rec by path. An existing row for the same path (a forced
// re-recording) is replaced and keeps its id.
func (r *RecordingRepo) Upsert(ctx context.Context, rec *Recording) error {
	if rec.Path == "" {
		return fmt.Errorf("recording path cannot be empty")
	}
	if rec.ID == "" {
		rec.ID = NewID()
	}
	if rec.Status == "" {
		rec.Status = StatusRecording
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = nowUTC()
	}
	rec.UpdatedAt = rec.CreatedAt

	err := r.db.QueryRowContext(ctx, `
INSERT INTO recordings (id, path, command, width, height, status, exit_code, duration_ms, events, upload_url, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET
	command = excluded.command,
	width = excluded.width,
	height = excluded.height,
	status = excluded.status,
	exit_code = excluded.exit_code,
	duration_ms = excluded.duration_ms,
	events = excluded.events,
	upload_url = excluded.upload_url,
	created_at = excluded.created_at,
	updated_at = excluded.updated_at
RETURNING id
`, rec.ID, rec.Path, rec.Command, rec.Width, rec.Height, rec.Status, nullInt(rec.ExitCode), rec.Duration.Milliseconds(), rec.Events, nullIfEmpty(rec.UploadURL), formatTimestamp(rec.CreatedAt), formatTimestamp(rec.UpdatedAt)).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert recording %q: %w", rec.Path, err)
	}
	return nil
}

// GetByPath returns the recording for path, or nil when there is none.
func (r *RecordingRepo) GetByPath(ctx context.Context, path string) (*Recording, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordingColumns+` FROM recordings WHERE path = ?`, path)
	rec, err := scanRecording(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get recording %q: %w", path, err)
	}
	return rec, nil
}

func (r *RecordingRepo) List(ctx context.Context, filter RecordingFilter) ([]*Recording, error) {
	query := `SELECT ` + recordingColumns + ` FROM recordings`
	args := []any{}
	where := []string{}

	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Uploaded != nil {
		if *filter.Uploaded {
			where = append(where, "upload_url IS NOT NULL")
		} else {
			where = append(where, "upload_url IS NULL")
		}
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, path ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}
	defer rows.Close()

	recordings := []*Recording{}
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recording: %w", err)
		}
		recordings = append(recordings, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recordings: %w", err)
	}
	return recordings, nil
}

// Finish records the outcome of a recording.
func (r *RecordingRepo) Finish(ctx context.Context, path string, exitCode int, duration time.Duration, events int, status string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE recordings
SET status = ?, exit_code = ?, duration_ms = ?, events = ?, updated_at = ?
WHERE path = ?
`, status, exitCode, duration.Milliseconds(), events, formatTimestamp(nowUTC()), path)
	if err != nil {
		return fmt.Errorf("failed to finish recording %q: %w", path, err)
	}
	return expectOneRow(res, path)
}

func (r *RecordingRepo) SetUploadURL(ctx context.Context, path, url string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE recordings SET upload_url = ?, updated_at = ? WHERE path = ?`, nullIfEmpty(url), formatTimestamp(nowUTC()), path)
	if err != nil {
		return fmt.Errorf("failed to set upload url for %q: %w", path, err)
	}
	return expectOneRow(res, path)
}

// Delete drops the catalog row for path. The recording file is not touched.
func (r *RecordingRepo) Delete(ctx context.Context, path string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recordings WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("failed to delete recording %q: %w", path, err)
	}
	return expectOneRow(res, path)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecording(row rowScanner) (*Recording, error) {
	var rec Recording
	var exitCode sql.NullInt64
	var uploadURL sql.NullString
	var durationMS int64
	var createdAtRaw, updatedAtRaw string

	if err := row.Scan(&rec.ID, &rec.Path, &rec.Command, &rec.Width, &rec.Height, &rec.Status, &exitCode, &durationMS, &rec.Events, &uploadURL, &createdAtRaw, &updatedAtRaw); err != nil {
		return nil, err
	}
	if exitCode.Valid {
		code := int(exitCode.Int64)
		rec.ExitCode = &code
	}
	rec.UploadURL = uploadURL.String
	rec.Duration = time.Duration(durationMS) * time.Millisecond

	var err error
	rec.CreatedAt, err = parseTimestamp(createdAtRaw)
	if err != nil {
		return nil, err
	}
	rec.UpdatedAt, err = parseTimestamp(updatedAtRaw)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func expectOneRow(res sql.Result, path string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("recording %q is not in the catalog", path)
	}
	return nil
}
