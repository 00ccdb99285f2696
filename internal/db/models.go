package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	StatusRecording = "recording"
	StatusFinished  = "finished"
	StatusFailed    = "failed"
)

// Recording is one catalogued asciicast file.
type Recording struct {
	ID        string
	Path      string
	Command   string
	Width     int
	Height    int
	Status    string
	ExitCode  *int
	Duration  time.Duration
	Events    int
	UploadURL string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type RecordingFilter struct {
	Status   string
	Uploaded *bool
	Limit    int
}

func NewID() string {
	return uuid.NewString()
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		ts = nowUTC()
	}
	return ts.UTC().Format(time.RFC3339)
}

func parseTimestamp(v string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", v, err)
	}
	return ts, nil
}

func nullIfEmpty(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
