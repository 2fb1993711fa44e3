package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ericfisherdev/edgerandom/internal/domain/model"
	"github.com/ericfisherdev/edgerandom/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.EventJournal = (*JournalRepo)(nil)

// JournalRepo is the SQLite implementation of the EventJournal port interface.
type JournalRepo struct {
	db *DB
}

// NewJournalRepo creates a new JournalRepo backed by the given database.
func NewJournalRepo(db *DB) *JournalRepo {
	return &JournalRepo{db: db}
}

const journalColumns = `id, session_id, stage, state, outcome, attempt, error, duration_ns, occurred_at`

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Record appends one event. A zero At is stamped with the current time.
func (r *JournalRepo) Record(ctx context.Context, event model.BootstrapEvent) error {
	at := event.At
	if at.IsZero() {
		at = time.Now()
	}

	const query = `
		INSERT INTO bootstrap_events (session_id, stage, state, outcome, attempt, error, duration_ns, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Writer.ExecContext(ctx, query,
		event.SessionID,
		string(event.Stage),
		string(event.State),
		string(event.Outcome),
		event.Attempt,
		event.Error,
		int64(event.Duration),
		at.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("record %s event for session %s: %w", event.Stage, event.SessionID, err)
	}
	return nil
}

// ListRecent returns up to limit events across all sessions, newest first.
func (r *JournalRepo) ListRecent(ctx context.Context, limit int) ([]model.BootstrapEvent, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `SELECT ` + journalColumns + ` FROM bootstrap_events ORDER BY id DESC LIMIT ?`
	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListBySession returns every event of one session in insertion order.
func (r *JournalRepo) ListBySession(ctx context.Context, sessionID string) ([]model.BootstrapEvent, error) {
	query := `SELECT ` + journalColumns + ` FROM bootstrap_events WHERE session_id = ? ORDER BY id`
	rows, err := r.db.Reader.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list events for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// Prune deletes all events older than the cutoff and returns how many were removed.
func (r *JournalRepo) Prune(ctx context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM bootstrap_events WHERE occurred_at < ?`
	res, err := r.db.Writer.ExecContext(ctx, query, before.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune events rows affected: %w", err)
	}
	return n, nil
}

func scanEvents(rows *sql.Rows) ([]model.BootstrapEvent, error) {
	var events []model.BootstrapEvent
	for rows.Next() {
		var (
			e          model.BootstrapEvent
			stage      string
			state      string
			outcome    string
			durationNs int64
			occurredAt string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &stage, &state, &outcome, &e.Attempt, &e.Error, &durationNs, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		e.Stage = model.Stage(stage)
		e.State = model.State(state)
		e.Outcome = model.Outcome(outcome)
		e.Duration = time.Duration(durationNs)

		at, err := parseTime(occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parse occurred_at for event %d: %w", e.ID, err)
		}
		e.At = at

		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
