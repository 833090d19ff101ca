package state

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/dynmacro/internal/macro"
)

// InvocationStatus is the outcome of a macro run.
type InvocationStatus string

// Invocation statuses.
const (
	StatusRunning InvocationStatus = "running"
	StatusSuccess InvocationStatus = "success"
	StatusFailed  InvocationStatus = "failed"
)

// InvocationRecord is a journaled macro run.
type InvocationRecord struct {
	ID          string
	Macro       string
	Command     string
	RawParams   string
	Depth       int
	Placeholder bool
	Status      InvocationStatus
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// Duration returns the run time, or zero while running.
func (r *InvocationRecord) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// ReconcileEntry is a journaled reconciliation.
type ReconcileEntry struct {
	ID          string
	Fingerprint string
	Macros      int
	Registered  int
	Diagnostics int
	Messages    []string
	Skipped     bool
	Duration    time.Duration
	CreatedAt   time.Time
}

var _ macro.Journal = (*SQLiteStore)(nil)

// RecordReconcile journals one reconciliation.
func (s *SQLiteStore) RecordReconcile(ctx context.Context, rec macro.ReconcileRecord) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	messages := make([]string, len(rec.Diagnostics))
	for i, d := range rec.Diagnostics {
		messages[i] = d.String()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reconciles (id, fingerprint, macros, registered, diagnostics, messages, skipped, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		generateID(), rec.Fingerprint, rec.Macros, rec.Registered, len(rec.Diagnostics),
		strings.Join(messages, "\n"), rec.Skipped, rec.Duration.Milliseconds(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record reconcile: %w", err)
	}
	return nil
}

// BeginInvocation journals the start of a macro run and returns its id.
func (s *SQLiteStore) BeginInvocation(ctx context.Context, inv macro.Invocation) (string, error) {
	if s.db == nil {
		return "", fmt.Errorf("database not opened")
	}

	id := generateID()
	s.logger.Debug("begin invocation", slog.String("id", id), slog.String("macro", inv.Macro))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invocations (id, macro, command, raw_params, depth, placeholder, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, inv.Macro, inv.Command, inv.RawParams, inv.Depth, inv.Placeholder, StatusRunning, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to record invocation: %w", err)
	}
	return id, nil
}

// CompleteInvocation marks a run finished; a non-nil runErr marks it failed.
func (s *SQLiteStore) CompleteInvocation(ctx context.Context, id string, runErr error) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	status := StatusSuccess
	var errMsg *string
	if runErr != nil {
		status = StatusFailed
		msg := runErr.Error()
		errMsg = &msg
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE invocations SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		status, errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete invocation: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("invocation not found: %s", id)
	}
	return nil
}

// ListInvocations returns the most recent runs, newest first. A
// non-positive limit returns every run.
func (s *SQLiteStore) ListInvocations(ctx context.Context, limit int) ([]*InvocationRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, macro, command, raw_params, depth, placeholder, status, error, started_at, completed_at
		 FROM invocations ORDER BY rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list invocations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*InvocationRecord
	for rows.Next() {
		rec := &InvocationRecord{}
		var (
			errMsg      sql.NullString
			completedAt sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &rec.Macro, &rec.Command, &rec.RawParams, &rec.Depth,
			&rec.Placeholder, &rec.Status, &errMsg, &rec.StartedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invocation: %w", err)
		}
		if errMsg.Valid {
			rec.Error = errMsg.String
		}
		if completedAt.Valid {
			rec.CompletedAt = &completedAt.Time
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListReconciles returns the most recent reconciliations, newest first.
func (s *SQLiteStore) ListReconciles(ctx context.Context, limit int) ([]*ReconcileEntry, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fingerprint, macros, registered, diagnostics, messages, skipped, duration_ms, created_at
		 FROM reconciles ORDER BY rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list reconciles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*ReconcileEntry
	for rows.Next() {
		e := &ReconcileEntry{}
		var (
			messages   string
			durationMS int64
		)
		if err := rows.Scan(&e.ID, &e.Fingerprint, &e.Macros, &e.Registered, &e.Diagnostics,
			&messages, &e.Skipped, &durationMS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reconcile: %w", err)
		}
		if messages != "" {
			e.Messages = strings.Split(messages, "\n")
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}
