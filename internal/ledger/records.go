package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Get fetches a record by id. A missing id returns nil with no error.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM `+recordsTable+` WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// Create inserts a new record in status seen with the intake payload.
// It returns ErrAlreadyExists when the id has been recorded before.
func (s *Store) Create(ctx context.Context, id string, intake Payload) (*Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("create record: id is empty")
	}
	if intake == nil {
		intake = Payload{}
	}
	payloadJSON, err := encodeJSON(intake)
	if err != nil {
		return nil, fmt.Errorf("encode intake payload: %w", err)
	}
	timestamp := formatTime(time.Now())

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO `+recordsTable+` (
            id, status, failed_stage, reason, attempts_json, payload_json, revision, created_at, updated_at
        ) VALUES (?, ?, NULL, NULL, '{}', ?, 0, ?, ?)
        ON CONFLICT(id) DO NOTHING`,
		id,
		StatusSeen,
		payloadJSON,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, id)
	}
	return s.Get(ctx, id)
}

// Commit applies t atomically when the stored record still matches
// t.Expected and t.Revision. The returned record reflects the new state.
func (s *Store) Commit(ctx context.Context, t Transition) (*Record, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(t.ID) == "" {
		return nil, errors.New("commit: id is empty")
	}
	if _, ok := statusSet[t.Next]; !ok {
		return nil, fmt.Errorf("commit %s: unknown status %q", t.ID, t.Next)
	}

	var committed *Record
	err := retryOnBusy(ctx, func() error {
		rec, err := s.commitOnce(ctx, t)
		if err != nil {
			return err
		}
		committed = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return committed, nil
}

func (s *Store) commitOnce(ctx context.Context, t Transition) (*Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin commit tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM `+recordsTable+` WHERE id = ?`, t.ID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, t.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	if rec.Status != t.Expected || rec.Revision != t.Revision {
		return nil, fmt.Errorf("%w: %s is %s@%d, expected %s@%d",
			ErrConflict, t.ID, rec.Status, rec.Revision, t.Expected, t.Revision)
	}
	if rec.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s is terminal (%s)", ErrConflict, t.ID, rec.Status)
	}

	payload, err := mergePayload(rec.Payload, t.Delta)
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", t.ID, err)
	}
	if t.CountAttempt && t.Stage != "" {
		rec.Attempts[t.Stage]++
	}

	rec.Status = t.Next
	rec.Payload = payload
	rec.Revision++
	rec.UpdatedAt = time.Now().UTC()
	if carriesStage(t.Next) {
		rec.FailedStage = t.Stage
		rec.Reason = t.Reason
	} else {
		rec.FailedStage = ""
		rec.Reason = ""
	}

	payloadJSON, err := encodeJSON(rec.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	attemptsJSON, err := encodeJSON(rec.Attempts)
	if err != nil {
		return nil, fmt.Errorf("encode attempts: %w", err)
	}

	res, err := tx.ExecContext(
		ctx,
		`UPDATE `+recordsTable+`
         SET status = ?, failed_stage = ?, reason = ?, attempts_json = ?, payload_json = ?,
             revision = ?, updated_at = ?
         WHERE id = ? AND revision = ?`,
		rec.Status,
		nullableString(string(rec.FailedStage)),
		nullableString(rec.Reason),
		attemptsJSON,
		payloadJSON,
		rec.Revision,
		formatTime(rec.UpdatedAt),
		t.ID,
		t.Revision,
	)
	if err != nil {
		return nil, fmt.Errorf("update record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: %s changed during commit", ErrConflict, t.ID)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return rec, nil
}

// List returns up to limit ids whose status is in statuses, oldest first.
// No statuses means every record; limit <= 0 means unbounded.
func (s *Store) List(ctx context.Context, limit int, statuses ...Status) ([]string, error) {
	ctx = ensureContext(ctx)
	query, args, err := listQuery("id", limit, statuses).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListRecords is List returning full records, for operator views.
func (s *Store) ListRecords(ctx context.Context, limit int, statuses ...Status) ([]*Record, error) {
	ctx = ensureContext(ctx)
	query, args, err := listQuery(recordColumns, limit, statuses).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func listQuery(columns string, limit int, statuses []Status) sq.SelectBuilder {
	builder := sq.Select(columns).From(recordsTable).OrderBy("created_at", "id")
	if len(statuses) > 0 {
		values := make([]string, len(statuses))
		for i, status := range statuses {
			values[i] = string(status)
		}
		builder = builder.Where(sq.Eq{"status": values})
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	return builder
}
