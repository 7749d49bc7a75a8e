package ledger

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const recordColumns = "id, status, failed_stage, reason, attempts_json, payload_json, revision, created_at, updated_at"

// timeLayout is fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		id          string
		statusStr   string
		failedStage sql.NullString
		reason      sql.NullString
		attempts    string
		payload     string
		revision    int64
		createdRaw  string
		updatedRaw  string
	)
	if err := scanner.Scan(
		&id,
		&statusStr,
		&failedStage,
		&reason,
		&attempts,
		&payload,
		&revision,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	rec := &Record{
		ID:          id,
		Status:      Status(statusStr),
		FailedStage: Stage(failedStage.String),
		Reason:      reason.String,
		Revision:    revision,
	}
	var err error
	if rec.Attempts, err = decodeAttempts(attempts); err != nil {
		return nil, fmt.Errorf("decode attempts for %s: %w", id, err)
	}
	if rec.Payload, err = decodePayload(payload); err != nil {
		return nil, fmt.Errorf("decode payload for %s: %w", id, err)
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		rec.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		rec.UpdatedAt = updated
	}
	return rec, nil
}

func decodeAttempts(raw string) (map[Stage]int, error) {
	out := map[Stage]int{}
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodePayload(raw string) (Payload, error) {
	out := Payload{}
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeJSON(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// mergePayload applies delta under the append-only rule. An identical value
// for an existing key is a no-op.
func mergePayload(current, delta Payload) (Payload, error) {
	merged := current.Clone()
	for _, key := range delta.Keys() {
		value := delta[key]
		if existing, ok := merged[key]; ok {
			if existing != value {
				return nil, fmt.Errorf("%w: %s", ErrPayloadOverwrite, key)
			}
			continue
		}
		merged[key] = value
	}
	return merged, nil
}

func carriesStage(status Status) bool {
	switch status {
	case StatusFailed, StatusDead, StatusRejected:
		return true
	}
	return false
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
