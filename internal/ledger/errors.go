package ledger

import "errors"

var (
	// ErrAlreadyExists is returned by Create when the id is already recorded.
	// It is the normal de-duplication path, not a failure.
	ErrAlreadyExists = errors.New("ledger record already exists")
	// ErrConflict means the record no longer matches the expected status and
	// revision. The caller should re-read on a later tick.
	ErrConflict = errors.New("ledger commit conflict")
	// ErrPayloadOverwrite means a commit tried to change a committed payload field.
	ErrPayloadOverwrite = errors.New("ledger payload field already committed")
	// ErrNotFound is returned by Commit for ids that were never created.
	ErrNotFound = errors.New("ledger record not found")
	// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
	ErrSchemaMismatch = errors.New("schema version mismatch")
)
