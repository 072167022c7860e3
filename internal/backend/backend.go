// Package backend holds the typed repositories over the business-data
// store. Each operation is a single atomic insert/update/select; multi-step
// sequences (invoice header + lines) are composed by the executor, which
// performs its own compensating rollback.
package backend

import "errors"

var (
	ErrNotFound     = errors.New("RECORD_NOT_FOUND")
	ErrInsertFailed = errors.New("DATABASE_INSERT_FAILED")
	ErrQueryFailed  = errors.New("QUERY_EXECUTION_FAILED")
)
