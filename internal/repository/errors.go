package repository

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("repository: location not found")

// SchemaError reports a failed table reset. The run cannot continue.
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("repository: failed to initialize table %s: %v", tableName, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// InsertError reports a rejected bulk insert. Row is the 1-based data row
// that failed normalization, or 0 when the database rejected the batch.
// Nothing from the batch is committed.
type InsertError struct {
	Row int
	Err error
}

func (e *InsertError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("repository: invalid location at row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("repository: failed to insert locations: %v", e.Err)
}

func (e *InsertError) Unwrap() error { return e.Err }

// QueryError reports a failed read.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("repository: %s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
