package service

import (
	"errors"
	"fmt"

	"localidades-etl/internal/database"
	"localidades-etl/internal/repository"
)

// PreflightError reports that the output directory already exists. Nothing
// has been written when it is returned.
type PreflightError struct {
	Path string
}

func (e *PreflightError) Error() string {
	return fmt.Sprintf("service: output directory %s already exists", e.Path)
}

// CsvReadError reports malformed input.
type CsvReadError struct {
	Path string
	Err  error
}

func (e *CsvReadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("service: failed to read csv: %v", e.Err)
	}
	return fmt.Sprintf("service: failed to read csv %s: %v", e.Path, e.Err)
}

func (e *CsvReadError) Unwrap() error { return e.Err }

// ExportIoError reports an output file that could not be created or written.
type ExportIoError struct {
	Path string
	Err  error
}

func (e *ExportIoError) Error() string {
	return fmt.Sprintf("service: failed to write %s: %v", e.Path, e.Err)
}

func (e *ExportIoError) Unwrap() error { return e.Err }

// IsDatabaseError reports whether err came from the database layer.
func IsDatabaseError(err error) bool {
	var (
		connErr   *database.ConnectionError
		schemaErr *repository.SchemaError
		insertErr *repository.InsertError
		queryErr  *repository.QueryError
	)
	return errors.As(err, &connErr) ||
		errors.As(err, &schemaErr) ||
		errors.As(err, &insertErr) ||
		errors.As(err, &queryErr)
}

// IsCsvError reports whether err came from reading the input file.
func IsCsvError(err error) bool {
	var csvErr *CsvReadError
	return errors.As(err, &csvErr)
}
