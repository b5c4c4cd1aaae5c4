package repository

import (
	"localidades-etl/internal/models"

	"github.com/jackc/pgx/v5"
)

// rowSource is the part of *sql.Rows and pgx.Rows the cursor needs.
type rowSource interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// LocationCursor is a forward-only, single-pass view over the locations of
// one province. Total is the number of matched rows, counted by the same
// query that produces them. Rows are fetched one at a time.
//
// A cursor cannot be restarted; once Next returns false it stays false.
// Callers must call Close, which is safe to repeat.
type LocationCursor interface {
	Next() bool
	Location() models.Location
	Total() int64
	Err() error
	Close() error
}

// rowCursor implements LocationCursor over a driver result set.
type rowCursor struct {
	rows    rowSource
	total   int64
	current models.Location
	pending bool
	done    bool
	err     error
}

// newLocationCursor reads the first row so Total is known before any
// location is handed out.
func newLocationCursor(rows rowSource) (*rowCursor, error) {
	c := &rowCursor{rows: rows}
	if !rows.Next() {
		err := rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
		c.rows = nil
		c.done = true
		return c, nil
	}
	if err := c.scan(); err != nil {
		rows.Close()
		return nil, err
	}
	c.pending = true
	return c, nil
}

// Total returns the number of locations the cursor yields.
func (c *rowCursor) Total() int64 { return c.total }

// Next advances to the next location.
func (c *rowCursor) Next() bool {
	if c.done {
		return false
	}
	if c.pending {
		c.pending = false
		return true
	}
	if !c.rows.Next() {
		c.finish(c.rows.Err())
		return false
	}
	if err := c.scan(); err != nil {
		c.finish(err)
		return false
	}
	return true
}

// Location returns the location Next moved to.
func (c *rowCursor) Location() models.Location { return c.current }

// Err returns the error, if any, that ended the iteration early.
func (c *rowCursor) Err() error { return c.err }

// Close releases the underlying result set.
func (c *rowCursor) Close() error {
	if c.rows == nil {
		return nil
	}
	c.pending = false
	c.done = true
	err := c.rows.Close()
	c.rows = nil
	return err
}

func (c *rowCursor) scan() error {
	var loc models.Location
	if err := c.rows.Scan(&loc.ID, &loc.Name, &loc.Province, &loc.PostalCode, &loc.ProvinceMasterID, &c.total); err != nil {
		return err
	}
	c.current = loc
	return nil
}

func (c *rowCursor) finish(err error) {
	c.done = true
	if err != nil {
		c.err = &QueryError{Op: "failed to iterate locations", Err: err}
	}
	if c.rows != nil {
		c.rows.Close()
		c.rows = nil
	}
}

// pgxRows gives pgx.Rows the Close signature of *sql.Rows.
type pgxRows struct {
	pgx.Rows
}

func (r pgxRows) Close() error {
	r.Rows.Close()
	return r.Rows.Err()
}
