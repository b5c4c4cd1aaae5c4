package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"localidades-etl/internal/models"

	"github.com/rs/zerolog/log"
)

// maxPlaceholders is the MySQL limit of bound parameters per statement.
const maxPlaceholders = 65535

const (
	mysqlInsertPrefix     = `INSERT INTO localidades (id, localidad, provincia, cp, id_prov_mstr) VALUES `
	mysqlInsertRow        = `(?, ?, ?, ?, ?)`
	mysqlByProvinceSQL    = `SELECT id, localidad, provincia, cp, id_prov_mstr, COUNT(*) OVER () FROM localidades WHERE provincia = ?`
	mysqlFindByIDSQL      = `SELECT id, localidad, provincia, cp, id_prov_mstr FROM localidades WHERE id = ? LIMIT 1`
	defaultMySQLBatchSize = 1000
)

// MySQLRepository stores locations in MySQL through database/sql.
type MySQLRepository struct {
	db        *sql.DB
	batchSize int
}

// NewMySQLRepository creates a MySQL repository. batchSize is the number of
// rows per multi-row INSERT; it is clamped to the placeholder limit.
func NewMySQLRepository(db *sql.DB, batchSize int) *MySQLRepository {
	if batchSize <= 0 {
		batchSize = defaultMySQLBatchSize
	}
	if limit := maxPlaceholders / len(models.Columns); batchSize > limit {
		batchSize = limit
	}
	return &MySQLRepository{db: db, batchSize: batchSize}
}

// EnsureInitialized drops and recreates the localidades table. No row that
// existed before the call survives it. MySQL commits DDL implicitly, so a
// failed CREATE is reported as a SchemaError but the DROP is not undone.
func (r *MySQLRepository) EnsureInitialized(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &SchemaError{Err: err}
	}
	for _, stmt := range []string{dropTableSQL, createTableSQL} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return &SchemaError{Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &SchemaError{Err: err}
	}
	log.Debug().Str("table", tableName).Msg("table reset")
	return nil
}

// InsertMany normalizes the batch and inserts it with multi-row INSERT
// statements inside one transaction. Either every row is committed or none.
func (r *MySQLRepository) InsertMany(ctx context.Context, batch models.RawBatch) (int64, error) {
	locations, err := normalize(batch)
	if err != nil {
		return 0, err
	}
	if len(locations) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &InsertError{Err: err}
	}

	var inserted int64
	for start := 0; start < len(locations); start += r.batchSize {
		end := min(start+r.batchSize, len(locations))
		query, args := mysqlInsertStatement(locations[start:end])
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			tx.Rollback()
			return 0, &InsertError{Err: err}
		}
		n, err := res.RowsAffected()
		if err != nil {
			tx.Rollback()
			return 0, &InsertError{Err: err}
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, &InsertError{Err: err}
	}
	log.Debug().Int64("rows", inserted).Msg("rows inserted")
	return inserted, nil
}

func mysqlInsertStatement(locations []models.Location) (string, []any) {
	var sb strings.Builder
	sb.WriteString(mysqlInsertPrefix)
	args := make([]any, 0, len(locations)*len(models.Columns))
	for i, loc := range locations {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(mysqlInsertRow)
		args = append(args, loc.Args()...)
	}
	return sb.String(), args
}

// ListProvinces returns every province once, in ascending order.
func (r *MySQLRepository) ListProvinces(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, listProvincesSQL)
	if err != nil {
		return nil, &QueryError{Op: "failed to list provinces", Err: err}
	}
	defer rows.Close()

	provinces := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, &QueryError{Op: "failed to scan province", Err: err}
		}
		provinces = append(provinces, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Op: "error iterating provinces", Err: err}
	}
	return provinces, nil
}

// QueryByProvince opens a cursor over the locations of province.
func (r *MySQLRepository) QueryByProvince(ctx context.Context, province string) (LocationCursor, error) {
	rows, err := r.db.QueryContext(ctx, mysqlByProvinceSQL, province)
	if err != nil {
		return nil, &QueryError{Op: fmt.Sprintf("failed to query province %q", province), Err: err}
	}
	cursor, err := newLocationCursor(rows)
	if err != nil {
		return nil, &QueryError{Op: fmt.Sprintf("failed to read province %q", province), Err: err}
	}
	return cursor, nil
}

// CountLocations returns the number of rows in the table.
func (r *MySQLRepository) CountLocations(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, countLocationsSQL).Scan(&n); err != nil {
		return 0, &QueryError{Op: "failed to count locations", Err: err}
	}
	return n, nil
}

// FindByID returns the first location with the given id.
func (r *MySQLRepository) FindByID(ctx context.Context, id int64) (*models.Location, error) {
	var loc models.Location
	err := r.db.QueryRowContext(ctx, mysqlFindByIDSQL, id).
		Scan(&loc.ID, &loc.Name, &loc.Province, &loc.PostalCode, &loc.ProvinceMasterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, &QueryError{Op: fmt.Sprintf("failed to find location %d", id), Err: err}
	}
	return &loc, nil
}
