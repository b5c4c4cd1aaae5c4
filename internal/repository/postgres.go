package repository

import (
	"context"
	"errors"
	"fmt"

	"localidades-etl/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

const (
	pgByProvinceSQL = `SELECT id, localidad, provincia, cp, id_prov_mstr, COUNT(*) OVER () FROM localidades WHERE provincia = $1`
	pgFindByIDSQL   = `SELECT id, localidad, provincia, cp, id_prov_mstr FROM localidades WHERE id = $1 LIMIT 1`
)

// PgxConn is satisfied by both *pgx.Conn and *pgxpool.Pool.
type PgxConn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores locations in PostgreSQL through pgx.
type PostgresRepository struct {
	db PgxConn
}

// NewPostgresRepository creates a PostgreSQL repository.
func NewPostgresRepository(db PgxConn) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureInitialized drops and recreates the localidades table in one
// transaction. No row that existed before the call survives it.
func (r *PostgresRepository) EnsureInitialized(ctx context.Context) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return &SchemaError{Err: err}
	}
	defer tx.Rollback(ctx)

	for _, stmt := range []string{dropTableSQL, createTableSQL} {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return &SchemaError{Err: err}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return &SchemaError{Err: err}
	}
	log.Debug().Str("table", tableName).Msg("table reset")
	return nil
}

// InsertMany normalizes the batch and loads it with COPY inside one
// transaction. Either every row is committed or none.
func (r *PostgresRepository) InsertMany(ctx context.Context, batch models.RawBatch) (int64, error) {
	locations, err := normalize(batch)
	if err != nil {
		return 0, err
	}
	if len(locations) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, &InsertError{Err: err}
	}
	defer tx.Rollback(ctx)

	inserted, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{tableName},
		models.Columns,
		pgx.CopyFromSlice(len(locations), func(i int) ([]any, error) {
			return locations[i].Args(), nil
		}),
	)
	if err != nil {
		return 0, &InsertError{Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, &InsertError{Err: err}
	}
	log.Debug().Int64("rows", inserted).Msg("rows inserted")
	return inserted, nil
}

// ListProvinces returns every province once, in ascending order.
func (r *PostgresRepository) ListProvinces(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, listProvincesSQL)
	if err != nil {
		return nil, &QueryError{Op: "failed to list provinces", Err: err}
	}
	provinces, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, &QueryError{Op: "error iterating provinces", Err: err}
	}
	return provinces, nil
}

// QueryByProvince opens a cursor over the locations of province.
func (r *PostgresRepository) QueryByProvince(ctx context.Context, province string) (LocationCursor, error) {
	rows, err := r.db.Query(ctx, pgByProvinceSQL, province)
	if err != nil {
		return nil, &QueryError{Op: fmt.Sprintf("failed to query province %q", province), Err: err}
	}
	cursor, err := newLocationCursor(pgxRows{rows})
	if err != nil {
		return nil, &QueryError{Op: fmt.Sprintf("failed to read province %q", province), Err: err}
	}
	return cursor, nil
}

// CountLocations returns the number of rows in the table.
func (r *PostgresRepository) CountLocations(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, countLocationsSQL).Scan(&n); err != nil {
		return 0, &QueryError{Op: "failed to count locations", Err: err}
	}
	return n, nil
}

// FindByID returns the first location with the given id.
func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (*models.Location, error) {
	var loc models.Location
	err := r.db.QueryRow(ctx, pgFindByIDSQL, id).
		Scan(&loc.ID, &loc.Name, &loc.Province, &loc.PostalCode, &loc.ProvinceMasterID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, &QueryError{Op: fmt.Sprintf("failed to find location %d", id), Err: err}
	}
	return &loc, nil
}
