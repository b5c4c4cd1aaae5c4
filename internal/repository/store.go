// Package repository implements the localidades table on MySQL and
// PostgreSQL.
//
// Both backends share the same schema and the same contract: the table is
// reset on initialization, filled once by a single bulk insert and then
// read back grouped by province.
package repository

import (
	"context"
	"fmt"

	"localidades-etl/internal/database"
	"localidades-etl/internal/models"
)

const tableName = "localidades"

const (
	dropTableSQL   = `DROP TABLE IF EXISTS localidades`
	createTableSQL = `CREATE TABLE localidades (
	id INT NOT NULL,
	localidad VARCHAR(255) NOT NULL,
	provincia VARCHAR(255) NOT NULL,
	cp INT,
	id_prov_mstr INT NOT NULL
)`
	listProvincesSQL  = `SELECT provincia FROM localidades GROUP BY provincia ORDER BY provincia`
	countLocationsSQL = `SELECT COUNT(*) FROM localidades`
)

// Store is the full set of operations offered by both backends.
type Store interface {
	EnsureInitialized(ctx context.Context) error
	InsertMany(ctx context.Context, batch models.RawBatch) (int64, error)
	ListProvinces(ctx context.Context) ([]string, error)
	QueryByProvince(ctx context.Context, province string) (LocationCursor, error)
	CountLocations(ctx context.Context) (int64, error)
	FindByID(ctx context.Context, id int64) (*models.Location, error)
}

var (
	_ Store = (*MySQLRepository)(nil)
	_ Store = (*PostgresRepository)(nil)
)

// ForHandle returns the repository matching the handle's driver.
func ForHandle(h *database.Handle, batchSize int) (Store, error) {
	switch {
	case h == nil:
		return nil, fmt.Errorf("repository: nil database handle")
	case h.SQL != nil:
		return NewMySQLRepository(h.SQL, batchSize), nil
	case h.PG != nil:
		return NewPostgresRepository(h.PG), nil
	case h.PGPool != nil:
		return NewPostgresRepository(h.PGPool), nil
	default:
		return nil, fmt.Errorf("repository: handle for %q has no open connection", h.Driver)
	}
}

// normalize turns every raw record into a Location before anything is sent
// to the database, so a bad row aborts the batch without a round-trip.
func normalize(batch models.RawBatch) ([]models.Location, error) {
	mapping := batch.ColumnMapping()
	locations := make([]models.Location, 0, len(batch.Records))
	for i, record := range batch.Records {
		loc, err := mapping.Parse(record)
		if err != nil {
			return nil, &InsertError{Row: i + 1, Err: err}
		}
		locations = append(locations, loc)
	}
	return locations, nil
}
