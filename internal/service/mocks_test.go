package service

import (
	"context"

	"localidades-etl/internal/models"
	"localidades-etl/internal/repository"

	"github.com/stretchr/testify/mock"
)

// MockLocationStore is a mock implementation of LocationStore and LocationRepository
type MockLocationStore struct {
	mock.Mock
}

func (m *MockLocationStore) EnsureInitialized(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockLocationStore) InsertMany(ctx context.Context, batch models.RawBatch) (int64, error) {
	args := m.Called(ctx, batch)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLocationStore) ListProvinces(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	provinces, _ := args.Get(0).([]string)
	return provinces, args.Error(1)
}

func (m *MockLocationStore) QueryByProvince(ctx context.Context, province string) (repository.LocationCursor, error) {
	args := m.Called(ctx, province)
	cursor, _ := args.Get(0).(repository.LocationCursor)
	return cursor, args.Error(1)
}

func (m *MockLocationStore) CountLocations(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLocationStore) FindByID(ctx context.Context, id int64) (*models.Location, error) {
	args := m.Called(ctx, id)
	loc, _ := args.Get(0).(*models.Location)
	return loc, args.Error(1)
}

// sliceCursor is an in-memory LocationCursor.
type sliceCursor struct {
	locations []models.Location
	pos       int
	err       error
	closed    bool
}

func newSliceCursor(locations ...models.Location) *sliceCursor {
	return &sliceCursor{locations: locations, pos: -1}
}

func (c *sliceCursor) Next() bool {
	if c.closed || c.pos+1 >= len(c.locations) {
		c.pos = len(c.locations)
		return false
	}
	c.pos++
	return true
}

func (c *sliceCursor) Location() models.Location { return c.locations[c.pos] }
func (c *sliceCursor) Total() int64              { return int64(len(c.locations)) }
func (c *sliceCursor) Err() error                { return c.err }

func (c *sliceCursor) Close() error {
	c.closed = true
	return nil
}
