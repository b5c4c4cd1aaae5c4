package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"localidades-etl/internal/models"
	"localidades-etl/internal/repository"
)

// ErrProvinceNotFound is returned when a province has no locations.
var ErrProvinceNotFound = errors.New("service: province not found")

// LocationService contains the read-side logic behind the HTTP API
type LocationService struct {
	repo LocationRepository
}

// LocationRepository interface for dependency injection
type LocationRepository interface {
	ListProvinces(ctx context.Context) ([]string, error)
	QueryByProvince(ctx context.Context, province string) (repository.LocationCursor, error)
	FindByID(ctx context.Context, id int64) (*models.Location, error)
}

// NewLocationService creates a new location service
func NewLocationService(repo LocationRepository) *LocationService {
	return &LocationService{repo: repo}
}

// Provinces lists every province in the table
func (s *LocationService) Provinces(ctx context.Context) ([]string, error) {
	provinces, err := s.repo.ListProvinces(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list provinces: %w", err)
	}
	return provinces, nil
}

// LocationsByProvince returns the locations of a province and their count
func (s *LocationService) LocationsByProvince(ctx context.Context, province string) ([]models.Location, int64, error) {
	if strings.TrimSpace(province) == "" {
		return nil, 0, fmt.Errorf("service: province cannot be empty")
	}

	cursor, err := s.repo.QueryByProvince(ctx, province)
	if err != nil {
		return nil, 0, fmt.Errorf("service: failed to query locations: %w", err)
	}
	defer cursor.Close()

	if cursor.Total() == 0 {
		return nil, 0, ErrProvinceNotFound
	}

	locations := make([]models.Location, 0, cursor.Total())
	for cursor.Next() {
		locations = append(locations, cursor.Location())
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, fmt.Errorf("service: failed to read locations: %w", err)
	}

	return locations, cursor.Total(), nil
}

// Location finds a single location by id
func (s *LocationService) Location(ctx context.Context, id int64) (*models.Location, error) {
	if id < 0 {
		return nil, fmt.Errorf("service: invalid location id: %d", id)
	}

	location, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service: failed to find location: %w", err)
	}

	return location, nil
}
