package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"localidades-etl/internal/models"
	"localidades-etl/internal/repository"
	"localidades-etl/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockLocationService is a mock implementation of the LocationService interface
type MockLocationService struct {
	mock.Mock
}

func (m *MockLocationService) Provinces(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	provinces, _ := args.Get(0).([]string)
	return provinces, args.Error(1)
}

func (m *MockLocationService) LocationsByProvince(ctx context.Context, province string) ([]models.Location, int64, error) {
	args := m.Called(ctx, province)
	locations, _ := args.Get(0).([]models.Location)
	return locations, args.Get(1).(int64), args.Error(2)
}

func (m *MockLocationService) Location(ctx context.Context, id int64) (*models.Location, error) {
	args := m.Called(ctx, id)
	location, _ := args.Get(0).(*models.Location)
	return location, args.Error(1)
}

func int64Ptr(v int64) *int64 { return &v }

var palermo = models.Location{ID: 1, Name: "Palermo", Province: "Buenos Aires", PostalCode: int64Ptr(1425), ProvinceMasterID: 1}

func serve(t *testing.T, svc *MockLocationService, target string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := NewRouter(NewLocationHandler(svc))

	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, target, nil)
	require.NoError(t, err)
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := serve(t, new(MockLocationService), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestLocationHandler_Provinces(t *testing.T) {
	tests := []struct {
		name           string
		mockProvinces  []string
		mockError      error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "provinces found",
			mockProvinces:  []string{"Buenos Aires", "Chaco"},
			expectedStatus: http.StatusOK,
			expectedBody:   `["Buenos Aires","Chaco"]`,
		},
		{
			name:           "service error",
			mockError:      assert.AnError,
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"error":"internal server error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockLocationService)
			svc.On("Provinces", mock.Anything).Return(tt.mockProvinces, tt.mockError)

			w := serve(t, svc, "/provinces")

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			svc.AssertExpectations(t)
		})
	}
}

func TestLocationHandler_ProvinceLocations(t *testing.T) {
	tests := []struct {
		name           string
		province       string
		mockLocations  []models.Location
		mockCount      int64
		mockError      error
		expectedStatus int
	}{
		{
			name:           "locations found",
			province:       "Buenos Aires",
			mockLocations:  []models.Location{palermo},
			mockCount:      1,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "unknown province",
			province:       "Atlantis",
			mockError:      service.ErrProvinceNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "service error",
			province:       "Chaco",
			mockError:      assert.AnError,
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockLocationService)
			svc.On("LocationsByProvince", mock.Anything, tt.province).Return(tt.mockLocations, tt.mockCount, tt.mockError)

			w := serve(t, svc, "/provinces/"+url.PathEscape(tt.province)+"/locations")

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				var body ProvinceLocations
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, ProvinceLocations{Province: tt.province, Count: tt.mockCount, Locations: tt.mockLocations}, body)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestLocationHandler_Location(t *testing.T) {
	tests := []struct {
		name           string
		id             string
		mockID         int64
		mockLocation   *models.Location
		mockError      error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "invalid id",
			id:             "abc",
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"invalid location id"}`,
		},
		{
			name:           "found",
			id:             "1",
			mockID:         1,
			mockLocation:   &palermo,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"id":1,"localidad":"Palermo","provincia":"Buenos Aires","cp":1425,"id_prov_mstr":1}`,
		},
		{
			name:           "not found",
			id:             "404",
			mockID:         404,
			mockError:      repository.ErrNotFound,
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"error":"location not found"}`,
		},
		{
			name:           "service error",
			id:             "2",
			mockID:         2,
			mockError:      assert.AnError,
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"error":"internal server error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockLocationService)
			if tt.mockID != 0 {
				svc.On("Location", mock.Anything, tt.mockID).Return(tt.mockLocation, tt.mockError)
			}

			w := serve(t, svc, "/locations/"+tt.id)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			svc.AssertExpectations(t)
		})
	}
}
