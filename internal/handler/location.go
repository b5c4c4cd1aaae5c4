package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"localidades-etl/internal/models"
	"localidades-etl/internal/repository"
	"localidades-etl/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// LocationHandler handles requests for the loaded locations
type LocationHandler struct {
	service LocationService
}

// LocationService interface for dependency injection
type LocationService interface {
	Provinces(ctx context.Context) ([]string, error)
	LocationsByProvince(ctx context.Context, province string) ([]models.Location, int64, error)
	Location(ctx context.Context, id int64) (*models.Location, error)
}

// ProvinceLocations is the body of GET /provinces/:name/locations
type ProvinceLocations struct {
	Province  string            `json:"provincia"`
	Count     int64             `json:"cantidad_localidades"`
	Locations []models.Location `json:"localidades"`
}

// NewLocationHandler creates a new location handler
func NewLocationHandler(svc LocationService) *LocationHandler {
	return &LocationHandler{service: svc}
}

// Provinces handles GET /provinces requests
//
//	@Summary	List provinces
//	@Produce	json
//	@Success	200	{array}		string
//	@Failure	500	{object}	map[string]string
//	@Router		/provinces [get]
func (h *LocationHandler) Provinces(c *gin.Context) {
	provinces, err := h.service.Provinces(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("list provinces")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, provinces)
}

// ProvinceLocations handles GET /provinces/:name/locations requests
//
//	@Summary	List the locations of a province
//	@Produce	json
//	@Param		name	path		string	true	"Province name"
//	@Success	200		{object}	ProvinceLocations
//	@Failure	404		{object}	map[string]string
//	@Failure	500		{object}	map[string]string
//	@Router		/provinces/{name}/locations [get]
func (h *LocationHandler) ProvinceLocations(c *gin.Context) {
	province := c.Param("name")

	locations, count, err := h.service.LocationsByProvince(c.Request.Context(), province)
	if err != nil {
		if errors.Is(err, service.ErrProvinceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "province not found"})
			return
		}
		log.Error().Err(err).Str("province", province).Msg("list locations")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, ProvinceLocations{Province: province, Count: count, Locations: locations})
}

// Location handles GET /locations/:id requests
//
//	@Summary	Get a location by id
//	@Produce	json
//	@Param		id	path		int	true	"Location id"
//	@Success	200	{object}	models.Location
//	@Failure	400	{object}	map[string]string
//	@Failure	404	{object}	map[string]string
//	@Failure	500	{object}	map[string]string
//	@Router		/locations/{id} [get]
func (h *LocationHandler) Location(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid location id"})
		return
	}

	location, err := h.service.Location(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "location not found"})
			return
		}
		log.Error().Err(err).Int64("id", id).Msg("find location")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, location)
}
