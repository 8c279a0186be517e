package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dispatchd/fleettrack/cli/tracker/cache"
	"github.com/dispatchd/fleettrack/cli/tracker/sim"
	"github.com/dispatchd/fleettrack/cli/tracker/sync"
	"github.com/dispatchd/fleettrack/cli/tracker/track"
)

// Handler serves the tracking query surface consumed by the dispatch HTTP
// layer.
type Handler struct {
	Cache  cache.Cache
	Writer sim.PositionWriter
	Sim    *sim.Simulator
	Sync   *sync.Service
}

func NewHandler(c cache.Cache, writer sim.PositionWriter, simulator *sim.Simulator, syncService *sync.Service) *Handler {
	return &Handler{Cache: c, Writer: writer, Sim: simulator, Sync: syncService}
}

func (h *Handler) GetLocation(c *gin.Context) {
	id := c.Param("id")

	p, ok, err := h.Cache.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "vehicle not found"})
		return
	}

	c.JSON(http.StatusOK, p)
}

func (h *Handler) GetAllLocations(c *gin.Context) {
	positions, err := h.Cache.GetAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if positions == nil {
		positions = []track.Position{}
	}

	c.JSON(http.StatusOK, positions)
}

func (h *Handler) FindNearby(c *gin.Context) {
	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lng, lngErr := strconv.ParseFloat(c.Query("lng"), 64)
	if latErr != nil || lngErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng are required"})
		return
	}

	radiusKm := 5.0
	if raw := c.Query("radius_km"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid radius_km"})
			return
		}
		radiusKm = parsed
	}

	nearby, err := cache.FindNearby(c.Request.Context(), h.Cache, lat, lng, radiusKm)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, nearby)
}

func (h *Handler) GetSyncStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.Sync.GetStats())
}

type updateLocationRequest struct {
	// Pointers so presence is distinguishable from a legitimate zero
	// coordinate (equator, prime meridian).
	Lat     *float64 `json:"lat" binding:"required"`
	Lng     *float64 `json:"lng" binding:"required"`
	Speed   *float64 `json:"speed"`
	Heading *float64 `json:"heading"`
}

// UpdateLocation is the manual direct-update path. It goes through the same
// cache-write-and-publish as the simulator.
func (h *Handler) UpdateLocation(c *gin.Context) {
	var req updateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p := track.Position{
		VehicleID: c.Param("id"),
		Lat:       *req.Lat,
		Lng:       *req.Lng,
		Speed:     req.Speed,
		Heading:   req.Heading,
		Timestamp: time.Now().UTC(),
	}
	if err := h.Writer.Update(c.Request.Context(), p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, p)
}

type addVehicleRequest struct {
	VehicleID string   `json:"vehicle_id" binding:"required"`
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
}

func (h *Handler) AddSimulatedVehicle(c *gin.Context) {
	var req addVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.Sim.AddVehicle(req.VehicleID, req.Lat, req.Lng)
	c.JSON(http.StatusCreated, gin.H{"vehicle_id": req.VehicleID})
}

// RemoveSimulatedVehicle drops the simulator state and clears the cache
// entry, the administrative removal path.
func (h *Handler) RemoveSimulatedVehicle(c *gin.Context) {
	id := c.Param("id")

	h.Sim.RemoveVehicle(id)
	if err := h.Cache.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"vehicle_id": id})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
