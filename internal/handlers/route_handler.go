package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safarmate/transit-backend/internal/models"
	"github.com/safarmate/transit-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// RouteHandler serves route and stop lookups and point-to-point ETAs
type RouteHandler struct {
	transit *services.TransitService
	eta     *services.ETAService
	logger  *logrus.Logger
}

func NewRouteHandler(transit *services.TransitService, eta *services.ETAService, logger *logrus.Logger) *RouteHandler {
	return &RouteHandler{transit: transit, eta: eta, logger: logger}
}

// CreateRoute stores a route with its stops
// POST /api/routes
func (h *RouteHandler) CreateRoute(c *gin.Context) {
	var req models.CreateRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusBadRequest, "stops must be an array if provided")
		return
	}

	route, err := h.transit.CreateRoute(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, route, "Route created")
}

// ListRoutes returns the active routes
// GET /api/routes
func (h *RouteHandler) ListRoutes(c *gin.Context) {
	routes, err := h.transit.ListRoutes(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if routes == nil {
		routes = []models.Route{}
	}
	respond(c, http.StatusOK, routes, "Routes fetched")
}

// ListStops returns every stop with its route id
// GET /api/routes/stops
func (h *RouteHandler) ListStops(c *gin.Context) {
	stops, err := h.transit.ListStops(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if stops == nil {
		stops = []models.StopWithRoute{}
	}
	respond(c, http.StatusOK, gin.H{"stops": stops}, "All stops with route ids")
}

// GetRouteForStop returns the id of the route serving a stop
// GET /api/routes/stops/:stopId
func (h *RouteHandler) GetRouteForStop(c *gin.Context) {
	stopID := c.Param("stopId")
	stop, err := h.transit.RouteForStop(c.Request.Context(), stopID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"stop_id":  stopID,
		"route_id": stop.RouteID,
	}, "Route for stop")
}

// GetETABetween computes a driving ETA between two coordinate pairs
// GET /api/routes/between?orig_lat=..&orig_lng=..&dest_lat=..&dest_lng=..
func (h *RouteHandler) GetETABetween(c *gin.Context) {
	origLat, ok1 := c.GetQuery("orig_lat")
	origLng, ok2 := c.GetQuery("orig_lng")
	destLat, ok3 := c.GetQuery("dest_lat")
	destLng, ok4 := c.GetQuery("dest_lng")
	if !ok1 || !ok2 || !ok3 || !ok4 {
		respondFailure(c, http.StatusBadRequest, "orig_lat, orig_lng, dest_lat, dest_lng are required")
		return
	}

	result, err := h.eta.EtaBetweenRaw(c.Request.Context(), origLat, origLng, destLat, destLng)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, result, "ETA computed")
}
