package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safarmate/transit-backend/internal/models"
	"github.com/safarmate/transit-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// BusHandler serves bus registration, telemetry, ETA and seat endpoints
type BusHandler struct {
	transit *services.TransitService
	eta     *services.ETAService
	ledger  *services.SeatLedgerService
	logger  *logrus.Logger
}

func NewBusHandler(transit *services.TransitService, eta *services.ETAService, ledger *services.SeatLedgerService, logger *logrus.Logger) *BusHandler {
	return &BusHandler{
		transit: transit,
		eta:     eta,
		ledger:  ledger,
		logger:  logger,
	}
}

// CreateBus registers a new bus
// POST /api/buses
func (h *BusHandler) CreateBus(c *gin.Context) {
	var req models.CreateBusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusBadRequest, bindingMessage(err))
		return
	}

	bus, err := h.transit.CreateBus(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, bus, "Bus created")
}

// UpdateBus changes seat_count and/or status
// PATCH /api/buses/:id
func (h *BusHandler) UpdateBus(c *gin.Context) {
	var req models.UpdateBusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusBadRequest, bindingMessage(err))
		return
	}

	bus, err := h.transit.UpdateBus(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, bus, "Bus updated")
}

// GetLocation returns the last reported position of a bus
// GET /api/buses/:id/location
func (h *BusHandler) GetLocation(c *gin.Context) {
	loc, err := h.transit.GetLocation(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, loc, "Location fetched")
}

// UpdateLocation stores tracker telemetry sent as query parameters
// POST /api/buses/:id/location?lat=..&longitude=..&s=..&heading=..
func (h *BusHandler) UpdateLocation(c *gin.Context) {
	status, err := h.transit.UpdateLocation(c.Request.Context(), services.LocationUpdate{
		BusID:   c.Param("id"),
		Lat:     c.Query("lat"),
		Lng:     c.Query("longitude"),
		Speed:   c.Query("s"),
		Heading: c.Query("heading"),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	// Trackers expect the bare status object, not the envelope.
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// GetAvailability returns the seat ledger summary of a bus
// GET /api/buses/:id/availability
func (h *BusHandler) GetAvailability(c *gin.Context) {
	availability, err := h.ledger.GetAvailability(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if availability == nil {
		respondReason(c, models.ReasonBusNotFound)
		return
	}
	respond(c, http.StatusOK, availability, "Seat availability")
}

// GetStopEstimates returns straight-line minute estimates to every stop on the bus's route
// GET /api/buses/:id/eta-estimates
func (h *BusHandler) GetStopEstimates(c *gin.Context) {
	busID := c.Param("id")
	estimates := h.eta.EstimateStopETAs(c.Request.Context(), busID)
	respond(c, http.StatusOK, gin.H{
		"bus_id":  busID,
		"minutes": estimates,
	}, "ETA estimates")
}

// GetBusETA asks the routing provider for the drive from a bus to a stop
// GET /api/buses/:id/:stopId
func (h *BusHandler) GetBusETA(c *gin.Context) {
	result, err := h.eta.EtaFromBusToStop(c.Request.Context(), c.Param("id"), c.Param("stopId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, result, "ETA computed")
}

// GetBusesOnRoute lists the buses serving the route of a stop.
// The path segment is a stop id.
// GET /api/buses/:id
func (h *BusHandler) GetBusesOnRoute(c *gin.Context) {
	routeID, buses, err := h.transit.BusesForStop(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"route_id": routeID,
		"buses":    buses,
	}, "Buses on route")
}
