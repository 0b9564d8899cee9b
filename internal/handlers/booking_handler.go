package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/safarmate/transit-backend/internal/middleware"
	"github.com/safarmate/transit-backend/internal/models"
	"github.com/safarmate/transit-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// IdempotencyKeyHeader lets clients retry booking creation safely
const IdempotencyKeyHeader = "Idempotency-Key"

// BookingHandler serves the booking workflow
type BookingHandler struct {
	bookings *services.BookingService
	logger   *logrus.Logger
}

func NewBookingHandler(bookings *services.BookingService, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{bookings: bookings, logger: logger}
}

// CreateBooking holds seats and creates a pending booking
// POST /api/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusBadRequest, bindingMessage(err))
		return
	}
	if err := req.Validate(); err != nil {
		respondFailure(c, http.StatusBadRequest, err.Error())
		return
	}

	in := services.CreateBookingInput{
		BusID:      req.BusID,
		FromStopID: req.FromStopID,
		ToStopID:   req.ToStopID,
		Channel:    models.ChannelApp,
	}
	if req.Seats != nil {
		in.Seats = *req.Seats
	}
	if req.Channel != nil {
		in.Channel = models.Channel(*req.Channel)
	}

	// The header wins over the body field.
	in.IdempotencyKey = strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	if in.IdempotencyKey == "" && req.IdempotencyKey != nil {
		in.IdempotencyKey = strings.TrimSpace(*req.IdempotencyKey)
	}

	if userCtx, ok := middleware.GetUserContext(c); ok {
		userID := userCtx.UserID.String()
		in.UserID = &userID
	}

	result, err := h.bookings.CreateBooking(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !result.OK {
		respondReason(c, result.Reason)
		return
	}

	if result.Replayed {
		c.Header("Idempotent-Replayed", "true")
	}
	respond(c, http.StatusCreated, result.Booking, "Booking created")
}

// GetBooking returns a booking by id
// GET /api/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	booking, err := h.bookings.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if booking == nil {
		respondReason(c, models.ReasonBookingNotFound)
		return
	}
	respond(c, http.StatusOK, booking, "Booking fetched")
}

// ConfirmBooking turns the booking's hold into a reservation
// POST /api/bookings/:id/confirm
func (h *BookingHandler) ConfirmBooking(c *gin.Context) {
	result, err := h.bookings.ConfirmBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !result.OK {
		respondReason(c, result.Reason)
		return
	}
	respond(c, http.StatusOK, result.Booking, "Booking confirmed")
}

// CancelBooking releases a pending booking's seats
// POST /api/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	result, err := h.bookings.CancelBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !result.OK {
		respondReason(c, result.Reason)
		return
	}
	respond(c, http.StatusOK, result.Booking, "Booking cancelled")
}
