package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safarmate/transit-backend/internal/apperrors"
	"github.com/safarmate/transit-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// Response is the success envelope
type Response struct {
	StatusCode int         `json:"statusCode"`
	Data       interface{} `json:"data"`
	Message    string      `json:"message"`
	Success    bool        `json:"success"`
}

// ErrorResponse is the failure envelope. Data is always null.
type ErrorResponse struct {
	StatusCode int           `json:"statusCode"`
	Data       interface{}   `json:"data"`
	Message    string        `json:"message"`
	Success    bool          `json:"success"`
	Errors     []interface{} `json:"error"`
}

func respond(c *gin.Context, status int, data interface{}, message string) {
	c.JSON(status, Response{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	})
}

func respondFailure(c *gin.Context, status int, message string, details ...interface{}) {
	if details == nil {
		details = []interface{}{}
	}
	c.JSON(status, ErrorResponse{
		StatusCode: status,
		Message:    message,
		Errors:     details,
	})
}

// respondError renders err through the envelope. Unclassified errors become a
// generic 500 and are logged with the request path.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	appErr, ok := apperrors.As(err)
	if !ok || appErr.Kind == apperrors.KindInternal {
		logger.WithError(err).WithField("path", c.Request.URL.Path).Error("Request failed")
		_ = c.Error(err)
		respondFailure(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondFailure(c, apperrors.StatusOf(err), appErr.Message, appErr.Details...)
}

// reasonStatus maps a ledger or booking failure reason to its HTTP status
func reasonStatus(reason models.FailureReason) int {
	switch reason {
	case models.ReasonBusNotFound, models.ReasonBookingNotFound, models.ReasonHoldNotFound:
		return http.StatusNotFound
	case models.ReasonInvalidSeatCount:
		return http.StatusBadRequest
	default:
		return http.StatusConflict
	}
}

func respondReason(c *gin.Context, reason models.FailureReason) {
	respondFailure(c, reasonStatus(reason), reasonMessage(reason), string(reason))
}

func reasonMessage(reason models.FailureReason) string {
	switch reason {
	case models.ReasonBusNotFound:
		return "Bus not found"
	case models.ReasonBookingNotFound:
		return "Booking not found"
	case models.ReasonHoldNotFound:
		return "Seat hold not found"
	case models.ReasonInsufficientSeat:
		return "Not enough seats available"
	case models.ReasonInvalidSeatCount:
		return "Seat count must be a positive number"
	case models.ReasonHoldExpired:
		return "Seat hold has expired"
	default:
		return "Booking is not in a valid state for this operation"
	}
}
