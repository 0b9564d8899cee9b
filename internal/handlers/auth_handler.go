package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/safarmate/transit-backend/internal/middleware"
	"github.com/safarmate/transit-backend/internal/models"
	"github.com/safarmate/transit-backend/internal/services"
	"github.com/safarmate/transit-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// AuthHandler handles account and token endpoints
type AuthHandler struct {
	auth   *services.AuthService
	logger *logrus.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth *services.AuthService, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

func clientInfo(c *gin.Context) models.ClientInfo {
	ua := c.Request.UserAgent()
	return models.ClientInfo{
		IP:         utils.ClientIP(c),
		UserAgent:  ua,
		DeviceType: utils.ParseUserAgent(ua).DeviceType,
	}
}

// Signup creates an account
// POST /api/users/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusBadRequest, bindingMessage(err))
		return
	}

	resp, err := h.auth.Signup(c.Request.Context(), &req, clientInfo(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, resp, "User registered")
}

// Login verifies credentials and issues tokens
// POST /api/users/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusBadRequest, bindingMessage(err))
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), &req, clientInfo(c))
	if err != nil {
		var rateLimitErr *services.RateLimitError
		if errors.As(err, &rateLimitErr) {
			retry := math.Ceil(time.Until(rateLimitErr.RetryAfter).Seconds())
			c.Header("Retry-After", strconv.Itoa(int(math.Max(retry, 1))))
			respondFailure(c, http.StatusTooManyRequests, rateLimitErr.Message, "RATE_LIMITED")
			return
		}
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, resp, "User logged in")
}

// Refresh exchanges a refresh token for a new pair
// POST /api/users/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusBadRequest, bindingMessage(err))
		return
	}

	resp, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken, clientInfo(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, resp, "Token refreshed")
}

// Logout revokes the given refresh token, or every session with all_devices
// POST /api/users/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		respondFailure(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req models.LogoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondFailure(c, http.StatusBadRequest, bindingMessage(err))
			return
		}
	}

	resp, err := h.auth.Logout(c.Request.Context(), userCtx.UserID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, resp, "Logged out")
}

// Me returns the authenticated account
// GET /api/users/me
func (h *AuthHandler) Me(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		respondFailure(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := h.auth.Me(c.Request.Context(), userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, user, "Current user")
}
