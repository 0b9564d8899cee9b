package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/safarmate/transit-backend/internal/middleware"
	"github.com/safarmate/transit-backend/pkg/jwt"
	"github.com/sirupsen/logrus"
)

// Set groups the handlers mounted under /api
type Set struct {
	Bus     *BusHandler
	Route   *RouteHandler
	Booking *BookingHandler
	Channel *ChannelHandler
	Auth    *AuthHandler
}

// RegisterRoutes mounts every API endpoint on api
func RegisterRoutes(api *gin.RouterGroup, h Set, jwtService *jwt.Service, logger *logrus.Logger) {
	requireAuth := middleware.AuthMiddleware(jwtService, logger)
	adminOnly := []gin.HandlerFunc{requireAuth, middleware.RequireRole("admin")}

	buses := api.Group("/buses")
	{
		buses.POST("", append(adminOnly, h.Bus.CreateBus)...)
		buses.PATCH("/:id", append(adminOnly, h.Bus.UpdateBus)...)

		// Tracker telemetry
		buses.POST("/:id/location", h.Bus.UpdateLocation)

		buses.GET("/:id/location", h.Bus.GetLocation)
		buses.GET("/:id/availability", h.Bus.GetAvailability)
		buses.GET("/:id/eta-estimates", h.Bus.GetStopEstimates)
		buses.GET("/:id/:stopId", h.Bus.GetBusETA)
		buses.GET("/:id", h.Bus.GetBusesOnRoute)
	}

	routes := api.Group("/routes")
	{
		routes.POST("", append(adminOnly, h.Route.CreateRoute)...)
		routes.GET("", h.Route.ListRoutes)
		routes.GET("/stops", h.Route.ListStops)
		routes.GET("/stops/:stopId", h.Route.GetRouteForStop)
		routes.GET("/between", h.Route.GetETABetween)
	}

	bookings := api.Group("/bookings")
	bookings.Use(middleware.OptionalAuth(jwtService, logger))
	{
		bookings.POST("", h.Booking.CreateBooking)
		bookings.GET("/:id", h.Booking.GetBooking)
		bookings.POST("/:id/confirm", h.Booking.ConfirmBooking)
		bookings.POST("/:id/cancel", h.Booking.CancelBooking)
	}

	users := api.Group("/users")
	{
		users.POST("/signup", h.Auth.Signup)
		users.POST("/login", h.Auth.Login)
		users.POST("/refresh", h.Auth.Refresh)
		users.GET("/me", requireAuth, h.Auth.Me)
		users.POST("/logout", requireAuth, h.Auth.Logout)
	}

	api.POST("/sms", h.Channel.HandleSMS)
	api.POST("/ussd", h.Channel.HandleUSSD)
}
