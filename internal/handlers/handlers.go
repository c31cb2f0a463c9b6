package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"driveshare/internal/booking"
	"driveshare/internal/config"
	"driveshare/internal/middleware"
	"driveshare/internal/models"
	"driveshare/internal/service"
)

type HealthCheck func(ctx context.Context) error

type Deps struct {
	Config       *config.AppConfig
	Log          zerolog.Logger
	Auth         *service.AuthService
	Documents    *service.DocumentService
	Cars         *service.CarService
	Bookings     *booking.Service
	Stats        *service.StatsService
	Authenticate gin.HandlerFunc
	Checks       map[string]HealthCheck
}

type HandlerSet struct {
	log          zerolog.Logger
	cfg          *config.AppConfig
	auth         *service.AuthService
	documents    *service.DocumentService
	cars         *service.CarService
	bookings     *booking.Service
	stats        *service.StatsService
	authenticate gin.HandlerFunc
	checks       map[string]HealthCheck
}

func NewHandlerSet(d Deps) HandlerSet {
	return HandlerSet{
		log:          d.Log,
		cfg:          d.Config,
		auth:         d.Auth,
		documents:    d.Documents,
		cars:         d.Cars,
		bookings:     d.Bookings,
		stats:        d.Stats,
		authenticate: d.Authenticate,
		checks:       d.Checks,
	}
}

func (h HandlerSet) Routes(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", h.Register)
	auth.POST("/login", h.Login)
	auth.POST("/refresh", h.Refresh)

	protected := v1.Group("")
	protected.Use(h.authenticate)
	protected.GET("/auth/me", h.Me)
	protected.POST("/auth/logout", h.Logout)
	protected.PUT("/users/me", h.UpdateProfile)
	protected.POST("/users/me/documents", h.UploadLicense)

	v1.GET("/cars", h.SearchCars)
	v1.GET("/cars/:id", h.GetCar)
	v1.GET("/cars/:id/availability", h.CarAvailability)

	owners := protected.Group("/cars")
	owners.Use(middleware.RequireRoles(models.UserRoleOwner, models.UserRoleAdmin))
	owners.POST("", h.CreateCar)
	owners.GET("/mine", h.MyCars)
	owners.PUT("/:id", h.UpdateCar)

	bookings := protected.Group("/bookings")
	bookings.POST("", h.CreateBooking)
	bookings.GET("", h.ListBookings)
	bookings.GET("/:id", h.GetBooking)
	bookings.PUT("/:id/approve", h.ApproveBooking)
	bookings.PUT("/:id/reject", h.RejectBooking)
	bookings.PUT("/:id/cancel", h.CancelBooking)

	admin := protected.Group("/admin")
	admin.Use(middleware.RequireRoles(models.UserRoleAdmin))
	admin.GET("/stats", h.AdminStats)
	admin.GET("/users/pending", h.AdminPendingUsers)
	admin.GET("/users/:id/license", h.AdminLicenseURL)
	admin.PUT("/users/:id/verification", h.AdminReviewUser)
	admin.GET("/cars/pending", h.AdminPendingCars)
	admin.PUT("/cars/:id/approval", h.AdminReviewCar)
	admin.POST("/bookings/:id/confirm", h.AdminConfirmBooking)
}
