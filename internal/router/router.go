package router

import (
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"

	"ticketing/internal/cache"
	"ticketing/internal/config"
	"ticketing/internal/handler"
	"ticketing/internal/middleware"
	"ticketing/internal/model"
	"ticketing/internal/service"
)

// Dependencies are the collaborators the routes are built from.
type Dependencies struct {
	Config      *config.Config
	Log         *zap.Logger
	Cache       *cache.Client
	AuthService service.AuthService

	Auth     *handler.AuthHandler
	Events   *handler.EventHandler
	Bookings *handler.BookingHandler
	Admin    *handler.AdminHandler
	Health   *handler.HealthHandler
}

// New builds an echo instance with every route and middleware registered.
func New(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	Register(e, deps)
	return e
}

// Register wires routes and middleware.
func Register(e *echo.Echo, deps Dependencies) {
	cfg := deps.Config

	e.Validator = NewValidator()
	e.HTTPErrorHandler = handler.NewHTTPErrorHandler(deps.Log)

	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(deps.Log))
	e.Use(echomw.Recover())
	e.Use(echomw.Secure())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: cfg.CORSOrigins}))
	e.Use(echomw.Gzip())
	e.Use(echomw.BodyLimit("10M"))

	e.GET("/health", deps.Health.Health)
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	authenticate := middleware.Authenticate(deps.AuthService)
	optionalAuth := middleware.OptionalAuthenticate(deps.AuthService)
	adminOnly := middleware.RequireRole(model.RoleAdmin)

	authLimiter := limiter(deps, middleware.Limit{
		Name:     "auth",
		Capacity: 5,
		Window:   15 * time.Minute,
		Message:  "Too many login attempts. Please try again after 15 minutes.",
		Key:      middleware.ByIP,
	})
	apiLimiter := limiter(deps, middleware.Limit{
		Name:     "api",
		Capacity: cfg.RateLimit.MaxRequests,
		Window:   cfg.RateLimit.Window,
		Message:  "Too many requests from this IP. Please try again later.",
		Key:      middleware.ByIP,
	})
	bookingLimiter := limiter(deps, middleware.Limit{
		Name:     "booking",
		Capacity: 10,
		Window:   time.Hour,
		Message:  "Too many booking attempts. Please try again after 1 hour.",
		Key:      middleware.ByUser,
	})

	api := e.Group("/api/v1")

	auth := api.Group("/auth")
	auth.POST("/register", deps.Auth.Register, authLimiter)
	auth.POST("/login", deps.Auth.Login, authLimiter)
	auth.POST("/refresh-token", deps.Auth.Refresh)
	auth.GET("/profile", deps.Auth.Profile, authenticate)
	auth.POST("/logout", deps.Auth.Logout, authenticate)

	events := api.Group("/events", apiLimiter)
	events.GET("", deps.Events.List, optionalAuth)
	events.GET("/:id", deps.Events.Get, optionalAuth)
	events.POST("", deps.Events.Create, authenticate, adminOnly)
	events.PUT("/:id", deps.Events.Update, authenticate)
	events.DELETE("/:id", deps.Events.Delete, authenticate)
	events.GET("/:id/stats", deps.Events.Stats, authenticate)

	bookings := api.Group("/bookings", authenticate)
	bookings.POST("", deps.Bookings.Create, bookingLimiter)
	bookings.GET("/my-bookings", deps.Bookings.MyBookings)
	bookings.GET("/export", deps.Bookings.Export, adminOnly)
	bookings.GET("/:id", deps.Bookings.Get)
	bookings.PUT("/:id/cancel", deps.Bookings.Cancel)

	admin := api.Group("/admin", authenticate, adminOnly, apiLimiter)
	admin.GET("/users", deps.Admin.ListUsers)
	admin.PUT("/users/:id/toggle-status", deps.Admin.ToggleUserStatus)
	admin.PUT("/users/:id/promote", deps.Admin.PromoteToAdmin)
	admin.GET("/bookings", deps.Admin.ListBookings)
	admin.GET("/stats", deps.Admin.Stats)
}

func limiter(deps Dependencies, limit middleware.Limit) echo.MiddlewareFunc {
	if !deps.Config.RateLimit.Enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return middleware.RateLimit(deps.Cache, deps.Log, limit)
}
