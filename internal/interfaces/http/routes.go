package http

import (
	"os"
	"time"

	"github.com/camwatch/backend/internal/domain"
	"github.com/camwatch/backend/internal/interfaces/http/handlers"
	"github.com/camwatch/backend/internal/interfaces/http/middleware"
	"github.com/camwatch/backend/internal/pkg/config"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups every HTTP handler the router mounts
type Handlers struct {
	Auth      *handlers.AuthHandler
	Role      *handlers.RoleHandler
	Functions *handlers.FunctionsHandler
	Camera    *handlers.CameraHandler
	Settings  *handlers.SettingsHandler
	Logs      *handlers.LogsHandler
	Health    *handlers.HealthHandler
}

// Router holds all handlers and middleware
type Router struct {
	app            *fiber.App
	handlers       Handlers
	authMiddleware *middleware.AuthMiddleware
	gatherer       prometheus.Gatherer
}

// NewRouter creates a new router
func NewRouter(
	h Handlers,
	authMiddleware *middleware.AuthMiddleware,
	gatherer prometheus.Gatherer,
	serverConfig *config.ServerConfig,
) *Router {
	isProd := os.Getenv("ENV") == "production" || os.Getenv("ENVIRONMENT") == "production"

	app := fiber.New(fiber.Config{
		ErrorHandler:    customErrorHandler,
		BodyLimit:       1 * 1024 * 1024,
		ReadTimeout:     time.Duration(serverConfig.ReadTimeout) * time.Second,
		WriteTimeout:    time.Duration(serverConfig.WriteTimeout) * time.Second,
		IdleTimeout:     time.Duration(serverConfig.IdleTimeout) * time.Second,
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		ServerHeader:    "CamWatch",
		AppName:         "CamWatch API",
	})

	// Global middleware - order matters!
	app.Use(recover.New())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	if !isProd {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${method} ${path} - ${latency}\n",
		}))
	} else {
		app.Use(logger.New(logger.Config{
			Format:     "${status} ${method} ${path} ${latency}\n",
			TimeFormat: "15:04:05",
			Output:     os.Stdout,
		}))
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: false,
		MaxAge:           86400,
	}))

	return &Router{
		app:            app,
		handlers:       h,
		authMiddleware: authMiddleware,
		gatherer:       gatherer,
	}
}

// App exposes the fiber app, mainly for tests
func (r *Router) App() *fiber.App {
	return r.app
}

// SetupRoutes configures all routes
func (r *Router) SetupRoutes() {
	h := r.handlers
	allow := r.authMiddleware.RequirePermission

	if r.gatherer != nil {
		r.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})))
	}

	api := r.app.Group("/api/v1")

	// Health check
	api.Get("/health", h.Health.Health)

	// Auth routes (public)
	auth := api.Group("/auth")
	auth.Post("/login", h.Auth.Login)
	auth.Post("/logout", h.Auth.Logout)
	auth.Post("/refresh", h.Auth.Refresh)

	// Protected routes
	protected := api.Group("")
	protected.Use(r.authMiddleware.Authenticate())

	protected.Get("/auth/me", h.Auth.Me)

	// Live role of the caller
	protected.Get("/me/role", h.Role.MyRole)
	protected.Post("/me/role/refresh", h.Role.RefreshMyRole)

	// User role and camera grants
	users := protected.Group("/users")
	users.Put("/:id/role", allow(domain.PermAssignRoles), h.Role.UpdateUserRole)
	users.Get("/:id/cameras", allow(domain.PermAssignCameras), h.Camera.UserCameras)
	users.Put("/:id/cameras", allow(domain.PermAssignCameras), h.Camera.AssignCameras)

	// Cameras
	cameras := protected.Group("/cameras")
	cameras.Get("/", allow(domain.PermViewCameras), h.Camera.List)
	cameras.Get("/:id", allow(domain.PermViewCameras), h.Camera.Get)
	cameras.Post("/", allow(domain.PermConfigureCameraSettings), h.Camera.Create)
	cameras.Put("/:id", allow(domain.PermConfigureCameraSettings), h.Camera.Update)
	cameras.Put("/:id/status", allow(domain.PermConfigureCameraSettings), h.Camera.UpdateStatus)
	cameras.Delete("/:id", allow(domain.PermConfigureCameraSettings), h.Camera.Delete)

	// Settings
	settings := protected.Group("/settings")
	settings.Get("/", allow(domain.PermManageStorage), h.Settings.Get)
	settings.Put("/storage", allow(domain.PermManageStorage), h.Settings.UpdateStorage)
	settings.Put("/recording", allow(domain.PermManageStorage), h.Settings.UpdateRecording)

	// Audit log
	protected.Get("/logs", allow(domain.PermViewLogs), h.Logs.List)

	// Privileged functions authorize against the store themselves
	functions := protected.Group("/functions")
	functions.Post("/fix-user-role", h.Functions.FixUserRole)
	functions.Get("/get-all-users", h.Functions.ListUsers)
	functions.Post("/get-all-users", h.Functions.ListUsers)
	functions.Put("/get-all-users", h.Functions.UserAction)
	functions.Delete("/get-all-users", h.Functions.DeleteUser)

	protected.Post("/rpc/is-superadmin", h.Functions.IsSuperadmin)
}

// Start starts the HTTP server
func (r *Router) Start(addr string) error {
	return r.app.Listen(addr)
}

// Shutdown gracefully shuts down the server
func (r *Router) Shutdown() error {
	return r.app.Shutdown()
}

// customErrorHandler handles errors globally
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
