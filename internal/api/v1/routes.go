package v1

import (
	"strings"
	"time"

	"devpulse/internal/api/v1/handlers"
	"devpulse/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// NewApp builds the Fiber app with the global middleware and every route.
func NewApp(h *handlers.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.FiberErrorHandler,
		BodyLimit:    6 << 20,
	})

	app.Use(middleware.ErrorHandler())
	app.Use(cors.New(cors.Config{
		AllowOrigins: h.Cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))
	if h.Cfg.RateLimitMax > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        h.Cfg.RateLimitMax,
			Expiration: 1 * time.Minute,
			Next: func(c *fiber.Ctx) bool {
				return strings.HasPrefix(c.Path(), "/ws")
			},
		}))
	}

	app.Get("/api/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"message":   "DevPulse API is running",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	RegisterRoutes(app, h)

	if h.Hub != nil {
		app.Use("/ws", h.UpgradeWebSocket)
		app.Get("/ws", h.WebSocket())
	}
	return app
}

func RegisterRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")
	auth := middleware.UseToken(h.Cfg.JWTSecret, h.Store.GetUserByID)

	// Auth
	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", h.Register)
	authRoutes.Post("/login", h.Login)
	authRoutes.Get("/me", auth, h.Me)

	// User
	userRoutes := api.Group("/users", auth)
	userRoutes.Get("/profile", h.GetProfile)
	userRoutes.Put("/profile", h.UpdateProfile)
	userRoutes.Put("/password", h.ChangePassword)
	userRoutes.Delete("/account", h.DeleteAccount)
	userRoutes.Post("/avatar", h.UploadAvatar)

	// Uploaded files
	api.Get("/uploads/:filename", h.GetUpload)

	// Client
	clientRoutes := api.Group("/clients", auth)
	clientRoutes.Get("/", h.ListClients)
	clientRoutes.Get("/:id", h.GetClient)
	clientRoutes.Post("/", h.CreateClient)
	clientRoutes.Put("/:id", h.UpdateClient)
	clientRoutes.Delete("/:id", h.DeleteClient)

	// Project
	projectRoutes := api.Group("/projects", auth)
	projectRoutes.Get("/", h.ListProjects)
	projectRoutes.Get("/:id", h.GetProject)
	projectRoutes.Post("/", h.CreateProject)
	projectRoutes.Put("/:id", h.UpdateProject)
	projectRoutes.Delete("/:id", h.DeleteProject)

	// Task
	taskRoutes := api.Group("/tasks", auth)
	taskRoutes.Get("/", h.ListTasks)
	taskRoutes.Get("/:id", h.GetTask)
	taskRoutes.Post("/", h.CreateTask)
	taskRoutes.Put("/:id", h.UpdateTask)
	taskRoutes.Delete("/:id", h.DeleteTask)

	// Invoice
	invoiceRoutes := api.Group("/invoices", auth)
	invoiceRoutes.Get("/", h.ListInvoices)
	invoiceRoutes.Get("/:id", h.GetInvoice)
	invoiceRoutes.Post("/", h.CreateInvoice)
	invoiceRoutes.Patch("/:id/status", h.UpdateInvoiceStatus)
	invoiceRoutes.Get("/:id/pdf", h.InvoicePDF)
	invoiceRoutes.Delete("/:id", h.DeleteInvoice)

	// Dashboard
	dashboardRoutes := api.Group("/dashboard", auth)
	dashboardRoutes.Get("/metrics", h.DashboardMetrics)
	dashboardRoutes.Get("/revenue", h.MonthlyRevenue)
	dashboardRoutes.Get("/activity", h.RecentActivity)

	// GitHub: the OAuth callback and config check are public
	githubRoutes := api.Group("/github")
	githubRoutes.Get("/callback", h.GitHubCallback)
	githubRoutes.Get("/config/check", h.GitHubConfigCheck)
	githubRoutes.Get("/authorize", auth, h.GitHubAuthorize)
	githubRoutes.Get("/stats", auth, h.GitHubStats)
	githubRoutes.Get("/profile", auth, h.GitHubProfile)
	githubRoutes.Post("/sync", auth, h.SyncGitHub)
	githubRoutes.Post("/connect", auth, h.ConnectGitHub)
	githubRoutes.Post("/disconnect", auth, h.DisconnectGitHub)
}
