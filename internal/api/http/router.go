package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workorder-service/internal/api/http/handlers"
	"github.com/spec-kit/workorder-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Orders         *handlers.OrdersHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	orders := app.Group("/orders", cfg.AuthMiddleware.Handle)
	orders.Get("", cfg.Orders.ListOrders)
	orders.Post("", cfg.Orders.CreateOrder)
	orders.Get("/:id", cfg.Orders.GetOrder)
	orders.Patch("/:id", cfg.Orders.UpdateOrder)

	users := app.Group("/users", cfg.AuthMiddleware.Handle)
	users.Get("/assignable", cfg.Orders.ListAssignableUsers)
}
