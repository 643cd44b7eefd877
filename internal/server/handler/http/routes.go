// Package http provides HTTP routing and handlers for the GophTasks
// service: server-rendered pages, the JSON task API and ops endpoints.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/atinyakov/GophTasks/internal/middleware"
)

// NewRouter constructs and returns an HTTP handler that serves the
// GophTasks pages and API.
//
// Parameters:
//
//	authHandler  - handler for registration, login and logout pages
//	taskHandler  - handler for the dashboard and task forms
//	apiHandler   - handler for the JSON task API
//	opsHandler   - health and metrics endpoints
//	sessions     - resolves the session identity of each request
//	metrics      - request counters, nil disables them
//	logger       - structured logger for request logging middleware
//
// Routes:
//
//	GET  /                         → taskHandler.Index
//	GET  /about                    → taskHandler.About
//	GET  /healthz                  → opsHandler.Health
//	GET  /metrics                  → opsHandler.Metrics
//	GET  /auth/register            → authHandler.RegisterPage
//	POST /auth/register            → authHandler.Register
//	GET  /auth/login               → authHandler.LoginPage
//	POST /auth/login               → authHandler.Login
//	GET  /auth/logout              → authHandler.Logout (login required)
//	GET  /dashboard                → taskHandler.Dashboard (login required)
//	GET  /add_task                 → taskHandler.AddTaskPage (login required)
//	POST /add_task                 → taskHandler.AddTask (login required)
//	GET  /update_task/{id}         → taskHandler.UpdateTaskPage (login required)
//	POST /update_task/{id}         → taskHandler.UpdateTask (login required)
//	POST /delete_task/{id}         → taskHandler.DeleteTask (login required)
//	GET  /api/tasks                → apiHandler.ListTasks (login required)
//	POST /api/tasks                → apiHandler.CreateTask (login required)
//	GET  /api/tasks/{id}           → apiHandler.GetTask (login required)
//	PUT  /api/tasks/{id}           → apiHandler.UpdateTask (login required)
//	DELETE /api/tasks/{id}         → apiHandler.DeleteTask (login required)
//
// Middleware chain (applied in order):
//  1. Recoverer                  - turns panics into 500s
//  2. WithRequestLogging(logger) - logs incoming requests
//  3. metrics.Handler            - counts requests per route
//  4. LoadIdentity(sessions)     - resolves the session user (not on ops routes)
//  5. RequireUser                - protected groups only
//  6. AllowContentType           - JSON only, on /api
func NewRouter(
	authHandler *AuthHandler,
	taskHandler *TaskHandler,
	apiHandler *APIHandler,
	opsHandler *OpsHandler,
	sessions middleware.SessionResolver,
	metrics *middleware.Metrics,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.WithRequestLogging(logger))
	if metrics != nil {
		r.Use(metrics.Handler)
	}

	// Ops endpoints skip session handling
	r.Get("/healthz", opsHandler.Health)
	r.Method(http.MethodGet, "/metrics", opsHandler.Metrics())

	r.Group(func(r chi.Router) {
		r.Use(middleware.LoadIdentity(sessions, logger))

		// Public pages
		r.Get("/", taskHandler.Index)
		r.Get("/about", taskHandler.About)

		r.Route("/auth", func(r chi.Router) {
			r.Get("/register", authHandler.RegisterPage)
			r.Post("/register", authHandler.Register)
			r.Get("/login", authHandler.LoginPage)
			r.Post("/login", authHandler.Login)
			r.With(middleware.RequireUser(authHandler.Unauthorized)).Get("/logout", authHandler.Logout)
		})

		// Protected pages
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser(authHandler.Unauthorized))
			r.Get("/dashboard", taskHandler.Dashboard)
			r.Get("/add_task", taskHandler.AddTaskPage)
			r.Post("/add_task", taskHandler.AddTask)
			r.Get("/update_task/{id}", taskHandler.UpdateTaskPage)
			r.Post("/update_task/{id}", taskHandler.UpdateTask)
			r.Post("/delete_task/{id}", taskHandler.DeleteTask)
		})

		r.Route("/api", func(r chi.Router) {
			r.Use(middleware.RequireUser(apiHandler.Unauthorized))
			r.Use(chiMiddleware.AllowContentType("application/json"))
			r.Get("/tasks", apiHandler.ListTasks)
			r.Post("/tasks", apiHandler.CreateTask)
			r.Get("/tasks/{id}", apiHandler.GetTask)
			r.Put("/tasks/{id}", apiHandler.UpdateTask)
			r.Delete("/tasks/{id}", apiHandler.DeleteTask)
		})
	})

	return r
}
