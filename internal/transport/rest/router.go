package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/derheim/helpdesk/internal/attachment"
	"github.com/derheim/helpdesk/internal/auth"
	"github.com/derheim/helpdesk/internal/ticket"
	"github.com/derheim/helpdesk/internal/transport/middleware"
	"github.com/derheim/helpdesk/internal/transport/swagger"
	"github.com/derheim/helpdesk/internal/user"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

func RegisterAllRoutes(
	router *chi.Mux,
	db *sql.DB,
	authHandler *auth.Handler,
	rbac *auth.RBACAuthorization,
	userHandler *user.Handler,
	ticketHandler *ticket.Handler,
	attachmentHandler *attachment.Handler,
	logger *slog.Logger,
) {
	healthHandler := NewHealthHandler(db)

	// Apply global middleware
	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		// Health check routes
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Auth routes
		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", authHandler.Login)
			sr.Post("/refresh", authHandler.RefreshToken)
			sr.Post("/logout", authHandler.Logout)
		})

		// Protected routes that require authentication
		r.Group(func(pr chi.Router) {
			pr.Use(authHandler.AuthMiddleware)

			pr.Get("/notifications", ticketHandler.Notifications)

			// User management
			pr.Route("/users", func(ur chi.Router) {
				ur.Group(func(sr chi.Router) {
					sr.Use(rbac.RequireStaff())
					sr.Get("/agents", userHandler.ListAgents)
				})

				ur.Group(func(ar chi.Router) {
					ar.Use(rbac.RequireAdmin())
					ar.Get("/", userHandler.ListUsers)
					ar.Post("/", userHandler.CreateUser)
					ar.Patch("/{id}", userHandler.UpdateUser)
					ar.Delete("/{id}", userHandler.DeleteUser)
				})
			})

			// Ticket routes
			pr.Route("/tickets", func(tr chi.Router) {
				tr.Post("/", ticketHandler.CreateTicket)

				// Employee-scoped views
				tr.Get("/my", ticketHandler.ListMyTickets)
				tr.Get("/my/counts", ticketHandler.MyTicketCounts)
				tr.Get("/my/{id}", ticketHandler.GetMyTicket)

				// Staff-wide views
				tr.Group(func(sr chi.Router) {
					sr.Use(rbac.RequireStaff())
					sr.Get("/", ticketHandler.ListAllTickets)
					sr.Get("/assigned", ticketHandler.ListAssignedToMe)
					sr.Get("/stats", ticketHandler.TicketStats)
					sr.Patch("/{id}/status", ticketHandler.UpdateStatus)
					sr.Patch("/{id}/priority", ticketHandler.UpdatePriority)
					sr.Patch("/{id}/assignee", ticketHandler.AssignTicket)
					sr.Get("/{id}/notes", ticketHandler.ListInternalNotes)
					sr.Post("/{id}/notes", ticketHandler.AddInternalNote)
				})

				// Owner-or-staff operations; the services enforce ownership
				tr.Get("/{id}", ticketHandler.GetTicket)
				tr.Post("/{id}/replies", ticketHandler.AddReply)
				tr.Post("/{id}/view", ticketHandler.RecordView)
				tr.Get("/{id}/attachments", attachmentHandler.List)
				tr.Post("/{id}/attachments", attachmentHandler.Upload)
			})
		})
	})
}
