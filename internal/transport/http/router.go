package http

import (
	"net/http"

	"github.com/emmegi/catalog-api/internal/domain"
	"github.com/emmegi/catalog-api/internal/transport/http/handler"
	"github.com/emmegi/catalog-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Health        *handler.HealthHandler
	Invites       *handler.InviteHandler
	Verifications *handler.VerificationHandler
	Sessions      *handler.SessionHandler
	Products      *handler.ProductHandler
	Notifications *handler.NotificationHandler
	Files         *handler.FileHandler
}

// NewRouter assembles the HTTP surface. Public reads are open, the code and
// invitation endpoints are rate limited per IP, and catalog writes sit behind
// the admin role.
func NewRouter(h Handlers, verifier middleware.TokenVerifier, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// One request per 2s with small bursts on the endpoints that send email
	// or accept secrets.
	limiter := middleware.NewRateLimiter(rate.Limit(0.5), 5)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check", h.Health.Check)

		r.Get("/products", h.Products.List)
		r.Get("/products/{productID}", h.Products.Get)
		r.Get("/files/{fileID}", h.Files.Get)

		r.Group(func(r chi.Router) {
			r.Use(limiter.Handler)
			r.Post("/sessions/login", h.Sessions.Login)
			r.Post("/sessions/google", h.Sessions.GoogleLogin)
			r.Post("/sessions/refresh", h.Sessions.Refresh)
			r.Post("/verifications/send", h.Verifications.Send)
			r.Post("/verifications/verify", h.Verifications.Verify)
			r.Post("/verifications/change-password", h.Verifications.ChangePassword)
			r.Get("/invites/confirm", h.Invites.Confirm)
			r.Post("/invites/confirm", h.Invites.Confirm)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(verifier))

			r.Get("/sessions", h.Sessions.GetCurrent)
			r.Post("/sessions/logout", h.Sessions.Logout)
			r.Get("/notifications", h.Notifications.ListUnread)
			r.Post("/notifications/{notificationID}/read", h.Notifications.MarkAsRead)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(domain.RoleAdmin))

				r.Post("/invites", h.Invites.Create)
				r.Get("/admins", h.Invites.ListAdmins)
				r.Post("/products", h.Products.Create)
				r.Put("/products/{productID}", h.Products.Update)
				r.Delete("/products/{productID}", h.Products.Delete)
				r.Post("/files", h.Files.Upload)
				r.Delete("/files/{fileID}", h.Files.Delete)
			})
		})
	})

	return r
}
