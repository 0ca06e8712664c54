/**
 * @description
 * This file sets up the HTTP router for the portal API. It defines the public
 * auth endpoints and the customer and employee route groups, each protected by
 * bearer authentication and a role check.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS for the two browser portals.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/finsecure/portal-core/internal/app"
	"github.com/finsecure/portal-core/pkg/domain"
)

// NewRouter creates the portal router mounted under /api.
func NewRouter(h *Handlers, tokens *app.TokenManager, allowedOrigins []string, logger *logrus.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: logger, NoColor: true}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Get("/health", h.HealthHandler)
			r.Post("/login", h.LoginHandler)
			r.Post("/register", h.RegisterHandler)
			r.Post("/otp/send", h.SendOtpHandler)
			r.Post("/otp/verify", h.VerifyOtpHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(tokens))

			r.Route("/customer", func(r chi.Router) {
				r.Use(RequireRoles(domain.RoleCustomer))

				r.Get("/profile", h.ProfileHandler)
				r.Get("/dashboard", h.CustomerDashboardHandler)

				r.Get("/accounts", h.ListAccountsHandler)
				r.Post("/accounts", h.OpenAccountHandler)

				r.Post("/transactions/transfer", h.TransferHandler)
				r.Get("/transactions/{accountId}", h.TransactionsHandler)

				r.Get("/loans", h.ListLoansHandler)
				r.Post("/loans/apply", h.ApplyLoanHandler)

				r.Get("/cards", h.ListCardsHandler)
				r.Post("/cards/action", h.CardActionHandler)
				r.Post("/cards/{accountId}/issue-debit", h.IssueDebitCardHandler)
				r.Post("/cards/{accountId}/issue-credit", h.IssueCreditCardHandler)

				r.Post("/kyc/upload", h.UploadKycHandler)
				r.Get("/kyc/documents", h.ListKycDocumentsHandler)

				r.Get("/notifications", h.NotificationsHandler)
				r.Put("/notifications/read-all", h.MarkAllReadHandler)
			})

			r.Route("/employee", func(r chi.Router) {
				r.Use(RequireRoles(domain.RoleEmployee, domain.RoleAdmin))

				r.Get("/dashboard", h.EmployeeDashboardHandler)
				r.Get("/customers", h.CustomersHandler)

				r.Get("/kyc/pending", h.PendingKycHandler)
				r.Post("/kyc/verify", h.VerifyKycHandler)

				r.Get("/loans/pending", h.PendingLoansHandler)
				r.Post("/loans/{id}/review", h.ReviewLoanHandler)

				r.Post("/accounts/{accountNumber}/deposit", h.DepositHandler)
				r.Post("/accounts/{accountNumber}/status", h.AccountStatusHandler)
			})
		})
	})

	return r
}
