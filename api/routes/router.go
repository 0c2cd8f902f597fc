package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/danielvega/gatherz-backend/api/controllers"
	eventcontrollers "github.com/danielvega/gatherz-backend/api/controllers/events"
	joinrequestcontrollers "github.com/danielvega/gatherz-backend/api/controllers/joinrequests"
	walletcontrollers "github.com/danielvega/gatherz-backend/api/controllers/wallet"
	"github.com/danielvega/gatherz-backend/api/middleware"
	"github.com/danielvega/gatherz-backend/internal/events"
	"github.com/danielvega/gatherz-backend/internal/joinrequests"
	"github.com/danielvega/gatherz-backend/internal/settlement"
	"github.com/danielvega/gatherz-backend/internal/wallet"
	"github.com/danielvega/gatherz-backend/pkg/config"
	"github.com/danielvega/gatherz-backend/pkg/db"
	"github.com/danielvega/gatherz-backend/pkg/logger"
	"github.com/danielvega/gatherz-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	eventsService events.Service,
	joinRequestsService joinrequests.Service,
	walletService wallet.Service,
	settlementService settlement.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/events", func(r chi.Router) {
			r.Post("/", eventcontrollers.Create(eventsService, logg))
			r.Get("/", eventcontrollers.List(eventsService, logg))
			r.Get("/{eventId}", eventcontrollers.Detail(eventsService, logg))
			r.Post("/{eventId}/submit", eventcontrollers.Submit(eventsService, logg))
			r.Post("/{eventId}/finish", eventcontrollers.Finish(settlementService, logg))
			r.Post("/{eventId}/join-requests", joinrequestcontrollers.Create(joinRequestsService, logg))
			r.Get("/{eventId}/join-requests", joinrequestcontrollers.ListByEvent(joinRequestsService, logg))
		})

		r.Route("/join-requests", func(r chi.Router) {
			r.Get("/{requestId}", joinrequestcontrollers.Detail(joinRequestsService, logg))
			r.Get("/{requestId}/actions", joinrequestcontrollers.NextActions(joinRequestsService, logg))
			r.Post("/{requestId}/transition", joinrequestcontrollers.Transition(joinRequestsService, logg))
			r.Post("/{requestId}/cancel", joinrequestcontrollers.Cancel(joinRequestsService, logg))
		})

		r.Get("/me/join-requests", joinrequestcontrollers.ListMine(joinRequestsService, logg))

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", walletcontrollers.Balance(walletService, logg))
			r.Get("/transactions", walletcontrollers.Transactions(walletService, logg))
			r.Post("/deposit", walletcontrollers.Deposit(walletService, logg))
			r.Post("/withdraw", walletcontrollers.Withdraw(walletService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))

		r.Route("/events", func(r chi.Router) {
			r.Post("/{eventId}/approve", eventcontrollers.Approve(eventsService, logg))
			r.Post("/{eventId}/reject", eventcontrollers.Reject(eventsService, logg))
			r.Post("/{eventId}/suspend", eventcontrollers.Suspend(eventsService, logg))
		})

		r.Route("/wallets", func(r chi.Router) {
			r.Post("/{userId}/freeze", walletcontrollers.AdminFreeze(walletService, logg))
			r.Post("/{userId}/unfreeze", walletcontrollers.AdminUnfreeze(walletService, logg))
		})
	})

	return r
}
