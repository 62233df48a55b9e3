package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Services groups what the API routes call into.
type Services struct {
	Raffles   RaffleService
	Tickets   TicketLister
	Draws     Drawer
	Sales     SaleService
	Reports   ReportService
	Verifier  TokenVerifier
	Metrics   http.Handler
	Readiness []HealthCheck
}

// NewRouter builds the HTTP surface: /health and /metrics unauthenticated,
// everything else under /v1 behind bearer authentication.
func NewRouter(svc Services, corsOrigins []string, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler { return RequestLogger(next, logger) })
	r.Use(CORS(corsOrigins))
	r.NotFound(NotFoundHandler().ServeHTTP)
	r.MethodNotAllowed(MethodNotAllowedHandler().ServeHTTP)

	r.Get("/health", HandleHealth(svc.Readiness...))
	if svc.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", svc.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(Authenticate(svc.Verifier))

		r.Route("/raffles", func(r chi.Router) {
			r.Post("/", HandleCreateRaffle(svc.Raffles, logger))
			r.Get("/", HandleListRaffles(svc.Raffles, logger))

			r.Route("/{raffleID}", func(r chi.Router) {
				r.Get("/", HandleGetRaffle(svc.Raffles, logger))
				r.Post("/prizes", HandleAddPrize(svc.Raffles, logger))
				r.Post("/activate", HandleTransition(svc.Raffles.Activate, logger))
				r.Post("/close", HandleTransition(svc.Raffles.Close, logger))
				r.Post("/reopen", HandleTransition(svc.Raffles.Reopen, logger))
				r.Post("/draw", HandleDraw(svc.Draws, logger))
				r.Get("/winner", HandleGetWinner(svc.Raffles, logger))
				r.Get("/tickets", HandleListTickets(svc.Tickets, logger))
				r.Post("/purchases", HandlePurchase(svc.Sales, logger))
			})
		})

		r.Get("/sales", HandleSalesLedger(svc.Reports, logger))
		r.Get("/sales/{saleID}", HandleGetSale(svc.Sales, logger))
		r.Get("/sellers/me/sales", HandleSellerSummary(svc.Reports, logger))
	})

	return r
}
