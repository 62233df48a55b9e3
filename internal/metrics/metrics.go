package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rifas-mx/rifas/internal/domain"
)

// Metrics holds the Prometheus collectors for sales and draws.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Purchases        *prometheus.CounterVec
	TicketsSold      prometheus.Counter
	PaymentVoids     *prometheus.CounterVec
	Draws            *prometheus.CounterVec
	PurchaseDuration prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Purchases: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rifas_purchases_total",
			Help: "Purchase attempts by outcome.",
		}, []string{"outcome"}),
		TicketsSold: f.NewCounter(prometheus.CounterOpts{
			Name: "rifas_tickets_sold_total",
			Help: "Tickets flipped to sold by committed sales.",
		}),
		PaymentVoids: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rifas_payment_voids_total",
			Help: "Captured payments voided after a failed sale, by result.",
		}, []string{"result"}),
		Draws: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rifas_draws_total",
			Help: "Draw attempts by outcome.",
		}, []string{"outcome"}),
		PurchaseDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rifas_purchase_duration_seconds",
			Help:    "Time spent in a purchase, payment capture included.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) ObservePurchase(err error, tickets int, d time.Duration) {
	if m == nil {
		return
	}
	m.Purchases.WithLabelValues(Outcome(err)).Inc()
	m.PurchaseDuration.Observe(d.Seconds())
	if err == nil {
		m.TicketsSold.Add(float64(tickets))
	}
}

func (m *Metrics) ObserveVoid(err error) {
	if m == nil {
		return
	}
	result := "voided"
	if err != nil {
		result = "failed"
	}
	m.PaymentVoids.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveDraw(err error) {
	if m == nil {
		return
	}
	m.Draws.WithLabelValues(Outcome(err)).Inc()
}

// Outcome maps an operation error onto a low-cardinality label value.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	switch {
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrPaymentFailed):
		return "payment_failed"
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, domain.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrUnauthenticated):
		return "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrDataIntegrity):
		return "data_integrity"
	}
	return "error"
}
