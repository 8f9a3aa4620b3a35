package observability

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the counters the billing core increments. Handlers and
// schedulers receive this via fx rather than registering globals.
type Metrics struct {
	PaymentsApplied   *prometheus.CounterVec
	MonthsClosed      prometheus.Counter
	TransfersImported prometheus.Counter
	MilesGranted      prometheus.Counter
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		PaymentsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "manabill_payments_applied_total",
			Help: "Payments applied against confirmed billing, by source.",
		}, []string{"source"}),
		MonthsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "manabill_months_closed_total",
			Help: "Successful monthly billing closes.",
		}),
		TransfersImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "manabill_bank_transfers_imported_total",
			Help: "Bank transfer rows imported from CSV.",
		}),
		MilesGranted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "manabill_miles_granted_total",
			Help: "Guardians granted miles by the monthly batch.",
		}),
	}
	reg.MustRegister(m.PaymentsApplied, m.MonthsClosed, m.TransfersImported, m.MilesGranted)
	return m
}
