package metrics

import (
	"time"

	"fxledger/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the ledger's Prometheus collectors. A nil *Metrics is a no-op.
type Metrics struct {
	RefreshCycles   *prometheus.CounterVec
	RefreshDuration prometheus.Histogram
	SourceFailures  *prometheus.CounterVec
	SourcePoints    *prometheus.CounterVec
	RatesStored     prometheus.Gauge
	Trades          *prometheus.CounterVec
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RefreshCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fxledger",
			Name:      "refresh_cycles_total",
			Help:      "Rate refresh cycles by outcome (success, partial, failed)",
		}, []string{"outcome"}),
		RefreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fxledger",
			Name:      "refresh_duration_seconds",
			Help:      "Wall time of one refresh cycle",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		SourceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fxledger",
			Name:      "source_failures_total",
			Help:      "Quote source failures by source and kind",
		}, []string{"source", "kind"}),
		SourcePoints: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fxledger",
			Name:      "source_points_total",
			Help:      "Rate points fetched per source",
		}, []string{"source"}),
		RatesStored: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "fxledger",
			Name:      "rates_stored",
			Help:      "Currencies present in the reconciled rate table",
		}),
		Trades: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fxledger",
			Name:      "trades_total",
			Help:      "Buy and sell operations by result",
		}, []string{"side", "result"}),
	}
}

func (m *Metrics) ObserveRefresh(outcome string, took time.Duration, stored int) {
	if m == nil {
		return
	}
	m.RefreshCycles.WithLabelValues(outcome).Inc()
	m.RefreshDuration.Observe(took.Seconds())
	if outcome != "failed" {
		m.RatesStored.Set(float64(stored))
	}
}

func (m *Metrics) ObserveSource(source domain.Source, points int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SourceFailures.WithLabelValues(string(source), domain.KindName(err)).Inc()
		return
	}
	m.SourcePoints.WithLabelValues(string(source)).Add(float64(points))
}

func (m *Metrics) ObserveTrade(side string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Trades.WithLabelValues(side, result).Inc()
}
