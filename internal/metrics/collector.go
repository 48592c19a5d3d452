// Package metrics exposes the link's running counters as Prometheus
// metrics, grounded on the namespace/subsystem + *Vec layout the rest of
// the pack uses for its own collectors.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace = "nrf24fhss"
	subsystem = "link"
)

const (
	labelRole = "role" // "tx" or "rx"
)

// Collector holds the link's Prometheus metrics. A process runs exactly one
// TXLink or one RXLink, so labels only need to distinguish role for anyone
// scraping both a TX and RX daemon from the same Prometheus job.
type Collector struct {
	LinkErrors     *prometheus.CounterVec
	AvgPeriod      *prometheus.GaugeVec
	LinkMode       *prometheus.GaugeVec
	PairingAttempt *prometheus.CounterVec
}

// NewCollector builds a Collector and registers it against reg. If reg is
// nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()
	reg.MustRegister(c.LinkErrors, c.AvgPeriod, c.LinkMode, c.PairingAttempt)
	return c
}

func newMetrics() *Collector {
	roleLabel := []string{labelRole}

	return &Collector{
		LinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Cumulative count of frames attributed as missed by the receiving end's sliding error window.",
		}, roleLabel),

		AvgPeriod: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "avg_period_microseconds",
			Help:      "Most recently measured average inter-frame period, 0 until the timing oracle converges.",
		}, roleLabel),

		LinkMode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "mode",
			Help:      "Current link state: 0=BOOT, 1=PAIRING, 2=MONOFREQ, 3=MULTIFREQ.",
		}, roleLabel),

		PairingAttempt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pairing_attempts_total",
			Help:      "Count of PAIRING entries, including user-requested re-pairs.",
		}, roleLabel),
	}
}

// ObserveErrorCount records the receiving end's current sliding-window
// error count for role ("tx" or "rx").
func (c *Collector) ObserveErrorCount(role string, n int) {
	c.LinkErrors.WithLabelValues(role).Add(float64(n))
}

// SetAvgPeriod records the timing oracle's most recent average period, in
// microseconds, for role.
func (c *Collector) SetAvgPeriod(role string, us int64) {
	c.AvgPeriod.WithLabelValues(role).Set(float64(us))
}

// SetMode records the link's current Mode (cast to its numeric value) for
// role.
func (c *Collector) SetMode(role string, mode int) {
	c.LinkMode.WithLabelValues(role).Set(float64(mode))
}

// IncPairingAttempt records one more PAIRING entry for role.
func (c *Collector) IncPairingAttempt(role string) {
	c.PairingAttempt.WithLabelValues(role).Inc()
}
