// Package metrics exposes Prometheus counters/gauges for the bot's
// operation, registered in init() and served via promhttp at /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ordersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridbot_orders_placed_total",
			Help: "Orders placed by side.",
		},
		[]string{"side"},
	)

	ordersCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridbot_orders_cancelled_total",
			Help: "Orders cancelled by side and outcome.",
		},
		[]string{"side", "outcome"}, // outcome: cancelled|already_filled
	)

	ladderSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gridbot_ladder_size",
			Help: "Number of resting orders in the current ladder by side.",
		},
		[]string{"side"},
	)

	regimeState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gridbot_regime_state",
			Help: "Current risk gate regime as a set of labeled 0/1 series.",
		},
		[]string{"regime"}, // ranging|moderate_trend|strong_trend|cooldown
	)

	cooldownActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridbot_cooldown_active",
			Help: "1 while the risk gate's cool-down is active, 0 otherwise.",
		},
	)

	rsiGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridbot_rsi",
			Help: "Most recent RSI(14) snapshot.",
		},
	)

	adxGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridbot_adx",
			Help: "Most recent ADX(14) snapshot.",
		},
	)

	positionGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridbot_position",
			Help: "Most recently observed open position, signed.",
		},
	)

	tickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gridbot_tick_duration_seconds",
			Help:    "Wall-clock duration of one supervisor tick.",
			Buckets: prometheus.DefBuckets,
		},
	)

	tickErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridbot_tick_errors_total",
			Help: "Tick failures by error kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		ordersPlaced, ordersCancelled, ladderSize,
		regimeState, cooldownActive,
		rsiGauge, adxGauge, positionGauge,
		tickDuration, tickErrors,
	)
}

func IncOrdersPlaced(side string)                 { ordersPlaced.WithLabelValues(side).Inc() }
func IncOrdersCancelled(side, outcome string)      { ordersCancelled.WithLabelValues(side, outcome).Inc() }
func SetLadderSize(side string, n int)             { ladderSize.WithLabelValues(side).Set(float64(n)) }
func SetCooldownActive(active bool) {
	if active {
		cooldownActive.Set(1)
		return
	}
	cooldownActive.Set(0)
}

// SetRegime flips exactly one of the known regime series to 1 and the rest
// to 0.
func SetRegime(active string) {
	for _, r := range []string{"ranging", "moderate_trend", "strong_trend", "cooldown"} {
		if r == active {
			regimeState.WithLabelValues(r).Set(1)
		} else {
			regimeState.WithLabelValues(r).Set(0)
		}
	}
}

func SetIndicators(rsi, adx float64) {
	rsiGauge.Set(rsi)
	adxGauge.Set(adx)
}

func SetPosition(p float64) { positionGauge.Set(p) }

func ObserveTickDuration(seconds float64) { tickDuration.Observe(seconds) }

func IncTickError(kind string) { tickErrors.WithLabelValues(kind).Inc() }
