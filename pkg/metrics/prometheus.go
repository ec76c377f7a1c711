package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"FinSignal/internal/domain/models"
	"FinSignal/internal/domain/repository"
)

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	ticks        *prometheus.CounterVec
	droppedTicks *prometheus.CounterVec
	candles      prometheus.Gauge
	signals      *prometheus.CounterVec
	suppressed   *prometheus.CounterVec
	outcomes     *prometheus.CounterVec
	reward       prometheus.Histogram
	epsilon      prometheus.Gauge
	weights      *prometheus.GaugeVec
	errorsTotal  *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
}

var _ repository.Metrics = (*Recorder)(nil)

// New registers the collectors with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		ticks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "finsignal_ticks_total",
			Help: "Ticks accepted by the candle aggregator",
		}, []string{"symbol"}),
		droppedTicks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "finsignal_ticks_dropped_total",
			Help: "Ticks rejected before aggregation",
		}, []string{"reason"}),
		candles: f.NewGauge(prometheus.GaugeOpts{
			Name: "finsignal_candles",
			Help: "Candles currently held in the ring buffer",
		}),
		signals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "finsignal_signals_published_total",
			Help: "Signals handed to the publish sink",
		}, []string{"action", "group", "auto_trade"}),
		suppressed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "finsignal_windows_discarded_total",
			Help: "Decision windows that ended without a signal",
		}, []string{"reason"}),
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "finsignal_outcomes_total",
			Help: "Verified signal outcomes",
		}, []string{"group", "result"}),
		reward: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "finsignal_reward",
			Help:    "Shaped reward per verified outcome",
			Buckets: prometheus.LinearBuckets(-25, 5, 11),
		}),
		epsilon: f.NewGauge(prometheus.GaugeOpts{
			Name: "finsignal_agent_epsilon",
			Help: "Current exploration rate",
		}),
		weights: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "finsignal_bandit_weight",
			Help: "Bandit trust multiplier per indicator group",
		}, []string{"group"}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "finsignal_errors_total",
			Help: "Total number of errors encountered",
		}, []string{"type"}),
		lastPrice: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "finsignal_last_price",
			Help: "Last accepted price for a symbol",
		}, []string{"symbol"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "finsignal_operation_duration_seconds",
			Help:    "Duration of operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (r *Recorder) RecordTick(symbol string, price float64) {
	r.ticks.WithLabelValues(symbol).Inc()
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

func (r *Recorder) RecordDroppedTick(reason string) {
	r.droppedTicks.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordCandles(n int) { r.candles.Set(float64(n)) }

func (r *Recorder) RecordSignal(action models.Action, groupID string, autoTrade bool) {
	auto := "false"
	if autoTrade {
		auto = "true"
	}
	r.signals.WithLabelValues(string(action), groupID, auto).Inc()
}

func (r *Recorder) RecordSuppressed(reason string) {
	r.suppressed.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordOutcome(groupID string, result models.Result, reward float64) {
	r.outcomes.WithLabelValues(groupID, string(result)).Inc()
	r.reward.Observe(reward)
}

func (r *Recorder) RecordEpsilon(eps float64) { r.epsilon.Set(eps) }

func (r *Recorder) RecordWeight(groupID string, w float64) {
	r.weights.WithLabelValues(groupID).Set(w)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards all measurements.
type Nop struct{}

var _ repository.Metrics = Nop{}

func (Nop) RecordTick(string, float64)                   {}
func (Nop) RecordDroppedTick(string)                     {}
func (Nop) RecordCandles(int)                            {}
func (Nop) RecordSignal(models.Action, string, bool)     {}
func (Nop) RecordSuppressed(string)                      {}
func (Nop) RecordOutcome(string, models.Result, float64) {}
func (Nop) RecordEpsilon(float64)                        {}
func (Nop) RecordWeight(string, float64)                 {}
func (Nop) RecordError(string)                           {}
func (Nop) RecordLatency(string, float64)                {}
