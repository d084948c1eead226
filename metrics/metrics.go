package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result label values.
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultFallback = "fallback"
)

// Collector groups the engine's Prometheus metrics. A nil *Collector is valid and
// records nothing, so components can run without metrics in tests.
type Collector struct {
	APIRequestsTotal       *prometheus.CounterVec
	TokenExchangesTotal    *prometheus.CounterVec
	RefreshCyclesTotal     *prometheus.CounterVec
	RefreshDurationSeconds prometheus.Histogram
	Devices                *prometheus.GaugeVec
	DoorOpensTotal         *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fermax_api_requests_total",
				Help: "Total number of authenticated cloud API requests.",
			},
			[]string{"op", "result"},
		),
		TokenExchangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fermax_token_exchanges_total",
				Help: "Total number of token endpoint exchanges.",
			},
			[]string{"grant", "result"},
		),
		RefreshCyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fermax_refresh_cycles_total",
				Help: "Total number of coordinator refresh cycles.",
			},
			[]string{"result"},
		),
		RefreshDurationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fermax_refresh_duration_seconds",
				Help:    "Duration of coordinator refresh cycles.",
				Buckets: prometheus.DefBuckets,
			},
		),
		Devices: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fermax_devices",
				Help: "Devices in the published snapshot by freshness.",
			},
			[]string{"state"},
		),
		DoorOpensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fermax_door_opens_total",
				Help: "Total number of door open actions.",
			},
			[]string{"result"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			c.APIRequestsTotal,
			c.TokenExchangesTotal,
			c.RefreshCyclesTotal,
			c.RefreshDurationSeconds,
			c.Devices,
			c.DoorOpensTotal,
		)
	}
	return c
}

func (c *Collector) ObserveAPIRequest(op string, err error) {
	if c == nil {
		return
	}
	c.APIRequestsTotal.WithLabelValues(op, resultOf(err)).Inc()
}

func (c *Collector) ObserveTokenExchange(grant, result string) {
	if c == nil {
		return
	}
	c.TokenExchangesTotal.WithLabelValues(grant, result).Inc()
}

func (c *Collector) ObserveRefreshCycle(elapsed time.Duration, fresh, stale int, err error) {
	if c == nil {
		return
	}
	c.RefreshCyclesTotal.WithLabelValues(resultOf(err)).Inc()
	c.RefreshDurationSeconds.Observe(elapsed.Seconds())
	if err == nil {
		c.Devices.WithLabelValues("fresh").Set(float64(fresh))
		c.Devices.WithLabelValues("stale").Set(float64(stale))
	}
}

func (c *Collector) ObserveDoorOpen(err error) {
	if c == nil {
		return
	}
	c.DoorOpensTotal.WithLabelValues(resultOf(err)).Inc()
}

func resultOf(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
