package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(ticksTotal, noticesTotal, fetchLatencyMs, lastTickUnix)
}

var (
	ticksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noticebot_ticks_total",
			Help: "Delivery ticks by mode and result.",
		},
		[]string{"mode", "result"}, // mode=cold|warm|none, result=ok|fetch_error|panic
	)

	noticesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noticebot_notices_total",
			Help: "Notices handled by outcome (emitted/sent/skipped/failed).",
		},
		[]string{"outcome", "type"},
	)

	fetchLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "noticebot_fetch_latency_ms",
			Help:    "Feed fetch latency distribution in milliseconds.",
			Buckets: []float64{25, 50, 100, 200, 400, 800, 1600, 2500, 5000},
		},
		[]string{"success"},
	)

	lastTickUnix = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "noticebot_last_tick_unixtime",
			Help: "Unix time of the last completed delivery tick.",
		},
	)
)

func ObserveTick(mode, result string) {
	ticksTotal.WithLabelValues(norm(mode), norm(result)).Inc()
	lastTickUnix.Set(float64(time.Now().Unix()))
}

func IncNotice(outcome, kind string) {
	noticesTotal.WithLabelValues(norm(outcome), kind).Inc()
}

func ObserveFetch(d time.Duration, success bool) {
	s := "false"
	if success {
		s = "true"
	}
	fetchLatencyMs.WithLabelValues(s).Observe(float64(d.Milliseconds()))
}
