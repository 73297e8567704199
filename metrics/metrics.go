package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReportsCollected counts reports emitted by each collector.
	ReportsCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "icewatch_reports_collected_total",
		Help: "Reports returned by collector polls.",
	}, []string{"source"})

	// ReportsDropped counts reports dropped because the pipeline queue
	// was full.
	ReportsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "icewatch_reports_dropped_total",
		Help: "Reports dropped due to queue backpressure.",
	}, []string{"source"})

	// ReportsFiltered counts filter verdicts.
	ReportsFiltered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "icewatch_reports_filtered_total",
		Help: "Filter stage verdicts.",
	}, []string{"verdict"})

	// CollectorFailures counts poll failures by category.
	CollectorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "icewatch_collector_failures_total",
		Help: "Collector poll failures.",
	}, []string{"source", "kind"})

	// AlertsSent counts webhook dispatches that got a 2xx.
	AlertsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "icewatch_alerts_sent_total",
		Help: "Alerts successfully dispatched to the webhook.",
	}, []string{"kind"})

	// AlertFailures counts dispatch failures by category.
	AlertFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "icewatch_alert_failures_total",
		Help: "Webhook dispatch failures.",
	}, []string{"kind"})

	// ActiveClusters tracks the size of the correlator's active set.
	ActiveClusters = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "icewatch_active_clusters",
		Help: "Clusters currently in ACTIVE state.",
	})
)
