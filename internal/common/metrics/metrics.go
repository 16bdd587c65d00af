package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PipelineStagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portrait_pipeline_stages_total",
			Help: "Total number of portrait pipeline stage executions",
		},
		[]string{"stage", "status"},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "portrait_pipeline_stage_duration_seconds",
			Help: "Duration of portrait pipeline stages in seconds",
		},
		[]string{"stage"},
	)

	PortraitFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portrait_fallbacks_total",
			Help: "Portraits produced by the local compositor after a remote render failure",
		},
	)

	EntriesSavedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "entries_saved_total",
			Help: "Total number of para entries saved",
		},
	)

	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Requests issued to external services",
		},
		[]string{"service", "status"},
	)
)
