// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CaptureFramesTotal counts frames handed to the pipeline by a source
	CaptureFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netscope_capture_frames_total",
			Help: "Total number of frames read from the capture source",
		},
		[]string{"source", "device"},
	)

	// CaptureKernelDrops reports drops reported by the capture handle itself
	CaptureKernelDrops = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "netscope_capture_kernel_drops",
			Help: "Packets dropped by the kernel or capture library, as last reported",
		},
		[]string{"source", "device"},
	)

	// FramesDroppedTotal counts frames discarded before a record was built
	FramesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netscope_frames_dropped_total",
			Help: "Total number of frames dropped by the decoder chain",
		},
		[]string{"reason"},
	)

	// RecordsTotal counts assembled records by application protocol
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netscope_records_total",
			Help: "Total number of records assembled",
		},
		[]string{"protocol"},
	)

	// PipelineLatencySeconds measures decode-to-publish latency per frame
	PipelineLatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "netscope_pipeline_latency_seconds",
			Help:    "Latency of processing one frame from decode to publish in seconds",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20), // 1µs to ~1s
		},
	)

	// Subscribers tracks currently connected subscribers by kind
	Subscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "netscope_subscribers",
			Help: "Current number of subscribers attached to the distributor",
		},
		[]string{"kind"},
	)

	// SubscriberDropsTotal counts records skipped because a subscriber buffer was full
	SubscriberDropsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netscope_subscriber_drops_total",
			Help: "Total number of records not delivered to a slow subscriber",
		},
		[]string{"kind"},
	)

	// SinkErrorsTotal counts sink delivery errors by sink and error type
	SinkErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netscope_sink_errors_total",
			Help: "Total number of sink errors",
		},
		[]string{"sink", "error_type"},
	)

	// SinkBatchSize tracks Kafka batch size distribution
	SinkBatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netscope_sink_batch_size",
			Help:    "Number of records written per sink batch",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1, 2, 4, ..., 2048
		},
		[]string{"sink"},
	)
)

// Drop reasons used as the FramesDroppedTotal label.
const (
	ReasonMalformed       = "malformed"
	ReasonLinkType        = "link_type"
	ReasonEtherType       = "ethertype"
	ReasonDistributorDown = "distributor_closed"
	ReasonOther           = "other"
)
