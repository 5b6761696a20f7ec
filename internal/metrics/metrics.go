// Package metrics holds the Prometheus collectors for the frame loop and the
// server around it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesTotal counts frames by outcome (ticked, idle)
	FramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codescape_frames_total",
		Help: "Frames processed by outcome",
	}, []string{"outcome"})

	// TickDuration tracks the cost of one simulation tick
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "codescape_tick_duration_seconds",
		Help:    "Simulation tick duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14), // 50us to ~400ms
	})

	// Convergences counts cooling runs that reached alpha_min
	Convergences = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codescape_layout_convergences_total",
		Help: "Layout cooling runs that converged",
	})

	// Alpha is the current simulation temperature
	Alpha = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "codescape_layout_alpha",
		Help: "Current layout alpha",
	})

	// Interactions counts applied interaction events by kind
	Interactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codescape_interactions_total",
		Help: "Interaction events applied by kind",
	}, []string{"kind"})

	// InteractionsDropped counts events rejected because the queue was full
	// or the coordinator had stopped
	InteractionsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codescape_interactions_dropped_total",
		Help: "Interaction events dropped by reason",
	}, []string{"reason"})

	// ObserverPanics counts recovered panics in observer callbacks
	ObserverPanics = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codescape_observer_panics_total",
		Help: "Recovered observer callback panics by callback",
	}, []string{"callback"})

	// GraphNodes is the node count of the current generation
	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "codescape_graph_nodes",
		Help: "Nodes in the current graph generation",
	})

	// GraphEdges is the edge count of the current generation
	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "codescape_graph_edges",
		Help: "Edges in the current graph generation",
	})

	// PayloadsTotal counts payloads by source and result
	PayloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codescape_payloads_total",
		Help: "Analysis payloads loaded by source and result",
	}, []string{"source", "result"})

	// AnalysisDuration tracks analysis service round trips
	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "codescape_analysis_duration_seconds",
		Help:    "Analysis request duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
	})

	// EventsPublished counts event bus publications by type
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codescape_events_published_total",
		Help: "Events published on the bus by type",
	}, []string{"type"})

	// StreamClients is the number of connected SSE and websocket clients
	StreamClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "codescape_stream_clients",
		Help: "Connected streaming clients by transport",
	}, []string{"transport"})
)
