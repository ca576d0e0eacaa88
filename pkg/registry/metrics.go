package registry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rmax-ai/alertgraph/pkg/graph"
)

var (
	// GraphNodes tracks the number of nodes in the graph
	GraphNodes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "alertgraph_nodes",
			Help: "Number of nodes in the alert graph",
		},
	)

	// GraphEdges tracks the number of directed adjacency entries
	GraphEdges = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "alertgraph_edges",
			Help: "Number of directed adjacency entries in the alert graph",
		},
	)

	// UsersRegisteredTotal counts successful registrations
	UsersRegisteredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alertgraph_users_registered_total",
			Help: "Total number of users registered",
		},
	)

	// AlertsCreatedTotal counts created alerts per category
	AlertsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertgraph_alerts_created_total",
			Help: "Total number of alerts created",
		},
		[]string{"category"},
	)

	// QueriesTotal counts alert searches by kind
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertgraph_queries_total",
			Help: "Total number of alert searches",
		},
		[]string{"kind"},
	)

	// TraversalVisited records how many nodes each traversal visited
	TraversalVisited = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alertgraph_traversal_visited",
			Help:    "Nodes visited per graph traversal",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"algorithm"},
	)
)

func init() {
	prometheus.MustRegister(GraphNodes)
	prometheus.MustRegister(GraphEdges)
	prometheus.MustRegister(UsersRegisteredTotal)
	prometheus.MustRegister(AlertsCreatedTotal)
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(TraversalVisited)
}

func updateGraphGauges(g *graph.Graph) {
	GraphNodes.Set(float64(g.NodeCount()))
	GraphEdges.Set(float64(g.EdgeCount()))
}

func observeQuery(kind, algorithm string, stats graph.TraversalStats) {
	QueriesTotal.WithLabelValues(kind).Inc()
	TraversalVisited.WithLabelValues(algorithm).Observe(float64(stats.Visited))
}
