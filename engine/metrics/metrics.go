// Package metrics exposes the engine counters to prometheus
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "netgod"

var (
	// Engine loop
	framesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_total",
		Help:      "Total number of engine frames run",
	})
	frameSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "frame_seconds",
		Help:      "Time spent updating all systems in one frame",
		Buckets:   []float64{.001, .0025, .005, .01, .0167, .025, .05, .1, .25},
	})
	systemPerformance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "system_performance",
		Help:      "Performance rating (0..1) of each engine system",
	}, []string{"system"})

	// Networking
	connections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "network_connections",
		Help:      "Number of connected clients",
	})
	connectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "network_connections_total",
		Help:      "Client connections by transport and outcome",
	}, []string{"transport", "outcome"}) // outcome=accepted|refused
	packetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "network_packets_total",
		Help:      "Packets by direction",
	}, []string{"direction"}) // direction=in|out
	bytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "network_bytes_total",
		Help:      "Packet bytes by direction",
	}, []string{"direction"})
	packetsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "network_packets_dropped_total",
		Help:      "Dropped packets by reason",
	}, []string{"reason"}) // reason=rate_limit|inbound_full|send_queue_full|invalid
	packetRate = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "network_packet_rate",
		Help:      "Current per client packet rate limit",
	})

	// Blockchain
	chainSyncs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chain_syncs_total",
		Help:      "Ledger syncs by outcome",
	}, []string{"outcome"})
	chainTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chain_transactions_total",
		Help:      "Transactions by status",
	}, []string{"status"})

	// Content
	contentGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "content_generated_total",
		Help:      "Generated content by kind",
	}, []string{"kind"})

	// Self improvement
	optimizations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "optimizations_total",
		Help:      "Applied optimization strategies by system and outcome",
	}, []string{"system", "outcome"})

	// Process
	processCPU = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "process_cpu_percent",
		Help:      "CPU usage of the server process",
	})
	processRSS = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "process_rss_bytes",
		Help:      "Resident memory of the server process",
	})
)

// RecordFrame records one engine frame
func RecordFrame(d time.Duration) {
	framesTotal.Inc()
	frameSeconds.Observe(d.Seconds())
}

// SetSystemPerformance sets the performance rating of a system
func SetSystemPerformance(system string, p float64) {
	systemPerformance.WithLabelValues(system).Set(p)
}

// SetConnections sets the number of connected clients
func SetConnections(n int) {
	connections.Set(float64(n))
}

// IncConnection counts a connection attempt
func IncConnection(transport string, accepted bool) {
	outcome := "accepted"
	if !accepted {
		outcome = "refused"
	}
	connectionsTotal.WithLabelValues(transport, outcome).Inc()
}

// AddPacket counts a packet and its size
func AddPacket(direction string, bytes int) {
	packetsTotal.WithLabelValues(direction).Inc()
	bytesTotal.WithLabelValues(direction).Add(float64(bytes))
}

// IncDropped counts a dropped packet
func IncDropped(reason string) {
	packetsDropped.WithLabelValues(reason).Inc()
}

// SetPacketRate sets the current packet rate limit
func SetPacketRate(rate int) {
	packetRate.Set(float64(rate))
}

// IncChainSync counts a ledger sync
func IncChainSync(ok bool) {
	if ok {
		chainSyncs.WithLabelValues("success").Inc()
	} else {
		chainSyncs.WithLabelValues("failure").Inc()
	}
}

// IncTransaction counts a transaction reaching status
func IncTransaction(status string) {
	chainTransactions.WithLabelValues(status).Inc()
}

// IncContent counts generated content
func IncContent(kind string) {
	contentGenerated.WithLabelValues(kind).Inc()
}

// IncOptimization counts an applied optimization strategy
func IncOptimization(system string, applied bool) {
	outcome := "applied"
	if !applied {
		outcome = "skipped"
	}
	optimizations.WithLabelValues(system, outcome).Inc()
}

// SetProcess sets the process resource gauges
func SetProcess(cpuPercent float64, rssBytes uint64) {
	processCPU.Set(cpuPercent)
	processRSS.Set(float64(rssBytes))
}
