// Package metrics defines all Prometheus metrics for dhcprelayd.
// All metrics use the "dhcprelay_" namespace.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dhcprelay"

// --- Capture / Listener Metrics ---

var (
	// PacketsCaptured counts frames read off each interface's raw
	// socket, before validation.
	PacketsCaptured = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packets_captured_total",
		Help:      "Total frames captured, by interface.",
	}, []string{"interface"})

	// PacketsRejected counts frames dropped by the validator, the
	// BOOTREPLY check, or a client_request plugin veto.
	PacketsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packets_rejected_total",
		Help:      "Total captured frames rejected, by interface and reason.",
	}, []string{"interface", "reason"})

	// PacketsRateLimited counts captures dropped by a listener's
	// per-second rate limiter.
	PacketsRateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packets_rate_limited_total",
		Help:      "Total captures dropped by the per-listener rate limiter.",
	}, []string{"interface"})
)

// --- Relay Worker Metrics ---

var (
	// QueueDepth is a gauge of the current request queue length.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Current number of requests buffered in the relay queue.",
	})

	// RequestsRelayed counts DHCP payloads successfully sent to a
	// server.
	RequestsRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_relayed_total",
		Help:      "Total DHCP requests relayed to a server, by server name.",
	}, []string{"server"})

	// HopLimitDrops counts requests dropped for exceeding max_hops.
	HopLimitDrops = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "hop_limit_drops_total",
		Help:      "Total requests dropped for reaching the configured hop limit.",
	})

	// ServerSendErrors counts failed UDP sends to a server.
	ServerSendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "server_send_errors_total",
		Help:      "Total UDP send failures toward a server.",
	}, []string{"server"})
)

// --- Reply Worker Metrics ---

var (
	// RepliesReceived counts server datagrams read off an interface's
	// UDP socket, before validation.
	RepliesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "replies_received_total",
		Help:      "Total server reply datagrams received, by interface.",
	}, []string{"interface"})

	// RepliesRejected counts replies dropped (short read, plugin veto,
	// unresolved egress interface, malformed options).
	RepliesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "replies_rejected_total",
		Help:      "Total server replies rejected, by reason.",
	}, []string{"reason"})

	// RepliesSent counts raw frames successfully written to a client
	// interface.
	RepliesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "replies_sent_total",
		Help:      "Total reply frames written to a client interface.",
	}, []string{"interface"})

	// FrameWriteErrors counts raw write failures.
	FrameWriteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frame_write_errors_total",
		Help:      "Total raw frame write failures, by interface.",
	}, []string{"interface"})
)

// --- Plugin Chain Metrics ---

var (
	// PluginRejections counts a plugin hook returning Reject, by
	// plugin name and hook point.
	PluginRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "plugin_rejections_total",
		Help:      "Total plugin hook rejections, by plugin and hook.",
	}, []string{"plugin", "hook"})

	// PluginHookDuration is a per-plugin, per-hook histogram. Its only
	// writer, the statsd plugin, observes 0 on every hook call, so its
	// count is a call counter and its sum stays 0; no latency is timed.
	PluginHookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "plugin_hook_duration_seconds",
		Help:      "Plugin hook execution duration in seconds.",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	}, []string{"plugin", "hook"})
)

// --- Process Metrics ---

var (
	// BuildInfo is a constant gauge carrying version metadata.
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "build_info",
		Help:      "Build and version info.",
	}, []string{"version"})

	// StartTime reports process start time as a unix timestamp.
	StartTime = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "start_time_seconds",
		Help:      "Process start time as a Unix timestamp.",
	})
)
