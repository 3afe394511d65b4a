package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegistered(t *testing.T) {
	// promauto registers automatically; exercise each metric once and
	// spot-check a few via testutil.
	PacketsCaptured.WithLabelValues("eth0").Inc()
	PacketsRejected.WithLabelValues("eth0", "validator").Inc()
	PacketsRateLimited.WithLabelValues("eth0").Inc()
	QueueDepth.Set(12)
	RequestsRelayed.WithLabelValues("srv0").Inc()
	HopLimitDrops.Inc()
	ServerSendErrors.WithLabelValues("srv0").Inc()
	RepliesReceived.WithLabelValues("eth0").Inc()
	RepliesRejected.WithLabelValues("short_read").Inc()
	RepliesSent.WithLabelValues("eth0").Inc()
	FrameWriteErrors.WithLabelValues("eth0").Inc()
	PluginRejections.WithLabelValues("relayinfo", "client_request").Inc()
	PluginHookDuration.WithLabelValues("statsd", "server_answer").Observe(0.001)
	StartTime.SetToCurrentTime()
	BuildInfo.WithLabelValues("dev").Set(1)

	if got := testutil.ToFloat64(QueueDepth); got != 12 {
		t.Errorf("QueueDepth = %v, want 12", got)
	}
	if got := testutil.ToFloat64(HopLimitDrops); got != 1 {
		t.Errorf("HopLimitDrops = %v, want 1", got)
	}
}

func TestMetricsNamespace(t *testing.T) {
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	for _, mf := range mfs {
		name := mf.GetName()
		if strings.HasPrefix(name, "go_") ||
			strings.HasPrefix(name, "process_") ||
			strings.HasPrefix(name, "promhttp_") {
			continue
		}
		if !strings.HasPrefix(name, "dhcprelay_") {
			t.Errorf("metric %q does not have dhcprelay_ prefix", name)
		}
	}
}
