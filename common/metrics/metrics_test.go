package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRegistry(reg)

	m.NodesStarted.WithLabelValues("mapping").Inc()
	m.NodesCompleted.WithLabelValues("mapping").Inc()
	m.NodesFailed.WithLabelValues("mapping", "timeout").Inc()
	m.QueueDepth.Set(3)
	m.ExecutionsLive.Inc()
	m.NodeDuration.WithLabelValues("mapping").Observe(0.25)
	m.ToolInvokes.WithLabelValues("api", "success").Inc()
	m.ToolBreakerHit.WithLabelValues("https://example.com").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)

	names := make(map[string]bool, len(families))
	for _, fam := range families {
		names[fam.GetName()] = true
	}
	for _, want := range []string{
		"fec_scheduler_nodes_started_total",
		"fec_scheduler_nodes_completed_total",
		"fec_scheduler_nodes_failed_total",
		"fec_scheduler_ready_queue_depth",
		"fec_scheduler_executions_live",
		"fec_executor_node_duration_seconds",
		"fec_tools_invocations_total",
		"fec_tools_breaker_open_total",
	} {
		require.True(t, names[want], "missing metric family %s", want)
	}
}

func TestQueueDepthGaugeValue(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRegistry(reg)
	m.QueueDepth.Set(7)

	families, err := reg.Gather()
	require.NoError(t, err)
	var got *dto.Metric
	for _, fam := range families {
		if fam.GetName() == "fec_scheduler_ready_queue_depth" {
			got = fam.Metric[0]
		}
	}
	require.NotNil(t, got)
	require.Equal(t, float64(7), got.GetGauge().GetValue())
}
