package transport

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMetrics_RegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "test")

	m.connectionsTotal.Inc()
	m.connectionsActive.Inc()
	m.bytesReceived.Add(10)
	m.bytesSent.Add(20)
	m.framesDropped.Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) != 5 {
		t.Errorf("expected 5 registered metric families, got %d", len(families))
	}
}
