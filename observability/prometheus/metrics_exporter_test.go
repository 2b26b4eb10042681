package prometheus

import (
	"testing"

	"github.com/go-uthreads/uthreads/core"
	prom "github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, g prom.Collector, matchLabels map[string]string) float64 {
	t.Helper()
	ch := make(chan prom.Metric, 16)
	g.Collect(ch)
	close(ch)
	for m := range ch {
		var pb dto.Metric
		if err := m.Write(&pb); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if len(matchLabels) > 0 {
			labels := map[string]string{}
			for _, lp := range pb.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			match := true
			for k, v := range matchLabels {
				if labels[k] != v {
					match = false
					break
				}
			}
			if !match {
				continue
			}
		}
		if pb.Gauge != nil {
			return pb.Gauge.GetValue()
		}
		if pb.Counter != nil {
			return pb.Counter.GetValue()
		}
	}
	t.Fatalf("no metric matched labels %v", matchLabels)
	return 0
}

func TestMetricsExporterRecordDispatch(t *testing.T) {
	reg := prom.NewRegistry()
	m, err := NewMetricsExporter("test", reg)
	if err != nil {
		t.Fatalf("NewMetricsExporter: %v", err)
	}

	m.RecordDispatch(core.TID(3), 2, 10)

	if got := gaugeValue(t, m.quantaRun, map[string]string{"tid": "3"}); got != 2 {
		t.Errorf("quantaRun gauge = %v, want 2", got)
	}
	if got := gaugeValue(t, m.totalQuantumGauge, nil); got != 10 {
		t.Errorf("totalQuantumGauge = %v, want 10", got)
	}
	if got := gaugeValue(t, m.dispatchTotal, map[string]string{"tid": "3"}); got != 1 {
		t.Errorf("dispatchTotal counter = %v, want 1", got)
	}
}

func TestMetricsExporterRecordStateTransition(t *testing.T) {
	reg := prom.NewRegistry()
	m, err := NewMetricsExporter("test", reg)
	if err != nil {
		t.Fatalf("NewMetricsExporter: %v", err)
	}

	m.RecordStateTransition(core.TID(1), core.Ready, core.Running)
	if got := gaugeValue(t, m.stateTransitions, map[string]string{"from": "READY", "to": "RUNNING"}); got != 1 {
		t.Errorf("stateTransitions counter = %v, want 1", got)
	}
}

func TestMetricsExporterNilReceiverIsSafe(t *testing.T) {
	var m *MetricsExporter
	m.RecordDispatch(1, 1, 1)
	m.RecordStateTransition(1, core.Ready, core.Running)
	m.RecordEntryPointPanic(1, "boom")
	m.RecordQueueDepth("ready", 3)
}

func TestNormalizeLabel(t *testing.T) {
	if got := normalizeLabel("", "unknown"); got != "unknown" {
		t.Errorf("normalizeLabel(\"\") = %q, want \"unknown\"", got)
	}
	if got := normalizeLabel("ready", "unknown"); got != "ready" {
		t.Errorf("normalizeLabel(\"ready\") = %q, want \"ready\"", got)
	}
}
