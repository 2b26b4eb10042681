package prometheus

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-uthreads/uthreads/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// MetricsExporter adapts core.Metrics to Prometheus collectors, exporting
// dispatch counts, state transitions, panics, and queue depth instead of
// the teacher's task-duration/rejection metrics.
type MetricsExporter struct {
	dispatchTotal     *prom.CounterVec
	quantaRun         *prom.GaugeVec
	stateTransitions  *prom.CounterVec
	entryPointPanics  *prom.CounterVec
	queueDepth        *prom.GaugeVec
	totalQuantumGauge prom.Gauge
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for
// core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "uthreads"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}

	dispatchVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "dispatch_total",
		Help:      "Total number of times the dispatcher handed the CPU to a thread.",
	}, []string{"tid"})
	quantaRunVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "quanta_run",
		Help:      "quanta_run of each thread as of its last dispatch.",
	}, []string{"tid"})
	transitionsVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "state_transitions_total",
		Help:      "Total lifecycle state transitions, labeled by from/to state.",
	}, []string{"from", "to"})
	panicsVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "entry_point_panics_total",
		Help:      "Total number of spawned entry points that panicked.",
	}, []string{"tid"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Current depth of a scheduler queue.",
	}, []string{"queue"})
	totalQuantumGauge := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "total_quantums",
		Help:      "Most recently observed value of the global quantum counter.",
	})

	var err error
	if dispatchVec, err = registerCollector(reg, dispatchVec); err != nil {
		return nil, err
	}
	if quantaRunVec, err = registerCollector(reg, quantaRunVec); err != nil {
		return nil, err
	}
	if transitionsVec, err = registerCollector(reg, transitionsVec); err != nil {
		return nil, err
	}
	if panicsVec, err = registerCollector(reg, panicsVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}
	if totalQuantumGauge, err = registerCollector(reg, totalQuantumGauge); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		dispatchTotal:     dispatchVec,
		quantaRun:         quantaRunVec,
		stateTransitions:  transitionsVec,
		entryPointPanics:  panicsVec,
		queueDepth:        queueDepthVec,
		totalQuantumGauge: totalQuantumGauge,
	}, nil
}

// RecordDispatch implements core.Metrics.
func (m *MetricsExporter) RecordDispatch(tid core.TID, quantaRun int, totalQuantums int) {
	if m == nil {
		return
	}
	label := tidLabel(tid)
	m.dispatchTotal.WithLabelValues(label).Inc()
	m.quantaRun.WithLabelValues(label).Set(float64(quantaRun))
	m.totalQuantumGauge.Set(float64(totalQuantums))
}

// RecordStateTransition implements core.Metrics.
func (m *MetricsExporter) RecordStateTransition(tid core.TID, from, to core.State) {
	if m == nil {
		return
	}
	m.stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
}

// RecordEntryPointPanic implements core.Metrics.
func (m *MetricsExporter) RecordEntryPointPanic(tid core.TID, panicInfo any) {
	if m == nil {
		return
	}
	m.entryPointPanics.WithLabelValues(tidLabel(tid)).Inc()
}

// RecordQueueDepth implements core.Metrics.
func (m *MetricsExporter) RecordQueueDepth(queue string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(normalizeLabel(queue, "unknown")).Set(float64(depth))
}

func tidLabel(tid core.TID) string {
	return strconv.FormatUint(uint64(tid), 10)
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
