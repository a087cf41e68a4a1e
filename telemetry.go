package railz

import (
	"context"

	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// telemetry bundles the metrics registry, tracer and hooks owned by one
// component. The sinks are safe for concurrent use and never influence the
// outcome of a run.
type telemetry[Ev any] struct {
	metrics *metricz.Registry
	tracer  *tracez.Tracer
	hooks   *hookz.Hooks[Ev]
}

func newTelemetry[Ev any](counters, gauges []metricz.Key) *telemetry[Ev] {
	metrics := metricz.New()
	for _, key := range counters {
		metrics.Counter(key)
	}
	for _, key := range gauges {
		metrics.Gauge(key)
	}
	return &telemetry[Ev]{
		metrics: metrics,
		tracer:  tracez.New(),
		hooks:   hookz.New[Ev](),
	}
}

func (t *telemetry[Ev]) emit(ctx context.Context, key hookz.Key, event Ev) {
	_ = t.hooks.Emit(ctx, key, event) //nolint:errcheck
}

func (t *telemetry[Ev]) hook(key hookz.Key, handler func(context.Context, Ev) error) error {
	_, err := t.hooks.Hook(key, handler)
	return err
}

func (t *telemetry[Ev]) close() {
	if t.tracer != nil {
		t.tracer.Close()
	}
	t.hooks.Close()
}
