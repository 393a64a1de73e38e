package otel

import (
	"context"
	"errors"
	"fmt"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

// Constructor errors.
var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() goSession.MetricsSnapshot
	AuditDropped() uint64
	AuditInline() uint64
}

// reading is everything one collection cycle observes.
type reading struct {
	snapshot goSession.MetricsSnapshot
	dropped  uint64
	inline   uint64
	// cumulative holds running bucket totals per histogram present in snapshot.
	cumulative map[goSession.MetricID][]uint64
}

// observation binds an instrument to the value it reports. ok=false skips
// the instrument for this cycle.
type observation struct {
	instrument metric.Int64Observable
	value      func(r *reading) (v uint64, ok bool)
}

// Exporter publishes engine metrics as observable instruments on a caller
// supplied Meter. Counters map to observable counters. Each latency bucket,
// +Inf included, becomes a cumulative gauge named <histogram>_bucket_le_<bound>.
type Exporter struct {
	source       metricsSource
	observations []observation
	registration metric.Registration
}

// NewExporter registers instruments for engine on meter.
func NewExporter(meter metric.Meter, engine *goSession.Engine) (*Exporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewExporterFromSource(meter, engine)
}

// NewExporterFromSource registers instruments for any snapshot source. One
// callback reads a single snapshot per collection cycle.
func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}

	for _, def := range internaldefs.CounterDefs {
		id := def.ID
		if err := e.counter(meter, def.Name, def.Help, func(r *reading) (uint64, bool) {
			return r.snapshot.Counters[id], true
		}); err != nil {
			return nil, err
		}
	}

	for _, def := range internaldefs.HistogramDefs {
		id := def.ID
		for i, suffix := range internaldefs.HistogramBoundSuffix {
			bucket := i
			name := def.Name + "_bucket_le_" + suffix
			if err := e.gauge(meter, name, "Cumulative histogram bucket count.", func(r *reading) (uint64, bool) {
				c, ok := r.cumulative[id]
				if !ok {
					return 0, false
				}
				return c[bucket], true
			}); err != nil {
				return nil, err
			}
		}
		if err := e.gauge(meter, def.Name+"_count", "Histogram total sample count.", func(r *reading) (uint64, bool) {
			c, ok := r.cumulative[id]
			if !ok {
				return 0, false
			}
			return c[len(c)-1], true
		}); err != nil {
			return nil, err
		}
	}

	if err := e.counter(meter, internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, func(r *reading) (uint64, bool) {
		return r.dropped, true
	}); err != nil {
		return nil, err
	}
	if err := e.counter(meter, internaldefs.AuditInlineName, internaldefs.AuditInlineHelp, func(r *reading) (uint64, bool) {
		return r.inline, true
	}); err != nil {
		return nil, err
	}

	instruments := make([]metric.Observable, len(e.observations))
	for i, o := range e.observations {
		instruments[i] = o.instrument
	}
	registration, err := meter.RegisterCallback(e.observe, instruments...)
	if err != nil {
		return nil, fmt.Errorf("otel: register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

func (e *Exporter) counter(meter metric.Meter, name, help string, value func(*reading) (uint64, bool)) error {
	ins, err := meter.Int64ObservableCounter(name, metric.WithDescription(help))
	if err != nil {
		return fmt.Errorf("otel: counter %s: %w", name, err)
	}
	e.observations = append(e.observations, observation{instrument: ins, value: value})
	return nil
}

func (e *Exporter) gauge(meter metric.Meter, name, help string, value func(*reading) (uint64, bool)) error {
	ins, err := meter.Int64ObservableGauge(name, metric.WithDescription(help))
	if err != nil {
		return fmt.Errorf("otel: gauge %s: %w", name, err)
	}
	e.observations = append(e.observations, observation{instrument: ins, value: value})
	return nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	r := &reading{
		snapshot:   snap,
		dropped:    e.source.AuditDropped(),
		inline:     e.source.AuditInline(),
		cumulative: make(map[goSession.MetricID][]uint64, len(snap.Histograms)),
	}
	for id, raw := range snap.Histograms {
		r.cumulative[id] = internaldefs.Cumulative(raw)
	}

	for _, obs := range e.observations {
		if v, ok := obs.value(r); ok {
			o.ObserveInt64(obs.instrument, int64(v))
		}
	}
	return nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
