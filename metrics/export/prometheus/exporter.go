package prometheus

import (
	"net/http"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsSource interface {
	MetricsSnapshot() goSession.MetricsSnapshot
	AuditDropped() uint64
	AuditInline() uint64
}

type histogramDesc struct {
	id   goSession.MetricID
	desc *prometheus.Desc
}

// Exporter is a prometheus.Collector over an engine metrics snapshot. Each
// scrape takes one snapshot; nothing is cached between scrapes.
type Exporter struct {
	source       metricsSource
	counters     map[goSession.MetricID]*prometheus.Desc
	histograms   []histogramDesc
	auditDropped *prometheus.Desc
	auditInline  *prometheus.Desc
	registry     *prometheus.Registry
}

// NewExporter exports metrics from engine.
func NewExporter(engine *goSession.Engine) *Exporter {
	return NewExporterFromSource(engine)
}

// NewExporterFromSource exports metrics from any snapshot source. The exporter
// registers itself in a private registry served by [Exporter.Handler].
func NewExporterFromSource(source metricsSource) *Exporter {
	e := &Exporter{
		source:       source,
		counters:     make(map[goSession.MetricID]*prometheus.Desc, len(internaldefs.CounterDefs)),
		auditDropped: prometheus.NewDesc(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, nil, nil),
		auditInline:  prometheus.NewDesc(internaldefs.AuditInlineName, internaldefs.AuditInlineHelp, nil, nil),
		registry:     prometheus.NewRegistry(),
	}
	for _, def := range internaldefs.CounterDefs {
		e.counters[def.ID] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	for _, def := range internaldefs.HistogramDefs {
		e.histograms = append(e.histograms, histogramDesc{
			id:   def.ID,
			desc: prometheus.NewDesc(def.Name, def.Help, nil, nil),
		})
	}
	e.registry.MustRegister(e)
	return e
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, def := range internaldefs.CounterDefs {
		ch <- e.counters[def.ID]
	}
	for _, h := range e.histograms {
		ch <- h.desc
	}
	ch <- e.auditDropped
	ch <- e.auditInline
}

// Collect implements prometheus.Collector. A disabled engine yields no series.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	if e.source == nil {
		return
	}
	snapshot := e.source.MetricsSnapshot()
	dropped, inline := e.source.AuditDropped(), e.source.AuditInline()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 && inline == 0 {
		return
	}

	for _, def := range internaldefs.CounterDefs {
		ch <- prometheus.MustNewConstMetric(e.counters[def.ID], prometheus.CounterValue, float64(snapshot.Counters[def.ID]))
	}

	for _, h := range e.histograms {
		raw, ok := snapshot.Histograms[h.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.Cumulative(raw)
		buckets := make(map[float64]uint64, len(internaldefs.HistogramBounds))
		for i, le := range internaldefs.HistogramBounds {
			buckets[le] = cumulative[i]
		}
		// The engine keeps bucket counts only, so the sum is reported as zero.
		ch <- prometheus.MustNewConstHistogram(h.desc, cumulative[len(cumulative)-1], 0, buckets)
	}

	ch <- prometheus.MustNewConstMetric(e.auditDropped, prometheus.CounterValue, float64(dropped))
	ch <- prometheus.MustNewConstMetric(e.auditInline, prometheus.CounterValue, float64(inline))
}

// Registry returns the private registry holding the exporter, for callers
// that want to add process or Go runtime collectors.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the private registry in Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
