// Package prometheus exposes engine metrics through client_golang.
package prometheus

import (
	"net/http"

	goLogin "github.com/MrEthical07/goLogin"
	"github.com/MrEthical07/goLogin/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsSource interface {
	MetricsSnapshot() goLogin.MetricsSnapshot
	AuditDropped() uint64
}

// PrometheusExporter is a prometheus.Collector that reads a snapshot from
// the engine on every scrape.
type PrometheusExporter struct {
	source       metricsSource
	counters     []counterDesc
	histograms   []histogramDesc
	auditDropped *prometheus.Desc
}

type counterDesc struct {
	id   goLogin.MetricID
	desc *prometheus.Desc
}

type histogramDesc struct {
	id   goLogin.MetricID
	desc *prometheus.Desc
}

var _ prometheus.Collector = (*PrometheusExporter)(nil)

// NewPrometheusExporter creates an exporter reading from engine.
func NewPrometheusExporter(engine *goLogin.Engine) *PrometheusExporter {
	return NewPrometheusExporterFromSource(engine)
}

func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	p := &PrometheusExporter{
		source:       source,
		counters:     make([]counterDesc, 0, len(internaldefs.CounterDefs)),
		histograms:   make([]histogramDesc, 0, len(internaldefs.HistogramDefs)),
		auditDropped: prometheus.NewDesc(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, nil, nil),
	}
	for _, def := range internaldefs.CounterDefs {
		p.counters = append(p.counters, counterDesc{id: def.ID, desc: prometheus.NewDesc(def.Name, def.Help, nil, nil)})
	}
	for _, def := range internaldefs.HistogramDefs {
		p.histograms = append(p.histograms, histogramDesc{id: def.ID, desc: prometheus.NewDesc(def.Name, def.Help, nil, nil)})
	}
	return p
}

func (p *PrometheusExporter) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range p.counters {
		ch <- c.desc
	}
	for _, h := range p.histograms {
		ch <- h.desc
	}
	ch <- p.auditDropped
}

// Collect emits nothing when the engine has metrics disabled.
func (p *PrometheusExporter) Collect(ch chan<- prometheus.Metric) {
	if p == nil || p.source == nil {
		return
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return
	}

	for _, c := range p.counters {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(snapshot.Counters[c.id]))
	}

	for _, h := range p.histograms {
		raw, ok := snapshot.Histograms[h.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(internaldefs.HistogramBounds))
		for i, le := range internaldefs.HistogramBounds {
			buckets[le] = cumulative[i]
		}
		// The engine keeps bucket counts only, so the sum is reported as zero.
		ch <- prometheus.MustNewConstHistogram(h.desc, cumulative[len(cumulative)-1], 0, buckets)
	}

	ch <- prometheus.MustNewConstMetric(p.auditDropped, prometheus.CounterValue, float64(dropped))
}

// Handler serves the exporter from a private registry.
func (p *PrometheusExporter) Handler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(p)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
