// Package metrics exposes prometheus counters for the document engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Recorder counts document lifecycle events. A nil Recorder is safe to
// call, so components can take it optionally.
type Recorder struct {
	rendersTotal     *prometheus.CounterVec
	cacheHitsTotal   prometheus.Counter
	derivationsTotal *prometheus.CounterVec
	emailsSentTotal  prometheus.Counter
}

func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func NewRecorder(reg *prometheus.Registry) *Recorder {
	r := &Recorder{
		rendersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doklady_artifact_renders_total",
			Help: "Artifact renders by result.",
		}, []string{"result"}),
		cacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "doklady_artifact_cache_hits_total",
			Help: "Artifact requests served from the fingerprint cache.",
		}),
		derivationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doklady_document_derivations_total",
			Help: "Document derivations by target type and outcome.",
		}, []string{"type", "outcome"}),
		emailsSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "doklady_document_emails_sent_total",
			Help: "Documents dispatched by email.",
		}),
	}
	reg.MustRegister(r.rendersTotal, r.cacheHitsTotal, r.derivationsTotal, r.emailsSentTotal)
	return r
}

func (r *Recorder) Render(result string) {
	if r == nil {
		return
	}
	r.rendersTotal.WithLabelValues(result).Inc()
}

func (r *Recorder) CacheHit() {
	if r == nil {
		return
	}
	r.cacheHitsTotal.Inc()
}

func (r *Recorder) Derivation(documentType, outcome string) {
	if r == nil {
		return
	}
	r.derivationsTotal.WithLabelValues(documentType, outcome).Inc()
}

func (r *Recorder) EmailSent() {
	if r == nil {
		return
	}
	r.emailsSentTotal.Inc()
}
