package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// UploadsTotal counts source document upload outcomes.
	UploadsTotal *prometheus.CounterVec
	// GenerateTotal counts invoice draft generation outcomes.
	GenerateTotal *prometheus.CounterVec
	// ExportsTotal counts invoice PDF export outcomes.
	ExportsTotal *prometheus.CounterVec
	// TranscribeTotal counts voice transcription outcomes.
	TranscribeTotal *prometheus.CounterVec
	// PDFRenderLatency records invoice PDF render latency in milliseconds.
	PDFRenderLatency prometheus.Histogram
	// LLMRequestLatency records LLM completion latency in milliseconds.
	LLMRequestLatency *prometheus.HistogramVec
	// ChunksIndexed counts document chunks written to the search index.
	ChunksIndexed prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		UploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Count of source document uploads by outcome.",
		}, []string{"result"})
		GenerateTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoice_generate_total",
			Help:      "Count of invoice draft generation attempts by outcome.",
		}, []string{"result"})
		ExportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoice_exports_total",
			Help:      "Count of invoice PDF exports by outcome.",
		}, []string{"result"})
		TranscribeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_transcribe_total",
			Help:      "Count of voice transcription jobs by outcome.",
		}, []string{"result"})
		PDFRenderLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pdf_render_duration_ms",
			Help:      "Latency for invoice PDF rendering in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000},
		})
		LLMRequestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_ms",
			Help:      "Latency for LLM completion requests in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}, []string{"result"})
		ChunksIndexed = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_indexed_total",
			Help:      "Total number of document chunks written to the search index.",
		})

		mustRegisterCollector(reg, UploadsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				UploadsTotal = v
			}
		})
		mustRegisterCollector(reg, GenerateTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				GenerateTotal = v
			}
		})
		mustRegisterCollector(reg, ExportsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ExportsTotal = v
			}
		})
		mustRegisterCollector(reg, TranscribeTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				TranscribeTotal = v
			}
		})
		mustRegisterCollector(reg, PDFRenderLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				PDFRenderLatency = v
			}
		})
		mustRegisterCollector(reg, LLMRequestLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				LLMRequestLatency = v
			}
		})
		mustRegisterCollector(reg, ChunksIndexed, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				ChunksIndexed = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
