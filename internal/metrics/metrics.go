// Package metrics exposes Prometheus counters for the analysis server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "biopareto"

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.HistogramVec
	uploads         *prometheus.CounterVec
	selections      *prometheus.CounterVec
	consolidations  *prometheus.CounterVec
	overlaps        *prometheus.CounterVec
	plots           *prometheus.CounterVec
	enrichmentJobs  *prometheus.CounterVec
	panelItems      prometheus.Gauge
	loadedSolutions prometheus.Gauge
}

// New creates and registers all collectors. withRuntime adds the Go and
// process collectors.
func New(withRuntime bool) *Metrics {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(collectors.NewGoCollector())
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}))
	}

	m := &Metrics{
		registry: reg,
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "front_files_total",
			Help:      "Uploaded front files by outcome.",
		}, []string{"result"}),
		selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selection_operations_total",
			Help:      "Selection operations by kind.",
		}, []string{"kind"}),
		consolidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consolidations_total",
			Help:      "Consolidations and restores.",
		}, []string{"action"}),
		overlaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overlap_analyses_total",
			Help:      "Gene-set intersection analyses by mode.",
		}, []string{"mode"}),
		plots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plot_renders_total",
			Help:      "Plot requests by cache outcome.",
		}, []string{"kind", "cache"}),
		enrichmentJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_jobs_total",
			Help:      "Finished enrichment jobs by provider and status.",
		}, []string{"provider", "status"}),
		panelItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "panel_items",
			Help:      "Items in the interest panel.",
		}),
		loadedSolutions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loaded_solutions",
			Help:      "Solutions across all loaded fronts.",
		}),
	}
	reg.MustRegister(
		m.requests, m.uploads, m.selections, m.consolidations, m.overlaps,
		m.plots, m.enrichmentJobs, m.panelItems, m.loadedSolutions,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request latency using the matched chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}

// Upload counts loaded and rejected files.
func (m *Metrics) Upload(loaded, failed int) {
	m.uploads.WithLabelValues("loaded").Add(float64(loaded))
	m.uploads.WithLabelValues("failed").Add(float64(failed))
}

// Selection counts one selection operation.
func (m *Metrics) Selection(kind string) {
	m.selections.WithLabelValues(kind).Inc()
}

// Consolidation counts a consolidate or restore action.
func (m *Metrics) Consolidation(action string) {
	m.consolidations.WithLabelValues(action).Inc()
}

// Overlap counts one intersection analysis.
func (m *Metrics) Overlap(mode string) {
	m.overlaps.WithLabelValues(mode).Inc()
}

// Plot counts a plot request. hit reports whether it was served from cache.
func (m *Metrics) Plot(kind string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.plots.WithLabelValues(kind, outcome).Inc()
}

// EnrichmentJob counts a finished enrichment job.
func (m *Metrics) EnrichmentJob(provider, status string) {
	m.enrichmentJobs.WithLabelValues(provider, status).Inc()
}

// PanelItems sets the interest panel size.
func (m *Metrics) PanelItems(n int) {
	m.panelItems.Set(float64(n))
}

// LoadedSolutions sets the loaded solution count.
func (m *Metrics) LoadedSolutions(n int) {
	m.loadedSolutions.Set(float64(n))
}
