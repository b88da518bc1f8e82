package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestCounters(t *testing.T) {
	m := New(false)
	m.Upload(2, 1)
	m.Selection("click")
	m.Consolidation("consolidate")
	m.Overlap("venn")
	m.Plot("pareto", true)
	m.EnrichmentJob("gprofiler", "completed")
	m.PanelItems(3)
	m.LoadedSolutions(12)

	out := scrape(t, m)
	assert.Contains(t, out, `biopareto_front_files_total{result="loaded"} 2`)
	assert.Contains(t, out, `biopareto_front_files_total{result="failed"} 1`)
	assert.Contains(t, out, `biopareto_selection_operations_total{kind="click"} 1`)
	assert.Contains(t, out, `biopareto_plot_renders_total{cache="hit",kind="pareto"} 1`)
	assert.Contains(t, out, `biopareto_enrichment_jobs_total{provider="gprofiler",status="completed"} 1`)
	assert.Contains(t, out, "biopareto_panel_items 3")
	assert.Contains(t, out, "biopareto_loaded_solutions 12")
	assert.NotContains(t, out, "go_goroutines")
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New(false)
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/fronts/{front_id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/fronts/abc", nil))

	out := scrape(t, m)
	assert.Contains(t, out, `route="/api/fronts/{front_id}"`)
	assert.Contains(t, out, `status="404"`)
}
