package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/biopareto/server/internal/cache"
	"github.com/biopareto/server/internal/metrics"
	"github.com/biopareto/server/internal/panel"
	"github.com/biopareto/server/internal/render"
	"github.com/biopareto/server/internal/session"
)

const (
	testFrontA = `[
		{"solution_id": "s1", "selected_genes": ["BRCA1", "TP53"], "accuracy": 0.91},
		{"solution_id": "s2", "selected_genes": ["TP53"], "accuracy": 0.85},
		{"solution_id": "s3", "selected_genes": ["EGFR", "MYC", "TP53"], "accuracy": 0.95}
	]`
	testFrontB = `[
		{"solution_id": "s1", "selected_genes": ["TP53", "KRAS"], "accuracy": 0.91},
		{"solution_id": "s2", "selected_genes": ["PTEN"], "accuracy": 0.88}
	]`
)

// testServer holds the router and its dependencies
type testServer struct {
	router http.Handler
	reg    *Registry
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	sess, err := session.New(session.Options{
		Now: func() time.Time { return time.Date(2024, 5, 1, 14, 5, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("Failed to initialize session: %v", err)
	}

	cacheManager, err := cache.NewManager(cache.Config{
		PlotCacheSizeMB: 16,
		PlotTTL:         time.Minute,
		QueryCacheSize:  32,
	})
	if err != nil {
		t.Fatalf("Failed to initialize cache: %v", err)
	}
	t.Cleanup(func() { cacheManager.Close() })

	reg := NewRegistry(RegistryOptions{Title: "Test"})
	reg.Session = sess
	reg.Panel = panel.NewStore()
	reg.Panel.SetClock(sess.Now)
	reg.Cache = cacheManager
	reg.Renderer = render.NewRenderer(render.Config{Width: 600, Height: 400})
	reg.Metrics = metrics.New(false)

	return &testServer{
		router: NewRouter(RouterConfig{Registry: reg, CORSOrigins: []string{"http://localhost:3000"}}),
		reg:    reg,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) upload(t *testing.T, files map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range []string{"front_a.json", "front_b.json", "broken.json"} {
		content, ok := files[name]
		if !ok {
			continue
		}
		fw, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		fw.Write([]byte(content))
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/fronts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) loaded(t *testing.T) {
	t.Helper()
	rec := ts.upload(t, map[string]string{"front_a.json": testFrontA, "front_b.json": testFrontB})
	if rec.Code != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", rec.Body.String())
	}
}

func TestUploadAndState(t *testing.T) {
	ts := setupTestServer(t)
	rec := ts.upload(t, map[string]string{
		"front_a.json": testFrontA,
		"front_b.json": testFrontB,
		"broken.json":  `{"not": "a list"}`,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode(t, rec)
	if loaded := resp["loaded"].([]interface{}); len(loaded) != 2 {
		t.Errorf("Expected 2 loaded fronts, got %v", loaded)
	}
	if failed := resp["failed"].([]interface{}); len(failed) != 1 {
		t.Errorf("Expected 1 failed file, got %v", failed)
	}

	state := decode(t, ts.do(t, http.MethodGet, "/api/state", nil))
	if state["solutions"].(float64) != 5 {
		t.Errorf("Expected 5 solutions, got %v", state["solutions"])
	}
	axes := state["axes"].(map[string]interface{})
	if axes["x"] != "accuracy" || axes["y"] != "num_genes" {
		t.Errorf("Unexpected default axes: %v", axes)
	}
	if state["can_restore"].(bool) {
		t.Error("Expected can_restore=false before any consolidation")
	}
	if state["restore_fronts"].(float64) != 0 {
		t.Errorf("Expected restore_fronts=0, got %v", state["restore_fronts"])
	}
	stats, ok := state["cache"].(map[string]interface{})
	if !ok || stats["plot_cache_len"] == nil {
		t.Errorf("Expected cache stats in state, got %v", state["cache"])
	}
}

func TestUploadAllFailed(t *testing.T) {
	ts := setupTestServer(t)
	rec := ts.upload(t, map[string]string{"broken.json": `[]`})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected status 422, got %d", rec.Code)
	}
}

func TestUploadRawBody(t *testing.T) {
	ts := setupTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/fronts?filename=raw.json", strings.NewReader(testFrontA))
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/fronts", strings.NewReader(testFrontA))
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 without filename, got %d", rec.Code)
	}
}

func TestPointsGroupsSharedCoordinate(t *testing.T) {
	ts := setupTestServer(t)
	ts.loaded(t)

	resp := decode(t, ts.do(t, http.MethodGet, "/api/points", nil))
	if resp["total"].(float64) != 5 {
		t.Fatalf("Expected 5 points, got %v", resp["total"])
	}
	shared := 0
	for _, g := range resp["groups"].([]interface{}) {
		if g.(map[string]interface{})["shared"].(bool) {
			shared++
		}
	}
	if shared != 1 {
		t.Errorf("Expected 1 shared group, got %d", shared)
	}

	// Second call is served from the query cache with the same body.
	again := ts.do(t, http.MethodGet, "/api/points", nil)
	first := ts.do(t, http.MethodGet, "/api/points", nil)
	if again.Body.String() != first.Body.String() {
		t.Error("Expected cached points body to be stable")
	}
}

func TestAxesEndpoints(t *testing.T) {
	ts := setupTestServer(t)
	ts.loaded(t)

	rec := ts.do(t, http.MethodPut, "/api/axes", map[string]string{"x": "accuracy", "y": "missing"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for unknown objective, got %d", rec.Code)
	}

	resp := decode(t, ts.do(t, http.MethodPost, "/api/axes/swap", nil))
	axes := resp["axes"].(map[string]interface{})
	if axes["x"] != "num_genes" {
		t.Errorf("Expected swapped axes, got %v", axes)
	}
}

func TestSelectionConsolidateRestore(t *testing.T) {
	ts := setupTestServer(t)
	ts.loaded(t)

	rec := ts.do(t, http.MethodPost, "/api/consolidate", map[string]string{"name": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for empty selection, got %d", rec.Code)
	}

	sel := decode(t, ts.do(t, http.MethodPost, "/api/selection/click", map[string]float64{"x": 0.91, "y": 2}))
	if sel["count"].(float64) != 2 {
		t.Fatalf("Expected shared click to select 2, got %v", sel["count"])
	}

	rec = ts.do(t, http.MethodDelete, "/api/selection/s1%7Cfront_b", nil)
	if got := decode(t, rec)["count"].(float64); got != 1 {
		t.Errorf("Expected 1 after deselect, got %v", got)
	}

	rec = ts.do(t, http.MethodPost, "/api/consolidate", map[string]string{"name": "Picked"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	report := decode(t, rec)
	if report["front_name"] != "Picked" || report["solutions"].(float64) != 1 {
		t.Errorf("Unexpected consolidation report: %v", report)
	}

	state := decode(t, ts.do(t, http.MethodGet, "/api/state", nil))
	if state["fronts"].(float64) != 1 || !state["can_restore"].(bool) {
		t.Errorf("Unexpected state after consolidation: %v", state)
	}
	if got := state["restore_fronts"].(float64); got != 2 {
		t.Errorf("Expected restore to bring back 2 fronts, got %v", got)
	}

	if rec := ts.do(t, http.MethodPost, "/api/restore", nil); rec.Code != http.StatusOK {
		t.Fatalf("Expected restore 200, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, "/api/restore", nil); rec.Code != http.StatusConflict {
		t.Errorf("Expected second restore 409, got %d", rec.Code)
	}
	state = decode(t, ts.do(t, http.MethodGet, "/api/state", nil))
	if state["fronts"].(float64) != 2 {
		t.Errorf("Expected 2 fronts after restore, got %v", state["fronts"])
	}
}

func TestFrontUpdateAndDelete(t *testing.T) {
	ts := setupTestServer(t)
	ts.loaded(t)

	fronts := decode(t, ts.do(t, http.MethodGet, "/api/fronts", nil))["fronts"].([]interface{})
	id := fronts[1].(map[string]interface{})["id"].(string)

	rec := ts.do(t, http.MethodPatch, "/api/fronts/"+id, map[string]interface{}{"name": "Beta", "visible": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode(t, rec)["name"]; got != "Beta" {
		t.Errorf("Expected renamed front, got %v", got)
	}

	if rec := ts.do(t, http.MethodDelete, "/api/fronts/"+id, nil); rec.Code != http.StatusOK {
		t.Errorf("Expected delete 200, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodDelete, "/api/fronts/"+id, nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected second delete 404, got %d", rec.Code)
	}
}

func TestStageSelectionWithHiddenFront(t *testing.T) {
	ts := setupTestServer(t)
	ts.loaded(t)

	sel := decode(t, ts.do(t, http.MethodPost, "/api/selection/click", map[string]float64{"x": 0.91, "y": 2}))
	if sel["count"].(float64) != 2 {
		t.Fatalf("Expected shared click to select 2, got %v", sel["count"])
	}

	fronts := decode(t, ts.do(t, http.MethodGet, "/api/fronts", nil))["fronts"].([]interface{})
	id := fronts[1].(map[string]interface{})["id"].(string)
	if rec := ts.do(t, http.MethodPatch, "/api/fronts/"+id, map[string]interface{}{"visible": false}); rec.Code != http.StatusOK {
		t.Fatalf("Expected hide 200, got %d", rec.Code)
	}

	rec := ts.do(t, http.MethodPost, "/api/panel/stage", map[string]string{"origin": "pareto", "kind": "solution_set"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected stage 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if name := decode(t, rec)["default_name"]; name != "Solution Set (2 solutions)" {
		t.Errorf("Expected both selected solutions staged, got %v", name)
	}

	rec = ts.do(t, http.MethodPost, "/api/panel/stage", map[string]string{
		"origin": "pareto", "kind": "solution", "unique_id": "s1|front_b",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected stage of hidden solution 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = ts.do(t, http.MethodPost, "/api/panel/stage", map[string]string{
		"origin": "pareto", "kind": "solution", "unique_id": "s9|front_b",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown solution, got %d", rec.Code)
	}
}

func TestPlotPNG(t *testing.T) {
	ts := setupTestServer(t)
	ts.loaded(t)

	for i := 0; i < 2; i++ {
		rec := ts.do(t, http.MethodGet, "/api/plot.png?width=500&height=300", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("Expected Content-Type image/png, got %s", ct)
		}
		if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
			t.Error("Expected PNG magic bytes")
		}
	}

	if rec := ts.do(t, http.MethodGet, "/api/plot.png?width=abc", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for bad width, got %d", rec.Code)
	}

	m := ts.do(t, http.MethodGet, "/metrics", nil).Body.String()
	if !strings.Contains(m, `biopareto_plot_renders_total{cache="hit",kind="pareto"} 1`) {
		t.Errorf("Expected one cached plot render in metrics, got:\n%s", m)
	}
}

func TestFrequencyEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	ts.loaded(t)

	resp := decode(t, ts.do(t, http.MethodGet, "/api/genes/frequency", nil))
	if resp["total_solutions"].(float64) != 5 {
		t.Errorf("Expected 5 solutions, got %v", resp["total_solutions"])
	}
	rec := ts.do(t, http.MethodGet, "/api/genes/frequency.png", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPanelStageConfirmAndOverlap(t *testing.T) {
	ts := setupTestServer(t)
	ts.loaded(t)

	rec := ts.do(t, http.MethodPost, "/api/panel/confirm", map[string]string{"origin": "pareto"})
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 with nothing staged, got %d", rec.Code)
	}
	rec = ts.do(t, http.MethodPost, "/api/panel/stage", map[string]string{"origin": "nowhere", "kind": "solution"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown origin, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/api/panel/stage", map[string]string{
		"origin": "pareto", "kind": "solution", "unique_id": "s3|front_a",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected stage 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if draft := decode(t, rec); draft["default_name"] != "s3 (from front_a)" {
		t.Errorf("Unexpected draft: %v", draft)
	}
	rec = ts.do(t, http.MethodPost, "/api/panel/confirm", map[string]string{"origin": "pareto"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected confirm 201, got %d: %s", rec.Code, rec.Body.String())
	}

	ts.do(t, http.MethodPost, "/api/panel/stage", map[string]interface{}{
		"origin": "genes", "kind": "gene_set", "name": "Mine", "genes": []string{"TP53", "KRAS"},
	})
	if rec := ts.do(t, http.MethodPost, "/api/panel/confirm", map[string]string{"origin": "genes"}); rec.Code != http.StatusCreated {
		t.Fatalf("Expected confirm 201, got %d", rec.Code)
	}

	resp := decode(t, ts.do(t, http.MethodPost, "/api/overlap", map[string]interface{}{"indices": []int{0, 1}}))
	if resp["mode"] != "venn" {
		t.Errorf("Expected venn mode, got %v", resp["mode"])
	}
	if unique := resp["unique_genes"].([]interface{}); len(unique) != 4 {
		t.Errorf("Expected 4 unique genes, got %v", unique)
	}

	rec = ts.do(t, http.MethodPost, "/api/overlap/promote", map[string]interface{}{"indices": []int{0, 1}, "union": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected promote 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if kind := decode(t, rec)["kind"]; kind != "combined_gene_group" {
		t.Errorf("Expected combined_gene_group draft, got %v", kind)
	}

	if rec := ts.do(t, http.MethodPost, "/api/overlap", map[string]interface{}{"indices": []int{9}}); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for bad index, got %d", rec.Code)
	}

	if rec := ts.do(t, http.MethodDelete, "/api/panel/0", nil); rec.Code != http.StatusOK {
		t.Errorf("Expected remove 200, got %d", rec.Code)
	}
	if got := decode(t, ts.do(t, http.MethodGet, "/api/panel", nil))["total"].(float64); got != 1 {
		t.Errorf("Expected 1 item left, got %v", got)
	}
}

func TestExportEndpoints(t *testing.T) {
	ts := setupTestServer(t)

	if rec := ts.do(t, http.MethodGet, "/api/export/solutions.csv", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 with no data, got %d", rec.Code)
	}

	ts.loaded(t)
	rec := ts.do(t, http.MethodGet, "/api/export/genes.txt", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if got := rec.Body.String(); got != "BRCA1\nEGFR\nKRAS\nMYC\nPTEN\nTP53" {
		t.Errorf("Unexpected gene list %q", got)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "unique_genes.txt") {
		t.Errorf("Unexpected Content-Disposition %q", cd)
	}

	rec = ts.do(t, http.MethodGet, "/api/export/workbook.xlsx", nil)
	if rec.Code != http.StatusOK || rec.Body.Len() == 0 {
		t.Errorf("Expected workbook, got %d", rec.Code)
	}
	rec = ts.do(t, http.MethodGet, "/api/export/report.txt", nil)
	if !strings.Contains(rec.Body.String(), "BIO PARETO ANALYZER REPORT") {
		t.Errorf("Unexpected report body %q", rec.Body.String())
	}
}

func TestEnrichmentNotConfigured(t *testing.T) {
	ts := setupTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/enrichment/jobs", map[string]interface{}{"genes": []string{"TP53"}})
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("Expected 501, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/enrichment/organisms", nil); rec.Code != http.StatusNotImplemented {
		t.Errorf("Expected 501, got %d", rec.Code)
	}
}

func TestClearAll(t *testing.T) {
	ts := setupTestServer(t)
	ts.loaded(t)
	if rec := ts.do(t, http.MethodDelete, "/api/fronts", nil); rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	state := decode(t, ts.do(t, http.MethodGet, "/api/state", nil))
	if state["fronts"].(float64) != 0 {
		t.Errorf("Expected no fronts, got %v", state["fronts"])
	}
	resp := decode(t, ts.do(t, http.MethodGet, "/api/points", nil))
	if len(resp["groups"].([]interface{})) != 0 {
		t.Error("Expected no point groups after clear")
	}
}
