package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/biopareto/server/internal/cache"
	"github.com/biopareto/server/internal/geneset"
	"github.com/biopareto/server/internal/pareto"
	"github.com/biopareto/server/internal/render"
	"github.com/biopareto/server/internal/selection"
	"github.com/biopareto/server/internal/session"
)

// RouterConfig contains router configuration.
type RouterConfig struct {
	Registry    *Registry
	CORSOrigins []string
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	reg := cfg.Registry
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if reg.Metrics != nil {
		r.Use(reg.Metrics.Middleware)
	}
	r.Use(middleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if reg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", reg.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", stateHandler(reg))

		r.Route("/fronts", func(r chi.Router) {
			r.Get("/", frontsHandler(reg))
			r.Post("/", uploadHandler(reg))
			r.Delete("/", clearFrontsHandler(reg))
			r.Get("/example", exampleHandler)
			r.Patch("/{front_id}", updateFrontHandler(reg))
			r.Delete("/{front_id}", deleteFrontHandler(reg))
		})

		r.Get("/objectives", objectivesHandler(reg))
		r.Put("/axes", setAxesHandler(reg))
		r.Post("/axes/swap", swapAxesHandler(reg))

		r.Get("/points", pointsHandler(reg))
		r.Get("/plot.png", plotHandler(reg))
		r.Put("/layout", setLayoutHandler(reg))
		r.Delete("/layout", clearLayoutHandler(reg))

		r.Route("/selection", func(r chi.Router) {
			r.Get("/", selectionHandler(reg))
			r.Delete("/", clearSelectionHandler(reg))
			r.Post("/click", clickHandler(reg))
			r.Post("/lasso", lassoHandler(reg))
			r.Delete("/{unique_id}", deselectHandler(reg))
		})

		r.Post("/consolidate", consolidateHandler(reg))
		r.Post("/restore", restoreHandler(reg))

		r.Get("/genes/frequency", frequencyHandler(reg))
		r.Get("/genes/frequency.png", frequencyPlotHandler(reg))

		r.Route("/panel", func(r chi.Router) {
			r.Get("/", panelHandler(reg))
			r.Put("/", importPanelHandler(reg))
			r.Delete("/", clearPanelHandler(reg))
			r.Post("/stage", stageHandler(reg))
			r.Delete("/stage/{origin}", cancelStageHandler(reg))
			r.Post("/confirm", confirmHandler(reg))
			r.Put("/selections/{name}", panelSelectionHandler(reg))
			r.Delete("/{index}", removePanelItemHandler(reg))
		})

		r.Post("/overlap", overlapHandler(reg))
		r.Post("/overlap/promote", promoteHandler(reg))

		r.Route("/enrichment", func(r chi.Router) {
			r.Get("/organisms", organismsHandler(reg))
			r.Route("/jobs", func(r chi.Router) {
				r.Get("/", enrichJobListHandler(reg.Jobs))
				r.Post("/", enrichJobSubmitHandler(reg))
				r.Get("/{job_id}", enrichJobStatusHandler(reg.Jobs))
				r.Get("/{job_id}/result", enrichJobResultHandler(reg.Jobs))
				r.Delete("/{job_id}", enrichJobDeleteHandler(reg.Jobs))
			})
		})

		r.Route("/export", func(r chi.Router) {
			r.Get("/solutions.csv", exportSolutionsCSVHandler(reg))
			r.Get("/solutions.json", exportSolutionsJSONHandler(reg))
			r.Get("/genes.csv", exportGenesCSVHandler(reg))
			r.Get("/genes.txt", exportGenesTXTHandler(reg))
			r.Get("/workbook.xlsx", exportWorkbookHandler(reg))
			r.Get("/report.txt", exportReportHandler(reg))
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError answers a refused domain operation with a JSON error body.
func writeError(w http.ResponseWriter, err error, status int) {
	writeJSON(w, status, map[string]interface{}{"error": err.Error()})
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pareto.ErrFrontNotFound):
		return http.StatusNotFound
	case errors.Is(err, pareto.ErrFrontLocked), errors.Is(err, pareto.ErrHistoryEmpty):
		return http.StatusConflict
	case errors.Is(err, pareto.ErrInvalidName),
		errors.Is(err, pareto.ErrEmptySelection),
		errors.Is(err, session.ErrUnknownObjective):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func selectionResponse(s selection.Set) map[string]interface{} {
	return map[string]interface{}{
		"solutions":  s.Entries(),
		"unique_ids": s.UniqueIDs(),
		"count":      s.Len(),
	}
}

// stateHandler returns the counters and flags the client needs to enable
// its controls.
func stateHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := reg.Session.Snapshot()
		visible := len(snap.Doc.VisibleFronts())
		panelItems := 0
		if reg.Panel != nil {
			panelItems = reg.Panel.Len()
		}
		restoreFronts := 0
		if prev, ok := snap.Doc.History().Peek(); ok {
			restoreFronts = len(prev)
		}
		resp := map[string]interface{}{
			"title":           reg.Title(),
			"version":         snap.Version,
			"fronts":          len(snap.Doc.Fronts()),
			"visible_fronts":  visible,
			"solutions":       snap.Doc.SolutionCount(),
			"main_objectives": snap.Doc.MainObjectives(),
			"axes":            snap.Axes,
			"selection_count": snap.Selection.Len(),
			"can_consolidate": snap.CanConsolidate(),
			"can_restore":     snap.CanRestore(),
			"history_depth":   snap.Doc.History().Len(),
			"restore_fronts":  restoreFronts,
			"panel_items":     panelItems,
			"layout":          snap.Layout,
		}
		if reg.Cache != nil {
			resp["cache"] = reg.Cache.Stats()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func frontsHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := reg.Session.Snapshot()
		fronts := snap.Doc.Fronts()
		summaries := make([]pareto.FrontSummary, 0, len(fronts))
		for _, f := range fronts {
			summaries = append(summaries, pareto.Summarize(f))
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"fronts":          summaries,
			"main_objectives": snap.Doc.MainObjectives(),
			"total":           len(fronts),
		})
	}
}

// uploadHandler accepts multipart "files" parts, or a single raw body named
// by the filename query parameter.
func uploadHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, reg.MaxUploadBytes())

		var uploads []pareto.Upload
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			if err := r.ParseMultipartForm(32 << 20); err != nil {
				http.Error(w, "invalid multipart body: "+err.Error(), http.StatusBadRequest)
				return
			}
			for _, fh := range r.MultipartForm.File["files"] {
				f, err := fh.Open()
				if err != nil {
					http.Error(w, "failed to open "+fh.Filename+": "+err.Error(), http.StatusBadRequest)
					return
				}
				data, err := io.ReadAll(f)
				f.Close()
				if err != nil {
					http.Error(w, "failed to read "+fh.Filename+": "+err.Error(), http.StatusBadRequest)
					return
				}
				uploads = append(uploads, pareto.Upload{Filename: fh.Filename, Data: data})
			}
		} else {
			name := strings.TrimSpace(r.URL.Query().Get("filename"))
			if name == "" {
				http.Error(w, "missing required query param: filename", http.StatusBadRequest)
				return
			}
			data, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, "failed to read body: "+err.Error(), http.StatusBadRequest)
				return
			}
			uploads = append(uploads, pareto.Upload{Filename: name, Data: data})
		}
		if len(uploads) == 0 {
			http.Error(w, "no files uploaded", http.StatusBadRequest)
			return
		}

		report := reg.Session.Upload(uploads)
		if reg.Metrics != nil {
			reg.Metrics.Upload(len(report.Loaded), len(report.Failed))
			reg.Metrics.LoadedSolutions(reg.Session.Snapshot().Doc.SolutionCount())
		}

		failed := make([]map[string]string, 0, len(report.Failed))
		for _, f := range report.Failed {
			failed = append(failed, map[string]string{"filename": f.Filename, "error": f.Err.Error()})
		}
		status := http.StatusOK
		if len(report.Loaded) == 0 {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, map[string]interface{}{
			"loaded":  report.Loaded,
			"failed":  failed,
			"total":   report.Total,
			"message": report.Message(),
		})
	}
}

func clearFrontsHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg.Session.ClearAll()
		if reg.Cache != nil {
			if err := reg.Cache.Reset(); err != nil {
				log.Printf("[API] cache reset failed: %v", err)
			}
		}
		if reg.Metrics != nil {
			reg.Metrics.LoadedSolutions(0)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"cleared": true})
	}
}

func exampleHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="example_pareto_front.json"`)
	io.WriteString(w, pareto.ExampleUpload)
}

type updateFrontRequest struct {
	Name    *string `json:"name"`
	Visible *bool   `json:"visible"`
	Main    *bool   `json:"main"`
}

func updateFrontHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "front_id")
		var req updateFrontRequest
		if err := decodeBody(r, &req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}

		var err error
		if req.Name != nil {
			err = reg.Session.Rename(id, *req.Name)
		}
		if err == nil && req.Visible != nil {
			err = reg.Session.SetVisible(id, *req.Visible)
		}
		if err == nil && req.Main != nil && *req.Main {
			err = reg.Session.SetMain(id)
		}
		if err != nil {
			writeError(w, err, statusFor(err))
			return
		}

		f, ok := reg.Session.Snapshot().Doc.Front(id)
		if !ok {
			http.Error(w, pareto.ErrFrontNotFound.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, pareto.Summarize(f))
	}
}

func deleteFrontHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "front_id")
		if err := reg.Session.Delete(id); err != nil {
			writeError(w, err, statusFor(err))
			return
		}
		if reg.Metrics != nil {
			reg.Metrics.LoadedSolutions(reg.Session.Snapshot().Doc.SolutionCount())
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"front_id": id, "deleted": true})
	}
}

func objectivesHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := reg.Session.Snapshot()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"main_objectives":     snap.Doc.MainObjectives(),
			"explicit_objectives": snap.Doc.ExplicitObjectives(),
			"axes":                snap.Axes,
			"default_axes":        snap.Doc.DefaultAxes(),
		})
	}
}

func setAxesHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var a pareto.Axes
		if err := decodeBody(r, &a); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if !a.Set() {
			http.Error(w, "x and y are required", http.StatusBadRequest)
			return
		}
		if err := reg.Session.SetAxes(a); err != nil {
			writeError(w, err, statusFor(err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"axes": reg.Session.Snapshot().Axes})
	}
}

func swapAxesHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"axes": reg.Session.SwapAxes()})
	}
}

type pointGroup struct {
	X         float64       `json:"x"`
	Y         float64       `json:"y"`
	Fronts    []string      `json:"fronts"`
	Duplicate bool          `json:"duplicate"`
	Shared    bool          `json:"shared"`
	Points    []pointMarker `json:"points"`
}

type pointMarker struct {
	SolutionID string        `json:"id"`
	FrontName  string        `json:"front_name"`
	UniqueID   string        `json:"unique_id"`
	X          pareto.Number `json:"x"`
	Y          pareto.Number `json:"y"`
	Genes      int           `json:"gene_count"`
}

// pointsHandler returns the coincident-point groups of the current axes. The
// encoded body is cached per document version and axes.
func pointsHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, ix := reg.Session.View()
		if ix == nil {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"axes":   snap.Axes,
				"groups": []pointGroup{},
				"total":  0,
			})
			return
		}

		key := cache.QueryKey("points", snap.Version, snap.Axes.X, snap.Axes.Y)
		if reg.Cache != nil {
			if data, ok := reg.Cache.GetQuery(key); ok {
				w.Header().Set("Content-Type", "application/json")
				w.Write(data)
				return
			}
		}

		groups := ix.Groups()
		out := make([]pointGroup, 0, len(groups))
		for _, g := range groups {
			pg := pointGroup{
				X:         g.X,
				Y:         g.Y,
				Fronts:    g.Fronts(),
				Duplicate: g.Duplicate(),
				Shared:    g.Shared(),
				Points:    make([]pointMarker, 0, len(g.Points)),
			}
			for _, p := range g.Points {
				pg.Points = append(pg.Points, pointMarker{
					SolutionID: p.SolutionID,
					FrontName:  p.FrontName,
					UniqueID:   p.UniqueID,
					X:          p.X,
					Y:          p.Y,
					Genes:      len(p.Solution.Genes),
				})
			}
			out = append(out, pg)
		}
		resp := map[string]interface{}{
			"axes":      snap.Axes,
			"precision": ix.Precision(),
			"groups":    out,
			"total":     ix.Len(),
		}
		if minX, maxX, minY, maxY, ok := ix.Bounds(); ok {
			resp["bounds"] = map[string]float64{"min_x": minX, "max_x": maxX, "min_y": minY, "max_y": maxY}
		}

		data, err := json.Marshal(resp)
		if err != nil {
			http.Error(w, "failed to encode points: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if reg.Cache != nil {
			reg.Cache.SetQuery(key, data)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}
}

func parseSize(r *http.Request, reg *Registry) (int, int, error) {
	w, h := reg.Renderer.Size()
	if v := r.URL.Query().Get("width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 4096 {
			return 0, 0, fmt.Errorf("invalid width")
		}
		w = n
	}
	if v := r.URL.Query().Get("height"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 4096 {
			return 0, 0, fmt.Errorf("invalid height")
		}
		h = n
	}
	return w, h, nil
}

func layoutView(colormap string, l *session.Layout) string {
	if l == nil {
		return colormap
	}
	return fmt.Sprintf("%s:%g,%g,%g,%g", colormap, l.XRange[0], l.XRange[1], l.YRange[0], l.YRange[1])
}

// plotHandler renders the Pareto scatter for the current axes, selection
// and zoom.
func plotHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		width, height, err := parseSize(r, reg)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		snap, ix := reg.Session.View()
		ids := snap.Selection.UniqueIDs()
		key := cache.PlotKey(snap.Version, snap.Axes.X, snap.Axes.Y, layoutView(reg.Colormap(), snap.Layout), width, height, ids)

		if reg.Cache != nil {
			if data, ok := reg.Cache.GetPlot(key); ok {
				if reg.Metrics != nil {
					reg.Metrics.Plot("pareto", true)
				}
				writePNG(w, data)
				return
			}
		}

		selected := make(map[string]bool, len(ids))
		for _, id := range ids {
			selected[id] = true
		}
		plot := render.ParetoPlot{
			Fronts:   snap.Doc.Fronts(),
			Index:    ix,
			Selected: selected,
			Width:    width,
			Height:   height,
		}
		if snap.Layout != nil {
			xr, yr := snap.Layout.XRange, snap.Layout.YRange
			plot.XRange, plot.YRange = &xr, &yr
		}
		data, err := reg.Renderer.RenderPareto(plot)
		if err != nil {
			http.Error(w, "failed to render plot: "+err.Error(), http.StatusBadRequest)
			return
		}
		if reg.Cache != nil {
			if err := reg.Cache.SetPlot(key, data); err != nil {
				log.Printf("[API] plot cache set failed: %v", err)
			}
		}
		if reg.Metrics != nil {
			reg.Metrics.Plot("pareto", false)
		}
		writePNG(w, data)
	}
}

func writePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(data)
}

func setLayoutHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var l session.Layout
		if err := decodeBody(r, &l); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		reg.Session.SetLayout(l)
		writeJSON(w, http.StatusOK, map[string]interface{}{"layout": l})
	}
}

func clearLayoutHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg.Session.ClearLayout()
		writeJSON(w, http.StatusOK, map[string]interface{}{"layout": nil})
	}
}

func selectionHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, selectionResponse(reg.Session.Snapshot().Selection))
	}
}

func clickHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c selection.Click
		if err := decodeBody(r, &c); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		s := reg.Session.Click(c)
		if reg.Metrics != nil {
			reg.Metrics.Selection("click")
		}
		writeJSON(w, http.StatusOK, selectionResponse(s))
	}
}

func lassoHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var l selection.Lasso
		if err := decodeBody(r, &l); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		s := reg.Session.Lasso(l)
		if reg.Metrics != nil {
			reg.Metrics.Selection("lasso")
		}
		writeJSON(w, http.StatusOK, selectionResponse(s))
	}
}

func deselectHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := url.PathUnescape(chi.URLParam(r, "unique_id"))
		if err != nil {
			http.Error(w, "invalid unique_id", http.StatusBadRequest)
			return
		}
		s := reg.Session.Deselect(uid)
		if reg.Metrics != nil {
			reg.Metrics.Selection("remove")
		}
		writeJSON(w, http.StatusOK, selectionResponse(s))
	}
}

func clearSelectionHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg.Session.ClearSelection()
		if reg.Metrics != nil {
			reg.Metrics.Selection("clear")
		}
		writeJSON(w, http.StatusOK, selectionResponse(selection.Set{}))
	}
}

func consolidateHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		report, err := reg.Session.Consolidate(strings.TrimSpace(req.Name))
		if err != nil {
			writeError(w, err, statusFor(err))
			return
		}
		if reg.Metrics != nil {
			reg.Metrics.Consolidation("consolidate")
			reg.Metrics.LoadedSolutions(reg.Session.Snapshot().Doc.SolutionCount())
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func restoreHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := reg.Session.Restore(); err != nil {
			writeError(w, err, statusFor(err))
			return
		}
		snap := reg.Session.Snapshot()
		if reg.Metrics != nil {
			reg.Metrics.Consolidation("restore")
			reg.Metrics.LoadedSolutions(snap.Doc.SolutionCount())
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"fronts":        len(snap.Doc.Fronts()),
			"history_depth": snap.Doc.History().Len(),
			"can_restore":   snap.CanRestore(),
		})
	}
}

func frequencies(reg *Registry) (geneset.Frequencies, uint64) {
	snap := reg.Session.Snapshot()
	return geneset.FrequencyAcross(snap.Doc.Fronts()), snap.Version
}

func frequencyHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		freq, _ := frequencies(reg)
		writeJSON(w, http.StatusOK, freq)
	}
}

func frequencyPlotHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		width, height, err := parseSize(r, reg)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		freq, version := frequencies(reg)
		key := cache.PlotKey(version, "genes", "frequency", "bars", width, height, nil)
		if reg.Cache != nil {
			if data, ok := reg.Cache.GetPlot(key); ok {
				if reg.Metrics != nil {
					reg.Metrics.Plot("frequency", true)
				}
				writePNG(w, data)
				return
			}
		}
		data, err := reg.Renderer.RenderFrequency(freq, width, height)
		if err != nil {
			http.Error(w, "failed to render chart: "+err.Error(), http.StatusBadRequest)
			return
		}
		if reg.Cache != nil {
			if err := reg.Cache.SetPlot(key, data); err != nil {
				log.Printf("[API] plot cache set failed: %v", err)
			}
		}
		if reg.Metrics != nil {
			reg.Metrics.Plot("frequency", false)
		}
		writePNG(w, data)
	}
}
