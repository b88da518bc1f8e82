package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/biopareto/server/internal/geneset"
	"github.com/biopareto/server/internal/panel"
	"github.com/biopareto/server/internal/pareto"
	"github.com/biopareto/server/internal/session"
)

func panelStatus(err error) int {
	switch {
	case errors.Is(err, panel.ErrNothingStaged):
		return http.StatusConflict
	case errors.Is(err, panel.ErrIndex):
		return http.StatusNotFound
	case errors.Is(err, panel.ErrEmptyDraft), errors.Is(err, pareto.ErrEmptySelection):
		return http.StatusBadRequest
	}
	return statusFor(err)
}

func requirePanel(reg *Registry, w http.ResponseWriter) bool {
	if reg.Panel == nil {
		http.Error(w, "interest panel not configured", http.StatusNotImplemented)
		return false
	}
	return true
}

func panelUpdated(reg *Registry) {
	if reg.Metrics != nil {
		reg.Metrics.PanelItems(reg.Panel.Len())
	}
}

func draftResponse(origin panel.Origin, d panel.Draft) map[string]interface{} {
	return map[string]interface{}{
		"origin":          origin,
		"kind":            d.Data.Kind(),
		"data":            d.Data,
		"default_name":    d.DefaultName,
		"default_comment": d.DefaultComment,
	}
}

func panelHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePanel(reg, w) {
			return
		}
		snap := reg.Panel.Export()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"items":      snap.Items,
			"selections": snap.Selections,
			"total":      len(snap.Items),
		})
	}
}

func importPanelHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePanel(reg, w) {
			return
		}
		var snap panel.Snapshot
		if err := decodeBody(r, &snap); err != nil {
			http.Error(w, "invalid panel: "+err.Error(), http.StatusBadRequest)
			return
		}
		reg.Panel.Import(snap)
		panelUpdated(reg)
		writeJSON(w, http.StatusOK, map[string]interface{}{"total": reg.Panel.Len()})
	}
}

func clearPanelHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePanel(reg, w) {
			return
		}
		reg.Panel.Clear()
		panelUpdated(reg)
		writeJSON(w, http.StatusOK, map[string]interface{}{"cleared": true})
	}
}

func removePanelItemHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePanel(reg, w) {
			return
		}
		idx, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			http.Error(w, "invalid index", http.StatusBadRequest)
			return
		}
		item, err := reg.Panel.Remove(idx)
		if err != nil {
			writeError(w, err, panelStatus(err))
			return
		}
		panelUpdated(reg)
		writeJSON(w, http.StatusOK, map[string]interface{}{"removed": item, "total": reg.Panel.Len()})
	}
}

type stageRequest struct {
	Origin    panel.Origin `json:"origin"`
	Kind      string       `json:"kind"`
	UniqueID  string       `json:"unique_id"`
	UniqueIDs []string     `json:"unique_ids"`
	Name      string       `json:"name"`
	Genes     []string     `json:"genes"`
	Percent   *float64     `json:"percent"`
	Universal bool         `json:"universal"`
	Gene      string       `json:"gene"`
	Source    string       `json:"source"`
}

// buildDraft turns a stage request into a draft. Solutions are resolved
// against the current coordinate index; gene sets may name a frequency level
// instead of listing genes.
func buildDraft(reg *Registry, req stageRequest) (panel.Draft, error) {
	switch panel.Kind(req.Kind) {
	case panel.KindSolution, panel.KindSolutionSet:
		snap := reg.Session.Snapshot()
		ids := req.UniqueIDs
		if req.UniqueID != "" {
			ids = append([]string{req.UniqueID}, ids...)
		}
		if len(ids) == 0 {
			return panel.SolutionSetDraft(snap.Selection.Entries())
		}
		points := make([]pareto.Point, 0, len(ids))
		for _, id := range ids {
			p, err := resolvePoint(snap, id)
			if err != nil {
				return panel.Draft{}, err
			}
			points = append(points, p)
		}
		return panel.SolutionSetDraft(points)

	case panel.KindGeneSet:
		genes, name, pct := req.Genes, req.Name, req.Percent
		if len(genes) == 0 {
			freq := geneset.FrequencyAcross(reg.Session.Snapshot().Doc.Fronts())
			switch {
			case req.Universal:
				p := 100.0
				genes, pct = freq.Universal, &p
				if name == "" {
					name = "Genes in 100% of solutions"
				}
			case pct != nil:
				genes = freq.Group(*pct)
				if name == "" {
					name = fmt.Sprintf("Genes at %g%% frequency", *pct)
				}
			}
		}
		if name == "" {
			name = fmt.Sprintf("Gene Set (%d genes)", len(genes))
		}
		return panel.GeneSetDraft(name, genes, pct)

	case panel.KindIndividualGene:
		gene := strings.TrimSpace(req.Gene)
		if gene == "" {
			return panel.Draft{}, panel.ErrEmptyDraft
		}
		source := req.Source
		if source == "" {
			source = string(req.Origin)
		}
		return panel.GeneDraft(gene, source), nil
	}
	return panel.Draft{}, fmt.Errorf("unknown kind %q", req.Kind)
}

// resolvePoint projects a solution under the current axes whether or not its
// front is visible.
func resolvePoint(snap session.Snapshot, uniqueID string) (pareto.Point, error) {
	sol, f, ok := snap.Doc.FindSolution(uniqueID)
	if !ok {
		return pareto.Point{}, fmt.Errorf("%w: %s", pareto.ErrFrontNotFound, uniqueID)
	}
	p, ok := pareto.Project(f, sol, snap.Axes)
	if !ok {
		return pareto.Point{}, fmt.Errorf("%w: %s", session.ErrUnknownObjective, uniqueID)
	}
	return p, nil
}

func stageHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePanel(reg, w) {
			return
		}
		var req stageRequest
		if err := decodeBody(r, &req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if !req.Origin.Valid() {
			http.Error(w, fmt.Sprintf("unknown origin %q", req.Origin), http.StatusBadRequest)
			return
		}
		d, err := buildDraft(reg, req)
		if err != nil {
			status := panelStatus(err)
			if status == http.StatusInternalServerError {
				status = http.StatusBadRequest
			}
			writeError(w, err, status)
			return
		}
		reg.Panel.Stage(req.Origin, d)
		writeJSON(w, http.StatusOK, draftResponse(req.Origin, d))
	}
}

func cancelStageHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePanel(reg, w) {
			return
		}
		origin := panel.Origin(chi.URLParam(r, "origin"))
		if !origin.Valid() {
			http.Error(w, fmt.Sprintf("unknown origin %q", origin), http.StatusBadRequest)
			return
		}
		reg.Panel.Cancel(origin)
		writeJSON(w, http.StatusOK, map[string]interface{}{"origin": origin, "cancelled": true})
	}
}

func confirmHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePanel(reg, w) {
			return
		}
		var req struct {
			Origin  panel.Origin `json:"origin"`
			Name    string       `json:"name"`
			Comment string       `json:"comment"`
		}
		if err := decodeBody(r, &req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if !req.Origin.Valid() {
			http.Error(w, fmt.Sprintf("unknown origin %q", req.Origin), http.StatusBadRequest)
			return
		}
		item, err := reg.Panel.Confirm(req.Origin, req.Name, req.Comment)
		if err != nil {
			writeError(w, err, panelStatus(err))
			return
		}
		panelUpdated(reg)
		writeJSON(w, http.StatusCreated, item)
	}
}

func panelSelectionHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePanel(reg, w) {
			return
		}
		name := chi.URLParam(r, "name")
		var req struct {
			Indices []int `json:"indices"`
		}
		if err := decodeBody(r, &req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		kept := reg.Panel.SetSelection(name, req.Indices)
		writeJSON(w, http.StatusOK, map[string]interface{}{"name": name, "indices": kept})
	}
}

type overlapRequest struct {
	Indices   []int  `json:"indices"`
	Selection string `json:"selection"`
	Record    string `json:"record"`
	All       bool   `json:"all"`
	Union     bool   `json:"union"`
}

// overlapItems resolves the panel items named by explicit indices or by a
// stored selection.
func overlapItems(reg *Registry, req overlapRequest) ([]panel.Item, error) {
	if len(req.Indices) == 0 && req.Selection != "" {
		return reg.Panel.Selected(req.Selection), nil
	}
	items := make([]panel.Item, 0, len(req.Indices))
	for _, idx := range req.Indices {
		it, err := reg.Panel.Get(idx)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

func overlapHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePanel(reg, w) {
			return
		}
		var req overlapRequest
		if err := decodeBody(r, &req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		items, err := overlapItems(reg, req)
		if err != nil {
			writeError(w, err, panelStatus(err))
			return
		}
		a := geneset.Analyze(panel.Sources(items))
		if reg.Metrics != nil {
			reg.Metrics.Overlap(string(a.Mode))
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// promoteHandler stages a gene group derived from an overlap analysis under
// the gene_groups origin.
func promoteHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePanel(reg, w) {
			return
		}
		var req overlapRequest
		if err := decodeBody(r, &req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		items, err := overlapItems(reg, req)
		if err != nil {
			writeError(w, err, panelStatus(err))
			return
		}
		a := geneset.Analyze(panel.Sources(items))

		var promo geneset.Promotion
		switch {
		case req.Union:
			promo = geneset.PromoteUnion(a, reg.Session.Now())
		case req.All:
			promo = geneset.PromoteIntersections(a.Records, reg.Session.Now())
		case req.Record != "":
			found := false
			for _, rec := range a.Records {
				if rec.Name == req.Record {
					promo, found = geneset.PromoteRecord(rec), true
					break
				}
			}
			if !found {
				http.Error(w, fmt.Sprintf("no intersection named %q", req.Record), http.StatusNotFound)
				return
			}
		default:
			http.Error(w, "one of record, all or union is required", http.StatusBadRequest)
			return
		}

		d, err := panel.GroupDraft(promo)
		if err != nil {
			writeError(w, err, panelStatus(err))
			return
		}
		reg.Panel.Stage(panel.OriginGeneGroups, d)
		writeJSON(w, http.StatusOK, draftResponse(panel.OriginGeneGroups, d))
	}
}
