package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/biopareto/server/internal/cache"
	"github.com/biopareto/server/internal/enrich"
	"github.com/biopareto/server/internal/enrichstore"
	"github.com/biopareto/server/internal/panel"
)

// organismsHandler lists the organisms of both providers. Fetched catalogs
// are cached for the life of the process.
func organismsHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reg.Enrich == nil {
			http.Error(w, "enrichment not configured", http.StatusNotImplemented)
			return
		}
		key := cache.QueryKey("organisms", 0)
		if reg.Cache != nil {
			if data, ok := reg.Cache.GetQuery(key); ok {
				w.Header().Set("Content-Type", "application/json")
				w.Write(data)
				return
			}
		}
		cat := reg.Enrich.Organisms(r.Context())
		data, err := json.Marshal(map[string]interface{}{
			"gprofiler": cat.GProfiler,
			"reactome":  cat.Reactome,
			"default":   reg.DefaultOrganism(),
		})
		if err != nil {
			http.Error(w, "failed to encode organisms: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if reg.Cache != nil {
			reg.Cache.SetQuery(key, data)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}
}

type enrichJobSubmitRequest struct {
	Provider enrich.Provider `json:"provider"`
	Organism string          `json:"organism"`
	Genes    []string        `json:"genes"`
	Sources  []string        `json:"sources"`
	Items    []int           `json:"items"`
}

// enrichJobSubmitHandler queues an enrichment run over an explicit gene list
// or the union of the genes of the named panel items.
func enrichJobSubmitHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jm := reg.Jobs
		if jm == nil {
			http.Error(w, "job manager not configured", http.StatusNotImplemented)
			return
		}

		var req enrichJobSubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}

		if req.Provider == "" {
			req.Provider = enrich.ProviderGProfiler
		}
		if !req.Provider.Valid() {
			http.Error(w, fmt.Sprintf("unknown provider %q", req.Provider), http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Organism) == "" {
			req.Organism = reg.DefaultOrganism()
		}

		genes := req.Genes
		var names []string
		if len(genes) == 0 && len(req.Items) > 0 {
			if reg.Panel == nil {
				http.Error(w, "interest panel not configured", http.StatusNotImplemented)
				return
			}
			for _, idx := range req.Items {
				it, err := reg.Panel.Get(idx)
				if err != nil {
					writeError(w, err, panelStatus(err))
					return
				}
				genes = append(genes, panel.Genes(it)...)
				names = append(names, it.Name)
			}
		}
		genes = enrich.CleanGenes(genes)
		if len(genes) == 0 {
			http.Error(w, "genes or items is required (at least one gene)", http.StatusBadRequest)
			return
		}

		job, err := jm.Submit(enrichstore.JobParams{
			Provider:  req.Provider,
			Organism:  req.Organism,
			Genes:     genes,
			Sources:   req.Sources,
			Items:     req.Items,
			ItemNames: names,
		})
		if err != nil {
			http.Error(w, "failed to submit job: "+err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"job_id": job.ID,
			"status": job.Status,
			"genes":  len(genes),
		})
	}
}

func enrichJobListHandler(jm *JobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if jm == nil {
			http.Error(w, "job manager not configured", http.StatusNotImplemented)
			return
		}
		jobs, err := jm.List()
		if err != nil {
			http.Error(w, "failed to list jobs: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if jobs == nil {
			jobs = []*enrichstore.Job{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs, "total": len(jobs)})
	}
}

func enrichJobStatusHandler(jm *JobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if jm == nil {
			http.Error(w, "job manager not configured", http.StatusNotImplemented)
			return
		}

		jobID := chi.URLParam(r, "job_id")
		job := jm.Get(jobID)
		if job == nil {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"job_id":      job.ID,
			"provider":    job.Provider,
			"status":      job.Status,
			"created_at":  job.CreatedAt,
			"started_at":  job.StartedAt,
			"finished_at": job.FinishedAt,
			"term_count":  job.TermCount,
			"empty":       job.Empty,
			"error":       job.Error,
		})
	}
}

func enrichJobResultHandler(jm *JobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if jm == nil {
			http.Error(w, "job manager not configured", http.StatusNotImplemented)
			return
		}

		jobID := chi.URLParam(r, "job_id")
		job := jm.Get(jobID)
		if job == nil {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		if job.Status != enrichstore.JobStatusCompleted {
			http.Error(w, "job not completed (status: "+string(job.Status)+")", http.StatusBadRequest)
			return
		}

		// Parse pagination, order and threshold params
		offset := 0
		limit := 100
		threshold := enrich.DefaultThreshold
		orderBy := r.URL.Query().Get("order_by")
		if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
			if v, err := strconv.Atoi(offsetStr); err == nil && v >= 0 {
				offset = v
			}
		}
		if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
			if v, err := strconv.Atoi(limitStr); err == nil && v > 0 {
				limit = v
				if limit > 1000 {
					limit = 1000
				}
			}
		}
		if tStr := r.URL.Query().Get("threshold"); tStr != "" {
			v, err := strconv.ParseFloat(tStr, 64)
			if err != nil || v <= 0 || v > 1 {
				http.Error(w, "threshold must be in (0, 1]", http.StatusBadRequest)
				return
			}
			threshold = v
		}

		res, err := jm.Store().GetResult(jobID)
		if err != nil || res == nil {
			http.Error(w, "failed to load result", http.StatusInternalServerError)
			return
		}
		terms, total, err := jm.Store().QueryTerms(jobID, orderBy, threshold, offset, limit)
		if err != nil {
			http.Error(w, "failed to query results: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if terms == nil {
			terms = []enrich.Term{}
		}

		resp := map[string]interface{}{
			"params":                   job.Params,
			"provider":                 res.Provider,
			"organism":                 res.Organism,
			"organism_used":            res.OrganismUsed,
			"token":                    res.Token,
			"gene_list_validated":      res.Validated,
			"gene_list_unrecognized":   res.Unrecognized,
			"gene_list_original_count": res.OriginalCount,
			"threshold":                threshold,
			"total":                    total,
			"offset":                   offset,
			"limit":                    limit,
			"order_by":                 orderBy,
			"items":                    terms,
		}
		if job.Empty {
			resp["message"] = "No significant terms found."
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func enrichJobDeleteHandler(jm *JobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if jm == nil {
			http.Error(w, "job manager not configured", http.StatusNotImplemented)
			return
		}

		jobID := chi.URLParam(r, "job_id")
		if jm.Get(jobID) == nil {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		if err := jm.Delete(jobID); err != nil {
			http.Error(w, "failed to delete job: "+err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"job_id":  jobID,
			"deleted": true,
		})
	}
}
