package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/biopareto/server/internal/enrich"
	"github.com/biopareto/server/internal/export"
	"github.com/biopareto/server/internal/pareto"
)

// exportHandler buffers the download so that an empty document can still be
// answered with 404.
func exportHandler(reg *Registry, filename, contentType string, write func(io.Writer, *pareto.Document, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc := reg.Session.Snapshot().Doc
		var buf bytes.Buffer
		if err := write(&buf, doc, r); err != nil {
			if errors.Is(err, export.ErrNoData) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			http.Error(w, "export failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		w.Write(buf.Bytes())
	}
}

// enrichmentFor loads the completed result named by the job_id query
// parameter, if any.
func enrichmentFor(reg *Registry, r *http.Request) (*enrich.Result, error) {
	id := r.URL.Query().Get("job_id")
	if id == "" || reg.Jobs == nil {
		return nil, nil
	}
	return reg.Jobs.Store().GetResult(id)
}

func exportSolutionsCSVHandler(reg *Registry) http.HandlerFunc {
	return exportHandler(reg, "pareto_solutions.csv", "text/csv", func(w io.Writer, doc *pareto.Document, _ *http.Request) error {
		return export.WriteSolutionsCSV(w, doc)
	})
}

func exportSolutionsJSONHandler(reg *Registry) http.HandlerFunc {
	return exportHandler(reg, "pareto_solutions.json", "application/json", func(w io.Writer, doc *pareto.Document, _ *http.Request) error {
		return export.WriteSolutionsJSON(w, doc)
	})
}

func exportGenesCSVHandler(reg *Registry) http.HandlerFunc {
	return exportHandler(reg, "unique_genes.csv", "text/csv", func(w io.Writer, doc *pareto.Document, _ *http.Request) error {
		return export.WriteGenesCSV(w, doc)
	})
}

func exportGenesTXTHandler(reg *Registry) http.HandlerFunc {
	return exportHandler(reg, "unique_genes.txt", "text/plain; charset=utf-8", func(w io.Writer, doc *pareto.Document, _ *http.Request) error {
		return export.WriteGenesTXT(w, doc)
	})
}

func exportWorkbookHandler(reg *Registry) http.HandlerFunc {
	const xlsx = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	return exportHandler(reg, "bio_pareto_analysis.xlsx", xlsx, func(w io.Writer, doc *pareto.Document, r *http.Request) error {
		res, err := enrichmentFor(reg, r)
		if err != nil {
			return err
		}
		wb := export.Workbook{Doc: doc, Enrichment: res, Threshold: export.ReportThreshold}
		if reg.Panel != nil {
			wb.Panel = reg.Panel.Items()
		}
		return export.WriteWorkbook(w, wb)
	})
}

func exportReportHandler(reg *Registry) http.HandlerFunc {
	return exportHandler(reg, "bio_pareto_report.txt", "text/plain; charset=utf-8", func(w io.Writer, doc *pareto.Document, r *http.Request) error {
		res, err := enrichmentFor(reg, r)
		if err != nil {
			return err
		}
		return export.WriteReport(w, doc, res, reg.Session.Now())
	})
}
