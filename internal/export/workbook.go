package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/biopareto/server/internal/enrich"
	"github.com/biopareto/server/internal/geneset"
	"github.com/biopareto/server/internal/panel"
	"github.com/biopareto/server/internal/pareto"
)

// Sheet names of the workbook.
const (
	SheetSolutions  = "Solutions"
	SheetFrequency  = "Gene Frequency"
	SheetPanel      = "Interest Panel"
	SheetEnrichment = "Enrichment"
)

// Workbook is everything that goes into the XLSX download.
type Workbook struct {
	Doc        *pareto.Document
	Panel      []panel.Item
	Enrichment *enrich.Result
	// Threshold filters the enrichment sheet; zero keeps every term.
	Threshold float64
}

// WriteWorkbook writes the XLSX workbook. The solutions and frequency
// sheets are always present; the panel and enrichment sheets only when there
// is something to put in them.
func WriteWorkbook(w io.Writer, wb Workbook) error {
	t, err := SolutionsTable(wb.Doc)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSolutions); err != nil {
		return err
	}
	if err := writeRows(f, SheetSolutions, toCells(t.Headers), solutionCells(t)); err != nil {
		return err
	}

	freq := geneset.FrequencyAcross(wb.Doc.Fronts())
	var freqRows [][]interface{}
	for _, g := range freq.Genes {
		freqRows = append(freqRows, []interface{}{g.Gene, g.Count, g.Percent})
	}
	if err := addSheet(f, SheetFrequency, []interface{}{"Gene", "Solutions", "Percent"}, freqRows); err != nil {
		return err
	}

	if len(wb.Panel) > 0 {
		var rows [][]interface{}
		for _, it := range wb.Panel {
			genes := panel.Genes(it)
			rows = append(rows, []interface{}{
				it.Name, string(it.Data.Kind()), string(it.ToolOrigin), it.Comment,
				len(genes), strings.Join(genes, ", "), it.Timestamp,
			})
		}
		header := []interface{}{"Name", "Type", "Origin", "Comment", "Gene Count", "Genes", "Added"}
		if err := addSheet(f, SheetPanel, header, rows); err != nil {
			return err
		}
	}

	if wb.Enrichment != nil && !wb.Enrichment.Empty() {
		terms := wb.Enrichment.Terms
		if wb.Threshold > 0 {
			terms = wb.Enrichment.Filter(wb.Threshold)
		}
		var rows [][]interface{}
		for _, term := range terms {
			fdr := ""
			if term.FDR != nil {
				fdr = strconv.FormatFloat(*term.FDR, 'g', 4, 64)
			}
			rows = append(rows, []interface{}{
				term.Source, term.TermName, term.Description, term.PValue, fdr,
				term.IntersectionSize, term.TermSize, strings.Join(term.IntersectionGenes, ", "),
			})
		}
		header := []interface{}{"Source", "Term", "Description", "P-Value", "FDR", "Genes Matched", "Term Size", "Genes"}
		if err := addSheet(f, SheetEnrichment, header, rows); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

func addSheet(f *excelize.File, name string, header []interface{}, rows [][]interface{}) error {
	if _, err := f.NewSheet(name); err != nil {
		return err
	}
	return writeRows(f, name, header, rows)
}

func writeRows(f *excelize.File, sheet string, header []interface{}, rows [][]interface{}) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func toCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// solutionCells converts the solutions table into cells, writing the value
// columns as numbers where they parse.
func solutionCells(t Table) [][]interface{} {
	rows := make([][]interface{}, len(t.Rows))
	for i, row := range t.Rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
			if j < 3 || v == "" {
				continue
			}
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				cells[j] = n
			}
		}
		rows[i] = cells
	}
	return rows
}
