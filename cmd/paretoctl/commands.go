package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/biopareto/server/internal/export"
	"github.com/biopareto/server/internal/geneset"
	"github.com/biopareto/server/internal/pareto"
)

// loadFronts reads every path into one document. Files that fail are
// reported; the error is non-nil only when nothing loaded.
func loadFronts(paths []string, stderr io.Writer) (*pareto.Document, pareto.LoadReport, error) {
	uploads := make([]pareto.Upload, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, pareto.LoadReport{}, fmt.Errorf("failed to read %s: %w", p, err)
		}
		uploads = append(uploads, pareto.Upload{Filename: filepath.Base(p), Data: data})
	}
	doc, report := pareto.New().Load(uploads)
	for _, f := range report.Failed {
		fmt.Fprintf(stderr, "rejected %s: %v\n", f.Filename, f.Err)
	}
	if len(report.Loaded) == 0 {
		return nil, report, errors.New("no front file could be loaded")
	}
	return doc, report, nil
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [files...]",
		Short: "Check that front files normalize",
		Long: `Normalize each file the way an upload would and print a summary.

Example: paretoctl validate run1.json run2.json.gz`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, report, err := loadFronts(args, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FRONT\tSOLUTIONS\tGENES\tOBJECTIVES")
			for _, f := range doc.Fronts() {
				s := pareto.Summarize(f)
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", s.Name, s.Solutions, s.UniqueGenes, strings.Join(f.Objectives, ", "))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.Message())
			if len(report.Failed) > 0 {
				return fmt.Errorf("%d of %d file(s) rejected", len(report.Failed), len(args))
			}
			return nil
		},
	}
}

func newFrequencyCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "frequency [files...]",
		Short: "Print gene selection frequencies across fronts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, _, err := loadFronts(args, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			freq := geneset.FrequencyAcross(doc.Fronts())
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(freq)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "GENE\tSOLUTIONS\tPERCENT")
			for _, g := range freq.Genes {
				fmt.Fprintf(tw, "%s\t%d\t%.1f\n", g.Gene, g.Count, g.Percent)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full analysis as JSON")

	return cmd
}

// readSource turns a file into an overlap source. Front files contribute the
// union of their genes; anything else is read as a gene list separated by
// newlines or commas.
func readSource(path string) (geneset.Source, error) {
	name := pareto.FrontName(filepath.Base(path))
	data, err := os.ReadFile(path)
	if err != nil {
		return geneset.Source{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if isFrontFile(path) {
		doc, report := pareto.New().Load([]pareto.Upload{{Filename: filepath.Base(path), Data: data}})
		if len(report.Failed) > 0 {
			return geneset.Source{}, report.Failed[0].Err
		}
		genes, err := export.UniqueGenes(doc)
		if err != nil {
			return geneset.Source{}, err
		}
		return geneset.Source{Name: name, Genes: genes}, nil
	}

	var genes []string
	seen := make(map[string]bool)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		for _, g := range strings.Split(sc.Text(), ",") {
			g = strings.TrimSpace(g)
			if g != "" && !seen[g] {
				seen[g] = true
				genes = append(genes, g)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return geneset.Source{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return geneset.Source{Name: name, Genes: genes}, nil
}

func isFrontFile(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range []string{".json", ".json.gz", ".json.zst", ".json.zstd"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func newOverlapCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "overlap [files...]",
		Short: "Decompose the overlap of gene lists or fronts",
		Long: `Compute the intersection regions of two or more gene sources.

Two or three sources give Venn regions, four or more give membership
signatures. Front files (.json, .json.gz, .json.zst) contribute the union of
their genes; other files are read as gene lists.

Example: paretoctl overlap run1.json run2.json markers.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources := make([]geneset.Source, 0, len(args))
			names := make([]string, 0, len(args))
			for _, p := range args {
				src, err := readSource(p)
				if err != nil {
					return err
				}
				sources = append(sources, src)
				names = append(names, src.Name)
			}
			for i, n := range geneset.UniqueNames(names) {
				sources[i].Name = n
			}

			a := geneset.Analyze(sources)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(a)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Mode: %s | Sources: %d | Unique genes: %d | Total instances: %d\n",
				a.Mode, len(a.Sources), len(a.UniqueGenes), a.TotalInstances)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "REGION\tCOUNT\tGENES")
			for _, r := range a.Records {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", r.Name, r.Count, strings.Join(r.Genes, ", "))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full analysis as JSON")

	return cmd
}

func newExportCmd() *cobra.Command {
	var format string
	var outPath string

	cmd := &cobra.Command{
		Use:   "export [files...]",
		Short: "Export loaded fronts as CSV, JSON, gene lists, XLSX or a text report",
		Long: `Load the given fronts and write one export.

Formats: csv, json, genes-csv, genes-txt, xlsx, report

Example: paretoctl export run1.json run2.json --format xlsx --out analysis.xlsx`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, _, err := loadFronts(args, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			switch format {
			case "csv":
				err = export.WriteSolutionsCSV(&buf, doc)
			case "json":
				err = export.WriteSolutionsJSON(&buf, doc)
			case "genes-csv":
				err = export.WriteGenesCSV(&buf, doc)
			case "genes-txt":
				err = export.WriteGenesTXT(&buf, doc)
			case "xlsx":
				err = export.WriteWorkbook(&buf, export.Workbook{Doc: doc})
			case "report":
				err = export.WriteReport(&buf, doc, nil, time.Now())
			default:
				return fmt.Errorf("unknown format %q", format)
			}
			if err != nil {
				return err
			}

			if outPath == "" || outPath == "-" {
				_, err = cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outPath, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", outPath, buf.Len())
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "csv", "Export format")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout)")

	return cmd
}
