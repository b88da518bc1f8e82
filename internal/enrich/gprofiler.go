package enrich

import (
	"context"
	"encoding/json"
	"log"
	"sort"

	"github.com/tidwall/gjson"
)

type gostRequest struct {
	Organism   string   `json:"organism"`
	Query      []string `json:"query"`
	Sources    []string `json:"sources"`
	AllResults bool     `json:"all_results"`
}

// GProfiler runs a g:GOSt profile. Genes the service cannot map are reported
// as unrecognized, and each term's intersections are translated back to the
// submitted identifiers.
func (c *Client) GProfiler(ctx context.Context, genes []string, organism string, sources []string) (Result, error) {
	genes = CleanGenes(genes)
	if organism == "" {
		organism = "hsapiens"
	}
	res := Result{
		Provider:      ProviderGProfiler,
		Organism:      organism,
		Terms:         []Term{},
		Validated:     []string{},
		Unrecognized:  []string{},
		OriginalCount: len(genes),
	}
	if len(genes) == 0 {
		return res, nil
	}
	if len(sources) == 0 {
		sources = DefaultSources
	}

	body, err := json.Marshal(gostRequest{Organism: organism, Query: genes, Sources: sources, AllResults: true})
	if err != nil {
		return res, err
	}
	log.Printf("[Enrich] g:Profiler request: %d genes, organism %s", len(genes), organism)
	data, err := c.post(ctx, ProviderGProfiler, c.opts.GProfilerURL, "application/json", body)
	if err != nil {
		return res, err
	}
	return parseGOSt(data, genes, res), nil
}

func parseGOSt(data []byte, genes []string, res Result) Result {
	doc := gjson.ParseBytes(data)

	var query gjson.Result
	doc.Get("meta.genes_metadata.query").ForEach(func(_, v gjson.Result) bool {
		query = v
		return false
	})

	var ensgs []string
	ensgToInput := make(map[string]string)
	if query.Exists() {
		validated := make(map[string]bool)
		query.Get("mapping").ForEach(func(k, v gjson.Result) bool {
			validated[k.String()] = true
			for _, e := range v.Array() {
				ensgToInput[e.String()] = k.String()
			}
			return true
		})
		for _, e := range query.Get("ensgs").Array() {
			ensgs = append(ensgs, e.String())
		}
		for g := range validated {
			res.Validated = append(res.Validated, g)
		}
		for _, g := range genes {
			if !validated[g] {
				res.Unrecognized = append(res.Unrecognized, g)
			}
		}
	} else {
		log.Printf("[Enrich] g:Profiler response has no query metadata; treating all genes as valid")
		res.Validated = append(res.Validated, genes...)
	}
	sort.Strings(res.Validated)
	sort.Strings(res.Unrecognized)

	doc.Get("result").ForEach(func(_, t gjson.Result) bool {
		hit := make(map[string]bool)
		for i, flag := range t.Get("intersections").Array() {
			if i >= len(ensgs) || !truthy(flag) {
				continue
			}
			if input, ok := ensgToInput[ensgs[i]]; ok {
				hit[input] = true
			}
		}
		inter := make([]string, 0, len(hit))
		for g := range hit {
			inter = append(inter, g)
		}
		sort.Strings(inter)

		pValue := 1.0
		if p := t.Get("p_value"); p.Exists() {
			pValue = p.Float()
		}
		order := "N/A"
		if o := t.Get("source_order"); o.Exists() {
			order = o.String()
		}
		res.Terms = append(res.Terms, Term{
			Source:            t.Get("source").String(),
			TermName:          t.Get("name").String(),
			Description:       t.Get("description").String(),
			PValue:            pValue,
			TermSize:          int(t.Get("term_size").Int()),
			QuerySize:         int(t.Get("query_size").Int()),
			IntersectionSize:  len(inter),
			Precision:         t.Get("precision").Float(),
			Recall:            t.Get("recall").Float(),
			SourceOrder:       order,
			Significant:       t.Get("significant").Bool(),
			IntersectionGenes: inter,
		})
		return true
	})
	log.Printf("[Enrich] g:Profiler: %d terms, %d valid, %d unrecognized",
		len(res.Terms), len(res.Validated), len(res.Unrecognized))
	return res
}

// truthy mirrors the intersection flag encoding: null or an empty list means
// no match.
func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.JSON:
		if v.IsArray() {
			return len(v.Array()) > 0
		}
		return len(v.Map()) > 0
	case gjson.String:
		return v.Str != ""
	case gjson.Number:
		return v.Num != 0
	}
	return true
}
