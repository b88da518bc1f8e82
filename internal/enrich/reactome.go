package enrich

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// Reactome runs a pathway over-representation analysis for one species.
func (c *Client) Reactome(ctx context.Context, genes []string, species string) (Result, error) {
	genes = CleanGenes(genes)
	if species == "" {
		species = "Homo sapiens"
	}
	res := Result{
		Provider:      ProviderReactome,
		Organism:      species,
		OrganismUsed:  species,
		Terms:         []Term{},
		Validated:     []string{},
		Unrecognized:  []string{},
		OriginalCount: len(genes),
	}
	if len(genes) == 0 {
		return res, nil
	}

	q := url.Values{}
	q.Set("interactors", "false")
	q.Set("species", species)
	q.Set("pageSize", "999999")
	q.Set("page", "1")
	q.Set("sortBy", "ENTITIES_PVALUE")
	q.Set("order", "ASC")
	q.Set("resource", "TOTAL")
	q.Set("pValue", "1")
	q.Set("includeDisease", "true")
	endpoint := c.opts.ReactomeURL
	if strings.Contains(endpoint, "?") {
		endpoint += "&" + q.Encode()
	} else {
		endpoint += "?" + q.Encode()
	}

	log.Printf("[Enrich] Reactome request: %d genes, species %s", len(genes), species)
	data, err := c.post(ctx, ProviderReactome, endpoint, "text/plain", []byte(strings.Join(genes, "\n")))
	if err != nil {
		return res, err
	}
	return parseReactome(data, genes, res), nil
}

func parseReactome(data []byte, genes []string, res Result) Result {
	doc := gjson.ParseBytes(data)

	res.Token = doc.Get("summary.token").String()
	if res.Token == "" {
		res.Token = doc.Get("token").String()
	}
	if res.Token == "" {
		h := fnv.New32a()
		h.Write([]byte(strings.Join(genes, ",")))
		res.Token = fmt.Sprintf("REF_%08x", h.Sum32())
	}
	if name := doc.Get("resourceSummary.0.speciesName").String(); name != "" {
		res.OrganismUsed = name
	}

	notFound := make(map[string]bool)
	doc.Get("identifiersNotFound").ForEach(func(_, v gjson.Result) bool {
		if id := v.Get("id").String(); id != "" {
			notFound[id] = true
		}
		return true
	})
	for _, g := range genes {
		if notFound[g] {
			res.Unrecognized = append(res.Unrecognized, g)
		} else {
			res.Validated = append(res.Validated, g)
		}
	}

	doc.Get("pathways").ForEach(func(_, p gjson.Result) bool {
		entities := p.Get("entities")
		pValue := 1.0
		if v := entities.Get("pValue"); v.Exists() {
			pValue = v.Float()
		}
		fdr := 1.0
		if v := entities.Get("fdr"); v.Exists() {
			fdr = v.Float()
		}
		found := int(entities.Get("found").Int())
		res.Terms = append(res.Terms, Term{
			Source:           "Reactome",
			TermName:         p.Get("name").String(),
			Description:      p.Get("stId").String(),
			PValue:           pValue,
			IntersectionSize: found,
			FDR:              &fdr,
			EntitiesFound:    found,
			EntitiesTotal:    int(entities.Get("total").Int()),
		})
		return true
	})
	log.Printf("[Enrich] Reactome: %d pathways, token %s, species %s", len(res.Terms), res.Token, res.OrganismUsed)
	return res
}
