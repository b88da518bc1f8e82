package enrich

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

// Default service endpoints.
const (
	DefaultGProfilerURL          = "https://biit.cs.ut.ee/gprofiler/api/gost/profile/"
	DefaultGProfilerOrganismsURL = "https://biit.cs.ut.ee/gprofiler/api/util/organisms_list"
	DefaultReactomeURL           = "https://reactome.org/AnalysisService/identifiers/"
	DefaultReactomeSpeciesURL    = "https://reactome.org/ContentService/data/species/all"
)

// DefaultSources are the g:Profiler sources queried when none are given.
var DefaultSources = []string{"GO:BP", "GO:MF", "GO:CC", "KEGG", "REAC"}

// Options configures a Client. Empty URLs use the public services.
type Options struct {
	GProfilerURL          string
	GProfilerOrganismsURL string
	ReactomeURL           string
	ReactomeSpeciesURL    string
	Timeout               time.Duration
	CatalogTimeout        time.Duration
}

// Client talks to g:Profiler and Reactome.
type Client struct {
	http    *http.Client
	catalog time.Duration
	opts    Options
}

// NewClient creates a client.
func NewClient(opts Options) *Client {
	if opts.GProfilerURL == "" {
		opts.GProfilerURL = DefaultGProfilerURL
	}
	if opts.GProfilerOrganismsURL == "" {
		opts.GProfilerOrganismsURL = DefaultGProfilerOrganismsURL
	}
	if opts.ReactomeURL == "" {
		opts.ReactomeURL = DefaultReactomeURL
	}
	if opts.ReactomeSpeciesURL == "" {
		opts.ReactomeSpeciesURL = DefaultReactomeSpeciesURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 420 * time.Second
	}
	if opts.CatalogTimeout <= 0 {
		opts.CatalogTimeout = 10 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: opts.Timeout},
		catalog: opts.CatalogTimeout,
		opts:    opts,
	}
}

// Request is one enrichment submission.
type Request struct {
	Provider Provider `json:"provider"`
	Genes    []string `json:"genes"`
	Organism string   `json:"organism"`
	Sources  []string `json:"sources,omitempty"`
}

// Run dispatches a request to its provider.
func (c *Client) Run(ctx context.Context, req Request) (Result, error) {
	switch req.Provider {
	case ProviderGProfiler:
		return c.GProfiler(ctx, req.Genes, req.Organism, req.Sources)
	case ProviderReactome:
		return c.Reactome(ctx, req.Genes, req.Organism)
	}
	return Result{}, fmt.Errorf("unknown provider %q", req.Provider)
}

// CleanGenes drops empty names and duplicates, keeping first-seen order.
func CleanGenes(genes []string) []string {
	seen := make(map[string]bool, len(genes))
	out := make([]string, 0, len(genes))
	for _, g := range genes {
		g = strings.TrimSpace(g)
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
	}
	return out
}

func (c *Client) post(ctx context.Context, p Provider, url, contentType string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &CollaboratorError{Provider: p, Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	return c.do(p, req)
}

func (c *Client) get(ctx context.Context, p Provider, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &CollaboratorError{Provider: p, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	return c.do(p, req)
}

func (c *Client) do(p Provider, req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &CollaboratorError{Provider: p, Err: err}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &CollaboratorError{Provider: p, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(data))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, &CollaboratorError{Provider: p, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}
	if !gjson.ValidBytes(data) {
		return nil, &CollaboratorError{Provider: p, Err: errors.New("invalid JSON response")}
	}
	return data, nil
}

// Organism is one selectable organism.
type Organism struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Catalog lists the organisms each provider accepts.
type Catalog struct {
	GProfiler []Organism `json:"gprofiler"`
	Reactome  []Organism `json:"reactome"`
}

// FallbackGProfilerOrganisms is used when the organism list cannot be fetched.
var FallbackGProfilerOrganisms = []Organism{
	{Label: "Homo sapiens (hsapiens)", Value: "hsapiens"},
	{Label: "Mus musculus (mmusculus)", Value: "mmusculus"},
	{Label: "Rattus norvegicus (rnorvegicus)", Value: "rnorvegicus"},
	{Label: "Danio rerio (drerio)", Value: "drerio"},
	{Label: "Drosophila melanogaster (dmelanogaster)", Value: "dmelanogaster"},
	{Label: "Caenorhabditis elegans (celegans)", Value: "celegans"},
}

// FallbackReactomeSpecies is used when the species list cannot be fetched.
var FallbackReactomeSpecies = []Organism{
	{Label: "Homo sapiens (Human)", Value: "Homo sapiens"},
	{Label: "Mus musculus (Mouse)", Value: "Mus musculus"},
	{Label: "Rattus norvegicus (Rat)", Value: "Rattus norvegicus"},
	{Label: "Danio rerio (Zebrafish)", Value: "Danio rerio"},
	{Label: "Saccharomyces cerevisiae (Yeast)", Value: "Saccharomyces cerevisiae"},
}

// Organisms fetches both organism lists concurrently. A list that cannot be
// fetched is replaced by its fallback, so this never fails.
func (c *Client) Organisms(ctx context.Context) Catalog {
	ctx, cancel := context.WithTimeout(ctx, c.catalog)
	defer cancel()

	var cat Catalog
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cat.GProfiler = c.gprofilerOrganisms(gctx)
		return nil
	})
	g.Go(func() error {
		cat.Reactome = c.reactomeSpecies(gctx)
		return nil
	})
	_ = g.Wait()
	return cat
}

func (c *Client) gprofilerOrganisms(ctx context.Context) []Organism {
	data, err := c.get(ctx, ProviderGProfiler, c.opts.GProfilerOrganismsURL)
	if err != nil {
		log.Printf("[Enrich] Organism list unavailable, using fallback: %v", err)
		return FallbackGProfilerOrganisms
	}
	var out []Organism
	gjson.ParseBytes(data).ForEach(func(_, org gjson.Result) bool {
		id := org.Get("id").String()
		if id == "" {
			return true
		}
		name := org.Get("display_name").String()
		if name == "" {
			name = id
		}
		out = append(out, Organism{Label: fmt.Sprintf("%s (%s)", name, id), Value: id})
		return true
	})
	if len(out) == 0 {
		return FallbackGProfilerOrganisms
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

func (c *Client) reactomeSpecies(ctx context.Context) []Organism {
	data, err := c.get(ctx, ProviderReactome, c.opts.ReactomeSpeciesURL)
	if err != nil {
		log.Printf("[Enrich] Reactome species unavailable, using fallback: %v", err)
		return FallbackReactomeSpecies
	}
	var out []Organism
	gjson.ParseBytes(data).ForEach(func(_, sp gjson.Result) bool {
		if name := sp.Get("displayName").String(); name != "" {
			out = append(out, Organism{Label: name, Value: name})
		}
		return true
	})
	if len(out) == 0 {
		return FallbackReactomeSpecies
	}
	sort.Slice(out, func(i, j int) bool {
		hi, hj := out[i].Value == "Homo sapiens", out[j].Value == "Homo sapiens"
		if hi != hj {
			return hi
		}
		return out[i].Value < out[j].Value
	})
	return out
}
