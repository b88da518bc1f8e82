// Package geneset computes overlaps between named gene sets.
package geneset

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Source is one named gene set.
type Source struct {
	Name  string   `json:"name"`
	Genes []string `json:"genes"`
}

// Mode is the decomposition strategy chosen for the number of sources.
type Mode string

const (
	ModeEmpty     Mode = "empty"
	ModeSingle    Mode = "single"
	ModeVenn      Mode = "venn"
	ModeSignature Mode = "signature"
)

// Tag classifies a signature by how many sources share it.
type Tag string

const (
	TagAll    Tag = "ALL"
	TagUnique Tag = "UNIQUE"
	TagMix    Tag = "MIX"
)

// Record is one non-empty intersection region.
type Record struct {
	Name       string   `json:"name"`
	Genes      []string `json:"genes"`
	Count      int      `json:"count"`
	SourceSets []int    `json:"source_sets"`
	Signature  []string `json:"signature"`
	Tag        Tag      `json:"tag"`
}

// GeneFrequency is one row of the gene frequency table.
type GeneFrequency struct {
	Gene    string   `json:"gene"`
	Count   int      `json:"frequency"`
	Sources []string `json:"sources"`
	Label   string   `json:"sources_label"`
}

// Analysis is the full overlap decomposition of a list of sources.
type Analysis struct {
	Sources        []string        `json:"sources"`
	Mode           Mode            `json:"mode"`
	UniqueGenes    []string        `json:"unique_genes"`
	TotalInstances int             `json:"total_instances"`
	Frequency      []GeneFrequency `json:"frequency"`
	Records        []Record        `json:"records"`
}

// UniqueNames disambiguates colliding names with a " (n)" suffix.
func UniqueNames(names []string) []string {
	out := make([]string, len(names))
	used := make(map[string]bool, len(names))
	for i, name := range names {
		candidate := name
		for n := 1; used[candidate]; n++ {
			candidate = fmt.Sprintf("%s (%d)", name, n)
		}
		used[candidate] = true
		out[i] = candidate
	}
	return out
}

// Analyze decomposes the sources. Names must already be unique; see
// UniqueNames. Genes compare by exact string equality.
func Analyze(sources []Source) Analysis {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name
	}
	membership := Membership(sources)

	a := Analysis{
		Sources: names,
		Records: []Record{},
	}
	for gene, srcs := range membership {
		a.UniqueGenes = append(a.UniqueGenes, gene)
		a.TotalInstances += len(srcs)
	}
	sort.Strings(a.UniqueGenes)
	a.Frequency = frequencyTable(membership, names)

	switch n := len(sources); {
	case n == 0:
		a.Mode = ModeEmpty
	case n == 1:
		a.Mode = ModeSingle
	case n <= 3:
		a.Mode = ModeVenn
		a.Records = Venn(sources)
	default:
		a.Mode = ModeSignature
		a.Records = Signatures(sources)
	}
	return a
}

// Membership maps each gene to the indices of the sources containing it, in
// source order.
func Membership(sources []Source) map[string][]int {
	m := make(map[string][]int)
	for i, s := range sources {
		for _, g := range s.Genes {
			idx := m[g]
			if len(idx) > 0 && idx[len(idx)-1] == i {
				continue
			}
			m[g] = append(idx, i)
		}
	}
	return m
}

func frequencyTable(membership map[string][]int, names []string) []GeneFrequency {
	rows := make([]GeneFrequency, 0, len(membership))
	for gene, idx := range membership {
		srcs := make([]string, len(idx))
		for i, j := range idx {
			srcs[i] = names[j]
		}
		label := strings.Join(srcs[:min(3, len(srcs))], ", ")
		if len(srcs) > 3 {
			label += ", ..."
		}
		rows = append(rows, GeneFrequency{Gene: gene, Count: len(idx), Sources: srcs, Label: label})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Gene < rows[j].Gene
	})
	return rows
}

type geneSet map[string]struct{}

func toSet(genes []string) geneSet {
	s := make(geneSet, len(genes))
	for _, g := range genes {
		s[g] = struct{}{}
	}
	return s
}

func (s geneSet) and(o geneSet) geneSet {
	out := make(geneSet)
	for g := range s {
		if _, ok := o[g]; ok {
			out[g] = struct{}{}
		}
	}
	return out
}

func (s geneSet) minus(o geneSet) geneSet {
	out := make(geneSet)
	for g := range s {
		if _, ok := o[g]; !ok {
			out[g] = struct{}{}
		}
	}
	return out
}

func (s geneSet) sorted() []string {
	out := make([]string, 0, len(s))
	for g := range s {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// Venn computes the exact regions for two or three sources by set
// difference. Empty regions are omitted.
func Venn(sources []Source) []Record {
	if len(sources) < 2 || len(sources) > 3 {
		return nil
	}
	names := make([]string, len(sources))
	sets := make([]geneSet, len(sources))
	for i, s := range sources {
		names[i] = s.Name
		sets[i] = toSet(s.Genes)
	}

	var records []Record
	add := func(name string, genes geneSet, idx ...int) {
		if len(genes) == 0 {
			return
		}
		sig := make([]string, len(idx))
		for i, j := range idx {
			sig[i] = names[j]
		}
		sort.Strings(sig)
		list := genes.sorted()
		records = append(records, Record{
			Name:       name,
			Genes:      list,
			Count:      len(list),
			SourceSets: idx,
			Signature:  sig,
			Tag:        tagFor(len(idx), len(sources)),
		})
	}

	if len(sources) == 2 {
		a, b := sets[0], sets[1]
		add(fmt.Sprintf("Intersection: %s ∩ %s", names[0], names[1]), a.and(b), 0, 1)
		add("Unique to "+names[0], a.minus(b), 0)
		add("Unique to "+names[1], b.minus(a), 1)
		return records
	}

	a, b, c := sets[0], sets[1], sets[2]
	abc := a.and(b).and(c)
	add(fmt.Sprintf("All three: %s ∩ %s ∩ %s", names[0], names[1], names[2]), abc, 0, 1, 2)
	add(fmt.Sprintf("%s ∩ %s only", names[0], names[1]), a.and(b).minus(c), 0, 1)
	add(fmt.Sprintf("%s ∩ %s only", names[0], names[2]), a.and(c).minus(b), 0, 2)
	add(fmt.Sprintf("%s ∩ %s only", names[1], names[2]), b.and(c).minus(a), 1, 2)
	add("Unique to "+names[0], a.minus(b).minus(c), 0)
	add("Unique to "+names[1], b.minus(a).minus(c), 1)
	add("Unique to "+names[2], c.minus(a).minus(b), 2)
	return records
}

// Signatures groups genes by the exact set of sources containing them. It
// visits each gene once per source and only materializes signatures that
// occur. Records are ordered by signature length, then gene count, both
// descending.
func Signatures(sources []Source) []Record {
	if len(sources) == 0 {
		return nil
	}
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name
	}

	type group struct {
		idx   []int
		genes []string
	}
	groups := make(map[string]*group)
	for gene, idx := range Membership(sources) {
		key := fmt.Sprint(idx)
		g, ok := groups[key]
		if !ok {
			g = &group{idx: idx}
			groups[key] = g
		}
		g.genes = append(g.genes, gene)
	}

	records := make([]Record, 0, len(groups))
	for _, g := range groups {
		sig := make([]string, len(g.idx))
		for i, j := range g.idx {
			sig[i] = names[j]
		}
		sort.Strings(sig)
		sort.Strings(g.genes)
		tag := tagFor(len(g.idx), len(sources))
		records = append(records, Record{
			Name:       fmt.Sprintf("%s: %s", tag, strings.Join(sig, " ∩ ")),
			Genes:      g.genes,
			Count:      len(g.genes),
			SourceSets: slices.Clone(g.idx),
			Signature:  sig,
			Tag:        tag,
		})
	}
	sort.Slice(records, func(i, j int) bool {
		ri, rj := records[i], records[j]
		if len(ri.Signature) != len(rj.Signature) {
			return len(ri.Signature) > len(rj.Signature)
		}
		if ri.Count != rj.Count {
			return ri.Count > rj.Count
		}
		return ri.Name < rj.Name
	})
	return records
}

func tagFor(length, n int) Tag {
	switch {
	case length == n:
		return TagAll
	case length == 1:
		return TagUnique
	}
	return TagMix
}

// Union returns the sorted union of the genes of the given records.
func Union(records []Record) []string {
	all := make(geneSet)
	for _, r := range records {
		for _, g := range r.Genes {
			all[g] = struct{}{}
		}
	}
	return all.sorted()
}
