package panel

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/biopareto/server/internal/geneset"
	"github.com/biopareto/server/internal/pareto"
)

// Origin names the tool an item was added from. Each origin has at most one
// staged draft.
type Origin string

const (
	OriginPareto     Origin = "pareto"
	OriginGenes      Origin = "genes"
	OriginGeneGroups Origin = "gene_groups"
	OriginEnrichment Origin = "enrichment"
)

// Valid reports whether o is a known origin.
func (o Origin) Valid() bool {
	switch o {
	case OriginPareto, OriginGenes, OriginGeneGroups, OriginEnrichment:
		return true
	}
	return false
}

var (
	ErrNothingStaged = errors.New("nothing staged")
	ErrIndex         = errors.New("panel index out of range")
	ErrEmptyDraft    = errors.New("draft has no genes")
)

// Draft is a staged item awaiting confirmation.
type Draft struct {
	Data           Payload `json:"data"`
	DefaultName    string  `json:"default_name"`
	DefaultComment string  `json:"default_comment"`
}

// SolutionDraft stages a single solution.
func SolutionDraft(p pareto.Point) Draft {
	return Draft{
		Data:        FromPoint(p),
		DefaultName: fmt.Sprintf("%s (from %s)", p.SolutionID, p.FrontName),
	}
}

// SolutionSetDraft stages a selection. A single point stages a solution.
func SolutionSetDraft(points []pareto.Point) (Draft, error) {
	switch len(points) {
	case 0:
		return Draft{}, pareto.ErrEmptySelection
	case 1:
		return SolutionDraft(points[0]), nil
	}
	solutions := make([]SolutionPayload, len(points))
	for i, p := range points {
		solutions[i] = FromPoint(p)
	}
	return Draft{
		Data: SolutionSetPayload{
			Solutions:        solutions,
			UniqueGenesCount: len(unionGenes(solutions)),
		},
		DefaultName: fmt.Sprintf("Solution Set (%d solutions)", len(points)),
	}, nil
}

// GeneSetDraft stages a gene list. frequency is the percentage level the
// genes were taken from, if any.
func GeneSetDraft(name string, genes []string, frequency *float64) (Draft, error) {
	if len(genes) == 0 {
		return Draft{}, ErrEmptyDraft
	}
	d := Draft{
		Data: GeneSetPayload{
			Name:      name,
			Genes:     append([]string(nil), genes...),
			Frequency: frequency,
			Count:     len(genes),
		},
		DefaultName: name,
	}
	if frequency != nil {
		d.DefaultComment = fmt.Sprintf("%g%%", *frequency)
	}
	return d, nil
}

// GeneDraft stages one gene.
func GeneDraft(gene, source string) Draft {
	return Draft{
		Data:           IndividualGenePayload{Gene: gene, Source: source},
		DefaultName:    "Gene: " + gene,
		DefaultComment: "Gene from " + source,
	}
}

// GroupDraft stages a gene group promoted from an overlap analysis.
func GroupDraft(p geneset.Promotion) (Draft, error) {
	if len(p.Genes) == 0 {
		return Draft{}, ErrEmptyDraft
	}
	return Draft{
		Data: CombinedGroupPayload{
			Genes:       append([]string(nil), p.Genes...),
			GeneCount:   len(p.Genes),
			SourceItems: append([]string(nil), p.Sources...),
		},
		DefaultName:    p.Name,
		DefaultComment: p.Comment,
	}, nil
}

// Snapshot is the exportable panel state.
type Snapshot struct {
	Items      []Item           `json:"items"`
	Selections map[string][]int `json:"selections"`
}

// Store is the interest panel. It is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	items      []Item
	staged     map[Origin]Draft
	selections map[string][]int
	now        func() time.Time
}

// NewStore returns an empty panel.
func NewStore() *Store {
	return &Store{
		staged:     make(map[Origin]Draft),
		selections: make(map[string][]int),
		now:        time.Now,
	}
}

// SetClock replaces the time source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Items returns the items in insertion order.
func (s *Store) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Item(nil), s.items...)
}

// Len returns the number of items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Get returns the item at idx.
func (s *Store) Get(idx int) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx < 0 || idx >= len(s.items) {
		return Item{}, ErrIndex
	}
	return s.items[idx], nil
}

// Stage records a draft for origin, replacing any previous one.
func (s *Store) Stage(origin Origin, d Draft) {
	s.mu.Lock()
	s.staged[origin] = d
	s.mu.Unlock()
}

// Staged returns the draft pending for origin.
func (s *Store) Staged(origin Origin) (Draft, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.staged[origin]
	return d, ok
}

// Cancel discards the draft of origin.
func (s *Store) Cancel(origin Origin) {
	s.mu.Lock()
	delete(s.staged, origin)
	s.mu.Unlock()
}

// Confirm turns the staged draft of origin into an item and appends it.
// Empty name or comment fall back to the draft defaults.
func (s *Store) Confirm(origin Origin, name, comment string) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.staged[origin]
	if !ok {
		return Item{}, ErrNothingStaged
	}
	delete(s.staged, origin)

	if name == "" {
		name = d.DefaultName
	}
	if comment == "" {
		comment = d.DefaultComment
	}
	now := s.now()
	it := Item{
		ID:         itemID(d.Data, len(s.items), now),
		Name:       name,
		Comment:    comment,
		ToolOrigin: origin,
		Data:       d.Data,
		Timestamp:  Timestamp(now),
	}
	s.items = append(s.items, it)
	return it, nil
}

func itemID(p Payload, n int, now time.Time) string {
	stamp := now.Format(idStampLayout)
	switch v := p.(type) {
	case SolutionPayload:
		return fmt.Sprintf("sol_%s_%s", v.SolutionID, stamp)
	case SolutionSetPayload:
		return fmt.Sprintf("set_%d_%s", n, stamp)
	case GeneSetPayload:
		return fmt.Sprintf("gene_set_%d_%s", n, stamp)
	case IndividualGenePayload:
		return fmt.Sprintf("gene_%s_%s", v.Gene, stamp)
	case CombinedGroupPayload:
		return "group_" + stamp
	}
	return "item_" + stamp
}

// Remove deletes the item at idx and shifts stored index selections.
func (s *Store) Remove(idx int) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.items) {
		return Item{}, ErrIndex
	}
	removed := s.items[idx]
	s.items = append(s.items[:idx:idx], s.items[idx+1:]...)
	for name, sel := range s.selections {
		s.selections[name] = AdjustIndices(sel, idx)
	}
	return removed, nil
}

// Clear drops every item, draft and selection.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	s.staged = make(map[Origin]Draft)
	s.selections = make(map[string][]int)
	s.mu.Unlock()
}

// SetSelection stores a named list of item indices, such as the items picked
// for enrichment. Out of range and repeated indices are dropped.
func (s *Store) SetSelection(name string, indices []int) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[int]bool, len(indices))
	clean := make([]int, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(s.items) || seen[i] {
			continue
		}
		seen[i] = true
		clean = append(clean, i)
	}
	sort.Ints(clean)
	s.selections[name] = clean
	return append([]int(nil), clean...)
}

// Selection returns a named index selection.
func (s *Store) Selection(name string) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int(nil), s.selections[name]...)
}

// Selected returns the items of a named selection.
func (s *Store) Selected(name string) []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Item
	for _, i := range s.selections[name] {
		out = append(out, s.items[i])
	}
	return out
}

// AdjustIndices rewrites indices after the item at removed was deleted:
// lower indices are kept, higher ones shift down, the removed one is dropped.
func AdjustIndices(indices []int, removed int) []int {
	out := make([]int, 0, len(indices))
	for _, i := range indices {
		switch {
		case i < removed:
			out = append(out, i)
		case i > removed:
			out = append(out, i-1)
		}
	}
	return out
}

// Export returns the panel contents.
func (s *Store) Export() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sel := make(map[string][]int, len(s.selections))
	for k, v := range s.selections {
		sel[k] = append([]int(nil), v...)
	}
	return Snapshot{Items: append([]Item{}, s.items...), Selections: sel}
}

// Import replaces the panel contents. Drafts are discarded and selections
// are clamped to the imported items.
func (s *Store) Import(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]Item(nil), snap.Items...)
	s.staged = make(map[Origin]Draft)
	s.selections = make(map[string][]int, len(snap.Selections))
	for name, sel := range snap.Selections {
		var clean []int
		for _, i := range sel {
			if i >= 0 && i < len(s.items) {
				clean = append(clean, i)
			}
		}
		s.selections[name] = clean
	}
}

// Sources converts items to uniquely named overlap sources. Items without
// genes are skipped.
func Sources(items []Item) []geneset.Source {
	var names []string
	var genes [][]string
	for _, it := range items {
		g := Genes(it)
		if len(g) == 0 {
			continue
		}
		names = append(names, SourceName(it))
		genes = append(genes, g)
	}
	names = geneset.UniqueNames(names)
	out := make([]geneset.Source, len(names))
	for i := range names {
		out[i] = geneset.Source{Name: names[i], Genes: genes[i]}
	}
	return out
}
