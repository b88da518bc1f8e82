// Package session owns the live analysis state: the front document, the
// selection, the active axes and the cached plot layout. Every operation
// computes the next state and swaps it in under one lock.
package session

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/biopareto/server/internal/coord"
	"github.com/biopareto/server/internal/pareto"
	"github.com/biopareto/server/internal/selection"
)

// ErrUnknownObjective is returned when an axis names no main objective.
var ErrUnknownObjective = errors.New("unknown objective")

// Layout is the client's zoom state for the plot.
type Layout struct {
	XRange [2]float64 `json:"x_range"`
	YRange [2]float64 `json:"y_range"`
}

// Snapshot is a consistent read of the session.
type Snapshot struct {
	Doc       *pareto.Document
	Selection selection.Set
	Axes      pareto.Axes
	Layout    *Layout
	Version   uint64
}

// CanConsolidate reports whether there is a selection to consolidate.
func (s Snapshot) CanConsolidate() bool {
	return !s.Selection.Empty()
}

// CanRestore reports whether a consolidation can be undone.
func (s Snapshot) CanRestore() bool {
	return s.Doc.History().Len() > 0
}

// Options configures a Store.
type Options struct {
	Precision      int
	IndexCacheSize int
	Now            func() time.Time
}

// Store is the session state. It is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	doc       *pareto.Document
	sel       selection.Set
	axes      pareto.Axes
	layout    *Layout
	version   uint64
	precision int
	now       func() time.Time

	indexes *lru.Cache[string, *coord.Index]
}

// New creates an empty session.
func New(opts Options) (*Store, error) {
	if opts.Precision <= 0 {
		opts.Precision = coord.DefaultPrecision
	}
	if opts.IndexCacheSize <= 0 {
		opts.IndexCacheSize = 16
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	indexes, err := lru.New[string, *coord.Index](opts.IndexCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create index cache: %w", err)
	}
	return &Store{
		doc:       pareto.New(),
		precision: opts.Precision,
		now:       opts.Now,
		indexes:   indexes,
	}, nil
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Doc:       s.doc,
		Selection: s.sel,
		Axes:      s.axes,
		Layout:    s.layout,
		Version:   s.version,
	}
}

// Now returns the session clock.
func (s *Store) Now() time.Time {
	return s.now()
}

// commit installs a new document. The caller holds the write lock.
func (s *Store) commit(doc *pareto.Document) {
	s.doc = doc
	s.version++
	if !doc.ResolvesAxes(s.axes) {
		s.axes = doc.DefaultAxes()
	}
}

// Upload normalizes and loads a batch of files. Any successful load clears
// the selection.
func (s *Store) Upload(uploads []pareto.Upload) pareto.LoadReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, report := s.doc.Load(uploads)
	for _, f := range report.Failed {
		log.Printf("[Session] Rejected %s: %v", f.Filename, f.Err)
	}
	if len(report.Loaded) == 0 {
		return report
	}
	s.sel = selection.Set{}
	s.layout = nil
	s.commit(doc)
	log.Printf("[Session] Loaded %d front(s), %d total", len(report.Loaded), report.Total)
	return report
}

// Rename renames a front and rewrites selected entries that belong to it.
func (s *Store) Rename(frontID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.doc.Front(frontID)
	if !ok {
		return pareto.ErrFrontNotFound
	}
	doc, err := s.doc.Rename(frontID, name)
	if err != nil {
		return err
	}
	renamed, _ := doc.Front(frontID)
	s.sel = s.sel.RenameFront(old.Name, renamed.Name)
	s.commit(doc)
	return nil
}

// Delete removes a front and prunes its selected entries.
func (s *Store) Delete(frontID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.doc.Front(frontID)
	if !ok {
		return pareto.ErrFrontNotFound
	}
	doc, err := s.doc.Delete(frontID)
	if err != nil {
		return err
	}
	s.sel = s.sel.PruneFront(old.Name)
	s.commit(doc)
	log.Printf("[Session] Deleted front %s", old.Name)
	return nil
}

// SetVisible shows or hides a front.
func (s *Store) SetVisible(frontID string, visible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.doc.SetVisible(frontID, visible)
	if err != nil {
		return err
	}
	s.commit(doc)
	return nil
}

// SetMain marks a front as the main front.
func (s *Store) SetMain(frontID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.doc.SetMain(frontID)
	if err != nil {
		return err
	}
	s.commit(doc)
	return nil
}

// ClearAll drops every front, the history and the selection.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel = selection.Set{}
	s.layout = nil
	s.axes = pareto.Axes{}
	s.commit(s.doc.Clear())
	s.indexes.Purge()
	log.Printf("[Session] Cleared all data")
}

// SetAxes changes the plotted objectives. The selection is kept.
func (s *Store) SetAxes(a pareto.Axes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.doc.ResolvesAxes(a) {
		return fmt.Errorf("%w: %s, %s", ErrUnknownObjective, a.X, a.Y)
	}
	if a != s.axes {
		s.axes = a
		s.layout = nil
	}
	return nil
}

// SwapAxes exchanges x and y. The selection is kept.
func (s *Store) SwapAxes() pareto.Axes {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.axes = s.axes.Swap()
	s.layout = nil
	return s.axes
}

// Index returns the coordinate index for the current axes, or nil when they
// cannot be resolved.
func (s *Store) Index() *coord.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexLocked()
}

// View returns a snapshot together with the coordinate index of its axes.
func (s *Store) View() (Snapshot, *coord.Index) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(), s.indexLocked()
}

func (s *Store) indexLocked() *coord.Index {
	if !s.doc.ResolvesAxes(s.axes) {
		return nil
	}
	key := fmt.Sprintf("%d|%s|%s", s.version, s.axes.X, s.axes.Y)
	if ix, ok := s.indexes.Get(key); ok {
		return ix
	}
	ix := coord.Build(s.doc.Fronts(), s.axes, s.precision)
	s.indexes.Add(key, ix)
	return ix
}

// Click applies a group-toggle click.
func (s *Store) Click(c selection.Click) selection.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel = selection.ApplyClick(s.sel, s.indexLocked(), c)
	return s.sel
}

// Lasso adds every solution in a region.
func (s *Store) Lasso(l selection.Lasso) selection.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel = selection.ApplyLasso(s.sel, s.indexLocked(), l)
	return s.sel
}

// Deselect removes one entry.
func (s *Store) Deselect(uniqueID string) selection.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel = s.sel.Remove(uniqueID)
	return s.sel
}

// ClearSelection empties the selection and the plot layout.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel = selection.Set{}
	s.layout = nil
}

// Consolidate replaces the fronts with one built from the selection.
func (s *Store) Consolidate(name string) (pareto.ConsolidationReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, report, err := s.doc.Consolidate(s.sel.Entries(), name, s.axes, s.now())
	if err != nil {
		return report, err
	}
	if report.Overwritten > 0 {
		log.Printf("[Session] Consolidation overwrote %d axis value(s)", report.Overwritten)
	}
	s.sel = selection.Set{}
	s.layout = nil
	s.commit(doc)
	log.Printf("[Session] Consolidated %d solution(s) into %s", report.Solutions, report.FrontName)
	return report, nil
}

// Restore undoes the last consolidation.
func (s *Store) Restore() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.doc.Restore()
	if err != nil {
		return err
	}
	s.sel = selection.Set{}
	s.layout = nil
	s.commit(doc)
	log.Printf("[Session] Restored %d front(s), history depth %d", len(doc.Fronts()), doc.History().Len())
	return nil
}

// SetLayout records the client's zoom.
func (s *Store) SetLayout(l Layout) {
	s.mu.Lock()
	s.layout = &l
	s.mu.Unlock()
}

// ClearLayout drops the zoom state.
func (s *Store) ClearLayout() {
	s.mu.Lock()
	s.layout = nil
	s.mu.Unlock()
}
