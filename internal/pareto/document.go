package pareto

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Document is the aggregate root holding all fronts. A Document is never
// modified after construction; every transition returns a new one.
type Document struct {
	fronts             []Front
	history            History
	mainObjectives     []string
	explicitObjectives []string
}

// New returns an empty document.
func New() *Document {
	return &Document{}
}

// Fronts returns all fronts in load order.
func (d *Document) Fronts() []Front {
	return cloneFronts(d.fronts)
}

// VisibleFronts returns the visible fronts in load order.
func (d *Document) VisibleFronts() []Front {
	var out []Front
	for _, f := range d.fronts {
		if f.Visible {
			out = append(out, f)
		}
	}
	return out
}

// Front returns the front with the given id.
func (d *Document) Front(id string) (Front, bool) {
	i := d.indexOf(id)
	if i < 0 {
		return Front{}, false
	}
	return d.fronts[i], true
}

// MainFront returns the canonical front.
func (d *Document) MainFront() (Front, bool) {
	for _, f := range d.fronts {
		if f.Main {
			return f, true
		}
	}
	return Front{}, false
}

// MainObjectives returns the objective names every front must match. It is
// nil for an empty document.
func (d *Document) MainObjectives() []string {
	return slices.Clone(d.mainObjectives)
}

// ExplicitObjectives returns the objectives present in the first upload, used
// to pick default axes.
func (d *Document) ExplicitObjectives() []string {
	return slices.Clone(d.explicitObjectives)
}

// History returns the consolidation history stack.
func (d *Document) History() History {
	return d.history
}

// Empty reports whether the document has no fronts.
func (d *Document) Empty() bool {
	return len(d.fronts) == 0
}

// SolutionCount returns the number of solutions over all fronts.
func (d *Document) SolutionCount() int {
	n := 0
	for _, f := range d.fronts {
		n += len(f.Solutions)
	}
	return n
}

// FindSolution resolves a unique id to its solution and front.
func (d *Document) FindSolution(uniqueID string) (Solution, Front, bool) {
	for _, f := range d.fronts {
		for _, s := range f.Solutions {
			if UniqueID(s.ID, f.Name) == uniqueID {
				return s, f, true
			}
		}
	}
	return Solution{}, Front{}, false
}

// DefaultAxes picks the initial axis pair: the first two explicit objectives,
// falling back to the main objectives.
func (d *Document) DefaultAxes() Axes {
	pick := func(names []string, i int) string {
		if i < len(names) {
			return names[i]
		}
		return ""
	}
	x := pick(d.explicitObjectives, 0)
	if x == "" {
		x = pick(d.mainObjectives, 0)
	}
	y := pick(d.explicitObjectives, 1)
	if y == "" {
		y = pick(d.mainObjectives, 1)
	}
	if y == "" {
		y = x
	}
	return Axes{X: x, Y: y}
}

// HasObjective reports whether name is one of the main objectives.
func (d *Document) HasObjective(name string) bool {
	return slices.Contains(d.mainObjectives, name)
}

// ResolvesAxes reports whether the axis pair can be plotted.
func (d *Document) ResolvesAxes(a Axes) bool {
	return !d.Empty() && a.Set() && d.HasObjective(a.X) && d.HasObjective(a.Y)
}

// FileError is one rejected upload.
type FileError struct {
	Filename string
	Err      error
}

// LoadReport summarises a batch upload.
type LoadReport struct {
	Loaded []string
	Failed []FileError
	Total  int
}

// Message renders the report for the user.
func (r LoadReport) Message() string {
	reasons := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		reasons = append(reasons, f.Err.Error())
	}
	if len(r.Loaded) > 0 {
		msg := fmt.Sprintf("Successfully loaded %d front(s). Total fronts: %d", len(r.Loaded), r.Total)
		if len(reasons) > 0 {
			msg += " | Errors: " + strings.Join(reasons, "; ")
		}
		return msg
	}
	return "Failed to load any fronts. " + strings.Join(reasons, "; ")
}

// Load normalizes each upload and appends the accepted fronts. A rejected
// file does not stop the rest of the batch.
func (d *Document) Load(uploads []Upload) (*Document, LoadReport) {
	next := d.clone()
	var report LoadReport
	for _, u := range uploads {
		n, err := Normalize(u, next.mainObjectives)
		if err != nil {
			report.Failed = append(report.Failed, FileError{Filename: u.Filename, Err: err})
			continue
		}
		front := n.Front
		front.Name = next.uniqueName(front.Name, "")
		if next.mainObjectives == nil {
			next.mainObjectives = slices.Clone(front.Objectives)
			next.explicitObjectives = slices.Clone(n.Explicit)
			front.Main = true
		}
		next.fronts = append(next.fronts, front)
		report.Loaded = append(report.Loaded, front.Name)
	}
	report.Total = len(next.fronts)
	if len(report.Loaded) == 0 {
		return d, report
	}
	return next, report
}

// Rename changes a front's display name.
func (d *Document) Rename(id, name string) (*Document, error) {
	i := d.indexOf(id)
	if i < 0 {
		return d, ErrFrontNotFound
	}
	if d.fronts[i].Consolidated {
		return d, ErrFrontLocked
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return d, fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if name == d.fronts[i].Name {
		return d, nil
	}
	if d.nameTaken(name, id) {
		return d, fmt.Errorf("%w: %q is already used", ErrInvalidName, name)
	}
	next := d.clone()
	next.fronts[i].Name = name
	return next, nil
}

// Delete removes a front. Removing the main front promotes the first
// remaining front; removing the last front resets the objective schema.
func (d *Document) Delete(id string) (*Document, error) {
	i := d.indexOf(id)
	if i < 0 {
		return d, ErrFrontNotFound
	}
	if d.fronts[i].Consolidated {
		return d, ErrFrontLocked
	}
	next := d.clone()
	next.fronts = slices.Delete(next.fronts, i, i+1)
	if len(next.fronts) == 0 {
		next.fronts = nil
		next.mainObjectives = nil
		next.explicitObjectives = nil
		return next, nil
	}
	if _, ok := next.MainFront(); !ok {
		next.fronts[0].Main = true
		next.mainObjectives = slices.Clone(next.fronts[0].Objectives)
	}
	return next, nil
}

// SetVisible shows or hides a front.
func (d *Document) SetVisible(id string, visible bool) (*Document, error) {
	i := d.indexOf(id)
	if i < 0 {
		return d, ErrFrontNotFound
	}
	if d.fronts[i].Visible == visible {
		return d, nil
	}
	next := d.clone()
	next.fronts[i].Visible = visible
	return next, nil
}

// SetMain makes a front the canonical one; the main objectives follow it.
func (d *Document) SetMain(id string) (*Document, error) {
	i := d.indexOf(id)
	if i < 0 {
		return d, ErrFrontNotFound
	}
	next := d.clone()
	for j := range next.fronts {
		next.fronts[j].Main = j == i
	}
	next.mainObjectives = slices.Clone(next.fronts[i].Objectives)
	return next, nil
}

// Clear returns an empty document.
func (d *Document) Clear() *Document {
	return New()
}

// Restore pops the latest consolidation snapshot.
func (d *Document) Restore() (*Document, error) {
	history, fronts, ok := d.history.Pop()
	if !ok {
		return d, ErrHistoryEmpty
	}
	next := &Document{
		fronts:             fronts,
		history:            history,
		explicitObjectives: slices.Clone(d.explicitObjectives),
	}
	main := slices.IndexFunc(fronts, func(f Front) bool { return f.Main })
	if main < 0 && len(fronts) > 0 {
		fronts[0].Main = true
		main = 0
	}
	if main >= 0 {
		next.mainObjectives = slices.Clone(fronts[main].Objectives)
	}
	return next, nil
}

func (d *Document) clone() *Document {
	return &Document{
		fronts:             cloneFronts(d.fronts),
		history:            d.history,
		mainObjectives:     slices.Clone(d.mainObjectives),
		explicitObjectives: slices.Clone(d.explicitObjectives),
	}
}

func (d *Document) indexOf(id string) int {
	return slices.IndexFunc(d.fronts, func(f Front) bool { return f.ID == id })
}

func (d *Document) nameTaken(name, exceptID string) bool {
	for _, f := range d.fronts {
		if f.ID != exceptID && f.Name == name {
			return true
		}
	}
	return false
}

func (d *Document) uniqueName(base, exceptID string) string {
	if base == "" {
		base = fmt.Sprintf("Front %d", len(d.fronts)+1)
	}
	if !d.nameTaken(base, exceptID) {
		return base
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", base, n)
		if !d.nameTaken(candidate, exceptID) {
			return candidate
		}
	}
}

// IsStructural reports whether err is a per-file upload rejection.
func IsStructural(err error) bool {
	var se *StructuralError
	var me *ObjectiveMismatchError
	return errors.As(err, &se) || errors.As(err, &me)
}
