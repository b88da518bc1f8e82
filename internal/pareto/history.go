package pareto

// History is a LIFO stack of full front snapshots. It is a value type: Push
// and Pop return a new stack and never modify the receiver.
type History struct {
	snapshots [][]Front
}

// Push returns the stack with fronts on top.
func (h History) Push(fronts []Front) History {
	next := make([][]Front, len(h.snapshots), len(h.snapshots)+1)
	copy(next, h.snapshots)
	return History{snapshots: append(next, cloneFronts(fronts))}
}

// Pop returns the stack without its top snapshot, and that snapshot.
func (h History) Pop() (History, []Front, bool) {
	n := len(h.snapshots)
	if n == 0 {
		return h, nil, false
	}
	top := cloneFronts(h.snapshots[n-1])
	if n == 1 {
		return History{}, top, true
	}
	return History{snapshots: h.snapshots[:n-1:n-1]}, top, true
}

// Peek returns the top snapshot without removing it.
func (h History) Peek() ([]Front, bool) {
	n := len(h.snapshots)
	if n == 0 {
		return nil, false
	}
	return cloneFronts(h.snapshots[n-1]), true
}

// Len returns the number of snapshots.
func (h History) Len() int {
	return len(h.snapshots)
}

// cloneFronts copies the front headers. Solution slices are shared because
// nothing modifies them in place.
func cloneFronts(fronts []Front) []Front {
	if fronts == nil {
		return nil
	}
	out := make([]Front, len(fronts))
	copy(out, fronts)
	return out
}
