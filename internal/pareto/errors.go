package pareto

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrEmptySelection is returned when an operation needs at least one
	// selected solution.
	ErrEmptySelection = errors.New("no solutions selected")
	// ErrHistoryEmpty is returned by Restore when there is nothing to restore.
	ErrHistoryEmpty = errors.New("consolidation history is empty")
	// ErrFrontLocked is returned when renaming or deleting a consolidated front.
	ErrFrontLocked = errors.New("consolidated fronts cannot be modified")
	// ErrFrontNotFound is returned for an unknown front id.
	ErrFrontNotFound = errors.New("front not found")
	// ErrInvalidName is returned for empty or clashing front names.
	ErrInvalidName = errors.New("invalid front name")
)

// StructuralError reports a malformed upload.
type StructuralError struct {
	File   string
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Reason)
}

// ObjectiveMismatchError reports an upload whose objective set differs from
// the document's established set.
type ObjectiveMismatchError struct {
	File     string
	Expected []string
	Got      []string
}

func (e *ObjectiveMismatchError) Error() string {
	expected := slices.Sorted(slices.Values(e.Expected))
	got := slices.Sorted(slices.Values(e.Got))
	return fmt.Sprintf("%s: Objectives mismatch. Expected %s, got %s",
		e.File, strings.Join(expected, ", "), strings.Join(got, ", "))
}

func structural(file, format string, args ...any) error {
	return &StructuralError{File: file, Reason: fmt.Sprintf(format, args...)}
}
