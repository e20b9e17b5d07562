package graphsync

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/signalsfoundry/flowview/model"
)

var (
	// ErrAlreadyInitialized is returned when Initialize runs against a
	// populated identity mapping.
	ErrAlreadyInitialized = errors.New("graph already initialized")
	// ErrNotInitialized is returned when Apply runs before Initialize.
	ErrNotInitialized = errors.New("graph not initialized")
	// ErrNoSnapshot is returned when Apply receives no snapshot, which is
	// how an out-of-range period or a missing result surfaces.
	ErrNoSnapshot = errors.New("no snapshot for period")
	// ErrStructuralMismatch marks snapshots whose element ids differ from
	// the ones the graph was built with.
	ErrStructuralMismatch = errors.New("snapshot structure differs from graph")
)

// MismatchError describes how a snapshot's id set for one element kind
// differs from the identity mapping.
type MismatchError struct {
	Kind       model.ElementKind
	Missing    []string
	Unexpected []string
}

func (e *MismatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s ids differ from graph", e.Kind)
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, "; missing %s", strings.Join(e.Missing, ","))
	}
	if len(e.Unexpected) > 0 {
		fmt.Fprintf(&b, "; unexpected %s", strings.Join(e.Unexpected, ","))
	}
	return b.String()
}

// Is reports ErrStructuralMismatch so callers can match without a type
// assertion.
func (e *MismatchError) Is(target error) bool {
	return target == ErrStructuralMismatch
}

// rejectReason maps an Apply error to a metrics label.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrNoSnapshot):
		return "no_snapshot"
	case errors.Is(err, ErrNotInitialized):
		return "not_initialized"
	case errors.Is(err, model.ErrInvalidSnapshot):
		return "invalid"
	case errors.Is(err, ErrStructuralMismatch):
		return "structural_mismatch"
	default:
		return "render"
	}
}
