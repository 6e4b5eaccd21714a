package resolver

import (
	"fmt"
	"strings"
)

// UnsatisfiedConstraint records one package name whose accumulated
// constraints admit no candidate.
type UnsatisfiedConstraint struct {
	Name        string
	Constraints []string
}

// ResolveError is returned when the root's candidate set is exhausted
// (spec.md §4.3 step 5). Its conflict list names every package that had
// no remaining candidate at the point backtracking gave up.
type ResolveError struct {
	Conflicts []UnsatisfiedConstraint
}

func (e *ResolveError) Error() string {
	var b strings.Builder
	b.WriteString("resolver: unsatisfiable constraints:")
	for _, c := range e.Conflicts {
		fmt.Fprintf(&b, " %s requires %v;", c.Name, c.Constraints)
	}
	return b.String()
}
