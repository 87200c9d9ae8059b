package graph

import "fmt"

// CyclicDependencyError reports a reference cycle. It is raised before any
// expression evaluation takes place.
type CyclicDependencyError struct {
	// Node is a node on the detected cycle.
	Node string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic dependency detected involving node '%s'", e.Node)
}
