package graph

import (
	"fmt"
	"strings"
)

// CycleError is returned when the dependency relation contains a cycle.
// Path lists the nodes on the cycle, starting and ending with the same node.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Path, " -> "))
}
