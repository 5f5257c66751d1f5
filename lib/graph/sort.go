// Package graph orders nodes of a dependency relation.
package graph

import "fmt"

type visitState int

const (
	unvisited visitState = iota
	visiting
	visited
)

// TopologicalOrder returns nodes ordered so that every node comes after the
// nodes depsOf says it depends on. Dependencies not present in nodes are
// pulled into the result, so the output may be a superset of the input.
// Each node appears exactly once. Ties are broken by input order, then by the
// order depsOf returns dependencies. Zero-value dependencies are ignored.
func TopologicalOrder[T comparable](nodes []T, depsOf func(T) []T) ([]T, error) {
	var zero T
	state := make(map[T]visitState, len(nodes))
	order := make([]T, 0, len(nodes))
	// stack holds the current DFS path so a cycle can be reported in full
	var stack []T

	var visit func(n T) error
	visit = func(n T) error {
		switch state[n] {
		case visited:
			return nil
		case visiting:
			return newCycleError(stack, n)
		}

		state[n] = visiting
		stack = append(stack, n)
		for _, dep := range depsOf(n) {
			if dep == zero {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[n] = visited
		order = append(order, n)
		return nil
	}

	for _, n := range nodes {
		if n == zero {
			continue
		}
		if err := visit(n); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func newCycleError[T comparable](stack []T, repeated T) *CycleError {
	start := 0
	for i, n := range stack {
		if n == repeated {
			start = i
			break
		}
	}
	path := make([]string, 0, len(stack)-start+1)
	for _, n := range stack[start:] {
		path = append(path, nodeName(n))
	}
	path = append(path, nodeName(repeated))
	return &CycleError{Path: path}
}

func nodeName(n any) string {
	if s, ok := n.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", n)
}
