// Package tasks reports hierarchical progress to the terminal. A task prints
// one line per event, indented by its depth. Tasks never affect control flow.
package tasks

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gookit/color"
)

// Flavor colours the final status of a task.
type Flavor int

const (
	Neutral Flavor = iota
	Good
	Bad
	Warning
)

func (f Flavor) paint(s string) string {
	switch f {
	case Good:
		return color.Success.Sprint(s)
	case Bad:
		return color.Danger.Sprint(s)
	case Warning:
		return color.Warn.Sprint(s)
	default:
		return s
	}
}

// sink is shared by a task tree so lines from different tasks never interleave.
type sink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *sink) println(depth int, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "%s%s\n", strings.Repeat("  ", depth), line)
}

// Task is one node in the progress tree.
type Task struct {
	label string
	depth int
	out   *sink

	mu       sync.Mutex
	status   string
	flavor   Flavor
	finished bool
	extra    []string
}

// New creates a root task writing to w. An empty label prints nothing until
// the first update.
func New(w io.Writer, label string) *Task {
	t := &Task{label: label, out: &sink{w: w}}
	if label != "" {
		t.out.println(0, color.Bold.Sprint(label))
	}
	return t
}

// Discard returns a root task that prints nothing.
func Discard() *Task {
	return New(io.Discard, "")
}

// NewChild starts a subtask one level deeper.
func (t *Task) NewChild(label string) *Task {
	depth := t.depth + 1
	if t.label == "" && t.depth == 0 {
		depth = 0
	}
	child := &Task{label: label, depth: depth, out: t.out}
	child.out.println(depth, label)
	return child
}

// Update records and prints a progress status.
func (t *Task) Update(status string) {
	t.mu.Lock()
	t.status = status
	t.mu.Unlock()
	t.out.println(t.depth, t.line(status, Neutral))
}

// Finish records and prints the final status.
func (t *Task) Finish(status string, flavor Flavor) {
	t.mu.Lock()
	t.status = status
	t.flavor = flavor
	t.finished = true
	t.mu.Unlock()
	t.out.println(t.depth, t.line(status, flavor))
}

// AddExtraInfo prints an indented note below the task.
func (t *Task) AddExtraInfo(text string) {
	t.mu.Lock()
	t.extra = append(t.extra, text)
	t.mu.Unlock()
	for _, l := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		t.out.println(t.depth+1, color.Gray.Sprint(l))
	}
}

func (t *Task) line(status string, flavor Flavor) string {
	if t.label == "" {
		return flavor.paint(status)
	}
	return t.label + ": " + flavor.paint(status)
}
