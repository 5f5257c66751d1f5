package builds

import "fmt"

// BuildFailureError is a failed image build. Tail holds the last lines of
// the shared build log with colour codes removed.
type BuildFailureError struct {
	Container string
	LogPath   string
	Tail      []string
	Err       error
}

func (e *BuildFailureError) Error() string {
	return fmt.Sprintf("build of %s failed: %v", e.Container, e.Err)
}

func (e *BuildFailureError) Unwrap() error {
	return e.Err
}
