package builds

import (
	"fmt"
	"io"

	"github.com/gookit/color"
)

// PrintFailure shows the log tail of a failed build on out and where the
// full log is on errOut.
func PrintFailure(out, errOut io.Writer, failure *BuildFailureError) {
	fmt.Fprintln(out, color.Red.Sprintf("Build failed! Last %d lines of log:", TailLines))
	for _, line := range failure.Tail {
		fmt.Fprintln(out, "  "+line)
	}
	fmt.Fprintf(errOut, "See full build log at %s\n", failure.LogPath)
}
