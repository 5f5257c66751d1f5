package builds

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/gookit/color"
)

// TailLines is how much of the build log is shown after a failure
const TailLines = 15

// TailLog returns the last n lines of the file at path with colour codes and
// trailing whitespace removed.
func TailLog(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open build log: %w", err)
	}
	defer f.Close()

	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, strings.TrimRight(color.ClearCode(scanner.Text()), " \t\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read build log: %w", err)
	}
	return ring, nil
}

// rotateLog empties the log at path once it grows past max. A zero max
// disables the limit.
func rotateLog(path string, max datasize.ByteSize) (bool, error) {
	if max == 0 {
		return false, nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat build log: %w", err)
	}
	if datasize.ByteSize(info.Size()) <= max {
		return false, nil
	}
	if err := os.Truncate(path, 0); err != nil {
		return false, fmt.Errorf("truncate build log: %w", err)
	}
	return true, nil
}
