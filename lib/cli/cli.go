// Package cli holds the flag parsing conventions shared by bay commands.
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Exit returns an ExitError with a formatted message.
func Exit(code int, format string, args ...any) *ExitError {
	return &ExitError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewFlagSet creates a flag set that reports errors instead of exiting.
func NewFlagSet(name, usage string, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintf(output, "Usage:\n  bay %s %s\n\nOptions:\n", name, usage)
		fs.PrintDefaults()
	}
	return fs
}

// Parse parses args into fs. It returns true when help was requested and the
// command should return without doing anything. Invalid flags are reported
// as an ExitError with code 2.
func Parse(fs *flag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return true, nil
		}
		return false, &ExitError{Code: 2, Message: err.Error()}
	}
	return false, nil
}

// Toggle registers boolean flags sharing one value: each name in on sets *p
// to true and each name in off sets it to false. The last flag given wins.
func Toggle(fs *flag.FlagSet, p *bool, value bool, on, off []string, usage string) {
	*p = value
	for _, name := range on {
		fs.BoolFunc(name, usage, func(s string) error {
			return setBool(p, s, false)
		})
	}
	for _, name := range off {
		fs.BoolFunc(name, "disable: "+usage, func(s string) error {
			return setBool(p, s, true)
		})
	}
}

func setBool(p *bool, s string, invert bool) error {
	v := true
	switch s {
	case "true", "1":
	case "false", "0":
		v = false
	default:
		return fmt.Errorf("invalid boolean %q", s)
	}
	*p = v != invert
	return nil
}
