package plugins

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicatePlugin is returned when two factories produce the same plugin name
var ErrDuplicatePlugin = errors.New("duplicate plugin")

// DependencyError reports a required capability that is provided by no
// plugin or by more than one.
type DependencyError struct {
	Plugin     string
	Capability string
	Providers  []string
}

func (e *DependencyError) Error() string {
	if len(e.Providers) == 0 {
		return fmt.Sprintf("plugin %s requires %q but no plugin provides it", e.Plugin, e.Capability)
	}
	return fmt.Sprintf("plugin %s requires %q which is provided by more than one plugin: %s",
		e.Plugin, e.Capability, strings.Join(e.Providers, ", "))
}
