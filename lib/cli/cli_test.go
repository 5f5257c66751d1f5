package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHelp(t *testing.T) {
	var out bytes.Buffer
	fs := NewFlagSet("build", "[containers...]", &out)
	fs.Bool("verbose", true, "print build output")

	done, err := Parse(fs, []string{"-h"})
	require.NoError(t, err)
	assert.True(t, done)
	assert.Contains(t, out.String(), "bay build [containers...]")
}

func TestParseInvalidFlag(t *testing.T) {
	fs := NewFlagSet("build", "", &bytes.Buffer{})

	done, err := Parse(fs, []string{"--nope"})
	assert.False(t, done)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 2, exitErr.Code)
}

func TestToggle(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want bool
	}{
		{name: "default", args: nil, want: true},
		{name: "negated", args: []string{"--no-cache"}, want: false},
		{name: "last wins", args: []string{"--no-cache", "--cache"}, want: true},
		{name: "explicit value", args: []string{"--cache=false"}, want: false},
		{name: "short off", args: []string{"-1"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cache bool
			fs := NewFlagSet("build", "", &bytes.Buffer{})
			Toggle(fs, &cache, true, []string{"cache"}, []string{"no-cache", "1"}, "use the build cache")

			_, err := Parse(fs, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cache)
		})
	}
}

func TestExit(t *testing.T) {
	err := Exit(1, "build of %s failed", "web")
	assert.Equal(t, 1, err.Code)
	assert.Equal(t, "build of web failed", err.Error())
}
