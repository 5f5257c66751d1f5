package app

import "errors"

var (
	// ErrUnknownCommand is returned when no command or alias matches
	ErrUnknownCommand = errors.New("unknown command")

	// ErrDuplicateCommand is returned when two plugins register the same name
	ErrDuplicateCommand = errors.New("command already registered")
)
