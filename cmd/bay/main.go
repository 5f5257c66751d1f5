package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gookit/color"

	"github.com/onkernel/bay/lib/cli"
	"github.com/onkernel/bay/lib/logger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Message != "" {
				fmt.Fprintln(os.Stderr, exitErr.Message)
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, color.Red.Sprint("Error: ")+err.Error())
		os.Exit(1)
	}
}

func run(args []string) error {
	a, cleanup, err := initializeApp()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(a.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, a.Logger)

	if _, err := a.Plugins.Load(ctx, a.App); err != nil {
		return fmt.Errorf("load plugins: %w", err)
	}

	return a.App.Run(ctx, args)
}
