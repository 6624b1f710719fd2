package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mrbonezy/wtm/worktree"
)

const (
	exitGeneric       = 1
	exitUnrecoverable = 2
	exitBusy          = 3
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	a := newApp(stdout, stderr)
	defer a.close()
	err := newRootCommand(a, args).Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintln(stderr, "wtm error:", err)
	var unrecoverable *worktree.UnrecoverableError
	if errors.As(err, &unrecoverable) {
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, unrecoverable.RecoveryInstructions())
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, worktree.ErrUnrecoverable):
		return exitUnrecoverable
	case errors.Is(err, worktree.ErrBusy):
		return exitBusy
	default:
		return exitGeneric
	}
}
