package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/mrbonezy/wtm/worktree"
)

// runPostCreateHooks runs each configured command in the new worktree. A
// failing hook is reported and the rest still run.
func runPostCreateHooks(commands []string, rec worktree.Record, stdout io.Writer, stderr io.Writer) []error {
	var errs []error
	for _, command := range commands {
		command = strings.TrimSpace(command)
		if command == "" {
			continue
		}
		if err := hookCommand(command, rec, stdout, stderr).Run(); err != nil {
			errs = append(errs, fmt.Errorf("post-create hook %q: %w", command, err))
		}
	}
	return errs
}

func hookCommand(command string, rec worktree.Record, stdout io.Writer, stderr io.Writer) *exec.Cmd {
	cmd := exec.Command("/bin/sh", "-lc", command)
	cmd.Dir = rec.Path
	cmd.Stdin = os.Stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = append(os.Environ(),
		"WTM_WORKTREE_ID="+rec.InternalID,
		"WTM_WORKTREE_PATH="+rec.Path,
		"WTM_BRANCH="+rec.Branch,
	)
	return cmd
}
