package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRenameCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <new-name>",
		Short: "Rename a worktree directory, keeping its branch and internal id",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return runRename(a, args[0], args[1])
		},
		ValidArgsFunction: completeWorktreeIDs(a),
	}
}

func runRename(a *app, id string, newName string) error {
	m, err := a.manager()
	if err != nil {
		return err
	}
	before, _, _ := m.Find(id)

	stop := startDelayedSpinner(a.stderr, fmt.Sprintf("Renaming %s...", id), spinnerDelay)
	rec, err := m.Rename(id, newName)
	stop()
	if err != nil {
		return withIDHint(m, id, err)
	}
	if before.Path == rec.Path {
		fmt.Fprintf(a.stdout, "%s is already named %s\n", id, newName)
		return nil
	}
	fmt.Fprintf(a.stdout, "Renamed %s: %s -> %s\n", id, before.Path, rec.Path)
	return nil
}
