package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRepairCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "repair <id> [path]",
		Short: "Re-bind a worktree's git metadata to its directory",
		Long: "Re-bind the admin record <id> to the worktree directory at [path].\n" +
			"Use it to finish a rename that wtm could not roll back, or after moving\n" +
			"a worktree by hand. Without [path] the recorded location is re-checked.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			path := ""
			if len(args) == 2 {
				path = args[1]
			}
			return runRepair(a, args[0], path)
		},
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 1 {
				return nil, cobra.ShellCompDirectiveFilterDirs
			}
			return completeWorktreeIDs(a)(cmd, args, toComplete)
		},
	}
}

func runRepair(a *app, id string, path string) error {
	m, err := a.manager()
	if err != nil {
		return err
	}
	rec, err := m.Repair(id, path)
	if err != nil {
		return withIDHint(m, id, err)
	}
	fmt.Fprintf(a.stdout, "Repaired %s at %s\n", rec.InternalID, rec.Path)
	return nil
}
