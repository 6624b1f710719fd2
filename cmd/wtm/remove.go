package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrbonezy/wtm/worktree"
)

func newRemoveCommand(a *app) *cobra.Command {
	var opts worktree.RemoveOptions
	var yes bool
	cmd := &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a worktree and optionally its branch",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("delete-branch") {
				opts.DeleteBranch = a.cfg.DeleteBranchOnRemove
			}
			return runRemove(a, args[0], opts, yes)
		},
		ValidArgsFunction: completeWorktreeIDs(a),
	}
	fs := cmd.Flags()
	fs.BoolVarP(&opts.DeleteBranch, "delete-branch", "d", false, "Also delete the branch (default from config)")
	fs.BoolVarP(&opts.Force, "force", "f", false, "Remove even with uncommitted changes or a git lock")
	fs.BoolVar(&opts.ForceBranch, "force-branch", false, "Delete the branch even when unmerged")
	addYesFlag(fs, &yes)
	return cmd
}

func runRemove(a *app, id string, opts worktree.RemoveOptions, yes bool) error {
	m, err := a.manager()
	if err != nil {
		return err
	}
	if !yes && canPrompt(a.stderr) {
		rec, ok, err := m.Find(id)
		if err != nil {
			return err
		}
		if !ok {
			return withIDHint(m, id, fmt.Errorf("%w: no worktree with internal id %q", worktree.ErrNotFound, id))
		}
		desc := fmt.Sprintf("%s on %s", rec.Path, rec.Branch)
		if opts.DeleteBranch {
			desc += " (branch will be deleted)"
		}
		confirmed, err := confirmFn(fmt.Sprintf("Remove worktree %s?", rec.DisplayName()), desc)
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Fprintln(a.stderr, "Aborted.")
			return nil
		}
	}

	stop := startDelayedSpinner(a.stderr, fmt.Sprintf("Removing %s...", id), spinnerDelay)
	result, err := m.Remove(id, opts)
	stop()
	if err != nil {
		return withIDHint(m, id, err)
	}
	for _, warning := range result.Warnings {
		a.warn(warning)
	}
	fmt.Fprintf(a.stdout, "Removed %s (%s)\n", id, result.Record.Path)
	if result.BranchDeleted {
		fmt.Fprintf(a.stdout, "Deleted branch %s\n", result.Record.Branch)
	}
	return nil
}
