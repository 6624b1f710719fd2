package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrbonezy/wtm/ui"
)

func newLockCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Inspect or clear the repository lease",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runLockStatus(a)
		},
	}
	cmd.AddCommand(newLockStatusCommand(a), newLockClearCommand(a))
	return cmd
}

func newLockStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show who holds the repository lease",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runLockStatus(a)
		},
	}
}

func newLockClearCommand(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the repository lease regardless of owner",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runLockClear(a, yes)
		},
	}
	addYesFlag(cmd.Flags(), &yes)
	return cmd
}

func runLockStatus(a *app) error {
	m, err := a.manager()
	if err != nil {
		return err
	}
	info, held, err := m.LockStatus()
	if err != nil {
		return err
	}
	styles := ui.PlainStyles()
	if isInteractiveTerminal(a.stdout) {
		styles = ui.DefaultStyles(false)
	}
	if !held {
		fmt.Fprint(a.stdout, ui.RenderLease(nil, styles))
		return nil
	}
	fmt.Fprint(a.stdout, ui.RenderLease(&ui.LeaseView{
		Path:      info.Path,
		Operation: info.Operation,
		Owner:     info.OwnerID,
		PID:       info.PID,
		Host:      info.Host,
		Age:       info.Age,
		Stale:     info.Stale,
	}, styles))
	return nil
}

func runLockClear(a *app, yes bool) error {
	m, err := a.manager()
	if err != nil {
		return err
	}
	info, held, err := m.LockStatus()
	if err != nil {
		return err
	}
	if !held {
		fmt.Fprintln(a.stdout, "No lease held.")
		return nil
	}
	if !yes {
		if !canPrompt(a.stderr) {
			return errors.New("refusing to clear the lease without --yes")
		}
		desc := fmt.Sprintf("Held by pid %d on %s for %s. Only clear it if that process is gone.", info.PID, info.Host, ui.FormatAge(info.Age))
		confirmed, err := confirmFn("Clear the repository lease?", desc)
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Fprintln(a.stderr, "Aborted.")
			return nil
		}
	}
	if err := m.ClearLock(); err != nil {
		return err
	}
	a.log.Warn("lease cleared by user", "path", info.Path, "owner", info.OwnerID)
	fmt.Fprintln(a.stdout, "Lease cleared.")
	return nil
}
