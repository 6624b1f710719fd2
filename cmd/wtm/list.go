package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrbonezy/wtm/ui"
	"github.com/mrbonezy/wtm/worktree"
)

type listItem struct {
	Name string `json:"name"`
	worktree.Record
}

func newListCommand(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List worktrees with their internal ids",
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runList(a, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func runList(a *app, asJSON bool) error {
	m, err := a.manager()
	if err != nil {
		return err
	}
	records, err := m.List()
	if err != nil {
		return err
	}

	if asJSON {
		items := make([]listItem, 0, len(records))
		for _, rec := range records {
			items = append(items, listItem{Name: rec.DisplayName(), Record: rec})
		}
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	styles := ui.PlainStyles()
	if isInteractiveTerminal(a.stdout) {
		styles = ui.DefaultStyles(true)
	}
	fmt.Fprint(a.stdout, ui.RenderWorktreeTable(worktreeRows(records), styles))
	return nil
}

func worktreeRows(records []worktree.Record) []ui.WorktreeRow {
	rows := make([]ui.WorktreeRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, ui.WorktreeRow{
			ID:      rec.InternalID,
			Name:    rec.DisplayName(),
			Branch:  rec.Branch,
			Flags:   ui.FormatFlags(rec.IsMain, rec.IsLocked, rec.HasUncommittedChanges, rec.Missing),
			Path:    rec.Path,
			Current: rec.IsCurrent,
			Missing: rec.Missing,
		})
	}
	return rows
}
