package ui

import (
	"strings"

	"github.com/muesli/termenv"
)

type WorktreeRow struct {
	ID     string
	Name   string
	Branch string
	Flags  string
	Path   string
	// Current rows are highlighted; Missing rows are dimmed.
	Current bool
	Missing bool
}

const (
	idWidth     = 20
	nameWidth   = 24
	branchWidth = 32

	// Wide enough for every flag at once.
	flagsWidth = len("main,missing,locked,dirty")
)

// RenderWorktreeTable renders one line per worktree. The internal id column
// is blank when it matches the name.
func RenderWorktreeTable(rows []WorktreeRow, styles Styles) string {
	var b strings.Builder
	header := formatWorktreeLine("ID", "Name", "Branch", "Status") + "Path"
	b.WriteString(styles.Header("  " + header))
	b.WriteString("\n")
	if len(rows) == 0 {
		b.WriteString("  ")
		b.WriteString(styles.Disabled("No worktrees."))
		b.WriteString("\n")
		return b.String()
	}
	for _, row := range rows {
		id := row.ID
		if id == row.Name {
			id = ""
		}
		marker := "  "
		if row.Current {
			marker = "* "
		}
		line := formatWorktreeLine(id, row.Name, row.Branch, row.Flags)
		path := row.Path
		if styles.Links && !row.Missing {
			path = termenv.Hyperlink("file://"+row.Path, row.Path)
		}

		switch {
		case row.Missing:
			b.WriteString(marker + styles.Disabled(line) + styles.Warn(path))
		case row.Current:
			b.WriteString(marker + styles.Current(line) + styles.Secondary(path))
		default:
			b.WriteString(marker + styles.Normal(line) + styles.Secondary(path))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatWorktreeLine(id string, name string, branch string, flags string) string {
	return PadOrTrim(id, idWidth) + " " +
		PadOrTrim(name, nameWidth) + " " +
		PadOrTrim(branch, branchWidth) + " " +
		PadOrTrim(flags, flagsWidth) + " "
}

// FormatFlags joins the status markers shown in the table.
func FormatFlags(main bool, locked bool, dirty bool, missing bool) string {
	var flags []string
	if main {
		flags = append(flags, "main")
	}
	if missing {
		flags = append(flags, "missing")
	}
	if locked {
		flags = append(flags, "locked")
	}
	if dirty {
		flags = append(flags, "dirty")
	}
	if len(flags) == 0 {
		return "-"
	}
	return strings.Join(flags, ",")
}
