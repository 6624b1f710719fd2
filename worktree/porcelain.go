package worktree

import (
	"strings"
)

// parseWorktrees parses `git worktree list --porcelain`. Lines that appear
// before any "worktree" line are returned as malformed.
func parseWorktrees(output string) ([]WorktreeEntry, []string) {
	var entries []WorktreeEntry
	var malformed []string
	var current *WorktreeEntry

	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimRight(raw, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, _ := strings.Cut(line, " ")
		if key == "worktree" {
			if strings.TrimSpace(value) == "" {
				malformed = append(malformed, line)
				current = nil
				continue
			}
			entries = append(entries, WorktreeEntry{Path: value})
			current = &entries[len(entries)-1]
			continue
		}
		if current == nil {
			malformed = append(malformed, line)
			continue
		}
		switch key {
		case "HEAD":
			current.Head = strings.TrimSpace(value)
		case "branch":
			current.Branch = shortBranch(value)
		case "detached":
			current.Branch = DetachedBranch
		case "bare":
			current.Bare = true
		case "locked":
			current.Locked = true
			current.LockReason = strings.TrimSpace(value)
		case "prunable":
			current.Prunable = true
		}
	}

	for i := range entries {
		if entries[i].Branch == "" && !entries[i].Bare {
			entries[i].Branch = DetachedBranch
		}
	}
	return entries, malformed
}

func shortBranch(value string) string {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "refs/heads/")
	if value == "" {
		return DetachedBranch
	}
	return value
}
