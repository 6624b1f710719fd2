package worktree

import (
	"path/filepath"
	"strings"
)

const (
	// DetachedBranch is the Branch value of a worktree with a detached HEAD.
	DetachedBranch = "detached"
	// MainWorktreeID is the internal id reported for the main worktree, which
	// has no per-worktree admin record. It can never pass ValidateName.
	MainWorktreeID = "."
)

// Record is one worktree known to git. InternalID is the admin record name
// under <git-common-dir>/worktrees and never changes; the display name is the
// basename of Path and follows renames.
type Record struct {
	InternalID            string `json:"internal_id"`
	Path                  string `json:"path"`
	Branch                string `json:"branch"`
	Head                  string `json:"head,omitempty"`
	IsMain                bool   `json:"is_main"`
	IsCurrent             bool   `json:"is_current"`
	IsLocked              bool   `json:"is_locked"`
	LockReason            string `json:"lock_reason,omitempty"`
	HasUncommittedChanges bool   `json:"has_uncommitted_changes"`
	Missing               bool   `json:"missing,omitempty"`
}

func (r Record) DisplayName() string {
	if strings.TrimSpace(r.Path) == "" {
		return ""
	}
	return filepath.Base(r.Path)
}

// Renamed reports whether the worktree no longer lives under the name it was
// created with.
func (r Record) Renamed() bool {
	return !r.IsMain && r.DisplayName() != r.InternalID
}

// SourceKind selects what a new worktree checks out.
type SourceKind int

const (
	// SourceNewBranch creates Branch from Base (HEAD when empty).
	SourceNewBranch SourceKind = iota
	// SourceExistingBranch checks out an existing local Branch.
	SourceExistingBranch
	// SourceDetached checks out Base (a tag or commit) with a detached HEAD.
	SourceDetached
)

func (k SourceKind) String() string {
	switch k {
	case SourceNewBranch:
		return "new-branch"
	case SourceExistingBranch:
		return "existing-branch"
	case SourceDetached:
		return "detached"
	default:
		return "unknown"
	}
}

type BranchSource struct {
	Kind   SourceKind
	Branch string
	Base   string
}

// WorktreeEntry is one block of `git worktree list --porcelain`.
type WorktreeEntry struct {
	Path       string
	Head       string
	Branch     string
	Bare       bool
	Locked     bool
	LockReason string
	Prunable   bool
}
