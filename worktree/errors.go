package worktree

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidName              = errors.New("invalid worktree name")
	ErrInvalidPath              = errors.New("invalid worktree path")
	ErrBusy                     = errors.New("another process is using this repository")
	ErrNotFound                 = errors.New("worktree not found")
	ErrCollision                = errors.New("name already in use")
	ErrCurrentWorktreeProtected = errors.New("worktree is protected")
	ErrWorktreeLocked           = errors.New("worktree is locked")
	ErrRepairFailed             = errors.New("worktree metadata repair failed")
	ErrUnrecoverable            = errors.New("worktree left in an inconsistent state")
	ErrBranchInUse              = errors.New("branch not deleted")

	errGitNotInstalled    = errors.New("git not installed")
	errNotInGitRepository = errors.New("not in a git repository")
)

// RepairError reports a rename whose metadata could not be rewritten. The
// directory move has already been rolled back when this is returned.
type RepairError struct {
	InternalID string
	OldPath    string
	NewPath    string
	Err        error
}

func (e *RepairError) Error() string {
	return fmt.Sprintf("%v for %q (%s -> %s); rolled back: %v", ErrRepairFailed, e.InternalID, e.OldPath, e.NewPath, e.Err)
}

func (e *RepairError) Unwrap() error { return e.Err }

func (e *RepairError) Is(target error) bool { return target == ErrRepairFailed }

// UnrecoverableError reports a rename that failed and whose rollback also
// failed. The worktree directory sits at NewPath (or is split between both
// paths after a cross-device copy) while the admin record may still point at
// OldPath.
type UnrecoverableError struct {
	InternalID  string
	OldPath     string
	NewPath     string
	AdminDir    string
	Err         error
	RollbackErr error
}

func (e *UnrecoverableError) Error() string {
	return fmt.Sprintf("%v: %q could not be moved back from %s to %s: %v (rollback: %v)",
		ErrUnrecoverable, e.InternalID, e.NewPath, e.OldPath, e.Err, e.RollbackErr)
}

func (e *UnrecoverableError) Unwrap() []error { return []error{e.Err, e.RollbackErr} }

func (e *UnrecoverableError) Is(target error) bool { return target == ErrUnrecoverable }

// RecoveryInstructions tells a human how to finish the operation by hand.
func (e *UnrecoverableError) RecoveryInstructions() string {
	var b strings.Builder
	fmt.Fprintf(&b, "The worktree %q could not be restored automatically.\n", e.InternalID)
	fmt.Fprintf(&b, "  original path: %s\n", e.OldPath)
	fmt.Fprintf(&b, "  new path:      %s\n", e.NewPath)
	if e.AdminDir != "" {
		fmt.Fprintf(&b, "  admin record:  %s\n", e.AdminDir)
	}
	b.WriteString("To finish by hand:\n")
	fmt.Fprintf(&b, "  1. make sure the complete working tree is at exactly one of the two paths\n")
	fmt.Fprintf(&b, "  2. run: wtm repair %s <that path>\n", e.InternalID)
	fmt.Fprintf(&b, "     (or: git worktree repair <that path>)\n")
	return b.String()
}
