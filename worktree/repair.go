package worktree

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/mrbonezy/wtm/logging"
)

// worktreeRepairer is the part of the VCS driver the repair engine needs.
type worktreeRepairer interface {
	RepairWorktree(path string) error
}

// Repairer moves a worktree directory and rebinds it to its admin record.
// Any failure after the move is compensated by restoring both link files and
// moving the directory back.
type Repairer struct {
	admin  *AdminStore
	git    worktreeRepairer
	log    *logging.ScopedLogger
	move   func(src, dst string) error
	verify func(id, path string) error
}

func NewRepairer(admin *AdminStore, git worktreeRepairer, log *logging.ScopedLogger) *Repairer {
	if log == nil {
		log = logging.NopLogger()
	}
	r := &Repairer{admin: admin, git: git, log: log, move: moveDir}
	r.verify = r.verifyBinding
	return r
}

// linkSnapshot keeps both link files as parsed, for relinking, and as raw
// bytes, so a rollback restores them exactly.
type linkSnapshot struct {
	gitdir    string
	dotGit    string
	gitdirRaw []byte
	dotGitRaw []byte
}

// Repair moves the worktree internalID from oldPath to newPath and rewrites
// its link files. It returns nil only when both links resolve to each other.
// On failure the move is undone and a *RepairError is returned; when the
// undo fails too the error is an *UnrecoverableError.
func (r *Repairer) Repair(internalID, oldPath, newPath string) error {
	log := r.log.With("id", internalID, "from", oldPath, "to", newPath)

	if _, err := os.Lstat(newPath); err == nil {
		return fmt.Errorf("%w: %s already exists", ErrCollision, newPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	snap, err := r.snapshot(internalID, oldPath)
	if err != nil {
		return err
	}

	if err := r.move(oldPath, newPath); err != nil {
		return fmt.Errorf("move %s to %s: %w", oldPath, newPath, err)
	}
	log.Debug("directory moved")

	if err := r.relink(internalID, newPath, snap); err != nil {
		return r.rollback(log, internalID, oldPath, newPath, snap, err)
	}
	if err := r.verify(internalID, newPath); err != nil {
		return r.rollback(log, internalID, oldPath, newPath, snap, err)
	}
	log.Debug("links rewritten")

	r.repairBestEffort(log, newPath)
	return nil
}

// Rebind points admin record internalID at a directory that is already in
// place at path, for example after an interrupted rename was finished by
// hand.
func (r *Repairer) Rebind(internalID, path string) error {
	if !r.admin.HasEntry(internalID) {
		return fmt.Errorf("%w: no admin record %q", ErrNotFound, internalID)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidPath, path)
	}

	previousGitdir, _, _ := r.admin.ReadGitdir(internalID)
	if err := r.admin.WriteGitdir(internalID, r.admin.GitdirFor(internalID, path, previousGitdir)); err != nil {
		return err
	}
	previousDotGit, _, _ := r.admin.ReadDotGit(path)
	if err := r.admin.WriteDotGit(path, r.admin.DotGitFor(internalID, path, previousDotGit)); err != nil {
		return err
	}
	if err := r.verify(internalID, path); err != nil {
		return fmt.Errorf("%w: %v", ErrRepairFailed, err)
	}
	r.repairBestEffort(r.log.With("id", internalID, "path", path), path)
	return nil
}

func (r *Repairer) snapshot(internalID, oldPath string) (linkSnapshot, error) {
	gitdir, _, err := r.admin.ReadGitdir(internalID)
	if err != nil {
		return linkSnapshot{}, fmt.Errorf("read admin record %q: %w", internalID, err)
	}
	snap := linkSnapshot{gitdir: gitdir}
	dotGit, adminDir, err := r.admin.ReadDotGit(oldPath)
	if err != nil {
		return linkSnapshot{}, fmt.Errorf("read %s: %w", filepath.Join(oldPath, dotGitName), err)
	}
	if !samePath(adminDir, r.admin.EntryDir(internalID)) {
		return linkSnapshot{}, fmt.Errorf("%s is bound to %s, not %q", oldPath, adminDir, internalID)
	}
	snap.dotGit = dotGit
	if snap.gitdirRaw, err = r.admin.ReadFile(filepath.Join(r.admin.EntryDir(internalID), gitdirFileName)); err != nil {
		return linkSnapshot{}, err
	}
	if snap.dotGitRaw, err = r.admin.ReadFile(filepath.Join(oldPath, dotGitName)); err != nil {
		return linkSnapshot{}, err
	}
	return snap, nil
}

// relink writes link (1) for newPath. Link (2) only changes when it is
// relative and no longer reaches the admin record from its new location.
func (r *Repairer) relink(internalID, newPath string, snap linkSnapshot) error {
	if err := r.admin.WriteGitdir(internalID, r.admin.GitdirFor(internalID, newPath, snap.gitdir)); err != nil {
		return fmt.Errorf("write gitdir: %w", err)
	}
	if filepath.IsAbs(snap.dotGit) {
		return nil
	}
	if samePath(filepath.Join(newPath, snap.dotGit), r.admin.EntryDir(internalID)) {
		return nil
	}
	if err := r.admin.WriteDotGit(newPath, r.admin.DotGitFor(internalID, newPath, snap.dotGit)); err != nil {
		return fmt.Errorf("write .git: %w", err)
	}
	return nil
}

func (r *Repairer) verifyBinding(internalID, path string) error {
	_, adminDir, err := r.admin.ReadDotGit(path)
	if err != nil {
		return fmt.Errorf("verify .git: %w", err)
	}
	if !samePath(adminDir, r.admin.EntryDir(internalID)) {
		return fmt.Errorf("verify .git: %s points at %s, expected %s", path, adminDir, r.admin.EntryDir(internalID))
	}
	_, worktreePath, err := r.admin.ReadGitdir(internalID)
	if err != nil {
		return fmt.Errorf("verify gitdir: %w", err)
	}
	if !samePath(worktreePath, path) {
		return fmt.Errorf("verify gitdir: %q points at %s, expected %s", internalID, worktreePath, path)
	}
	return nil
}

func (r *Repairer) rollback(log *logging.ScopedLogger, internalID, oldPath, newPath string, snap linkSnapshot, cause error) error {
	log.Warn("rolling_back", "error", cause)

	var restoreErrs []error
	if err := r.admin.WriteFile(filepath.Join(r.admin.EntryDir(internalID), gitdirFileName), snap.gitdirRaw); err != nil {
		restoreErrs = append(restoreErrs, fmt.Errorf("restore gitdir: %w", err))
	}
	if err := r.admin.WriteFile(filepath.Join(newPath, dotGitName), snap.dotGitRaw); err != nil {
		restoreErrs = append(restoreErrs, fmt.Errorf("restore .git: %w", err))
	}
	if err := r.move(newPath, oldPath); err != nil {
		restoreErrs = append(restoreErrs, fmt.Errorf("move back: %w", err))
		return r.unrecoverable(log, internalID, oldPath, newPath, cause, errors.Join(restoreErrs...))
	}
	// A failed restore write may have left the original content untouched,
	// so the final word is whether the original binding holds.
	if err := r.verifyBinding(internalID, oldPath); err != nil {
		restoreErrs = append(restoreErrs, err)
		return r.unrecoverable(log, internalID, oldPath, newPath, cause, errors.Join(restoreErrs...))
	}
	if len(restoreErrs) > 0 {
		log.Debug("restore writes failed but original binding holds", "error", errors.Join(restoreErrs...))
	}
	log.Info("rolled back")
	return &RepairError{InternalID: internalID, OldPath: oldPath, NewPath: newPath, Err: cause}
}

func (r *Repairer) unrecoverable(log *logging.ScopedLogger, internalID, oldPath, newPath string, cause, rollbackErr error) error {
	log.Error("rollback failed", "error", cause, "rollback_error", rollbackErr)
	return &UnrecoverableError{
		InternalID:  internalID,
		OldPath:     oldPath,
		NewPath:     newPath,
		AdminDir:    r.admin.EntryDir(internalID),
		Err:         cause,
		RollbackErr: rollbackErr,
	}
}

func (r *Repairer) repairBestEffort(log *logging.ScopedLogger, path string) {
	if r.git == nil {
		return
	}
	if err := r.git.RepairWorktree(path); err != nil {
		log.Warn("git worktree repair failed", "error", err)
	}
}

// moveDir renames src to dst, copying across filesystems when rename
// cannot. A failed copy leaves src untouched and removes the partial dst.
func moveDir(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if err := copyTree(src, dst); err != nil {
		_ = os.RemoveAll(dst)
		return fmt.Errorf("copy across devices: %w", err)
	}
	return os.RemoveAll(src)
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm())
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case info.Mode().IsRegular():
			return copyFile(path, target, info.Mode().Perm())
		default:
			return fmt.Errorf("cannot copy %s: unsupported file type %s", path, info.Mode().Type())
		}
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
