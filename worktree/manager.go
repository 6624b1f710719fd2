package worktree

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"

	"github.com/mrbonezy/wtm/logging"
)

// Operation phases, logged at every transition.
const (
	phaseIdle               = "idle"
	phaseLockAcquired       = "lock_acquired"
	phaseValidated          = "validated"
	phaseMutated            = "mutated"
	phaseMetadataConsistent = "metadata_consistent"
	phaseRollingBack        = "rolling_back"
	phaseLockReleased       = "lock_released"
)

type Options struct {
	// Cwd decides which worktree is current; os.Getwd when empty.
	Cwd        string
	StaleAfter time.Duration
	Logs       logging.Provider
	// Filesystem carries link file I/O; the host filesystem when nil.
	Filesystem billy.Filesystem
	// WrapVCS lets callers decorate the git driver.
	WrapVCS func(VCS) VCS
}

// Manager runs create, rename, remove and repair under the repository lease.
// Every mutating call addresses worktrees by internal id.
type Manager struct {
	repo     Repository
	vcs      VCS
	admin    *AdminStore
	locks    *LockManager
	registry *Registry
	repairer *Repairer
	cwd      string
	log      *logging.ScopedLogger
}

// Open discovers the repository containing dir.
func Open(dir string, opts Options) (*Manager, error) {
	cwd := opts.Cwd
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		cwd = wd
	}
	if dir == "" {
		dir = cwd
	}

	scoped := func(scope string) *logging.ScopedLogger {
		if opts.Logs == nil {
			return logging.NopLogger()
		}
		return opts.Logs.For(scope)
	}

	cli, err := Discover(dir)
	if err != nil {
		return nil, err
	}
	cli.WithLogger(scoped("git"))

	var vcs VCS = cli
	if opts.WrapVCS != nil {
		vcs = opts.WrapVCS(cli)
	}

	repo := cli.Repository()
	admin := NewAdminStore(repo.CommonDir, opts.Filesystem)
	return &Manager{
		repo:     repo,
		vcs:      vcs,
		admin:    admin,
		locks:    NewLockManager(opts.StaleAfter, scoped("lock")),
		registry: NewRegistry(vcs, admin, cwd, scoped("registry")),
		repairer: NewRepairer(admin, vcs, scoped("repair")),
		cwd:      normalizePath(cwd),
		log:      scoped("manager"),
	}, nil
}

func (m *Manager) Repository() Repository {
	return m.repo
}

func (m *Manager) List() ([]Record, error) {
	return m.registry.List()
}

// Records lists worktrees without working tree status.
func (m *Manager) Records() ([]Record, error) {
	return m.registry.list(false)
}

func (m *Manager) Find(id string) (Record, bool, error) {
	return m.registry.Find(id)
}

func (m *Manager) FindByDisplayName(name string) (Record, bool, error) {
	return m.registry.FindByDisplayName(name)
}

// InferPattern reports where the next worktree goes, and false when there
// is no linked worktree to learn from.
func (m *Manager) InferPattern() (Pattern, bool, error) {
	records, err := m.registry.list(false)
	if err != nil {
		return Pattern{}, false, err
	}
	p, ok := InferPattern(m.repo.MainPath, records)
	return p, ok, nil
}

// LockStatus reports the current lease holder, if any.
func (m *Manager) LockStatus() (LockInfo, bool, error) {
	return m.locks.Inspect(m.repo.CommonDir)
}

// ClearLock removes the lease regardless of owner.
func (m *Manager) ClearLock() error {
	return m.locks.ForceUnlock(m.repo.CommonDir)
}

type CreateRequest struct {
	// Name is a bare worktree name, or a path when Explicit is set or it
	// contains a separator.
	Name     string
	Explicit bool
	// Source defaults to a new branch named after the worktree.
	Source BranchSource
	// Fallback placement when no linked worktree exists yet.
	Fallback *Pattern
	// Fetch updates the base's remote before resolving it.
	Fetch bool
}

// Create adds a worktree. Its internal id is the final path component and
// stays fixed for the worktree's lifetime.
func (m *Manager) Create(req CreateRequest) (Record, error) {
	log := m.log.With("op", "create", "request", req.Name)
	phase(log, phaseIdle)

	// Syntax checks happen before the lease so bad input never contends.
	pre, err := Resolve(PlacementRequest{MainPath: m.repo.MainPath, Request: req.Name, Explicit: req.Explicit, Cwd: m.cwd})
	if err != nil {
		return Record{}, err
	}
	src := defaultSource(req.Source, pre.Name)
	if err := validateSource(src); err != nil {
		return Record{}, err
	}

	var created Record
	err = m.withLock(log, "create", func() error {
		records, err := m.registry.list(false)
		if err != nil {
			return err
		}
		placement, err := Resolve(PlacementRequest{
			MainPath: m.repo.MainPath,
			Records:  records,
			Request:  req.Name,
			Explicit: req.Explicit,
			Cwd:      m.cwd,
			Fallback: req.Fallback,
		})
		if err != nil {
			return err
		}
		log = log.With("path", placement.Path, "pattern", placement.Pattern.String())
		if err := m.registry.CheckAvailable(records, placement.Name, ""); err != nil {
			return err
		}
		if _, err := os.Lstat(placement.Path); err == nil {
			return fmt.Errorf("%w: %s already exists", ErrCollision, placement.Path)
		}
		if err := m.checkSource(log, records, src, req.Fetch); err != nil {
			return err
		}
		phase(log, phaseValidated)

		if err := m.vcs.AddWorktree(placement.Path, src); err != nil {
			phase(log, phaseRollingBack)
			m.cleanupFailedAdd(log, placement)
			return fmt.Errorf("git worktree add: %w", err)
		}
		phase(log, phaseMutated)

		id, err := m.admin.IDForWorktree(placement.Path)
		if err != nil {
			return fmt.Errorf("read new worktree: %w", err)
		}
		if id != placement.Name {
			log.Warn("git chose a different internal id", "id", id, "name", placement.Name)
		}
		rec, ok, err := m.registry.Find(id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: worktree %q not listed after create", ErrNotFound, id)
		}
		phase(log, phaseMetadataConsistent)
		created = rec
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	log.Info("worktree created", "id", created.InternalID, "branch", created.Branch)
	return created, nil
}

func defaultSource(src BranchSource, name string) BranchSource {
	if src.Kind == SourceDetached {
		if src.Base == "" {
			src.Base = "HEAD"
		}
		return src
	}
	if strings.TrimSpace(src.Branch) == "" {
		src.Branch = name
	}
	return src
}

func (m *Manager) checkSource(log *logging.ScopedLogger, records []Record, src BranchSource, fetch bool) error {
	switch src.Kind {
	case SourceNewBranch:
		exists, err := m.vcs.BranchExists(src.Branch)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: branch %q already exists", ErrCollision, src.Branch)
		}
		base := src.Base
		if base == "" {
			base = "HEAD"
		}
		return m.resolveBase(log, base, fetch)
	case SourceExistingBranch:
		exists, err := m.vcs.BranchExists(src.Branch)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: branch %q", ErrNotFound, src.Branch)
		}
		for _, rec := range records {
			if rec.Branch == src.Branch {
				return fmt.Errorf("%w: branch %q is checked out in %s", ErrCollision, src.Branch, rec.Path)
			}
		}
		return nil
	case SourceDetached:
		return m.resolveBase(log, src.Base, fetch)
	default:
		return fmt.Errorf("%w: unknown branch source", ErrInvalidName)
	}
}

func (m *Manager) resolveBase(log *logging.ScopedLogger, base string, fetch bool) error {
	if fetch {
		remotes, err := m.vcs.Remotes()
		if err != nil {
			log.Warn("list remotes failed", "error", err)
		} else if remote := remoteOf(base, remotes); remote != "" {
			if err := m.vcs.Fetch(remote); err != nil {
				log.Warn("fetch failed, using local refs", "remote", remote, "error", err)
			}
		}
	}
	if _, err := m.vcs.ResolveRevision(base); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("resolve %q: %w", base, err)
	}
	return nil
}

// cleanupFailedAdd removes whatever a failed `git worktree add` left at a
// path that did not exist before.
func (m *Manager) cleanupFailedAdd(log *logging.ScopedLogger, placement Placement) {
	if _, err := os.Lstat(placement.Path); err == nil {
		if err := os.RemoveAll(placement.Path); err != nil {
			log.Warn("cleanup of partial worktree failed", "error", err)
		}
	}
	if m.admin.HasEntry(placement.Name) {
		if _, target, err := m.admin.ReadGitdir(placement.Name); err == nil && samePath(target, placement.Path) {
			if err := m.admin.RemoveEntry(placement.Name); err != nil {
				log.Warn("cleanup of partial admin entry failed", "error", err)
			}
		}
	}
}

// Rename moves worktree id to a sibling directory called newName. The
// branch and internal id are unchanged.
func (m *Manager) Rename(id, newName string) (Record, error) {
	log := m.log.With("op", "rename", "id", id, "new_name", newName)
	phase(log, phaseIdle)

	if err := ValidateName(newName); err != nil {
		return Record{}, err
	}
	rec, err := m.mutable(id)
	if err != nil {
		return Record{}, err
	}
	if rec.DisplayName() == newName {
		log.Debug("rename is a no-op")
		return rec, nil
	}

	var renamed Record
	err = m.withLock(log, "rename", func() error {
		rec, err := m.mutable(id)
		if err != nil {
			return err
		}
		if rec.IsLocked {
			return fmt.Errorf("%w: %s (%s)", ErrWorktreeLocked, rec.DisplayName(), rec.LockReason)
		}
		if rec.Missing {
			return fmt.Errorf("%w: directory %s is missing", ErrNotFound, rec.Path)
		}
		records, err := m.registry.list(false)
		if err != nil {
			return err
		}
		if err := m.registry.CheckAvailable(records, newName, id); err != nil {
			return err
		}
		newPath := filepath.Join(filepath.Dir(rec.Path), newName)
		if _, err := os.Lstat(newPath); err == nil {
			return fmt.Errorf("%w: %s already exists", ErrCollision, newPath)
		}
		phase(log, phaseValidated)

		if err := m.repairer.Repair(id, rec.Path, newPath); err != nil {
			return err
		}
		phase(log, phaseMutated)

		after, ok, err := m.registry.Find(id)
		if err != nil {
			return err
		}
		if !ok || !samePath(after.Path, newPath) {
			return fmt.Errorf("%w: %q not found at %s after rename", ErrRepairFailed, id, newPath)
		}
		phase(log, phaseMetadataConsistent)
		renamed = after
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	log.Info("worktree renamed", "path", renamed.Path)
	return renamed, nil
}

type RemoveOptions struct {
	DeleteBranch bool
	// Force removes dirty or git-locked worktrees.
	Force bool
	// ForceBranch deletes an unmerged branch.
	ForceBranch bool
}

type RemoveResult struct {
	Record        Record
	BranchDeleted bool
	// Warnings are non-fatal: ErrBranchInUse for a kept branch, or a failure
	// to record the removed internal id.
	Warnings []error
}

// Remove deletes worktree id and, optionally, its branch. A branch that
// another worktree has checked out, or that is already gone, is kept and
// reported as a warning.
func (m *Manager) Remove(id string, opts RemoveOptions) (RemoveResult, error) {
	log := m.log.With("op", "remove", "id", id)
	phase(log, phaseIdle)

	if _, err := m.mutable(id); err != nil {
		return RemoveResult{}, err
	}

	var result RemoveResult
	err := m.withLock(log, "remove", func() error {
		rec, err := m.mutable(id)
		if err != nil {
			return err
		}
		if rec.IsLocked && !opts.Force {
			return fmt.Errorf("%w: %s (%s); use force to remove it", ErrWorktreeLocked, rec.DisplayName(), rec.LockReason)
		}
		records, err := m.registry.list(false)
		if err != nil {
			return err
		}
		result.Record = rec

		deleteBranch := false
		if opts.DeleteBranch {
			if warn := branchDeletionBlocker(records, rec); warn != nil {
				result.Warnings = append(result.Warnings, warn)
			} else {
				deleteBranch = true
			}
		}
		phase(log, phaseValidated)

		if rec.Missing {
			err = m.admin.RemoveEntry(id)
		} else {
			err = m.vcs.RemoveWorktree(rec.Path, opts.Force)
		}
		if err != nil {
			return fmt.Errorf("remove worktree %q: %w", id, err)
		}
		phase(log, phaseMutated)

		if m.admin.HasEntry(id) {
			return fmt.Errorf("admin entry %q still present after remove", id)
		}
		if err := m.admin.Retire(id); err != nil {
			log.Warn("could not retire internal id", "error", err)
			result.Warnings = append(result.Warnings, fmt.Errorf("record removed id %q: %w", id, err))
		}
		phase(log, phaseMetadataConsistent)

		if deleteBranch {
			if err := m.deleteBranch(rec.Branch, opts.ForceBranch); err != nil {
				log.Warn("branch kept", "branch", rec.Branch, "error", err)
				result.Warnings = append(result.Warnings, err)
			} else {
				result.BranchDeleted = true
			}
		}
		return nil
	})
	if err != nil {
		return RemoveResult{}, err
	}
	log.Info("worktree removed", "path", result.Record.Path, "branch_deleted", result.BranchDeleted)
	return result, nil
}

func branchDeletionBlocker(records []Record, rec Record) error {
	if rec.Branch == "" || rec.Branch == DetachedBranch {
		return fmt.Errorf("%w: worktree has no branch checked out", ErrBranchInUse)
	}
	for _, other := range records {
		if other.InternalID != rec.InternalID && other.Branch == rec.Branch {
			return fmt.Errorf("%w: %q is also checked out in %s", ErrBranchInUse, rec.Branch, other.Path)
		}
	}
	return nil
}

func (m *Manager) deleteBranch(branch string, force bool) error {
	exists, err := m.vcs.BranchExists(branch)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBranchInUse, err)
	}
	if !exists {
		return fmt.Errorf("%w: %q no longer exists", ErrBranchInUse, branch)
	}
	if err := m.vcs.DeleteBranch(branch, force); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrBranchInUse, branch, err)
	}
	return nil
}

// Repair rebinds admin record id to the directory at path, for finishing a
// rename that could not be rolled back. An empty path re-checks the location
// the admin record already names.
func (m *Manager) Repair(id, path string) (Record, error) {
	log := m.log.With("op", "repair", "id", id)
	phase(log, phaseIdle)

	if id == MainWorktreeID || !m.admin.HasEntry(id) {
		return Record{}, fmt.Errorf("%w: no admin record %q", ErrNotFound, id)
	}

	var repaired Record
	err := m.withLock(log, "repair", func() error {
		target := path
		if target == "" {
			_, current, err := m.admin.ReadGitdir(id)
			if err != nil {
				return err
			}
			target = current
		}
		target = normalizePath(target)
		if !filepath.IsAbs(target) {
			target = filepath.Join(m.cwd, target)
		}
		log = log.With("path", target)
		phase(log, phaseValidated)

		if err := m.repairer.Rebind(id, target); err != nil {
			return err
		}
		phase(log, phaseMutated)

		rec, ok, err := m.registry.Find(id)
		if err != nil {
			return err
		}
		if !ok || !samePath(rec.Path, target) {
			return fmt.Errorf("%w: %q not found at %s after repair", ErrRepairFailed, id, target)
		}
		phase(log, phaseMetadataConsistent)
		repaired = rec
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	log.Info("worktree repaired", "path", repaired.Path)
	return repaired, nil
}

// mutable looks up id and refuses the main worktree and any worktree the
// process is running inside.
func (m *Manager) mutable(id string) (Record, error) {
	if id == MainWorktreeID {
		return Record{}, fmt.Errorf("%w: the main worktree cannot be renamed or removed", ErrCurrentWorktreeProtected)
	}
	rec, ok, err := m.registry.Find(id)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, fmt.Errorf("%w: no worktree with internal id %q", ErrNotFound, id)
	}
	if rec.IsMain {
		return Record{}, fmt.Errorf("%w: the main worktree cannot be renamed or removed", ErrCurrentWorktreeProtected)
	}
	if rec.IsCurrent || (m.cwd != "" && isWithin(m.cwd, rec.Path)) {
		return Record{}, fmt.Errorf("%w: %s is the current worktree", ErrCurrentWorktreeProtected, rec.DisplayName())
	}
	return rec, nil
}

func (m *Manager) withLock(log *logging.ScopedLogger, operation string, fn func() error) (err error) {
	lock, err := m.locks.AcquireFor(m.repo.CommonDir, operation)
	if err != nil {
		log.Debug("lease not acquired", "error", err)
		return err
	}
	phase(log, phaseLockAcquired)
	defer func() {
		if rerr := lock.Release(); rerr != nil {
			log.Warn("lease release failed", "error", rerr)
		}
		log.Debug("phase", "state", phaseLockReleased, "ok", err == nil)
	}()
	return fn()
}

func phase(log *logging.ScopedLogger, state string) {
	if state == phaseRollingBack {
		log.Warn("phase", "state", state)
		return
	}
	log.Debug("phase", "state", state)
}
