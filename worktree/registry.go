package worktree

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/mrbonezy/wtm/logging"
)

// Registry enumerates worktrees. Linked worktrees come from the admin
// entries, so every record carries its internal id; git's porcelain listing
// supplies the main worktree and per-worktree branch state.
type Registry struct {
	vcs   VCS
	admin *AdminStore
	cwd   string
	log   *logging.ScopedLogger
}

func NewRegistry(vcs VCS, admin *AdminStore, cwd string, log *logging.ScopedLogger) *Registry {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Registry{vcs: vcs, admin: admin, cwd: normalizePath(cwd), log: log}
}

// List returns every worktree with its working tree status, main first, then
// by display name.
func (r *Registry) List() ([]Record, error) {
	return r.list(true)
}

func (r *Registry) list(withStatus bool) ([]Record, error) {
	entries, err := r.vcs.ListWorktrees()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: git listed no worktrees", errNotInGitRepository)
	}
	byPath := make(map[string]WorktreeEntry, len(entries))
	for _, e := range entries {
		byPath[normalizePath(e.Path)] = e
	}

	mainEntry := entries[0]
	records := []Record{{
		InternalID: MainWorktreeID,
		Path:       normalizePath(mainEntry.Path),
		Branch:     mainEntry.Branch,
		Head:       mainEntry.Head,
		IsMain:     true,
	}}

	ids, err := r.admin.IDs()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		_, wtPath, err := r.admin.ReadGitdir(id)
		if err != nil {
			r.log.Warn("skipping unreadable admin entry", "id", id, "error", err)
			continue
		}
		path := normalizePath(wtPath)
		rec := Record{InternalID: id, Path: path}
		if e, ok := byPath[path]; ok {
			rec.Branch = e.Branch
			rec.Head = e.Head
			rec.IsLocked = e.Locked
			rec.LockReason = e.LockReason
			rec.Missing = e.Prunable
		} else {
			rec.Branch = r.admin.ReadHead(id)
		}
		if locked, reason := r.admin.Locked(id); locked {
			rec.IsLocked = true
			rec.LockReason = reason
		}
		if _, err := os.Stat(path); err != nil {
			rec.Missing = true
		}
		records = append(records, rec)
	}

	if withStatus {
		for i := range records {
			rec := &records[i]
			if rec.Missing || (rec.IsMain && mainEntry.Bare) {
				continue
			}
			dirty, err := r.vcs.IsDirty(rec.Path)
			if err != nil {
				r.log.Warn("status failed", "path", rec.Path, "error", err)
				continue
			}
			rec.HasUncommittedChanges = dirty
		}
	}

	markCurrent(records, r.cwd)
	sortRecords(records)
	return records, nil
}

// Find looks a worktree up by internal id.
func (r *Registry) Find(id string) (Record, bool, error) {
	records, err := r.list(false)
	if err != nil {
		return Record{}, false, err
	}
	for _, rec := range records {
		if rec.InternalID == id {
			return rec, true, nil
		}
	}
	return Record{}, false, nil
}

func (r *Registry) FindByDisplayName(name string) (Record, bool, error) {
	records, err := r.list(false)
	if err != nil {
		return Record{}, false, err
	}
	return findByDisplayName(records, name)
}

func findByDisplayName(records []Record, name string) (Record, bool, error) {
	for _, rec := range records {
		if rec.DisplayName() == name {
			return rec, true, nil
		}
	}
	return Record{}, false, nil
}

// CheckAvailable fails with ErrCollision when name is already a display name
// or internal id of a worktree other than exceptID, names a leftover admin
// entry, or was the internal id of a removed worktree. Internal ids are never
// reused.
func (r *Registry) CheckAvailable(records []Record, name, exceptID string) error {
	for _, rec := range records {
		if rec.InternalID == exceptID {
			continue
		}
		if rec.DisplayName() == name {
			return fmt.Errorf("%w: %q is the name of worktree %s", ErrCollision, name, rec.Path)
		}
		if !rec.IsMain && rec.InternalID == name {
			return fmt.Errorf("%w: %q is the internal id of worktree %s", ErrCollision, name, rec.DisplayName())
		}
	}
	if name != exceptID && r.admin.HasEntry(name) {
		return fmt.Errorf("%w: admin entry %q already exists", ErrCollision, name)
	}
	if r.admin.IsRetired(name) {
		return fmt.Errorf("%w: %q was the internal id of a removed worktree", ErrCollision, name)
	}
	return nil
}

// markCurrent flags the worktree containing cwd. With nested worktrees the
// deepest one wins.
func markCurrent(records []Record, cwd string) {
	if cwd == "" {
		return
	}
	best, bestLen := -1, -1
	for i, rec := range records {
		if rec.Path == "" || !isWithin(cwd, rec.Path) {
			continue
		}
		if n := len(filepath.Clean(rec.Path)); n > bestLen {
			best, bestLen = i, n
		}
	}
	if best >= 0 {
		records[best].IsCurrent = true
	}
}

func sortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.IsMain != b.IsMain {
			return a.IsMain
		}
		if a.DisplayName() != b.DisplayName() {
			return a.DisplayName() < b.DisplayName()
		}
		return a.InternalID < b.InternalID
	})
}
