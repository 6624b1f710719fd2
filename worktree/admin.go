package worktree

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

const (
	adminEntriesDir = "worktrees"
	gitdirFileName  = "gitdir"
	lockedFileName  = "locked"
	dotGitName      = ".git"
	gitdirPrefix    = "gitdir:"
	// Internal ids of removed worktrees, one per line, beside wtm.lock.
	retiredFileName = "wtm-retired-ids"
)

// AdminStore reads and writes the two link files that bind a linked worktree
// to its admin record:
//
//	<common>/worktrees/<id>/gitdir   -> <worktree>/.git
//	<worktree>/.git                  -> gitdir: <common>/worktrees/<id>
//
// Either side may be relative when git runs with worktree.useRelativePaths.
type AdminStore struct {
	fs        billy.Filesystem
	commonDir string
}

// NewAdminStore uses fs for all link file I/O. All paths handed to fs are
// absolute; a nil fs means the host filesystem.
func NewAdminStore(commonDir string, fs billy.Filesystem) *AdminStore {
	if fs == nil {
		fs = osfs.New("/")
	}
	return &AdminStore{fs: fs, commonDir: filepath.Clean(commonDir)}
}

func (s *AdminStore) CommonDir() string {
	return s.commonDir
}

func (s *AdminStore) EntryDir(id string) string {
	return filepath.Join(s.commonDir, adminEntriesDir, id)
}

// IDs lists admin entry names, sorted.
func (s *AdminStore) IDs() ([]string, error) {
	infos, err := s.fs.ReadDir(filepath.Join(s.commonDir, adminEntriesDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	ids := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			ids = append(ids, info.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// HasEntry reports whether an admin entry named id exists, even one whose
// worktree directory is gone.
func (s *AdminStore) HasEntry(id string) bool {
	info, err := s.fs.Stat(s.EntryDir(id))
	return err == nil && info.IsDir()
}

// ReadGitdir returns link (1) as stored and the worktree path it points to.
func (s *AdminStore) ReadGitdir(id string) (raw string, worktreePath string, err error) {
	raw, err = s.readTrimmed(filepath.Join(s.EntryDir(id), gitdirFileName))
	if err != nil {
		return "", "", err
	}
	if raw == "" {
		return "", "", fmt.Errorf("empty gitdir for worktree %q", id)
	}
	target := raw
	if !filepath.IsAbs(target) {
		target = filepath.Join(s.EntryDir(id), target)
	}
	return raw, filepath.Dir(filepath.Clean(target)), nil
}

// GitdirFor returns the link (1) content for a worktree at worktreePath, in
// the same absolute or relative style as previous.
func (s *AdminStore) GitdirFor(id, worktreePath, previous string) string {
	target := filepath.Join(worktreePath, dotGitName)
	if previous != "" && !filepath.IsAbs(previous) {
		if rel, err := filepath.Rel(s.EntryDir(id), target); err == nil {
			return rel
		}
	}
	return target
}

func (s *AdminStore) WriteGitdir(id, content string) error {
	return s.writeLine(filepath.Join(s.EntryDir(id), gitdirFileName), content)
}

// ReadDotGit returns link (2) of the worktree at worktreePath as stored
// (without the "gitdir:" prefix) and the admin entry it points to.
func (s *AdminStore) ReadDotGit(worktreePath string) (raw string, adminDir string, err error) {
	line, err := s.readTrimmed(filepath.Join(worktreePath, dotGitName))
	if err != nil {
		return "", "", err
	}
	if !strings.HasPrefix(strings.ToLower(line), gitdirPrefix) {
		return "", "", fmt.Errorf("invalid .git file format in %s", worktreePath)
	}
	raw = strings.TrimSpace(line[len(gitdirPrefix):])
	if raw == "" {
		return "", "", fmt.Errorf("empty gitdir in %s", worktreePath)
	}
	target := raw
	if !filepath.IsAbs(target) {
		target = filepath.Join(worktreePath, target)
	}
	return raw, filepath.Clean(target), nil
}

// DotGitFor returns the link (2) content for worktreePath bound to entry id,
// in the same absolute or relative style as previous.
func (s *AdminStore) DotGitFor(id, worktreePath, previous string) string {
	target := s.EntryDir(id)
	if previous != "" && !filepath.IsAbs(previous) {
		if rel, err := filepath.Rel(worktreePath, target); err == nil {
			return rel
		}
	}
	return target
}

func (s *AdminStore) WriteDotGit(worktreePath, content string) error {
	return s.writeLine(filepath.Join(worktreePath, dotGitName), gitdirPrefix+" "+content)
}

// IDForWorktree returns the admin entry name the worktree's .git file points
// at.
func (s *AdminStore) IDForWorktree(worktreePath string) (string, error) {
	_, adminDir, err := s.ReadDotGit(worktreePath)
	if err != nil {
		return "", err
	}
	if !samePath(filepath.Dir(adminDir), filepath.Join(s.commonDir, adminEntriesDir)) {
		return "", fmt.Errorf("%s is not bound to this repository (gitdir %s)", worktreePath, adminDir)
	}
	return filepath.Base(adminDir), nil
}

// ReadHead returns the short branch checked out in entry id, or
// DetachedBranch.
func (s *AdminStore) ReadHead(id string) string {
	head, err := s.readTrimmed(filepath.Join(s.EntryDir(id), "HEAD"))
	if err != nil || !strings.HasPrefix(head, "ref:") {
		return DetachedBranch
	}
	return shortBranch(strings.TrimSpace(strings.TrimPrefix(head, "ref:")))
}

// Locked reports a `git worktree lock` on entry id and its reason.
func (s *AdminStore) Locked(id string) (bool, string) {
	reason, err := s.readTrimmed(filepath.Join(s.EntryDir(id), lockedFileName))
	if err != nil {
		return false, ""
	}
	return true, reason
}

func (s *AdminStore) RemoveEntry(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: bad admin entry %q", ErrInvalidName, id)
	}
	return util.RemoveAll(s.fs, s.EntryDir(id))
}

// Retire records id as used by a removed worktree so it is never handed out
// again.
func (s *AdminStore) Retire(id string) error {
	if s.IsRetired(id) {
		return nil
	}
	f, err := s.fs.OpenFile(filepath.Join(s.commonDir, retiredFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write([]byte(id + "\n")); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (s *AdminStore) IsRetired(id string) bool {
	data, err := s.readTrimmed(filepath.Join(s.commonDir, retiredFileName))
	if err != nil {
		return false
	}
	for _, line := range strings.Split(data, "\n") {
		if strings.TrimSpace(line) == id {
			return true
		}
	}
	return false
}

// ReadFile returns a link file byte for byte.
func (s *AdminStore) ReadFile(path string) ([]byte, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

func (s *AdminStore) WriteFile(path string, data []byte) error {
	return util.WriteFile(s.fs, path, data, 0o644)
}

func (s *AdminStore) readTrimmed(path string) (string, error) {
	data, err := s.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *AdminStore) writeLine(path, content string) error {
	return util.WriteFile(s.fs, path, []byte(content+"\n"), 0o644)
}
