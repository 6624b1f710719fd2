package worktree

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/mrbonezy/wtm/logging"
)

// VCS is everything the manager needs from git.
type VCS interface {
	ListWorktrees() ([]WorktreeEntry, error)
	AddWorktree(path string, src BranchSource) error
	RemoveWorktree(path string, force bool) error
	RepairWorktree(path string) error
	DeleteBranch(name string, force bool) error
	BranchExists(name string) (bool, error)
	ResolveRevision(rev string) (string, error)
	IsDirty(path string) (bool, error)
	Remotes() ([]string, error)
	Fetch(remote string) error
}

// Repository locates a git repository on disk.
type Repository struct {
	// CommonDir is the absolute git common dir shared by all worktrees.
	CommonDir string
	// MainPath is the main worktree, or the repository itself when bare.
	MainPath string
	Bare     bool
}

// GitCLI drives the git binary for worktree subcommands and go-git for
// reference lookups. go-git has no linked-worktree lifecycle support, so
// add/remove/repair always shell out.
type GitCLI struct {
	gitPath string
	repo    Repository
	refs    *refStore
	log     *logging.ScopedLogger
}

// Discover finds the repository containing dir.
func Discover(dir string) (*GitCLI, error) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return nil, errGitNotInstalled
	}
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return nil, err
		}
	}
	commonDir, err := gitOutputInDir(dir, gitPath, "rev-parse", "--path-format=absolute", "--git-common-dir")
	if err != nil || commonDir == "" {
		return nil, fmt.Errorf("%w: %s", errNotInGitRepository, dir)
	}
	commonDir = normalizePath(commonDir)

	g := &GitCLI{gitPath: gitPath, repo: Repository{CommonDir: commonDir}, log: logging.NopLogger()}
	entries, err := g.listWorktreesIn(dir)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no worktrees listed for %s", errNotInGitRepository, dir)
	}
	g.repo.MainPath = normalizePath(entries[0].Path)
	g.repo.Bare = entries[0].Bare
	g.refs = newRefStore(g.repo.MainPath)
	return g, nil
}

// WithLogger returns g logging git failures to log.
func (g *GitCLI) WithLogger(log *logging.ScopedLogger) *GitCLI {
	if log != nil {
		g.log = log
	}
	return g
}

func (g *GitCLI) Repository() Repository {
	return g.repo
}

func (g *GitCLI) ListWorktrees() ([]WorktreeEntry, error) {
	return g.listWorktreesIn(g.repo.MainPath)
}

func (g *GitCLI) listWorktreesIn(dir string) ([]WorktreeEntry, error) {
	out, err := g.run(dir, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	entries, malformed := parseWorktrees(out)
	if len(malformed) > 0 {
		g.log.Warn("malformed worktree list output", "lines", malformed)
	}
	return entries, nil
}

func (g *GitCLI) AddWorktree(path string, src BranchSource) error {
	args := []string{"worktree", "add"}
	switch src.Kind {
	case SourceNewBranch:
		base := src.Base
		if base == "" {
			base = "HEAD"
		}
		args = append(args, "-b", src.Branch, "--", path, base)
	case SourceExistingBranch:
		args = append(args, "--", path, src.Branch)
	case SourceDetached:
		args = append(args, "--detach", "--", path, src.Base)
	default:
		return fmt.Errorf("unknown branch source %d", src.Kind)
	}
	_, err := g.run(g.repo.MainPath, args...)
	return err
}

func (g *GitCLI) RemoveWorktree(path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		// Twice so git-locked worktrees go too.
		args = append(args, "--force", "--force")
	}
	args = append(args, "--", path)
	_, err := g.run(g.repo.MainPath, args...)
	return err
}

func (g *GitCLI) RepairWorktree(path string) error {
	_, err := g.run(g.repo.MainPath, "worktree", "repair", "--", path)
	return err
}

func (g *GitCLI) DeleteBranch(name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	_, err := g.run(g.repo.MainPath, "branch", flag, name)
	return err
}

func (g *GitCLI) BranchExists(name string) (bool, error) {
	return g.refs.BranchExists(name)
}

func (g *GitCLI) ResolveRevision(rev string) (string, error) {
	return g.refs.ResolveRevision(rev)
}

func (g *GitCLI) Remotes() ([]string, error) {
	return g.refs.Remotes()
}

func (g *GitCLI) Fetch(remote string) error {
	return g.refs.Fetch(remote)
}

func (g *GitCLI) IsDirty(path string) (bool, error) {
	out, err := g.run(path, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

func (g *GitCLI) run(dir string, args ...string) (string, error) {
	cmd := exec.Command(g.gitPath, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		err = commandErrorWithOutput(fmt.Errorf("git %s: %w", strings.Join(args[:min(2, len(args))], " "), err), stderr.Bytes())
		g.log.Debug("git failed", "dir", dir, "args", args, "error", err)
		return "", err
	}
	return stdout.String(), nil
}

func gitOutputInDir(dir string, path string, args ...string) (string, error) {
	cmd := exec.Command(path, args...)
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

// commandErrorWithOutput prefers git's own message over a bare exit status.
func commandErrorWithOutput(err error, output []byte) error {
	if err == nil {
		return nil
	}
	msg := strings.TrimSpace(string(output))
	if msg == "" {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func remoteOf(rev string, remotes []string) string {
	first, _, ok := strings.Cut(rev, "/")
	if !ok {
		return ""
	}
	for _, r := range remotes {
		if r == first {
			return r
		}
	}
	return ""
}
