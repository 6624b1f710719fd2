package worktree

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// refStore answers reference questions with go-git, without spawning git.
type refStore struct {
	dir string
	ssh sshSettings
}

func newRefStore(dir string) *refStore {
	return &refStore{dir: dir, ssh: defaultSSHSettings}
}

func (s *refStore) open() (*git.Repository, error) {
	return git.PlainOpenWithOptions(s.dir, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
}

func (s *refStore) BranchExists(name string) (bool, error) {
	repo, err := s.open()
	if err != nil {
		return false, err
	}
	_, err = repo.Reference(plumbing.NewBranchReferenceName(name), false)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, nil
	}
	return false, err
}

// ResolveRevision returns the commit hash rev points at.
func (s *refStore) ResolveRevision(rev string) (string, error) {
	repo, err := s.open()
	if err != nil {
		return "", err
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) || errors.Is(err, plumbing.ErrObjectNotFound) {
			return "", fmt.Errorf("%w: revision %q", ErrNotFound, rev)
		}
		return "", err
	}
	return hash.String(), nil
}

func (s *refStore) Remotes() ([]string, error) {
	repo, err := s.open()
	if err != nil {
		return nil, err
	}
	remotes, err := repo.Remotes()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(remotes))
	for _, r := range remotes {
		names = append(names, r.Config().Name)
	}
	sort.Strings(names)
	return names, nil
}

// Fetch updates remote-tracking refs of remoteName. SSH remotes try the
// agent, then the identity files ssh_config names, moving on only when the
// server rejects a key.
func (s *refStore) Fetch(remoteName string) error {
	if strings.TrimSpace(remoteName) == "" {
		remoteName = "origin"
	}
	repo, err := s.open()
	if err != nil {
		return err
	}
	endpoint, remoteURL, err := remoteEndpoint(repo, remoteName)
	if err != nil {
		return err
	}

	creds := credentialsFor(endpoint, s.ssh)
	if creds == nil {
		return fetchResult(remoteName, repo.Fetch(&git.FetchOptions{RemoteName: remoteName}))
	}
	var failures []error
	for _, method := range creds.methods() {
		auth, err := method()
		if err != nil {
			failures = append(failures, err)
			continue
		}
		err = repo.Fetch(&git.FetchOptions{RemoteName: remoteName, Auth: auth})
		if !authRejected(err) {
			return fetchResult(remoteName, err)
		}
		failures = append(failures, fmt.Errorf("%s: %w", auth.Name(), err))
	}
	return fmt.Errorf("fetch %s: no ssh credential accepted for %s: %w", remoteName, remoteURL, errors.Join(failures...))
}

func fetchResult(remoteName string, err error) error {
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("fetch %s: %w", remoteName, err)
	}
	return nil
}

func remoteEndpoint(repo *git.Repository, remoteName string) (*transport.Endpoint, string, error) {
	remote, err := repo.Remote(remoteName)
	if err != nil {
		return nil, "", fmt.Errorf("remote %q: %w", remoteName, err)
	}
	cfg := remote.Config()
	if cfg == nil || len(cfg.URLs) == 0 {
		return nil, "", fmt.Errorf("remote %q has no URL", remoteName)
	}
	remoteURL := strings.TrimSpace(cfg.URLs[0])
	endpoint, err := transport.NewEndpoint(remoteURL)
	if err != nil {
		return nil, remoteURL, err
	}
	return endpoint, remoteURL, nil
}
