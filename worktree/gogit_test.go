package worktree

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestRefStore(t *testing.T) {
	_, repo := initRepo(t)
	runGit(t, repo, "branch", "topic")
	runGit(t, repo, "tag", "v1.0.0")
	head := runGit(t, repo, "rev-parse", "HEAD")

	refs := newRefStore(repo)
	if ok, err := refs.BranchExists("topic"); err != nil || !ok {
		t.Fatalf("expected topic to exist, got %v %v", ok, err)
	}
	if ok, err := refs.BranchExists("nope"); err != nil || ok {
		t.Fatalf("expected nope to be missing, got %v %v", ok, err)
	}
	for _, rev := range []string{"HEAD", "main", "v1.0.0", head} {
		got, err := refs.ResolveRevision(rev)
		if err != nil {
			t.Fatalf("ResolveRevision(%q) error = %v", rev, err)
		}
		if got != head {
			t.Fatalf("ResolveRevision(%q) = %s, want %s", rev, got, head)
		}
	}
	if _, err := refs.ResolveRevision("does-not-exist"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	remotes, err := refs.Remotes()
	if err != nil || len(remotes) != 0 {
		t.Fatalf("expected no remotes, got %v %v", remotes, err)
	}
}

func TestRemoteOf(t *testing.T) {
	remotes := []string{"origin", "upstream"}
	if got := remoteOf("origin/main", remotes); got != "origin" {
		t.Fatalf("expected origin, got %q", got)
	}
	if got := remoteOf("feature/login", remotes); got != "" {
		t.Fatalf("expected no remote for local branch, got %q", got)
	}
	if got := remoteOf("main", remotes); got != "" {
		t.Fatalf("expected no remote for bare branch, got %q", got)
	}
}

func TestRefStore_FetchLocalRemote(t *testing.T) {
	root, repo := initRepo(t)
	upstream := filepath.Join(root, "upstream")
	runGit(t, root, "clone", "--quiet", repo, upstream)
	runGit(t, upstream, "commit", "--allow-empty", "-m", "next")
	want := runGit(t, upstream, "rev-parse", "HEAD")
	runGit(t, repo, "remote", "add", "upstream", upstream)

	refs := newRefStore(repo)
	if err := refs.Fetch("upstream"); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	got, err := refs.ResolveRevision("upstream/main")
	if err != nil || got != want {
		t.Fatalf("expected upstream/main at %s, got %s (%v)", want, got, err)
	}
	if err := refs.Fetch("upstream"); err != nil {
		t.Fatalf("expected an up-to-date fetch to succeed, got %v", err)
	}
	if err := refs.Fetch("missing"); err == nil {
		t.Fatalf("expected an unknown remote to fail")
	}
}
