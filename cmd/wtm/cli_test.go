package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mrbonezy/wtm/worktree"
)

func TestCLI_Lifecycle(t *testing.T) {
	root, repo := newCLIEnv(t)

	out := mustRunCLI(t, "-C", repo, "create", "a")
	if want := fmt.Sprintf("Created a at %s (a)", filepath.Join(root, "a")); !strings.Contains(out, want) {
		t.Fatalf("expected %q, got %q", want, out)
	}

	out = mustRunCLI(t, "-C", repo, "rename", "a", "b")
	if !strings.Contains(out, "-> "+filepath.Join(root, "b")) {
		t.Fatalf("unexpected rename output %q", out)
	}

	out = mustRunCLI(t, "-C", repo, "list", "--json")
	var items []struct {
		Name       string `json:"name"`
		InternalID string `json:"internal_id"`
		Branch     string `json:"branch"`
		IsMain     bool   `json:"is_main"`
	}
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("decode list: %v\n%s", err, out)
	}
	if len(items) != 2 || !items[0].IsMain || items[1].InternalID != "a" || items[1].Name != "b" || items[1].Branch != "a" {
		t.Fatalf("unexpected list %+v", items)
	}

	table := mustRunCLI(t, "-C", repo, "list")
	if !strings.Contains(table, filepath.Join(root, "b")) || !strings.Contains(table, "main") {
		t.Fatalf("unexpected table:\n%s", table)
	}

	out = mustRunCLI(t, "-C", repo, "remove", "a", "--delete-branch")
	if !strings.Contains(out, "Removed a") || !strings.Contains(out, "Deleted branch a") {
		t.Fatalf("unexpected remove output %q", out)
	}
	if _, err := os.Stat(filepath.Join(root, "b")); !os.IsNotExist(err) {
		t.Fatalf("expected worktree directory removed, got %v", err)
	}
}

func TestCLI_DisplayNameHint(t *testing.T) {
	_, repo := newCLIEnv(t)
	mustRunCLI(t, "-C", repo, "create", "a")
	mustRunCLI(t, "-C", repo, "rename", "a", "b")

	_, stderr, code := runCLI(t, "-C", repo, "rename", "b", "c")
	if code != exitGeneric {
		t.Fatalf("expected exit %d, got %d", exitGeneric, code)
	}
	if !strings.Contains(stderr, "wtm error:") || !strings.Contains(stderr, `has internal id "a"`) {
		t.Fatalf("expected id hint, got %q", stderr)
	}
}

func TestCLI_BusyExitCode(t *testing.T) {
	_, repo := newCLIEnv(t)
	lock, err := worktree.NewLockManager(0, nil).Acquire(filepath.Join(repo, ".git"))
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer lock.Release()

	_, stderr, code := runCLI(t, "-C", repo, "create", "a")
	if code != exitBusy {
		t.Fatalf("expected exit %d, got %d (%s)", exitBusy, code, stderr)
	}

	out := mustRunCLI(t, "-C", repo, "lock", "status")
	if !strings.Contains(out, "Lease:") || !strings.Contains(out, fmt.Sprintf("pid %d", os.Getpid())) {
		t.Fatalf("expected lease details, got %q", out)
	}
	if _, _, code := runCLI(t, "-C", repo, "lock", "clear"); code != exitGeneric {
		t.Fatalf("expected clear without --yes to be refused, got exit %d", code)
	}
	out = mustRunCLI(t, "-C", repo, "lock", "clear", "--yes")
	if !strings.Contains(out, "Lease cleared.") {
		t.Fatalf("unexpected clear output %q", out)
	}
	mustRunCLI(t, "-C", repo, "create", "a")
}

func TestCLI_ConfigDrivesLayoutAndHooks(t *testing.T) {
	root, repo := newCLIEnv(t)
	writeConfig(t, "layout: subdirectory\nlayout_dir: trees\npost_create:\n  - echo \"$WTM_WORKTREE_ID $WTM_BRANCH\" > hook.txt\n")

	out := mustRunCLI(t, "-C", repo, "create", "x", "--branch", "feature/x")
	path := filepath.Join(root, "trees", "x")
	if !strings.Contains(out, path) {
		t.Fatalf("expected worktree under trees/, got %q", out)
	}
	data, err := os.ReadFile(filepath.Join(path, "hook.txt"))
	if err != nil {
		t.Fatalf("expected hook output: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != "x feature/x" {
		t.Fatalf("expected hook env, got %q", got)
	}

	out = mustRunCLI(t, "-C", repo, "create", "y", "--no-hooks")
	if _, err := os.Stat(filepath.Join(root, "trees", "y", "hook.txt")); !os.IsNotExist(err) {
		t.Fatalf("expected hooks skipped, got %v", err)
	}
	if !strings.Contains(out, filepath.Join(root, "trees", "y")) {
		t.Fatalf("expected inferred placement, got %q", out)
	}
}

func TestCLI_FailingHookIsAWarning(t *testing.T) {
	_, repo := newCLIEnv(t)
	writeConfig(t, "post_create:\n  - exit 7\n")

	stdout, stderr, code := runCLI(t, "-C", repo, "create", "a")
	if code != 0 {
		t.Fatalf("expected create to succeed, got exit %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Created a") || !strings.Contains(stderr, "wtm warning:") {
		t.Fatalf("expected success with a warning, got stdout=%q stderr=%q", stdout, stderr)
	}
}

func TestCLI_RepairCommand(t *testing.T) {
	root, repo := newCLIEnv(t)
	mustRunCLI(t, "-C", repo, "create", "a")
	moved := filepath.Join(root, "moved")
	if err := os.Rename(filepath.Join(root, "a"), moved); err != nil {
		t.Fatalf("rename: %v", err)
	}

	out := mustRunCLI(t, "-C", repo, "repair", "a", moved)
	if !strings.Contains(out, "Repaired a at "+moved) {
		t.Fatalf("unexpected repair output %q", out)
	}
	runGit(t, moved, "status")
}

func TestCLI_ConfigInit(t *testing.T) {
	newCLIEnv(t)
	out := mustRunCLI(t, "config", "init")
	if !strings.Contains(out, os.Getenv("WTM_CONFIG")) {
		t.Fatalf("unexpected init output %q", out)
	}
	if _, _, code := runCLI(t, "config", "init"); code != exitGeneric {
		t.Fatalf("expected second init to fail, got exit %d", code)
	}
	mustRunCLI(t, "config", "init", "--force")
}

func TestCLI_InvalidName(t *testing.T) {
	_, repo := newCLIEnv(t)
	_, stderr, code := runCLI(t, "-C", repo, "create", "bad name")
	if code != exitGeneric || !strings.Contains(stderr, "wtm error:") {
		t.Fatalf("expected invalid name error, got exit %d: %s", code, stderr)
	}
}

func TestExitCode(t *testing.T) {
	unrecoverable := &worktree.UnrecoverableError{InternalID: "a", OldPath: "/x/a", NewPath: "/x/b", Err: errors.New("write"), RollbackErr: errors.New("move back")}
	tests := []struct {
		err  error
		want int
	}{
		{err: nil, want: 0},
		{err: errors.New("boom"), want: exitGeneric},
		{err: fmt.Errorf("create: %w", worktree.ErrBusy), want: exitBusy},
		{err: fmt.Errorf("rename: %w", unrecoverable), want: exitUnrecoverable},
		{err: worktree.ErrCollision, want: exitGeneric},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Fatalf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestIDSuggestions(t *testing.T) {
	records := []worktree.Record{
		{InternalID: worktree.MainWorktreeID, Path: "/src/repo", IsMain: true},
		{InternalID: "feat", Path: "/src/renamed", Branch: "feat"},
		{InternalID: "fix", Path: "/src/fix", Branch: worktree.DetachedBranch},
		{InternalID: "other", Path: "/src/other"},
	}
	got := idSuggestions(records, "f")
	if len(got) != 2 || got[0] != "feat\trenamed [feat]" || got[1] != "fix\tfix [detached]" {
		t.Fatalf("unexpected suggestions %q", got)
	}
}

func TestBranchSource(t *testing.T) {
	src, err := branchSource(createOptions{}, "origin/main")
	if err != nil || src.Kind != worktree.SourceNewBranch || src.Base != "origin/main" {
		t.Fatalf("expected new branch from config base, got %+v %v", src, err)
	}
	src, err = branchSource(createOptions{detach: true, from: "v1.0.0"}, "origin/main")
	if err != nil || src.Kind != worktree.SourceDetached || src.Base != "v1.0.0" {
		t.Fatalf("expected detached source, got %+v %v", src, err)
	}
	if _, err := branchSource(createOptions{detach: true, branch: "x"}, ""); err == nil {
		t.Fatalf("expected --branch with --detach to fail")
	}
	if _, err := branchSource(createOptions{existing: true, from: "main"}, ""); err == nil {
		t.Fatalf("expected --from with --existing to fail")
	}
}
