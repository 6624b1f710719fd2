package worktree

import (
	"errors"
	"path/filepath"
	"testing"
)

type fakeVCS struct {
	entries  []WorktreeEntry
	dirty    map[string]bool
	statused []string
}

func (f *fakeVCS) ListWorktrees() ([]WorktreeEntry, error) { return f.entries, nil }
func (f *fakeVCS) AddWorktree(string, BranchSource) error { return errors.New("not supported") }
func (f *fakeVCS) RemoveWorktree(string, bool) error { return errors.New("not supported") }
func (f *fakeVCS) RepairWorktree(string) error { return nil }
func (f *fakeVCS) DeleteBranch(string, bool) error { return nil }
func (f *fakeVCS) BranchExists(string) (bool, error) { return false, nil }
func (f *fakeVCS) ResolveRevision(rev string) (string, error) { return rev, nil }
func (f *fakeVCS) Remotes() ([]string, error) { return nil, nil }
func (f *fakeVCS) Fetch(string) error { return nil }
func (f *fakeVCS) IsDirty(path string) (bool, error) {
	f.statused = append(f.statused, path)
	return f.dirty[path], nil
}

type registryFixture struct {
	root      string
	mainPath  string
	commonDir string
}

func newRegistryFixture(t *testing.T) registryFixture {
	t.Helper()
	root, err := realPathOrAbs(t.TempDir())
	if err != nil {
		t.Fatalf("temp dir: %v", err)
	}
	fx := registryFixture{
		root:      root,
		mainPath:  filepath.Join(root, "repo"),
		commonDir: filepath.Join(root, "repo", ".git"),
	}
	mustMkdir(t, filepath.Join(fx.commonDir, "worktrees"))
	return fx
}

// addLinked writes an admin entry id for a worktree at path; the directory
// is only created when present is set.
func (fx registryFixture) addLinked(t *testing.T, id, path, branch string, present bool) {
	t.Helper()
	entry := filepath.Join(fx.commonDir, "worktrees", id)
	mustMkdir(t, entry)
	mustWrite(t, filepath.Join(entry, "gitdir"), filepath.Join(path, ".git")+"\n")
	mustWrite(t, filepath.Join(entry, "HEAD"), "ref: refs/heads/"+branch+"\n")
	if present {
		mustMkdir(t, path)
		mustWrite(t, filepath.Join(path, ".git"), "gitdir: "+entry+"\n")
	}
}

func TestRegistry_List(t *testing.T) {
	fx := newRegistryFixture(t)
	feat := filepath.Join(fx.root, "feat")
	renamed := filepath.Join(fx.root, "alpha")
	gone := filepath.Join(fx.root, "gone")
	fx.addLinked(t, "feat", feat, "feat", true)
	fx.addLinked(t, "old-name", renamed, "old-name", true)
	fx.addLinked(t, "gone", gone, "gone", false)
	mustWrite(t, filepath.Join(fx.commonDir, "worktrees", "feat", "locked"), "usb drive\n")

	vcs := &fakeVCS{
		entries: []WorktreeEntry{
			{Path: fx.mainPath, Branch: "main", Head: "abc"},
			{Path: feat, Branch: "feat"},
			{Path: renamed, Branch: "old-name"},
		},
		dirty: map[string]bool{renamed: true},
	}
	cwd := filepath.Join(feat, "sub")
	reg := NewRegistry(vcs, NewAdminStore(fx.commonDir, nil), cwd, nil)

	records, err := reg.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d: %+v", len(records), records)
	}
	want := []string{"repo", "alpha", "feat", "gone"}
	for i, rec := range records {
		if rec.DisplayName() != want[i] {
			t.Fatalf("expected order %v, got %q at %d", want, rec.DisplayName(), i)
		}
	}

	main, alpha, featRec, goneRec := records[0], records[1], records[2], records[3]
	if !main.IsMain || main.InternalID != MainWorktreeID || main.Branch != "main" {
		t.Fatalf("unexpected main record %+v", main)
	}
	if alpha.InternalID != "old-name" || !alpha.Renamed() || !alpha.HasUncommittedChanges {
		t.Fatalf("expected renamed dirty record, got %+v", alpha)
	}
	if !featRec.IsCurrent || !featRec.IsLocked || featRec.LockReason != "usb drive" {
		t.Fatalf("expected current locked feat, got %+v", featRec)
	}
	if main.IsCurrent {
		t.Fatalf("expected only the deepest worktree to be current")
	}
	if !goneRec.Missing || goneRec.Branch != "gone" {
		t.Fatalf("expected missing record with branch from HEAD, got %+v", goneRec)
	}
	for _, p := range vcs.statused {
		if p == gone {
			t.Fatalf("expected no status call for missing worktree")
		}
	}
}

func TestRegistry_Find(t *testing.T) {
	fx := newRegistryFixture(t)
	renamed := filepath.Join(fx.root, "alpha")
	fx.addLinked(t, "old-name", renamed, "old-name", true)
	vcs := &fakeVCS{entries: []WorktreeEntry{{Path: fx.mainPath, Branch: "main"}, {Path: renamed, Branch: "old-name"}}}
	reg := NewRegistry(vcs, NewAdminStore(fx.commonDir, nil), fx.root, nil)

	rec, ok, err := reg.Find("old-name")
	if err != nil || !ok || rec.Path != renamed {
		t.Fatalf("expected record at %s, got %+v ok=%v err=%v", renamed, rec, ok, err)
	}
	if len(vcs.statused) != 0 {
		t.Fatalf("expected Find to skip status, got %v", vcs.statused)
	}
	if _, ok, _ := reg.Find("alpha"); ok {
		t.Fatalf("expected display name not to match an internal id lookup")
	}
	rec, ok, err = reg.FindByDisplayName("alpha")
	if err != nil || !ok || rec.InternalID != "old-name" {
		t.Fatalf("expected lookup by display name, got %+v ok=%v err=%v", rec, ok, err)
	}
}

func TestRegistry_CheckAvailable(t *testing.T) {
	fx := newRegistryFixture(t)
	renamed := filepath.Join(fx.root, "alpha")
	fx.addLinked(t, "old-name", renamed, "old-name", true)
	fx.addLinked(t, "stale", filepath.Join(fx.root, "stale"), "stale", false)
	// An admin entry with an unreadable gitdir is still reserved.
	mustMkdir(t, filepath.Join(fx.commonDir, "worktrees", "broken"))
	admin := NewAdminStore(fx.commonDir, nil)
	for _, id := range []string{"removed", "removed"} {
		if err := admin.Retire(id); err != nil {
			t.Fatalf("Retire() error = %v", err)
		}
	}
	if got := mustRead(t, filepath.Join(fx.commonDir, retiredFileName)); got != "removed" {
		t.Fatalf("expected one retired id, got %q", got)
	}

	vcs := &fakeVCS{entries: []WorktreeEntry{{Path: fx.mainPath, Branch: "main"}, {Path: renamed, Branch: "old-name"}}}
	reg := NewRegistry(vcs, admin, fx.root, nil)
	records, err := reg.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	tests := []struct {
		name     string
		exceptID string
		wantErr  bool
	}{
		{name: "fresh"},
		{name: "alpha", wantErr: true},
		{name: "old-name", wantErr: true},
		{name: "stale", wantErr: true},
		{name: "broken", wantErr: true},
		{name: "removed", wantErr: true},
		{name: "removed", exceptID: "old-name", wantErr: true},
		{name: "repo", wantErr: true},
		{name: "old-name", exceptID: "old-name"},
		{name: "alpha", exceptID: "old-name"},
	}
	for _, tt := range tests {
		err := reg.CheckAvailable(records, tt.name, tt.exceptID)
		if tt.wantErr && !errors.Is(err, ErrCollision) {
			t.Fatalf("%q (except %q): expected ErrCollision, got %v", tt.name, tt.exceptID, err)
		}
		if !tt.wantErr && err != nil {
			t.Fatalf("%q (except %q): expected available, got %v", tt.name, tt.exceptID, err)
		}
	}
}

func TestMarkCurrent_OutsideAnyWorktree(t *testing.T) {
	records := []Record{{Path: "/src/repo", IsMain: true}, {Path: "/src/feat"}}
	markCurrent(records, "/elsewhere")
	for _, rec := range records {
		if rec.IsCurrent {
			t.Fatalf("expected no current worktree, got %+v", rec)
		}
	}
	markCurrent(records, "/src/repo-other")
	if records[0].IsCurrent {
		t.Fatalf("expected prefix match to respect path boundaries")
	}
}
