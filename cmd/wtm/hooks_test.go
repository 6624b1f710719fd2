package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mrbonezy/wtm/worktree"
)

func TestRunPostCreateHooks(t *testing.T) {
	dir := t.TempDir()
	rec := worktree.Record{InternalID: "feat", Path: dir, Branch: "feat"}
	var stdout, stderr bytes.Buffer

	errs := runPostCreateHooks([]string{"pwd", "  ", "exit 3", "echo $WTM_WORKTREE_ID"}, rec, &stdout, &stderr)
	if len(errs) != 1 || !strings.Contains(errs[0].Error(), `"exit 3"`) {
		t.Fatalf("expected one failing hook, got %v", errs)
	}
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 2 || lines[1] != "feat" {
		t.Fatalf("expected later hooks to still run, got %q", stdout.String())
	}
}

func TestStartDelayedSpinner_NoopWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	stop := startDelayedSpinner(&buf, "", 0)
	stop()
	stop()
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}
