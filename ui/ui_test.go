package ui

import (
	"strings"
	"testing"
	"time"
)

func TestPadOrTrim(t *testing.T) {
	if got := PadOrTrim("abc", 5); got != "abc  " {
		t.Fatalf("expected padded value, got %q", got)
	}
	if got := PadOrTrim("abcdefgh", 5); got != "abcd…" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
	if got := PadOrTrim("abc", 0); got != "" {
		t.Fatalf("expected empty value, got %q", got)
	}
}

func TestRenderWorktreeTable(t *testing.T) {
	rows := []WorktreeRow{
		{ID: ".", Name: "repo", Branch: "main", Flags: FormatFlags(true, false, false, false), Path: "/src/repo"},
		{ID: "old-name", Name: "alpha", Branch: "old-name", Flags: FormatFlags(false, false, true, false), Path: "/src/alpha", Current: true},
		{ID: "feat", Name: "feat", Branch: "feat", Flags: FormatFlags(false, true, false, true), Path: "/src/feat", Missing: true},
	}
	out := RenderWorktreeTable(rows, PlainStyles())
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header and 3 rows, got %d:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[2], "* old-name") || !strings.HasSuffix(lines[2], "/src/alpha") {
		t.Fatalf("expected current renamed row, got %q", lines[2])
	}
	if !strings.HasPrefix(lines[3], "  "+strings.Repeat(" ", idWidth)+" feat") {
		t.Fatalf("expected id column blank when it matches the name, got %q", lines[3])
	}
	if !strings.Contains(lines[3], "missing,locked") {
		t.Fatalf("expected flags, got %q", lines[3])
	}
}

func TestRenderWorktreeTable_KeepsEveryFlag(t *testing.T) {
	flags := FormatFlags(true, true, true, true)
	out := RenderWorktreeTable([]WorktreeRow{{ID: ".", Name: "repo", Branch: "main", Flags: flags, Path: "/src/repo"}}, PlainStyles())
	if !strings.Contains(out, flags+" /src/repo") {
		t.Fatalf("expected untrimmed flags %q, got %q", flags, out)
	}
	if strings.Contains(out, "…") {
		t.Fatalf("expected no truncation, got %q", out)
	}
}

func TestRenderWorktreeTable_Empty(t *testing.T) {
	if out := RenderWorktreeTable(nil, PlainStyles()); !strings.Contains(out, "No worktrees.") {
		t.Fatalf("expected empty marker, got %q", out)
	}
}

func TestRenderWorktreeTable_Links(t *testing.T) {
	styles := PlainStyles()
	styles.Links = true
	out := RenderWorktreeTable([]WorktreeRow{{ID: "a", Name: "a", Path: "/src/a"}}, styles)
	if !strings.Contains(out, "file:///src/a") {
		t.Fatalf("expected hyperlink, got %q", out)
	}
}

func TestFormatFlags(t *testing.T) {
	if got := FormatFlags(false, false, false, false); got != "-" {
		t.Fatalf("expected '-', got %q", got)
	}
	if got := FormatFlags(true, true, true, true); got != "main,missing,locked,dirty" {
		t.Fatalf("unexpected flags %q", got)
	}
}

func TestRenderLease(t *testing.T) {
	if got := RenderLease(nil, PlainStyles()); !strings.Contains(got, "No lease held.") {
		t.Fatalf("expected no lease, got %q", got)
	}
	out := RenderLease(&LeaseView{Path: "/r/.git/wtm.lock", Operation: "rename", PID: 42, Host: "box", Age: 90*time.Second + 300*time.Millisecond, Stale: true}, PlainStyles())
	for _, want := range []string{"stale", "rename", "pid 42 on box", "1m30s", "owner:     -"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}
