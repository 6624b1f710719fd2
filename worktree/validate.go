package worktree

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const maxNameLength = 100

var validNameRe = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9._-]*$`)

// revisionRe accepts common ref and hash syntax such as "origin/main",
// "v1.2.0" or "HEAD~1" while rejecting whitespace and control characters.
var revisionRe = regexp.MustCompile(`^[a-zA-Z0-9._/@^~:-]+$`)

var reservedNames = map[string]bool{
	".git":       true,
	"HEAD":       true,
	"FETCH_HEAD": true,
	"ORIG_HEAD":  true,
	"MERGE_HEAD": true,
	"worktrees":  true,
}

// ValidateName checks a worktree display name or internal id. Names become a
// directory basename, an admin record name and usually a branch name, so
// they must satisfy all three.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name too long (max %d characters)", ErrInvalidName, maxNameLength)
	}
	for _, r := range name {
		if unicode.IsSpace(r) {
			return fmt.Errorf("%w: %q contains whitespace", ErrInvalidName, name)
		}
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: %q contains control characters", ErrInvalidName, name)
		}
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	if reservedNames[name] {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	}
	if strings.Contains(name, "..") || strings.HasSuffix(name, ".lock") || strings.HasSuffix(name, ".") {
		return fmt.Errorf("%w: %q is not a valid git name", ErrInvalidName, name)
	}
	if !validNameRe.MatchString(name) {
		return fmt.Errorf("%w: %q must not start with . or - and may only contain a-z A-Z 0-9 . _ -", ErrInvalidName, name)
	}
	return nil
}

// ValidateBranchName applies the subset of git-check-ref-format rules that
// matter for branches created or deleted by wtm.
func ValidateBranchName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: branch name cannot be empty", ErrInvalidName)
	}
	if strings.HasPrefix(name, "-") || strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return fmt.Errorf("%w: invalid branch name %q", ErrInvalidName, name)
	}
	if strings.Contains(name, "..") || strings.Contains(name, "//") || strings.Contains(name, "@{") {
		return fmt.Errorf("%w: invalid branch name %q", ErrInvalidName, name)
	}
	if strings.HasSuffix(name, ".lock") || strings.HasSuffix(name, ".") || name == "HEAD" {
		return fmt.Errorf("%w: invalid branch name %q", ErrInvalidName, name)
	}
	for _, segment := range strings.Split(name, "/") {
		if strings.HasPrefix(segment, ".") {
			return fmt.Errorf("%w: invalid branch name %q", ErrInvalidName, name)
		}
	}
	if !revisionRe.MatchString(name) || strings.ContainsAny(name, "^~:") {
		return fmt.Errorf("%w: invalid branch name %q", ErrInvalidName, name)
	}
	return nil
}

// ValidateRevision validates a base ref, tag or commit passed to git.
func ValidateRevision(rev string) error {
	if strings.TrimSpace(rev) == "" {
		return fmt.Errorf("%w: revision cannot be empty", ErrInvalidName)
	}
	if strings.HasPrefix(rev, "-") || !revisionRe.MatchString(rev) {
		return fmt.Errorf("%w: invalid revision %q", ErrInvalidName, rev)
	}
	return nil
}

func validateSource(src BranchSource) error {
	switch src.Kind {
	case SourceNewBranch:
		if err := ValidateBranchName(src.Branch); err != nil {
			return err
		}
		if src.Base != "" {
			return ValidateRevision(src.Base)
		}
		return nil
	case SourceExistingBranch:
		return ValidateBranchName(src.Branch)
	case SourceDetached:
		return ValidateRevision(src.Base)
	default:
		return fmt.Errorf("%w: unknown branch source %d", ErrInvalidName, src.Kind)
	}
}
