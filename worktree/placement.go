package worktree

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type PatternKind int

const (
	// PatternSibling places worktrees next to the main worktree.
	PatternSibling PatternKind = iota
	// PatternSubdirectory places worktrees in a shared directory, given
	// relative to the main worktree's parent.
	PatternSubdirectory
	// PatternExplicit is a path the user typed.
	PatternExplicit
)

func (k PatternKind) String() string {
	switch k {
	case PatternSibling:
		return "sibling"
	case PatternSubdirectory:
		return "subdirectory"
	case PatternExplicit:
		return "explicit"
	default:
		return "unknown"
	}
}

// Pattern is where new worktrees go. Dir is always absolute.
type Pattern struct {
	Kind PatternKind
	Dir  string
	Rel  string
}

func (p Pattern) String() string {
	if p.Kind == PatternSubdirectory {
		return fmt.Sprintf("subdirectory(%s)", p.Rel)
	}
	return p.Kind.String()
}

func SiblingPattern(mainPath string) Pattern {
	return Pattern{Kind: PatternSibling, Dir: filepath.Dir(filepath.Clean(mainPath))}
}

// SubdirectoryPattern builds a subdirectory pattern. rel is resolved against
// the main worktree's parent unless it is absolute.
func SubdirectoryPattern(mainPath string, rel string) Pattern {
	base := filepath.Dir(filepath.Clean(mainPath))
	dir := rel
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(base, rel)
	}
	dir = filepath.Clean(dir)
	if dir == base {
		return SiblingPattern(mainPath)
	}
	return Pattern{Kind: PatternSubdirectory, Dir: dir, Rel: relOrAbs(base, dir)}
}

// InferPattern derives the placement pattern from where the existing linked
// worktrees live. It returns false when there are none to learn from. With
// mixed parents the most common one wins; ties go to the sibling directory,
// then to the lexically smallest parent.
func InferPattern(mainPath string, records []Record) (Pattern, bool) {
	mainPath = filepath.Clean(mainPath)
	base := filepath.Dir(mainPath)

	counts := map[string]int{}
	for _, rec := range records {
		if rec.IsMain || strings.TrimSpace(rec.Path) == "" {
			continue
		}
		if filepath.Clean(rec.Path) == mainPath {
			continue
		}
		counts[filepath.Dir(filepath.Clean(rec.Path))]++
	}
	if len(counts) == 0 {
		return Pattern{}, false
	}

	parents := make([]string, 0, len(counts))
	for parent := range counts {
		parents = append(parents, parent)
	}
	sort.Slice(parents, func(i, j int) bool {
		a, b := parents[i], parents[j]
		if counts[a] != counts[b] {
			return counts[a] > counts[b]
		}
		if (a == base) != (b == base) {
			return a == base
		}
		return a < b
	})

	winner := parents[0]
	if winner == base {
		return SiblingPattern(mainPath), true
	}
	return Pattern{Kind: PatternSubdirectory, Dir: winner, Rel: relOrAbs(base, winner)}, true
}

type PlacementRequest struct {
	MainPath string
	Records  []Record
	// Request is a bare name or, when Explicit is set or it contains a path
	// separator, a path.
	Request  string
	Explicit bool
	// Cwd anchors relative explicit paths; os.Getwd when empty.
	Cwd string
	// Fallback is used when no linked worktree exists yet. Sibling when nil.
	Fallback *Pattern
}

type Placement struct {
	Path    string
	Name    string
	Pattern Pattern
}

// Resolve computes the absolute path of a new worktree. The basename of the
// result is always the worktree name.
func Resolve(req PlacementRequest) (Placement, error) {
	request := strings.TrimSpace(req.Request)
	if request == "" {
		return Placement{}, fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}

	if req.Explicit || strings.ContainsAny(request, `/\`) {
		return resolveExplicit(request, req.Cwd)
	}

	if err := ValidateName(request); err != nil {
		return Placement{}, err
	}
	mainPath, err := filepath.Abs(req.MainPath)
	if err != nil {
		return Placement{}, err
	}
	pattern, ok := InferPattern(mainPath, req.Records)
	if !ok {
		if req.Fallback != nil {
			pattern = *req.Fallback
		} else {
			pattern = SiblingPattern(mainPath)
		}
	}
	return Placement{
		Path:    filepath.Join(pattern.Dir, request),
		Name:    request,
		Pattern: pattern,
	}, nil
}

func resolveExplicit(request string, cwd string) (Placement, error) {
	path := request
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	if !filepath.IsAbs(path) {
		if cwd == "" {
			wd, err := os.Getwd()
			if err != nil {
				return Placement{}, err
			}
			cwd = wd
		}
		path = filepath.Join(cwd, path)
	}
	path = filepath.Clean(path)

	name := filepath.Base(path)
	if name == string(filepath.Separator) || name == "." || name == ".." {
		return Placement{}, fmt.Errorf("%w: %q has no final path component", ErrInvalidPath, request)
	}
	if err := ValidateName(name); err != nil {
		return Placement{}, err
	}
	return Placement{
		Path:    path,
		Name:    name,
		Pattern: Pattern{Kind: PatternExplicit, Dir: filepath.Dir(path)},
	}, nil
}

func relOrAbs(base, target string) string {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return target
	}
	return rel
}
