package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrbonezy/wtm/config"
	"github.com/mrbonezy/wtm/worktree"
)

type createOptions struct {
	branch   string
	from     string
	existing bool
	detach   bool
	path     bool
	fetch    bool
	noHooks  bool
	layout   string
}

func newCreateCommand(a *app) *cobra.Command {
	var opts createOptions
	cmd := &cobra.Command{
		Use:   "create <name|path>",
		Short: "Create a worktree",
		Long: "Create a worktree. A bare name is placed where the existing worktrees live;\n" +
			"a value with a slash, or --path, is used as a path.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("fetch") {
				opts.fetch = a.cfg.FetchBeforeCreate
			}
			return runCreate(a, args[0], opts)
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&opts.branch, "branch", "b", "", "Branch name (default: the worktree name)")
	fs.StringVar(&opts.from, "from", "", "Base revision for a new branch, or the commit for --detach")
	fs.BoolVar(&opts.existing, "existing", false, "Check out an existing branch instead of creating one")
	fs.BoolVar(&opts.detach, "detach", false, "Check out --from with a detached HEAD")
	fs.BoolVar(&opts.path, "path", false, "Treat the argument as a path")
	fs.BoolVar(&opts.fetch, "fetch", false, "Fetch the base's remote first (default from config)")
	fs.BoolVar(&opts.noHooks, "no-hooks", false, "Skip post_create commands")
	fs.StringVar(&opts.layout, "layout", "", "Placement for the first worktree: sibling or subdirectory")
	cmd.MarkFlagsMutuallyExclusive("existing", "detach")
	return cmd
}

func runCreate(a *app, name string, opts createOptions) error {
	source, err := branchSource(opts, a.cfg.NewBranchBase)
	if err != nil {
		return err
	}
	m, err := a.manager()
	if err != nil {
		return err
	}
	req := worktree.CreateRequest{Name: name, Explicit: opts.path, Source: source, Fetch: opts.fetch}
	if !opts.path && !strings.ContainsAny(name, `/\`) {
		req.Fallback, err = a.placementFallback(m, opts.layout)
		if err != nil {
			return err
		}
	}

	stop := startDelayedSpinner(a.stderr, fmt.Sprintf("Creating %s...", name), spinnerDelay)
	rec, err := m.Create(req)
	stop()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Created %s at %s (%s)\n", rec.InternalID, rec.Path, rec.Branch)

	if !opts.noHooks {
		for _, hookErr := range runPostCreateHooks(a.cfg.PostCreate, rec, a.stdout, a.stderr) {
			a.log.Warn("post-create hook failed", "error", hookErr)
			a.warn(hookErr)
		}
	}
	return nil
}

func branchSource(opts createOptions, defaultBase string) (worktree.BranchSource, error) {
	switch {
	case opts.detach:
		if opts.branch != "" {
			return worktree.BranchSource{}, errors.New("--branch cannot be used with --detach")
		}
		return worktree.BranchSource{Kind: worktree.SourceDetached, Base: opts.from}, nil
	case opts.existing:
		if opts.from != "" {
			return worktree.BranchSource{}, errors.New("--from cannot be used with --existing")
		}
		return worktree.BranchSource{Kind: worktree.SourceExistingBranch, Branch: opts.branch}, nil
	default:
		base := opts.from
		if base == "" {
			base = defaultBase
		}
		return worktree.BranchSource{Kind: worktree.SourceNewBranch, Branch: opts.branch, Base: base}, nil
	}
}

// placementFallback picks where the first linked worktree goes. Once one
// exists its location is inferred and nil is returned.
func (a *app) placementFallback(m *worktree.Manager, layout string) (*worktree.Pattern, error) {
	if _, ok, err := m.InferPattern(); err != nil || ok {
		return nil, err
	}
	layout = strings.ToLower(strings.TrimSpace(layout))
	if layout == "" {
		layout = a.cfg.Layout
	}
	if layout == "" && canPrompt(a.stderr) {
		choice, completed, err := chooseLayoutFn(a.cfg.LayoutDir)
		if err != nil {
			return nil, err
		}
		if completed {
			layout = choice
			a.rememberLayout(choice)
		}
	}

	mainPath := m.Repository().MainPath
	switch layout {
	case "", config.LayoutSibling:
		p := worktree.SiblingPattern(mainPath)
		return &p, nil
	case config.LayoutSubdirectory:
		p := worktree.SubdirectoryPattern(mainPath, a.cfg.LayoutDir)
		return &p, nil
	default:
		return nil, fmt.Errorf("%w: unknown layout %q (want %s or %s)", worktree.ErrInvalidPath, layout, config.LayoutSibling, config.LayoutSubdirectory)
	}
}

func (a *app) rememberLayout(layout string) {
	path, err := a.resolvedConfigPath()
	if err != nil {
		a.log.Warn("layout not saved", "error", err)
		return
	}
	a.cfg.Layout = layout
	if err := config.SaveTo(path, a.cfg); err != nil {
		a.log.Warn("layout not saved", "path", path, "error", err)
	}
}
