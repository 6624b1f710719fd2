package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mrbonezy/wtm/config"
	"github.com/mrbonezy/wtm/logging"
	"github.com/mrbonezy/wtm/worktree"
)

type app struct {
	stdout io.Writer
	stderr io.Writer

	verbose    bool
	configPath string
	dir        string

	ready bool
	cfg   config.Config
	logs  *logging.Manager
	log   *logging.ScopedLogger
}

func newApp(stdout io.Writer, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr, cfg: config.DefaultConfig(), log: logging.NopLogger()}
}

func newRootCommand(a *app, args []string) *cobra.Command {
	root := &cobra.Command{
		Use:           "wtm",
		Short:         "Create, rename and remove git worktrees without breaking their metadata",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.setup()
		},
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runList(a, false)
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	addGlobalFlags(root.PersistentFlags(), a)

	root.AddCommand(
		newListCommand(a),
		newCreateCommand(a),
		newRenameCommand(a),
		newRemoveCommand(a),
		newRepairCommand(a),
		newLockCommand(a),
		newConfigCommand(a),
		newVersionCommand(a),
	)

	if len(args) > 0 {
		root.SetArgs(args[1:])
	}
	return root
}

func addGlobalFlags(fs *pflag.FlagSet, a *app) {
	fs.BoolVarP(&a.verbose, "verbose", "v", false, "Log debug output to stderr")
	fs.StringVar(&a.configPath, "config", "", "Config file (default $WTM_CONFIG or ~/.wtm/config.yaml)")
	fs.StringVarP(&a.dir, "dir", "C", "", "Run as if wtm was started in this directory")
}

func addYesFlag(fs *pflag.FlagSet, yes *bool) {
	fs.BoolVarP(yes, "yes", "y", false, "Do not ask for confirmation")
}

// setup loads config and logging once per process.
func (a *app) setup() error {
	if a.ready {
		return nil
	}
	var err error
	if strings.TrimSpace(a.configPath) != "" {
		a.cfg, err = config.LoadFrom(a.configPath)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	a.ready = true

	logCfg := logging.Config{Level: a.cfg.LogLevel}
	if path, err := a.cfg.ResolvedLogFile(); err == nil {
		logCfg.FilePath = path
	}
	if a.verbose {
		logCfg.Console = a.stderr
		logCfg.Level = "debug"
	}
	if logCfg.FilePath == "" && logCfg.Console == nil {
		return nil
	}
	logs, err := logging.NewManager(logCfg)
	if err != nil {
		fmt.Fprintf(a.stderr, "wtm warning: logging disabled: %v\n", err)
		return nil
	}
	a.logs = logs
	a.log = logs.For("cli")
	return nil
}

func (a *app) close() {
	if a.logs != nil {
		_ = a.logs.Close()
	}
}

func (a *app) resolvedConfigPath() (string, error) {
	if strings.TrimSpace(a.configPath) != "" {
		return filepath.Abs(a.configPath)
	}
	return config.Path()
}

func (a *app) manager() (*worktree.Manager, error) {
	if err := a.setup(); err != nil {
		return nil, err
	}
	opts := worktree.Options{StaleAfter: a.cfg.StaleAfter()}
	if a.logs != nil {
		opts.Logs = a.logs
	}
	dir := strings.TrimSpace(a.dir)
	if dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, err
		}
		dir = abs
		opts.Cwd = abs
	}
	return worktree.Open(dir, opts)
}

func (a *app) warn(err error) {
	fmt.Fprintln(a.stderr, "wtm warning:", err)
}

// withIDHint points at the internal id when the user typed a display name.
func withIDHint(m *worktree.Manager, id string, err error) error {
	if !errors.Is(err, worktree.ErrNotFound) {
		return err
	}
	rec, ok, ferr := m.FindByDisplayName(id)
	if ferr != nil || !ok || rec.InternalID == id {
		return err
	}
	return fmt.Errorf("%w (worktree %q has internal id %q)", err, id, rec.InternalID)
}

func completeWorktreeIDs(a *app) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		m, err := a.manager()
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		records, err := m.Records()
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return idSuggestions(records, toComplete), cobra.ShellCompDirectiveNoFileComp
	}
}

func idSuggestions(records []worktree.Record, prefix string) []string {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.IsMain || !strings.HasPrefix(rec.InternalID, prefix) {
			continue
		}
		desc := rec.DisplayName()
		if rec.Branch != "" {
			desc += " [" + rec.Branch + "]"
		}
		out = append(out, rec.InternalID+"\t"+desc)
	}
	return out
}
