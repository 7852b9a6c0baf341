// Package cli wires the mediasave cobra commands onto the orchestrator.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tis24dev/mediasave/internal/catalog"
	"github.com/tis24dev/mediasave/internal/config"
	"github.com/tis24dev/mediasave/internal/history"
	"github.com/tis24dev/mediasave/internal/logging"
	"github.com/tis24dev/mediasave/internal/orchestrator"
	"github.com/tis24dev/mediasave/internal/types"
)

// isTerminal is swapped in tests.
var isTerminal = term.IsTerminal

// App holds the process-wide state shared by the subcommands.
type App struct {
	In        io.Reader
	Out       io.Writer
	Err       io.Writer
	Bootstrap *logging.BootstrapLogger

	global   GlobalArgs
	cfg      *config.Config
	catalog  *catalog.Catalog
	logger   *logging.Logger
	exitCode types.ExitCode
}

// NewApp returns an App bound to the process streams.
func NewApp(bootstrap *logging.BootstrapLogger) *App {
	if bootstrap == nil {
		bootstrap = logging.NewBootstrapLogger()
	}
	return &App{In: os.Stdin, Out: os.Stdout, Err: os.Stderr, Bootstrap: bootstrap}
}

// Execute runs the command line argv (without the program name) and returns
// the process exit code.
func Execute(ctx context.Context, app *App, argv []string) int {
	root := NewRootCommand(app)
	root.SetArgs(argv)
	root.SetIn(app.In)
	root.SetOut(app.Out)
	root.SetErr(app.Err)

	err := root.ExecuteContext(ctx)
	if err != nil {
		app.Bootstrap.Error("Error: %v", err)
		if app.exitCode == types.ExitSuccess {
			app.exitCode = orchestrator.ExitCodeFor(err)
		}
	}
	if ctx.Err() != nil && app.exitCode == types.ExitSuccess {
		app.exitCode = types.ExitInterrupted
	}
	return app.exitCode.Int()
}

// NewRootCommand builds the command tree.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "mediasave",
		Short: "Back up and restore host configuration to removable media",
		Long: `mediasave copies the sources of a category (home data, dotfiles, SSH keys,
Samba or GRUB configuration) into a timestamped run directory on a mounted
removable destination, optionally archives it, and restores it later.

Unknown flags are ignored. A bare word right after an unknown flag is taken
as its value, so pass values as --flag=value or put unknown flags after the
category.`,
		Example: `  mediasave backup MAIN
  mediasave backup SSH --yes --keep 5
  mediasave restore DOTS --confirm
  mediasave destinations`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			app.global.resolve()
		},
	}
	root.FParseErrWhitelist.UnknownFlags = true
	bindGlobalFlags(root.PersistentFlags(), &app.global)

	root.AddCommand(
		newBackupCommand(app),
		newRestoreCommand(app),
		newDestinationsCommand(app),
		newHistoryCommand(app),
		newCategoriesCommand(app),
		newVersionCommand(app),
	)
	for _, cmd := range root.Commands() {
		cmd.FParseErrWhitelist.UnknownFlags = true
	}
	return root
}

// load reads configuration and catalog and builds the logger. It is
// idempotent within one invocation.
func (a *App) load() error {
	if a.cfg != nil {
		return nil
	}
	cfg, err := config.Load(a.global.ConfigPath)
	if err != nil {
		return err
	}
	if cfg.ConfigFile != "" {
		a.Bootstrap.Debug("Configuration loaded from %s (%s)", cfg.ConfigFile, a.global.ConfigPathSource)
	} else {
		a.Bootstrap.Debug("No configuration file; using defaults")
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}

	level := cfg.Level()
	if a.global.LogLevel != types.LogLevelNone {
		level = a.global.LogLevel
	}
	a.Bootstrap.SetLevel(level)
	logger := logging.New(level, a.colorOutput())
	logger.SetOutput(a.Out)
	logging.SetDefaultLogger(logger)

	a.cfg = cfg
	a.catalog = cat
	a.logger = logger
	return nil
}

func (a *App) colorOutput() bool {
	f, ok := a.Out.(*os.File)
	return ok && isTerminal(int(f.Fd()))
}

// interactive reports whether both ends of the session are terminals.
func (a *App) interactive() bool {
	in, okIn := a.In.(*os.File)
	out, okOut := a.Out.(*os.File)
	return okIn && okOut && isTerminal(int(in.Fd())) && isTerminal(int(out.Fd()))
}

// inputProvider picks CLI or TUI prompts and wraps them for --yes.
func (a *App) inputProvider(yes bool) orchestrator.InputProvider {
	var base orchestrator.InputProvider = orchestrator.NewCLIProvider(a.In, a.Out)
	if a.global.UseTUI || a.cfg.UseTUI {
		if a.interactive() {
			base = orchestrator.TUIProvider{Fallback: base}
		} else {
			a.logger.Warning("TUI requested but no terminal is attached; using plain prompts")
		}
	}
	if yes {
		return orchestrator.AutoProvider{Fallback: base, Logger: a.logger}
	}
	return base
}

// deps assembles coordinator collaborators. The returned func closes the
// history store.
func (a *App) deps(yes bool) (orchestrator.Deps, func()) {
	deps := orchestrator.Deps{
		Logger:    a.logger,
		Bootstrap: a.Bootstrap,
		Config:    a.cfg,
		Input:     a.inputProvider(yes),
		Out:       a.Out,
	}
	closeFn := func() {}
	store, err := history.Open(a.cfg.HistoryDB, a.logger)
	if err != nil {
		a.logger.Warning("Run history disabled: %v", err)
	} else {
		deps.History = store
		closeFn = func() {
			if err := store.Close(); err != nil {
				a.logger.Warning("close history: %v", err)
			}
		}
	}
	return deps, closeFn
}

func (a *App) lookup(name string) (catalog.Category, error) {
	cat, err := a.catalog.Lookup(name)
	if errors.Is(err, catalog.ErrUnknownCategory) {
		return cat, fmt.Errorf("%w (known: %v)", err, a.catalog.Names())
	}
	return cat, err
}
