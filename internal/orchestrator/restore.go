package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tis24dev/mediasave/internal/catalog"
	"github.com/tis24dev/mediasave/internal/logging"
	"github.com/tis24dev/mediasave/internal/safefs"
	"github.com/tis24dev/mediasave/internal/storage"
	"github.com/tis24dev/mediasave/internal/transfer"
	"github.com/tis24dev/mediasave/internal/types"
)

// RestoreOptions are the per-invocation switches of a restore pass.
type RestoreOptions struct {
	// From is an explicit run directory; destination discovery is skipped.
	From         string
	Confirm      bool
	Yes          bool
	NoRestart    bool
	NoBanner     bool
	ManifestOnly bool
	LogDir       string
}

// RestoreCoordinator copies the newest run of a category back onto the host.
type RestoreCoordinator struct {
	deps     Deps
	category catalog.Category
	opts     RestoreOptions
}

// NewRestoreCoordinator expands the category's placeholders for the configured user.
func NewRestoreCoordinator(deps Deps, cat catalog.Category, opts RestoreOptions) *RestoreCoordinator {
	deps = deps.withDefaults()
	return &RestoreCoordinator{
		deps:     deps,
		category: cat.Expand(deps.Config.User, deps.Config.Home),
		opts:     opts,
	}
}

// Run restores every declared item, applies post modes and restarts services.
// Only failed transfers make the exit code non-zero.
func (r *RestoreCoordinator) Run(ctx context.Context) types.ExitCode {
	cat := r.category
	logger := r.deps.Logger
	s := &session{
		deps: r.deps,
		rc:   newRunContext(types.RunModeRestore, cat.Name, r.deps.Clock.Now()),
	}
	rc := s.rc
	rc.ManifestOnly = r.opts.ManifestOnly

	logger.Phase("Init: restore %s", cat.DisplayTitle())
	if len(cat.Restore.Items) == 0 {
		s.fail("init", fmt.Errorf("category %s has no restore items", cat.Name))
		return s.finish(ctx)
	}
	if res := r.deps.Checker.CheckTools(r.deps.Config.RsyncPath); !res.Passed && !r.opts.ManifestOnly {
		s.fail("init", res.Error)
		return s.finish(ctx)
	}
	if !r.opts.NoBanner {
		lines := []string{fmt.Sprintf("Items: %d", len(cat.Restore.Items))}
		if len(cat.Restore.Services) > 0 && !r.opts.NoRestart {
			lines = append(lines, fmt.Sprintf("Services: %v", cat.Restore.Services))
		}
		if err := s.showBanner(ctx, cat, lines...); err != nil {
			s.fail("init", err)
			return s.finish(ctx)
		}
	}

	runDir, err := r.locateRun(ctx, s)
	if err != nil {
		s.fail("locate", err)
		return s.finish(ctx)
	}
	rc.RunDir = runDir
	rc.RunName = filepath.Base(runDir)
	rc.CategoryRoot = filepath.Dir(runDir)
	logger.Info("Restoring from %s", runDir)

	if r.opts.ManifestOnly {
		r.printPlan(runDir)
		return s.finish(ctx)
	}

	if r.opts.Confirm && !r.opts.Yes {
		ok, err := r.deps.Input.AskYesNo(ctx, fmt.Sprintf("Overwrite local files with the contents of %s?", rc.RunName), false)
		if err != nil {
			s.fail("confirm", err)
			return s.finish(ctx)
		}
		if !ok {
			fmt.Fprintln(r.deps.Out, "Restore cancelled.")
			logger.Info("Restore cancelled by operator")
			return s.finish(ctx)
		}
	}

	if err := s.acquireLock(rc.CategoryRoot); err != nil {
		s.fail("prepare", err)
		return s.finish(ctx)
	}
	s.openLog(r.logPath(rc))

	logger.Phase("Restoring %d item(s)", len(cat.Restore.Items))
	runner := transfer.NewRunner(logger, r.deps.Command, r.deps.Config.RsyncPath, r.deps.Config.SudoPath)
	for _, item := range cat.Restore.Items {
		if ctx.Err() != nil {
			rc.Interrupted = true
			return s.finish(ctx)
		}
		src := filepath.Join(runDir, item.From)
		opts := transfer.Options{
			Delete:   true,
			Contents: item.Contents,
			Elevated: item.Elevated || cat.Elevated,
		}
		if info, err := safefs.Stat(ctx, src, safefs.DefaultTimeout); err == nil && info.IsDir() {
			if err := os.MkdirAll(item.To, 0o755); err != nil && !opts.Elevated {
				logger.Warning("Cannot create %s: %v", item.To, err)
			}
		}
		rc.Record(runner.Copy(ctx, src, item.To, opts))
	}
	if ctx.Err() != nil {
		rc.Interrupted = true
		return s.finish(ctx)
	}

	if len(cat.Restore.PostModes) > 0 {
		logger.Phase("Applying file modes")
		for _, pm := range cat.Restore.PostModes {
			mode, err := pm.FileMode()
			if err != nil {
				logger.Warning("%v", err)
				continue
			}
			runner.Chmod(ctx, pm.Path, mode, cat.Elevated)
		}
	}

	r.restartServices(ctx)
	return s.finish(ctx)
}

// locateRun returns --from when given, otherwise the newest run directory of
// the category on the selected destination.
func (r *RestoreCoordinator) locateRun(ctx context.Context, s *session) (string, error) {
	if r.opts.From != "" {
		info, err := safefs.Stat(ctx, r.opts.From, safefs.DefaultTimeout)
		if err != nil {
			return "", fmt.Errorf("restore source: %w", err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("restore source %s is not a directory", r.opts.From)
		}
		abs, err := filepath.Abs(r.opts.From)
		if err != nil {
			return "", err
		}
		return abs, nil
	}

	dest, err := s.resolveDestination(ctx)
	if err != nil {
		return "", err
	}
	root := filepath.Join(dest.Path, r.category.Path)
	newest, err := storage.NewRetentionPolicy(r.deps.FS, r.deps.Logger).Newest(root, r.category.Prefix)
	if err != nil {
		return "", fmt.Errorf("no %s run under %s: %w", r.category.Prefix, root, err)
	}
	return newest.Path, nil
}

func (r *RestoreCoordinator) printPlan(runDir string) {
	out := r.deps.Out
	fmt.Fprintf(out, "Restore plan for %s\n", r.category.Name)
	for _, item := range r.category.Restore.Items {
		src := filepath.Join(runDir, item.From)
		if item.Contents {
			src += "/"
		}
		fmt.Fprintf(out, "  %s -> %s\n", src, item.To)
	}
	for _, pm := range r.category.Restore.PostModes {
		fmt.Fprintf(out, "  chmod %s %s\n", pm.Mode, pm.Path)
	}
	if !r.opts.NoRestart {
		for _, unit := range r.category.Restore.Services {
			fmt.Fprintf(out, "  restart %s\n", unit)
		}
	}
}

// logPath keeps restore logs out of the run directory being restored.
func (r *RestoreCoordinator) logPath(rc *RunContext) string {
	dir := r.opts.LogDir
	if dir == "" {
		dir = filepath.Join(filepath.Dir(r.deps.Config.HistoryDB), "logs")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.deps.Logger.Warning("Cannot create log directory %s: %v", dir, err)
	}
	return logging.RunLogPath("", dir, "restore-"+rc.Category+"-"+RunTimestamp(rc.Started))
}

func (r *RestoreCoordinator) restartServices(ctx context.Context) {
	units := r.category.Restore.Services
	if len(units) == 0 {
		return
	}
	if r.opts.NoRestart {
		r.deps.Logger.Skip("Service restart disabled: %v", units)
		return
	}
	r.deps.Logger.Phase("Restarting %d service(s)", len(units))
	if err := r.deps.Restarter.RestartAll(ctx, units); err != nil {
		r.deps.Logger.Warning("Service restart: %v", err)
	}
}
