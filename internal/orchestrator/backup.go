package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tis24dev/mediasave/internal/backup"
	"github.com/tis24dev/mediasave/internal/catalog"
	"github.com/tis24dev/mediasave/internal/logging"
	"github.com/tis24dev/mediasave/internal/storage"
	"github.com/tis24dev/mediasave/internal/transfer"
	"github.com/tis24dev/mediasave/internal/types"
)

// BackupOptions are the per-invocation switches of a backup pass.
type BackupOptions struct {
	NoBanner     bool
	Yes          bool
	NoCompress   bool
	ManifestOnly bool
	LogDir       string
	// Keep overrides the category retention count. Values that are not
	// integers disable retention for this run.
	Keep string
}

// BackupCoordinator runs one backup pass for a category.
type BackupCoordinator struct {
	deps     Deps
	category catalog.Category
	opts     BackupOptions
}

// NewBackupCoordinator expands the category's placeholders for the configured user.
func NewBackupCoordinator(deps Deps, cat catalog.Category, opts BackupOptions) *BackupCoordinator {
	deps = deps.withDefaults()
	return &BackupCoordinator{
		deps:     deps,
		category: cat.Expand(deps.Config.User, deps.Config.Home),
		opts:     opts,
	}
}

// Run executes Init → ResolveDestination → GateSpace → PrepareRunDir →
// TransferLoop → Archive → Retention → Summarize and returns the exit code.
func (b *BackupCoordinator) Run(ctx context.Context) types.ExitCode {
	cat := b.category
	logger := b.deps.Logger
	s := &session{
		deps: b.deps,
		rc:   newRunContext(types.RunModeBackup, cat.Name, b.deps.Clock.Now()),
	}
	rc := s.rc
	rc.ManifestOnly = b.opts.ManifestOnly

	// Init
	logger.Phase("Init: %s", cat.DisplayTitle())
	compress, archiver, err := b.init(ctx, s)
	if err != nil {
		s.fail("init", err)
		return s.finish(ctx)
	}

	// ResolveDestination
	dest, err := s.resolveDestination(ctx)
	if err != nil {
		s.fail("destination", err)
		return s.finish(ctx)
	}

	// GateSpace
	logger.Phase("Checking free space on %s", dest.Path)
	minGB := b.deps.Config.MinFreeGB
	if cat.MinFreeGB > 0 {
		minGB = cat.MinFreeGB
	}
	if res := b.deps.Checker.CheckDiskSpace(dest.Path, minGB); !res.Passed {
		s.fail("space", res.Error)
		return s.finish(ctx)
	}

	// PrepareRunDir
	logger.Phase("Preparing run directory")
	rc.CategoryRoot = filepath.Join(dest.Path, cat.Path)
	if err := os.MkdirAll(rc.CategoryRoot, 0o755); err != nil {
		s.fail("prepare", fmt.Errorf("create %s: %w", rc.CategoryRoot, err))
		return s.finish(ctx)
	}
	if err := s.acquireLock(rc.CategoryRoot); err != nil {
		s.fail("prepare", err)
		return s.finish(ctx)
	}
	rc.RunName = cat.Prefix + "-" + RunTimestamp(rc.Started)
	rc.RunDir = filepath.Join(rc.CategoryRoot, rc.RunName)
	if err := os.Mkdir(rc.RunDir, 0o755); err != nil {
		s.fail("prepare", fmt.Errorf("create run directory: %w", err))
		rc.RunDir = ""
		return s.finish(ctx)
	}
	if b.opts.LogDir != "" {
		if err := os.MkdirAll(b.opts.LogDir, 0o755); err != nil {
			logger.Warning("Cannot create log directory %s: %v", b.opts.LogDir, err)
		}
	}
	s.openLog(logging.RunLogPath(rc.RunDir, b.opts.LogDir, rc.RunName))

	manifest, err := writeManifest(rc.RunDir, cat.SourcePaths(), cat.AllExcludes())
	if err != nil {
		s.fail("prepare", err)
		return s.finish(ctx)
	}
	logger.Info("Source list written to %s", manifest)

	if b.opts.ManifestOnly {
		logger.Info("Manifest-only mode: no data copied")
		return s.finish(ctx)
	}

	// TransferLoop
	logger.Phase("Copying %d source(s)", len(cat.Sources))
	b.transferAll(ctx, s)
	if ctx.Err() != nil {
		rc.Interrupted = true
		logger.Warning("Interrupted; partially copied data is left in %s", rc.RunDir)
		return s.finish(ctx)
	}

	// Archive
	if compress {
		b.archive(ctx, s, archiver)
		if ctx.Err() != nil {
			rc.Interrupted = true
			return s.finish(ctx)
		}
	}

	// Retention
	b.retention(ctx, s)

	return s.finish(ctx)
}

// init runs the preflight tool checks, the banner and the compression choice.
func (b *BackupCoordinator) init(ctx context.Context, s *session) (bool, *backup.Archiver, error) {
	cat := b.category
	logger := b.deps.Logger

	if !b.opts.ManifestOnly {
		if res := b.deps.Checker.CheckTools(b.deps.Config.RsyncPath); !res.Passed {
			return false, nil, res.Error
		}
	}

	compress := cat.SupportsCompress && !b.opts.NoCompress && !b.opts.ManifestOnly
	comp := b.deps.Config.Compression()
	if comp == types.CompressionNone {
		compress = false
	}
	tool := backup.ToolName(comp)

	if !b.opts.NoBanner {
		lines := []string{
			fmt.Sprintf("Sources: %d", len(cat.Sources)),
			fmt.Sprintf("Compression: %s", onOff(compress, tool)),
		}
		if b.opts.ManifestOnly {
			lines = append(lines, "Mode: manifest only")
		}
		if err := s.showBanner(ctx, cat, lines...); err != nil {
			return false, nil, err
		}
	}

	if compress && !b.opts.Yes {
		answer, err := b.deps.Input.AskYesNo(ctx, fmt.Sprintf("Create compressed archive with %s?", tool), true)
		if err != nil {
			return false, nil, err
		}
		compress = answer
	}
	if !compress {
		logging.DebugStep(logger, "init", "archive disabled")
		return false, nil, nil
	}

	archiver := b.deps.NewArchiver(logger, comp)
	if _, err := archiver.ResolveCompression(); err != nil {
		return false, nil, err
	}
	return true, archiver, nil
}

func (b *BackupCoordinator) transferAll(ctx context.Context, s *session) {
	cat := b.category
	rc := s.rc
	logger := b.deps.Logger
	runner := transfer.NewRunner(logger, b.deps.Command, b.deps.Config.RsyncPath, b.deps.Config.SudoPath)

	for _, src := range cat.Sources {
		if ctx.Err() != nil {
			return
		}
		paths, err := runner.Expand(src.Path, src.Glob)
		if err != nil {
			logger.Error("%v", err)
			rc.Record(transfer.Report{Source: src.Path, Outcome: types.TransferFailed, Err: err})
			continue
		}
		if len(paths) == 0 {
			logger.Skip("No match for %s", src.Path)
			rc.Record(transfer.Report{Source: src.Path, Outcome: types.TransferSkipped})
			continue
		}

		opts := transfer.Options{
			Excludes: append(append([]string(nil), cat.Excludes...), src.Excludes...),
			Contents: src.Contents,
			Elevated: cat.IsElevated(src),
		}
		opts.Mode, opts.HasMode = src.FileMode()

		for _, p := range paths {
			if ctx.Err() != nil {
				return
			}
			rc.Record(runner.Copy(ctx, p, rc.RunDir, opts))
		}
	}
}

func (b *BackupCoordinator) archive(ctx context.Context, s *session, archiver *backup.Archiver) {
	rc := s.rc
	logger := b.deps.Logger
	logger.Phase("Creating archive")
	if rc.Failures > 0 {
		logger.Info("Archiving despite %d failed source(s)", rc.Failures)
	}

	rc.ArchiveAttempted = true
	target := filepath.Join(rc.RunDir, backup.ArchiveName(rc.RunName))
	res, err := archiver.Compress(ctx, rc.RunDir, target, rc.LogPath)
	if err != nil {
		rc.ArchiveFailed = true
		logger.Error("%v", err)
		var ae *backup.ArchiveError
		if errors.As(err, &ae) {
			for _, line := range ae.StderrTail {
				logger.Error("  %s", line)
			}
		}
		return
	}
	rc.ArchivePath = res.Path
	rc.ArchiveSize = res.Size
	logger.Info("Archive created with %s in %s", res.Compressor, res.Duration.Round(time.Millisecond))
}

func (b *BackupCoordinator) retention(ctx context.Context, s *session) {
	rc := s.rc
	logger := b.deps.Logger
	if !rc.Succeeded() {
		logger.Info("Retention skipped: run did not succeed")
		return
	}
	keep := b.keepCount()
	if keep < 0 {
		return
	}
	logger.Phase("Applying retention (keep %d)", keep)
	policy := storage.NewRetentionPolicy(b.deps.FS, logger)
	if _, err := policy.Prune(ctx, rc.CategoryRoot, b.category.Prefix, keep); err != nil {
		logger.Warning("Retention failed: %v", err)
	}
}

// keepCount resolves --keep against the category default. Invalid overrides
// disable retention.
func (b *BackupCoordinator) keepCount() int {
	raw := strings.TrimSpace(b.opts.Keep)
	if raw == "" {
		return b.category.KeepCount()
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		b.deps.Logger.Warning("Ignoring invalid --keep value %q; retention disabled", b.opts.Keep)
		return -1
	}
	return n
}

func onOff(enabled bool, what string) string {
	if enabled {
		return what
	}
	return "off"
}
