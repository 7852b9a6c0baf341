package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tis24dev/mediasave/internal/catalog"
	"github.com/tis24dev/mediasave/internal/checks"
	"github.com/tis24dev/mediasave/internal/logging"
	"github.com/tis24dev/mediasave/internal/mounts"
	"github.com/tis24dev/mediasave/internal/types"
)

// session holds what every coordinator acquires and must release on every
// exit path: the category lock and the run log.
type session struct {
	deps Deps
	rc   *RunContext
	lock *checks.RunLock
}

func (s *session) logger() *logging.Logger { return s.deps.Logger }

// showBanner prints the category banner and waits for Enter.
func (s *session) showBanner(ctx context.Context, cat catalog.Category, lines ...string) error {
	out := s.deps.Out
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "  %s\n", cat.DisplayTitle())
	fmt.Fprintln(out, rule)
	for _, line := range lines {
		fmt.Fprintf(out, "  %s\n", line)
	}
	fmt.Fprintln(out)
	return s.deps.Input.WaitConfirm(ctx, "Press Enter to continue...")
}

// resolveDestination runs discovery and selection.
func (s *session) resolveDestination(ctx context.Context) (mounts.Destination, error) {
	s.logger().Phase("Resolving destination")
	dests, err := s.deps.Resolver.Discover()
	if err != nil {
		return mounts.Destination{}, err
	}
	dest, err := mounts.Select(ctx, dests, s.deps.Input, s.logger())
	if err != nil {
		return mounts.Destination{}, err
	}
	s.rc.Destination = dest.Path
	return dest, nil
}

func (s *session) acquireLock(dir string) error {
	lock, err := s.deps.Checker.AcquireLock(dir)
	if err != nil {
		return err
	}
	s.lock = lock
	return nil
}

func (s *session) openLog(path string) {
	if err := s.logger().OpenLogFile(path); err != nil {
		s.logger().Warning("Run log disabled: %v", err)
		return
	}
	s.rc.LogPath = path
	if s.deps.Bootstrap != nil {
		s.deps.Bootstrap.Flush(s.logger())
	}
	s.logger().Info("Run %s (%s %s) logging to %s", s.rc.ID, s.rc.Mode, s.rc.Category, path)
}

// fail records a fatal preflight error.
func (s *session) fail(phase string, err error) {
	if ExitCodeFor(err) == types.ExitInterrupted {
		s.rc.Interrupted = true
		s.logger().Warning("Interrupted during %s", phase)
		return
	}
	s.rc.Fatal = &PhaseError{Phase: phase, Err: err}
	s.logger().Error("%v", err)
}

// finish summarizes, records history and metrics, releases the lock, then
// closes and trims the log. It runs on every exit path.
func (s *session) finish(ctx context.Context) types.ExitCode {
	rc := s.rc
	rc.Finished = s.deps.Clock.Now()
	logger := s.logger()

	logger.Phase("Summary")
	for _, rep := range rc.Reports {
		logging.DebugStep(logger, "summary", "%-8s %s", rep.Outcome, rep.Source)
	}
	if rc.ArchiveAttempted && !rc.ArchiveFailed {
		logger.Info("Archive: %s (%s)", rc.ArchivePath, humanize.IBytes(uint64(rc.ArchiveSize)))
	}
	logger.Info("Copied %d, partial %d, skipped %d, failed %d in %s",
		rc.Copied, rc.Partial, rc.Skipped, rc.Failures, rc.Finished.Sub(rc.Started).Round(time.Second))
	logger.Info("%s", rc.SummaryLine())
	if code := rc.ExitCode(); code == types.ExitSuccess {
		logger.Info("%s %s completed successfully", rc.Category, rc.Mode)
	} else {
		logger.Error("%s %s finished with status %s", rc.Category, rc.Mode, code)
	}

	// History and metrics must land even when ctx is already cancelled.
	bg := context.WithoutCancel(ctx)
	if s.deps.History != nil {
		if err := s.deps.History.Record(bg, rc.historyRun()); err != nil {
			logger.Warning("Failed to record run history: %v", err)
		}
	}
	if exp := s.deps.exporter(); exp != nil {
		if err := exp.Export(rc.metrics(logger.WarningCount())); err != nil {
			logger.Warning("Failed to export metrics: %v", err)
		}
	}

	if s.lock != nil {
		if err := s.lock.Release(); err != nil {
			logger.Warning("%v", err)
		}
	}
	if err := logger.CloseLogFile(); err != nil {
		fmt.Fprintf(s.deps.Out, "failed to close run log: %v\n", err)
	}
	if err := logging.TrimLogFile(rc.LogPath, logging.DefaultTrimBytes, logging.DefaultTrimLines); err != nil {
		fmt.Fprintf(s.deps.Out, "failed to trim run log: %v\n", err)
	}
	return rc.ExitCode()
}
