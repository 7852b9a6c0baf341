package orchestrator

import (
	"fmt"
	"time"

	"github.com/tis24dev/mediasave/internal/history"
	"github.com/tis24dev/mediasave/internal/metrics"
	"github.com/tis24dev/mediasave/internal/transfer"
	"github.com/tis24dev/mediasave/internal/types"
)

// RunContext carries the state of one pass through every phase. Counters are
// only touched by the coordinator goroutine.
type RunContext struct {
	ID           string
	Mode         types.RunMode
	Category     string
	Destination  string
	CategoryRoot string
	RunName      string
	RunDir       string
	LogPath      string
	ManifestOnly bool

	Started  time.Time
	Finished time.Time

	Failures int
	Partial  int
	Skipped  int
	Copied   int
	Reports  []transfer.Report

	ArchiveAttempted bool
	ArchiveFailed    bool
	ArchivePath      string
	ArchiveSize      int64

	Interrupted bool
	// Fatal is the preflight error that stopped the run, if any.
	Fatal error
}

func newRunContext(mode types.RunMode, category string, started time.Time) *RunContext {
	return &RunContext{
		ID:       history.NewID(),
		Mode:     mode,
		Category: category,
		Started:  started,
	}
}

// Record folds one transfer report into the counters.
func (rc *RunContext) Record(rep transfer.Report) {
	rc.Reports = append(rc.Reports, rep)
	switch rep.Outcome {
	case types.TransferSuccess:
		rc.Copied++
	case types.TransferPartial:
		rc.Copied++
		rc.Partial++
	case types.TransferSkipped:
		rc.Skipped++
	default:
		rc.Failures++
	}
}

// Succeeded reports whether retention may run: no failed transfer and no
// failed archive.
func (rc *RunContext) Succeeded() bool {
	return rc.Fatal == nil && !rc.Interrupted && rc.Failures == 0 && !rc.ArchiveFailed
}

// ExitCode maps the final state onto the process exit code.
func (rc *RunContext) ExitCode() types.ExitCode {
	switch {
	case rc.Interrupted:
		return types.ExitInterrupted
	case rc.Fatal != nil:
		return ExitCodeFor(rc.Fatal)
	case rc.Failures > 0, rc.ArchiveAttempted && rc.ArchiveFailed:
		return types.ExitGenericError
	default:
		return types.ExitSuccess
	}
}

// SummaryLine is the one-line machine-greppable result.
func (rc *RunContext) SummaryLine() string {
	archive := "skipped"
	if rc.ArchiveAttempted {
		archive = "ok"
		if rc.ArchiveFailed {
			archive = "failed"
		}
	}
	return fmt.Sprintf("rsync_failures=%d partial=%d skipped=%d archive=%s exit=%d",
		rc.Failures, rc.Partial, rc.Skipped, archive, rc.ExitCode().Int())
}

func (rc *RunContext) historyRun() *history.Run {
	return &history.Run{
		ID:            rc.ID,
		Mode:          rc.Mode,
		Category:      rc.Category,
		Destination:   rc.Destination,
		RunDir:        rc.RunDir,
		Started:       rc.Started,
		Finished:      rc.Finished,
		ExitCode:      rc.ExitCode().Int(),
		Failures:      rc.Failures,
		Partial:       rc.Partial,
		Skipped:       rc.Skipped,
		ArchivePath:   rc.ArchivePath,
		ArchiveSize:   rc.ArchiveSize,
		ArchiveFailed: rc.ArchiveFailed,
		ManifestOnly:  rc.ManifestOnly,
		Interrupted:   rc.Interrupted,
	}
}

func (rc *RunContext) metrics(warnings int) *metrics.RunMetrics {
	return &metrics.RunMetrics{
		Category:      rc.Category,
		Mode:          string(rc.Mode),
		RunID:         rc.ID,
		StartTime:     rc.Started,
		EndTime:       rc.Finished,
		ExitCode:      rc.ExitCode().Int(),
		Failures:      rc.Failures,
		Partial:       rc.Partial,
		Skipped:       rc.Skipped,
		Warnings:      warnings,
		ArchiveFailed: rc.ArchiveFailed,
		ArchiveBytes:  rc.ArchiveSize,
	}
}

// RunTimestamp formats t as day-of-year, day, month, hour, minute, second:
// "289-16-10-09-30-00".
func RunTimestamp(t time.Time) string {
	return fmt.Sprintf("%03d-%02d-%02d-%02d-%02d-%02d",
		t.YearDay(), t.Day(), int(t.Month()), t.Hour(), t.Minute(), t.Second())
}
