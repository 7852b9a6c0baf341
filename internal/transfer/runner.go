// Package transfer copies one source at a time with rsync and classifies the
// result without ever aborting the surrounding batch.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tis24dev/mediasave/internal/logging"
	"github.com/tis24dev/mediasave/internal/types"
)

// BaseArgs are passed to every rsync invocation: recursive, attribute
// preserving, hard links, sparse files, numeric ownership.
var BaseArgs = []string{"-aAXH", "--numeric-ids", "--sparse", "--info=stats1"}

const outputTailLines = 20

// ErrElevationUnavailable is recorded when sudo credentials could not be validated.
var ErrElevationUnavailable = errors.New("privilege elevation unavailable")

// Options tune a single copy.
type Options struct {
	Excludes []string
	// Contents copies the directory's children instead of the directory.
	Contents bool
	Elevated bool
	// Delete removes receiver files missing from the source (restore only).
	Delete bool
	// Mode is applied to the copied entry when HasMode is set.
	Mode    os.FileMode
	HasMode bool
}

// Report describes one finished copy.
type Report struct {
	Source   string
	Target   string
	Outcome  types.TransferOutcome
	ExitCode int
	Err      error
}

// Runner invokes rsync. It is not safe for concurrent use.
type Runner struct {
	logger *logging.Logger
	cmd    CommandRunner
	rsync  string
	sudo   string

	lstat func(string) (os.FileInfo, error)
	glob  func(string) ([]string, error)
	chmod func(string, os.FileMode) error
	euid  func() int

	sudoChecked bool
	sudoErr     error
}

// NewRunner builds a Runner. Empty tool paths default to "rsync" and "sudo".
func NewRunner(logger *logging.Logger, cmd CommandRunner, rsyncPath, sudoPath string) *Runner {
	if cmd == nil {
		cmd = ExecRunner{}
	}
	if rsyncPath == "" {
		rsyncPath = "rsync"
	}
	if sudoPath == "" {
		sudoPath = "sudo"
	}
	return &Runner{
		logger: logger,
		cmd:    cmd,
		rsync:  rsyncPath,
		sudo:   sudoPath,
		lstat:  os.Lstat,
		glob:   filepath.Glob,
		chmod:  os.Chmod,
		euid:   os.Geteuid,
	}
}

// Args builds the rsync argument list for copying source into the directory dest.
func Args(source, dest string, opts Options) []string {
	args := append([]string(nil), BaseArgs...)
	if opts.Delete {
		args = append(args, "--delete-delay")
	}
	for _, ex := range opts.Excludes {
		if strings.TrimSpace(ex) == "" {
			continue
		}
		args = append(args, "--exclude="+ex)
	}
	src := strings.TrimRight(source, "/")
	if opts.Contents || src == "" {
		src += "/"
	}
	return append(args, src, strings.TrimRight(dest, "/")+"/")
}

// Expand resolves a glob pattern into existing paths, sorted. Non-glob
// paths are returned unchanged.
func (r *Runner) Expand(pattern string, isGlob bool) ([]string, error) {
	if !isGlob {
		return []string{pattern}, nil
	}
	matches, err := r.glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("expand %s: %w", pattern, err)
	}
	return matches, nil
}

// Copy transfers source into the directory dest. A missing source yields
// TransferSkipped. The caller owns all counting.
func (r *Runner) Copy(ctx context.Context, source, dest string, opts Options) Report {
	rep := Report{Source: source, Target: filepath.Join(dest, filepath.Base(strings.TrimRight(source, "/")))}
	if opts.Contents {
		rep.Target = dest
	}

	if _, err := r.lstat(source); err != nil {
		if os.IsNotExist(err) {
			r.logger.Skip("Source not found: %s", source)
			rep.Outcome = types.TransferSkipped
			return rep
		}
		// Unreadable metadata (e.g. root-only parents) is left for rsync to judge.
		logging.DebugStep(r.logger, "transfer", "lstat %s: %v", source, err)
	}

	name := r.rsync
	args := Args(source, dest, opts)
	if opts.Elevated && r.euid() != 0 {
		if err := r.ensureSudo(ctx); err != nil {
			r.logger.Error("Cannot copy %s: %v", source, err)
			rep.Outcome = types.TransferFailed
			rep.ExitCode = -1
			rep.Err = err
			return rep
		}
		args = append([]string{"--", r.rsync}, args...)
		name = r.sudo
	}

	r.logger.Step("Copying %s", source)
	done := logging.DebugStart(r.logger, "rsync", "%s %s", name, strings.Join(args, " "))
	res, err := r.cmd.Run(ctx, name, args...)
	done(err)
	r.logOutput(res.Output)

	rep.ExitCode = res.ExitCode
	if err != nil {
		rep.Outcome = types.TransferFailed
		rep.Err = err
		r.logger.Error("rsync could not run for %s: %v", source, err)
		return rep
	}

	rep.Outcome = Classify(res.ExitCode)
	switch rep.Outcome {
	case types.TransferSuccess:
		r.logger.Info("Copied %s", source)
	case types.TransferPartial:
		r.logger.Warning("Partial transfer for %s (rsync exit %d)", source, res.ExitCode)
	default:
		rep.Err = fmt.Errorf("rsync exited with code %d", res.ExitCode)
		r.logger.Error("rsync failed for %s (exit %d)", source, res.ExitCode)
		for _, line := range tail(res.Output, outputTailLines) {
			r.logger.Error("  %s", line)
		}
		return rep
	}

	if opts.HasMode {
		r.applyMode(ctx, rep.Target, opts.Mode, opts.Elevated)
	}
	return rep
}

// Chmod applies mode to path, through sudo when elevated. Failures are warnings.
func (r *Runner) Chmod(ctx context.Context, path string, mode os.FileMode, elevated bool) {
	r.applyMode(ctx, path, mode, elevated)
}

func (r *Runner) applyMode(ctx context.Context, path string, mode os.FileMode, elevated bool) {
	if elevated && r.euid() != 0 {
		res, err := r.cmd.Run(ctx, r.sudo, "--", "chmod", fmt.Sprintf("%04o", mode.Perm()), path)
		if err != nil || res.ExitCode != 0 {
			r.logger.Warning("chmod %04o %s failed (exit %d): %v", mode.Perm(), path, res.ExitCode, err)
		}
		return
	}
	if err := r.chmod(path, mode); err != nil {
		r.logger.Warning("chmod %04o %s failed: %v", mode.Perm(), path, err)
		return
	}
	logging.DebugStep(r.logger, "chmod", "%04o %s", mode.Perm(), path)
}

// ensureSudo validates sudo credentials once per Runner.
func (r *Runner) ensureSudo(ctx context.Context) error {
	if r.sudoChecked {
		return r.sudoErr
	}
	r.sudoChecked = true
	r.logger.Info("Validating %s credentials for elevated sources", r.sudo)
	res, err := r.cmd.Run(ctx, r.sudo, "-v")
	switch {
	case err != nil:
		r.sudoErr = fmt.Errorf("%w: %v", ErrElevationUnavailable, err)
	case res.ExitCode != 0:
		r.sudoErr = fmt.Errorf("%w: %s -v exited with code %d", ErrElevationUnavailable, r.sudo, res.ExitCode)
	}
	return r.sudoErr
}

func (r *Runner) logOutput(out []byte) {
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			r.logger.Debug("rsync: %s", line)
		}
	}
}

func tail(out []byte, n int) []string {
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
