// Package backup bundles a finished run directory into a single compressed
// tar archive.
package backup

import (
	"archive/tar"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/tis24dev/mediasave/internal/checks"
	"github.com/tis24dev/mediasave/internal/logging"
	"github.com/tis24dev/mediasave/internal/types"
)

const stderrTailLines = 20

// ArchiverDeps groups external dependencies used by Archiver.
type ArchiverDeps struct {
	LookPath       func(string) (string, error)
	CommandContext func(context.Context, string, ...string) *exec.Cmd
}

func defaultArchiverDeps() ArchiverDeps {
	return ArchiverDeps{
		LookPath:       exec.LookPath,
		CommandContext: exec.CommandContext,
	}
}

// ArchiveError describes a failed archive attempt. No file is left at Path.
type ArchiveError struct {
	Path       string
	ExitCode   int
	StderrTail []string
	Err        error
}

func (e *ArchiveError) Error() string {
	msg := fmt.Sprintf("archive %s failed", e.Path)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// Result describes a created archive.
type Result struct {
	Path       string
	Size       int64
	Compressor types.CompressionType
	// Warnings counts entries that could not be read and were left out.
	Warnings int
	Duration time.Duration
}

// Archiver handles tar archive creation with compression
type Archiver struct {
	logger      *logging.Logger
	compression types.CompressionType
	level       int
	threads     int
	deps        ArchiverDeps
	warnings    int
}

// NewArchiver creates an archiver for the configured compressor.
func NewArchiver(logger *logging.Logger, compression types.CompressionType) *Archiver {
	return NewArchiverWithDeps(logger, compression, defaultArchiverDeps())
}

// NewArchiverWithDeps allows tests to replace tool lookup and process creation.
func NewArchiverWithDeps(logger *logging.Logger, compression types.CompressionType, deps ArchiverDeps) *Archiver {
	if deps.LookPath == nil {
		deps.LookPath = exec.LookPath
	}
	if deps.CommandContext == nil {
		deps.CommandContext = exec.CommandContext
	}
	return &Archiver{
		logger:      logger,
		compression: compression,
		level:       6,
		deps:        deps,
	}
}

// SetThreads limits pigz worker threads. Zero leaves pigz's default.
func (a *Archiver) SetThreads(n int) {
	a.threads = n
}

// ResolveCompression returns the compressor that will actually run.
// pigz is mandatory for CompressionPigz; auto falls back to in-process gzip.
func (a *Archiver) ResolveCompression() (types.CompressionType, error) {
	switch a.compression {
	case types.CompressionPigz:
		if _, err := a.deps.LookPath("pigz"); err != nil {
			return "", &checks.MissingToolError{Tool: "pigz"}
		}
		return types.CompressionPigz, nil
	case types.CompressionAuto:
		if _, err := a.deps.LookPath("pigz"); err == nil {
			return types.CompressionPigz, nil
		}
		a.logger.Info("pigz not found, using built-in gzip")
		return types.CompressionGzip, nil
	case types.CompressionGzip, types.CompressionNone:
		return a.compression, nil
	default:
		return "", fmt.Errorf("unsupported compressor %q", a.compression)
	}
}

// Compress writes runDir as a tar.gz at archivePath. The stream goes to a
// hidden temporary file in the same directory that is renamed into place
// only after the compressor exits cleanly. Paths in skip are left out, as
// are the archive and its temporary file.
func (a *Archiver) Compress(ctx context.Context, runDir, archivePath string, skip ...string) (res Result, err error) {
	done := logging.DebugStart(a.logger, "archive", "%s -> %s", runDir, archivePath)
	defer func() { done(err) }()

	started := time.Now()
	comp, err := a.ResolveCompression()
	if err != nil {
		return Result{}, &ArchiveError{Path: archivePath, Err: err}
	}
	if comp == types.CompressionNone {
		return Result{}, &ArchiveError{Path: archivePath, Err: errors.New("compression disabled")}
	}

	dir := filepath.Dir(archivePath)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(archivePath)+".tmp-*")
	if err != nil {
		return Result{}, &ArchiveError{Path: archivePath, Err: fmt.Errorf("create temporary archive: %w", err)}
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			if rmErr := os.Remove(tmpPath); rmErr != nil && !os.IsNotExist(rmErr) {
				a.logger.Warning("Failed to remove temporary archive %s: %v", tmpPath, rmErr)
			}
		}
	}()

	excluded := map[string]struct{}{
		filepath.Clean(archivePath): {},
		filepath.Clean(tmpPath):     {},
	}
	for _, p := range skip {
		if p != "" {
			excluded[filepath.Clean(p)] = struct{}{}
		}
	}

	a.warnings = 0
	switch comp {
	case types.CompressionPigz:
		err = a.pipeTarThroughPigz(ctx, runDir, tmp, excluded)
	default:
		err = a.writeGzip(ctx, runDir, tmp, excluded)
	}
	if err != nil {
		var ae *ArchiveError
		if errors.As(err, &ae) {
			ae.Path = archivePath
			return Result{}, ae
		}
		return Result{}, &ArchiveError{Path: archivePath, Err: err}
	}

	if err := tmp.Sync(); err != nil {
		return Result{}, &ArchiveError{Path: archivePath, Err: fmt.Errorf("sync temporary archive: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return Result{}, &ArchiveError{Path: archivePath, Err: fmt.Errorf("close temporary archive: %w", err)}
	}
	if err := os.Rename(tmpPath, archivePath); err != nil {
		return Result{}, &ArchiveError{Path: archivePath, Err: fmt.Errorf("rename into place: %w", err)}
	}
	committed = true

	res = Result{
		Path:       archivePath,
		Compressor: comp,
		Warnings:   a.warnings,
		Duration:   time.Since(started),
	}
	if info, statErr := os.Stat(archivePath); statErr == nil {
		res.Size = info.Size()
	}
	if res.Warnings > 0 {
		a.logger.Warning("Archive created with %d unreadable entries left out", res.Warnings)
	}
	return res, nil
}

func (a *Archiver) writeGzip(ctx context.Context, runDir string, out io.Writer, excluded map[string]struct{}) error {
	a.logger.Debug("Creating gzip archive in-process with level %d", a.level)
	gzWriter, err := gzip.NewWriterLevel(out, a.level)
	if err != nil {
		return fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if err := a.writeTar(ctx, runDir, gzWriter, excluded); err != nil {
		_ = gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}

func buildPigzArgs(level, threads int) []string {
	args := []string{fmt.Sprintf("-%d", level)}
	if threads > 0 {
		args = append(args, "-p", fmt.Sprintf("%d", threads))
	}
	return append(args, "-c")
}

// pipeTarThroughPigz streams the tar writer into pigz's stdin and pigz's
// stdout into out.
func (a *Archiver) pipeTarThroughPigz(ctx context.Context, runDir string, out io.Writer, excluded map[string]struct{}) error {
	cmd := a.deps.CommandContext(ctx, "pigz", buildPigzArgs(a.level, a.threads)...)
	pr, pw := io.Pipe()
	cmd.Stdin = pr
	cmd.Stdout = out

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("capture pigz output: %w", err)
	}

	if err := cmd.Start(); err != nil {
		pw.Close()
		return &ArchiveError{ExitCode: -1, Err: fmt.Errorf("failed to start pigz: %w", err)}
	}

	tailCh := make(chan []string, 1)
	go func() {
		tailCh <- a.collectTail(stderr, stderrTailLines)
	}()

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		if err := a.writeTar(ctx, runDir, pw, excluded); err != nil {
			pw.CloseWithError(err)
			errChan <- err
			return
		}
		pw.Close()
		errChan <- nil
	}()

	// stderr reaches EOF when pigz exits; Wait may only follow that.
	tailLines := <-tailCh
	waitErr := cmd.Wait()
	// Unblock the tar writer if pigz stopped reading early.
	pr.CloseWithError(io.ErrClosedPipe)
	tarErr := <-errChan

	if waitErr != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		}
		for _, line := range tailLines {
			a.logger.Error("[PIGZ] %s", line)
		}
		return &ArchiveError{ExitCode: code, StderrTail: tailLines, Err: waitErr}
	}
	if tarErr != nil {
		return &ArchiveError{StderrTail: tailLines, Err: tarErr}
	}
	a.logger.Debug("PIGZ compression completed successfully")
	return nil
}

// collectTail drains r, logging each line at debug level and keeping the last n.
func (a *Archiver) collectTail(r io.Reader, n int) []string {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		a.logger.Debug("[PIGZ] %s", line)
		lines = append(lines, line)
		if len(lines) > n {
			lines = lines[len(lines)-n:]
		}
	}
	return lines
}

func (a *Archiver) writeTar(ctx context.Context, runDir string, w io.Writer, excluded map[string]struct{}) error {
	tw := tar.NewWriter(w)
	if err := a.addToTar(ctx, tw, runDir, filepath.Base(runDir), excluded); err != nil {
		_ = tw.Close()
		return err
	}
	return tw.Close()
}

// addToTar walks sourceDir without following symlinks. Unreadable entries are
// logged, counted and skipped.
func (a *Archiver) addToTar(ctx context.Context, tarWriter *tar.Writer, sourceDir, baseInArchive string, excluded map[string]struct{}) error {
	return filepath.Walk(sourceDir, func(path string, info os.FileInfo, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if _, skip := excluded[filepath.Clean(path)]; skip {
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if err != nil {
			a.warn("Error accessing path %s: %v", path, err)
			return nil
		}

		relPath, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		archivePath := baseInArchive
		if relPath != "." {
			archivePath = filepath.Join(baseInArchive, relPath)
		}

		var linkTarget string
		if info.Mode()&os.ModeSymlink != 0 {
			linkTarget, err = os.Readlink(path)
			if err != nil {
				a.warn("Failed to read symlink %s: %v", path, err)
				return nil
			}
		}

		header, err := tar.FileInfoHeader(info, linkTarget)
		if err != nil {
			a.warn("Failed to create header for %s: %v", path, err)
			return nil
		}
		if stat, ok := info.Sys().(*syscall.Stat_t); ok {
			header.Uid = int(stat.Uid)
			header.Gid = int(stat.Gid)
			header.ModTime = time.Unix(stat.Mtim.Sec, stat.Mtim.Nsec)
		}
		header.Uname = ""
		header.Gname = ""
		header.Format = tar.FormatPAX

		name := "./" + filepath.ToSlash(archivePath)
		if info.IsDir() {
			name += "/"
		}
		header.Name = name

		if !info.Mode().IsRegular() {
			if err := tarWriter.WriteHeader(header); err != nil {
				return fmt.Errorf("failed to write tar header: %w", err)
			}
			return nil
		}

		// Open before writing the header so an unreadable file leaves no
		// dangling entry in the stream.
		file, err := os.Open(path)
		if err != nil {
			a.warn("Failed to open file %s: %v", path, err)
			return nil
		}
		defer file.Close()

		if err := tarWriter.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write tar header: %w", err)
		}
		n, err := io.CopyN(tarWriter, file, header.Size)
		if err != nil {
			// The header already promised header.Size bytes; pad with zeros
			// so the stream stays valid.
			a.warn("File %s changed while being read (%d of %d bytes): %v", path, n, header.Size, err)
			if _, perr := io.CopyN(tarWriter, zeroReader{}, header.Size-n); perr != nil {
				return fmt.Errorf("failed to pad %s: %w", path, perr)
			}
		}
		return nil
	})
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

func (a *Archiver) warn(format string, args ...interface{}) {
	a.warnings++
	a.logger.Warning(format, args...)
}

// ArchiveName returns "<base>.tar.gz".
func ArchiveName(base string) string {
	return base + ".tar.gz"
}

// ToolName is the compressor shown to the operator.
func ToolName(comp types.CompressionType) string {
	if comp == types.CompressionPigz || comp == "" {
		return "pigz"
	}
	return strings.ToLower(string(comp))
}
