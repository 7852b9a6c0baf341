// Package storage manages run directories already written to a destination:
// listing them by recency and pruning old ones.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/tis24dev/mediasave/internal/logging"
)

// ErrNoRuns is returned by Newest when a category root holds no run directory.
var ErrNoRuns = errors.New("no run directories found")

// StorageError wraps a failed filesystem operation on a category root.
type StorageError struct {
	Operation string
	Path      string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Operation, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// RunDir is one "<PREFIX>-<timestamp>" directory under a category root.
type RunDir struct {
	Name    string
	Path    string
	ModTime time.Time
}

// RetentionSummary reports what a prune did.
type RetentionSummary struct {
	Total   int
	Kept    int
	Deleted []string
	// Disabled is set when keep was negative and nothing was examined.
	Disabled bool
}

// RetentionPolicy lists and prunes run directories on an afero filesystem.
type RetentionPolicy struct {
	fs     afero.Fs
	logger *logging.Logger
}

// NewRetentionPolicy builds a policy over fs. A nil fs means the OS filesystem.
func NewRetentionPolicy(fs afero.Fs, logger *logging.Logger) *RetentionPolicy {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &RetentionPolicy{fs: fs, logger: logger}
}

// List returns run directories for prefix under root, newest first by
// modification time. Equal times fall back to reverse name order, which is
// chronological within a year for the timestamp format.
func (p *RetentionPolicy) List(root, prefix string) ([]RunDir, error) {
	entries, err := afero.ReadDir(p.fs, root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &StorageError{Operation: "list", Path: root, Err: err}
	}

	want := prefix + "-"
	var runs []RunDir
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), want) {
			continue
		}
		runs = append(runs, RunDir{
			Name:    entry.Name(),
			Path:    filepath.Join(root, entry.Name()),
			ModTime: entry.ModTime(),
		})
	}
	sort.SliceStable(runs, func(i, j int) bool {
		if !runs[i].ModTime.Equal(runs[j].ModTime) {
			return runs[i].ModTime.After(runs[j].ModTime)
		}
		return runs[i].Name > runs[j].Name
	})
	return runs, nil
}

// Newest returns the most recent run directory for prefix under root.
func (p *RetentionPolicy) Newest(root, prefix string) (RunDir, error) {
	runs, err := p.List(root, prefix)
	if err != nil {
		return RunDir{}, err
	}
	if len(runs) == 0 {
		return RunDir{}, fmt.Errorf("%w in %s for %s", ErrNoRuns, root, prefix)
	}
	return runs[0], nil
}

// Prune deletes every run directory beyond the first keep. A negative keep
// disables retention.
func (p *RetentionPolicy) Prune(ctx context.Context, root, prefix string, keep int) (RetentionSummary, error) {
	if keep < 0 {
		logging.DebugStep(p.logger, "retention", "disabled for %s (keep=%d)", root, keep)
		return RetentionSummary{Disabled: true}, nil
	}

	runs, err := p.List(root, prefix)
	if err != nil {
		return RetentionSummary{}, err
	}
	summary := RetentionSummary{Total: len(runs), Kept: len(runs)}
	if len(runs) <= keep {
		p.logger.Info("Retention: %d run(s) in %s, keeping up to %d, nothing to prune", len(runs), root, keep)
		return summary, nil
	}

	for _, run := range runs[keep:] {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		p.logger.Step("Pruning old run %s", run.Name)
		if err := p.fs.RemoveAll(run.Path); err != nil {
			p.logger.Warning("Failed to remove %s: %v", run.Path, err)
			continue
		}
		summary.Deleted = append(summary.Deleted, run.Path)
		summary.Kept--
	}
	p.logger.Info("Retention: kept %d of %d run(s), removed %d", summary.Kept, summary.Total, len(summary.Deleted))
	return summary, nil
}
