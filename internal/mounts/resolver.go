// Package mounts discovers removable-media destinations and lets the
// operator choose one.
package mounts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tis24dev/mediasave/internal/input"
	"github.com/tis24dev/mediasave/internal/logging"
	"github.com/tis24dev/mediasave/internal/safefs"
)

var (
	// ErrNoDestinationFound means no acceptable mount exists under the scanned roots.
	ErrNoDestinationFound = errors.New("no mounted destination found")
	// ErrInvalidSelection means the operator's answer was missing, non-numeric or out of range.
	ErrInvalidSelection = errors.New("invalid destination selection")
)

// Destination is a mounted, real filesystem usable as backup target.
type Destination struct {
	Path   string
	FSType string
}

func (d Destination) String() string {
	return fmt.Sprintf("%s (%s)", d.Path, d.FSType)
}

// Prompter is the subset of interactive input destination selection needs.
type Prompter interface {
	// AskIndex shows options and returns the chosen 0-based index.
	AskIndex(ctx context.Context, title string, options []string) (int, error)
	// WaitConfirm blocks until the operator acknowledges message.
	WaitConfirm(ctx context.Context, message string) error
}

// Resolver scans per-user mount parents for destinations.
type Resolver struct {
	Roots     []string
	ReadTable func() (Table, error)
	ReadDir   func(string) ([]os.DirEntry, error)
	Logger    *logging.Logger
}

// NewResolver returns a Resolver over roots using the live mount table.
func NewResolver(roots []string, logger *logging.Logger) *Resolver {
	return &Resolver{
		Roots:     append([]string(nil), roots...),
		ReadTable: ReadTable,
		ReadDir:   readDirBounded,
		Logger:    logger,
	}
}

// readDirBounded keeps a hung mount parent from stalling discovery.
func readDirBounded(path string) ([]os.DirEntry, error) {
	return safefs.ReadDir(context.Background(), path, safefs.DefaultTimeout)
}

// Discover returns acceptable destinations in scan order: roots in the order
// given, children in directory order.
func (r *Resolver) Discover() ([]Destination, error) {
	table, err := r.ReadTable()
	if err != nil {
		return nil, fmt.Errorf("read mount table: %w", err)
	}

	var out []Destination
	for _, root := range r.Roots {
		entries, err := r.ReadDir(root)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				logging.DebugStep(r.Logger, "discover", "cannot list %s: %v", root, err)
			}
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			candidate := filepath.Join(root, entry.Name())
			fstype, mounted := table.FSType(candidate)
			if !mounted {
				logging.DebugStep(r.Logger, "discover", "%s is not a mountpoint", candidate)
				continue
			}
			if IsPseudoFS(fstype) {
				logging.DebugStep(r.Logger, "discover", "%s rejected (fstype %s)", candidate, fstype)
				continue
			}
			out = append(out, Destination{Path: candidate, FSType: fstype})
		}
	}
	return out, nil
}

// Select picks a destination. A single candidate is chosen without prompting;
// several require an index answer and a confirmation.
func Select(ctx context.Context, dests []Destination, p Prompter, logger *logging.Logger) (Destination, error) {
	switch len(dests) {
	case 0:
		return Destination{}, ErrNoDestinationFound
	case 1:
		if logger != nil {
			logger.Info("Using the only available destination: %s", dests[0].Path)
		}
		return dests[0], nil
	}

	options := make([]string, len(dests))
	for i, d := range dests {
		options[i] = d.String()
	}
	idx, err := p.AskIndex(ctx, "Mounted destinations", options)
	if err != nil {
		if errors.Is(err, input.ErrNotANumber) || errors.Is(err, input.ErrOutOfRange) || errors.Is(err, input.ErrNoInput) {
			return Destination{}, fmt.Errorf("%w: %w", ErrInvalidSelection, err)
		}
		return Destination{}, err
	}
	if idx < 0 || idx >= len(dests) {
		return Destination{}, fmt.Errorf("%w: index %d", ErrInvalidSelection, idx+1)
	}
	selected := dests[idx]
	if err := p.WaitConfirm(ctx, fmt.Sprintf("Confirm destination (%s) and press Enter to continue...", selected.Path)); err != nil {
		return Destination{}, err
	}
	return selected, nil
}
