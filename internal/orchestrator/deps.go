// Package orchestrator drives one backup or restore pass: destination
// selection, preflight gates, per-source transfers, archiving, retention and
// the final summary.
package orchestrator

import (
	"context"
	"io"
	"os"

	"github.com/juju/clock"
	"github.com/spf13/afero"

	"github.com/tis24dev/mediasave/internal/backup"
	"github.com/tis24dev/mediasave/internal/checks"
	"github.com/tis24dev/mediasave/internal/config"
	"github.com/tis24dev/mediasave/internal/history"
	"github.com/tis24dev/mediasave/internal/logging"
	"github.com/tis24dev/mediasave/internal/metrics"
	"github.com/tis24dev/mediasave/internal/mounts"
	"github.com/tis24dev/mediasave/internal/services"
	"github.com/tis24dev/mediasave/internal/transfer"
	"github.com/tis24dev/mediasave/internal/types"
)

// DestinationSource lists candidate destinations.
type DestinationSource interface {
	Discover() ([]mounts.Destination, error)
}

// RunRecorder persists a finished run.
type RunRecorder interface {
	Record(ctx context.Context, run *history.Run) error
}

// ServiceRestarter restarts units after a restore.
type ServiceRestarter interface {
	RestartAll(ctx context.Context, units []string) error
}

// Deps groups the collaborators of a coordinator. Zero fields get defaults.
type Deps struct {
	Logger      *logging.Logger
	// Bootstrap lines are replayed into the run log once it opens.
	Bootstrap   *logging.BootstrapLogger
	Config      *config.Config
	Input       InputProvider
	Out         io.Writer
	Clock       clock.Clock
	FS          afero.Fs
	Command     transfer.CommandRunner
	Checker     *checks.Checker
	Resolver    DestinationSource
	NewArchiver func(*logging.Logger, types.CompressionType) *backup.Archiver
	History     RunRecorder
	Restarter   ServiceRestarter
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = logging.GetDefaultLogger()
	}
	if d.Config == nil {
		d.Config = &config.Config{MinFreeGB: 20, Compressor: "pigz", RsyncPath: "rsync", SudoPath: "sudo"}
	}
	if d.Out == nil {
		d.Out = os.Stdout
	}
	if d.Input == nil {
		d.Input = NewCLIProvider(os.Stdin, d.Out)
	}
	if d.Clock == nil {
		d.Clock = clock.WallClock
	}
	if d.FS == nil {
		d.FS = afero.NewOsFs()
	}
	if d.Command == nil {
		d.Command = transfer.ExecRunner{}
	}
	if d.Checker == nil {
		d.Checker = checks.NewChecker(d.Logger)
	}
	if d.Resolver == nil {
		d.Resolver = mounts.NewResolver(d.Config.MountRoots, d.Logger)
	}
	if d.NewArchiver == nil {
		d.NewArchiver = backup.NewArchiver
	}
	if d.Restarter == nil {
		d.Restarter = services.NewRestarter(d.Logger, nil, d.Command, d.Config.SudoPath)
	}
	return d
}

func (d Deps) exporter() *metrics.PrometheusExporter {
	if d.Config.MetricsDir == "" {
		return nil
	}
	return metrics.NewPrometheusExporter(d.Config.MetricsDir, d.Logger)
}
