// Package services restarts systemd units after a restore.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-systemd/v22/dbus"

	"github.com/tis24dev/mediasave/internal/logging"
	"github.com/tis24dev/mediasave/internal/transfer"
)

// ErrUnitNotActive is returned when a unit restarted but is not running afterwards.
var ErrUnitNotActive = errors.New("unit not active after restart")

// UnitManager is the subset of the systemd API used here.
type UnitManager interface {
	// Restart restarts unit and returns the job result ("done", "failed", ...).
	Restart(ctx context.Context, unit string) (string, error)
	ActiveState(ctx context.Context, unit string) (string, error)
	Close()
}

// ManagerFactory opens a UnitManager.
type ManagerFactory func(ctx context.Context) (UnitManager, error)

// NewDBusManager connects to the system bus.
var NewDBusManager ManagerFactory = func(ctx context.Context) (UnitManager, error) {
	conn, err := dbus.NewWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return &dbusManager{conn: conn}, nil
}

type dbusManager struct {
	conn *dbus.Conn
}

func (m *dbusManager) Restart(ctx context.Context, unit string) (string, error) {
	statusCh := make(chan string, 1)
	if _, err := m.conn.RestartUnitContext(ctx, unit, "replace", statusCh); err != nil {
		return "", err
	}
	select {
	case status := <-statusCh:
		return status, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *dbusManager) ActiveState(ctx context.Context, unit string) (string, error) {
	prop, err := m.conn.GetUnitPropertyContext(ctx, unit, "ActiveState")
	if err != nil {
		return "", err
	}
	state, _ := prop.Value.Value().(string)
	return state, nil
}

func (m *dbusManager) Close() {
	m.conn.Close()
}

// Restarter restarts units over D-Bus and falls back to "sudo systemctl restart"
// when the bus is unreachable.
type Restarter struct {
	logger     *logging.Logger
	newManager ManagerFactory
	cmd        transfer.CommandRunner
	sudo       string
}

// NewRestarter builds a Restarter. A nil factory uses the system bus.
func NewRestarter(logger *logging.Logger, factory ManagerFactory, cmd transfer.CommandRunner, sudoPath string) *Restarter {
	if factory == nil {
		factory = NewDBusManager
	}
	if cmd == nil {
		cmd = transfer.ExecRunner{}
	}
	if sudoPath == "" {
		sudoPath = "sudo"
	}
	return &Restarter{logger: logger, newManager: factory, cmd: cmd, sudo: sudoPath}
}

// RestartAll restarts each unit in order. Failures are logged and returned
// joined; they never stop the remaining units.
func (r *Restarter) RestartAll(ctx context.Context, units []string) error {
	if len(units) == 0 {
		return nil
	}
	mgr, err := r.newManager(ctx)
	if err != nil {
		r.logger.Warning("systemd D-Bus unavailable (%v), falling back to systemctl", err)
		mgr = nil
	} else {
		defer mgr.Close()
	}

	var errs []error
	for _, unit := range units {
		unit = strings.TrimSpace(unit)
		if unit == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		r.logger.Step("Restarting %s", unit)
		if mgr == nil {
			err = r.restartWithSystemctl(ctx, unit)
		} else {
			err = r.restartWithManager(ctx, mgr, unit)
		}
		if err != nil {
			r.logger.Warning("Restart of %s: %v", unit, err)
			errs = append(errs, fmt.Errorf("%s: %w", unit, err))
			continue
		}
		r.logger.Info("%s restarted", unit)
	}
	return errors.Join(errs...)
}

func (r *Restarter) restartWithManager(ctx context.Context, mgr UnitManager, unit string) error {
	status, err := mgr.Restart(ctx, unit)
	if err != nil {
		return fmt.Errorf("dbus restart request failed: %w", err)
	}
	if status != "done" {
		return fmt.Errorf("restart job finished with %q", status)
	}
	state, err := mgr.ActiveState(ctx, unit)
	if err != nil {
		return fmt.Errorf("query state: %w", err)
	}
	if state != "active" {
		return fmt.Errorf("%w (state %q)", ErrUnitNotActive, state)
	}
	return nil
}

func (r *Restarter) restartWithSystemctl(ctx context.Context, unit string) error {
	res, err := r.cmd.Run(ctx, r.sudo, "systemctl", "restart", unit)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("systemctl restart exited with code %d: %s", res.ExitCode, strings.TrimSpace(string(res.Output)))
	}
	res, err = r.cmd.Run(ctx, "systemctl", "is-active", "--quiet", unit)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return ErrUnitNotActive
	}
	return nil
}
