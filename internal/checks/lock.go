package checks

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/tis24dev/mediasave/internal/logging"
)

// LockFileName is created inside the category root while a run is active.
const LockFileName = ".mediasave.lock"

// ErrLocked means another live process holds the category lock.
var ErrLocked = errors.New("another run is in progress")

// RunLock is a held lock. Release is idempotent.
type RunLock struct {
	path     string
	released bool
}

// Path returns the lock file location.
func (l *RunLock) Path() string { return l.path }

// Release removes the lock file.
func (l *RunLock) Release() error {
	if l == nil || l.released {
		return nil
	}
	l.released = true
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// processAlive is swapped in tests.
var processAlive = func(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// AcquireLock creates dir/.mediasave.lock with O_EXCL. A lock whose PID is no
// longer running is reclaimed once.
func (c *Checker) AcquireLock(dir string) (*RunLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory %s: %w", dir, err)
	}
	lockPath := filepath.Join(dir, LockFileName)

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			hostname, _ := os.Hostname()
			fmt.Fprintf(f, "pid=%d\nhost=%s\ntime=%s\n", os.Getpid(), hostname, time.Now().Format(time.RFC3339))
			if cerr := f.Close(); cerr != nil {
				c.logger.Warning("Failed to write lock file %s: %v", lockPath, cerr)
			}
			logging.DebugStep(c.logger, "lock", "acquired %s", lockPath)
			return &RunLock{path: lockPath}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}

		pid := readLockPID(lockPath)
		if processAlive(pid) {
			return nil, fmt.Errorf("%w (pid %d holds %s)", ErrLocked, pid, lockPath)
		}
		c.logger.Warning("Removing stale lock file %s (pid %d not running)", lockPath, pid)
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale lock: %w", err)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrLocked, lockPath)
}

func readLockPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(string(data), "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "pid="); ok {
			pid, err := strconv.Atoi(v)
			if err == nil {
				return pid
			}
		}
	}
	return 0
}
