// Package checks holds the preflight gates run before any data moves:
// free space on the destination, required external tools, and the run lock.
package checks

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/tis24dev/mediasave/internal/logging"
	"github.com/tis24dev/mediasave/internal/safefs"
)

const bytesPerGB = 1024 * 1024 * 1024

// ErrSpaceUnknown is returned when free space cannot be measured.
var ErrSpaceUnknown = errors.New("free space could not be determined")

// InsufficientSpaceError reports a destination below the required margin.
type InsufficientSpaceError struct {
	Path        string
	AvailableGB int64
	RequiredGB  int64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient free space on %s (%dG available, need >= %dG)", e.Path, e.AvailableGB, e.RequiredGB)
}

// MissingToolError reports a required executable absent from PATH.
type MissingToolError struct {
	Tool string
}

func (e *MissingToolError) Error() string {
	return fmt.Sprintf("missing required command: %s", e.Tool)
}

// CheckResult holds the result of a validation check
type CheckResult struct {
	Name    string
	Passed  bool
	Message string
	Error   error
}

// Checker performs preflight validation.
type Checker struct {
	logger   *logging.Logger
	statfs   func(path string) (avail uint64, err error)
	lookPath func(string) (string, error)
}

// NewChecker creates a checker backed by statfs(2) and exec.LookPath.
func NewChecker(logger *logging.Logger) *Checker {
	return &Checker{
		logger:   logger,
		statfs:   availableBytes,
		lookPath: exec.LookPath,
	}
}

// WithStatfs overrides the free-space probe.
func (c *Checker) WithStatfs(fn func(string) (uint64, error)) *Checker {
	c.statfs = fn
	return c
}

// WithLookPath overrides executable lookup.
func (c *Checker) WithLookPath(fn func(string) (string, error)) *Checker {
	c.lookPath = fn
	return c
}

// AvailableGB returns free space for unprivileged users on path's filesystem,
// in whole gigabytes, truncated.
func (c *Checker) AvailableGB(path string) (int64, error) {
	avail, err := c.statfs(path)
	if err != nil {
		return 0, fmt.Errorf("%w on %s: %v", ErrSpaceUnknown, path, err)
	}
	return int64(avail / bytesPerGB), nil
}

// AvailableBytes returns free space for unprivileged users on path's filesystem.
func (c *Checker) AvailableBytes(path string) (uint64, error) {
	avail, err := c.statfs(path)
	if err != nil {
		return 0, fmt.Errorf("%w on %s: %v", ErrSpaceUnknown, path, err)
	}
	return avail, nil
}

// EnsureSpace fails unless path has at least minGB free. Measurement errors
// fail closed.
func (c *Checker) EnsureSpace(path string, minGB int) error {
	availGB, err := c.AvailableGB(path)
	if err != nil {
		return err
	}
	if availGB < int64(minGB) {
		return &InsufficientSpaceError{Path: path, AvailableGB: availGB, RequiredGB: int64(minGB)}
	}
	return nil
}

// CheckDiskSpace wraps EnsureSpace into a CheckResult and logs the outcome.
func (c *Checker) CheckDiskSpace(path string, minGB int) CheckResult {
	result := CheckResult{Name: "Disk Space"}
	if err := c.EnsureSpace(path, minGB); err != nil {
		result.Error = err
		result.Message = err.Error()
		c.logger.Error("%s", result.Message)
		return result
	}
	avail, _ := c.statfs(path)
	result.Passed = true
	result.Message = fmt.Sprintf("%s free on %s (minimum %dG)", humanize.IBytes(avail), path, minGB)
	c.logger.Info("%s", result.Message)
	return result
}

// CheckTools verifies that every named executable is on PATH.
func (c *Checker) CheckTools(tools ...string) CheckResult {
	result := CheckResult{Name: "Required Tools"}
	var found []string
	for _, tool := range tools {
		if strings.TrimSpace(tool) == "" {
			continue
		}
		path, err := c.lookPath(tool)
		if err != nil {
			result.Error = &MissingToolError{Tool: tool}
			result.Message = result.Error.Error()
			c.logger.Error("%s", result.Message)
			return result
		}
		logging.DebugStep(c.logger, "tools", "%s -> %s", tool, path)
		found = append(found, tool)
	}
	result.Passed = true
	result.Message = "found " + strings.Join(found, ", ")
	return result
}

// HasTool reports whether tool is on PATH.
func (c *Checker) HasTool(tool string) bool {
	_, err := c.lookPath(tool)
	return err == nil
}

func availableBytes(path string) (uint64, error) {
	return safefs.AvailableBytes(context.Background(), path, safefs.DefaultTimeout)
}
