package orchestrator

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"

	"github.com/tis24dev/mediasave/internal/checks"
	"github.com/tis24dev/mediasave/internal/config"
	"github.com/tis24dev/mediasave/internal/history"
	"github.com/tis24dev/mediasave/internal/logging"
	"github.com/tis24dev/mediasave/internal/mounts"
	"github.com/tis24dev/mediasave/internal/transfer"
	"github.com/tis24dev/mediasave/internal/types"
)

var testStart = time.Date(2026, time.October, 16, 9, 30, 0, 0, time.UTC)

// fakeRsync records every invocation. Exit codes are keyed by source path;
// successful copies drop a marker file into the destination.
type fakeRsync struct {
	mu    sync.Mutex
	calls [][]string
	exit  map[string]int
}

func (f *fakeRsync) Run(_ context.Context, name string, args ...string) (transfer.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string{name}, args...))
	if len(args) < 2 {
		return transfer.Result{}, nil
	}
	src := strings.TrimRight(args[len(args)-2], "/")
	dest := args[len(args)-1]
	code := f.exit[src]
	if code == 0 || code == 24 {
		_ = os.MkdirAll(dest, 0o755)
		_ = os.WriteFile(filepath.Join(dest, filepath.Base(src)+".copied"), []byte("data\n"), 0o644)
	}
	return transfer.Result{ExitCode: code, Output: []byte("sent 10 bytes\n")}, nil
}

func (f *fakeRsync) sources() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if len(c) >= 3 {
			out = append(out, c[len(c)-2])
		}
	}
	return out
}

type staticDestinations []mounts.Destination

func (s staticDestinations) Discover() ([]mounts.Destination, error) {
	return s, nil
}

type memRecorder struct {
	runs []*history.Run
}

func (m *memRecorder) Record(_ context.Context, run *history.Run) error {
	m.runs = append(m.runs, run)
	return nil
}

func (m *memRecorder) last(t *testing.T) *history.Run {
	t.Helper()
	if len(m.runs) == 0 {
		t.Fatal("no run recorded")
	}
	return m.runs[len(m.runs)-1]
}

type fakeRestarter struct {
	units []string
}

func (f *fakeRestarter) RestartAll(_ context.Context, units []string) error {
	f.units = append(f.units, units...)
	return nil
}

type fixture struct {
	root     string
	home     string
	dest     string
	logs     *bytes.Buffer
	out      *bytes.Buffer
	rsync    *fakeRsync
	recorder *memRecorder
	restart  *fakeRestarter
	freeGB   uint64
	dests    staticDestinations
	input    InputProvider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		root:     root,
		home:     filepath.Join(root, "home"),
		dest:     filepath.Join(root, "media", "USB"),
		logs:     &bytes.Buffer{},
		out:      &bytes.Buffer{},
		rsync:    &fakeRsync{exit: map[string]int{}},
		recorder: &memRecorder{},
		restart:  &fakeRestarter{},
		freeGB:   100,
		input:    AutoProvider{},
	}
	for _, dir := range []string{f.home, f.dest} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	f.dests = staticDestinations{{Path: f.dest, FSType: "ext4"}}
	return f
}

func (f *fixture) deps() Deps {
	logger := logging.New(types.LogLevelDebug, false)
	logger.SetOutput(f.logs)
	free := f.freeGB
	checker := checks.NewChecker(logger).
		WithStatfs(func(string) (uint64, error) { return free << 30, nil }).
		WithLookPath(func(name string) (string, error) { return "/usr/bin/" + name, nil })
	return Deps{
		Logger: logger,
		Config: &config.Config{
			User:       "u",
			Home:       f.home,
			MinFreeGB:  20,
			RsyncPath:  "rsync",
			SudoPath:   "sudo",
			Compressor: "gzip",
			HistoryDB:  filepath.Join(f.root, "state", "history.db"),
		},
		Input:     f.input,
		Out:       f.out,
		Clock:     testclock.NewClock(testStart),
		Command:   f.rsync,
		Checker:   checker,
		Resolver:  f.dests,
		History:   f.recorder,
		Restarter: f.restart,
	}
}

func (f *fixture) mkdir(t *testing.T, parts ...string) string {
	t.Helper()
	p := filepath.Join(parts...)
	if err := os.MkdirAll(p, 0o755); err != nil {
		t.Fatal(err)
	}
	return p
}

func (f *fixture) age(t *testing.T, path string, when time.Time) {
	t.Helper()
	if err := os.Chtimes(path, when, when); err != nil {
		t.Fatal(err)
	}
}
