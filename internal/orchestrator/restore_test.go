package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tis24dev/mediasave/internal/catalog"
	"github.com/tis24dev/mediasave/internal/types"
)

func dotsCategory() catalog.Category {
	return catalog.Category{
		Name:   "DOTS",
		Path:   "DOTS",
		Prefix: "DOTS",
		Restore: catalog.Restore{
			Items: []catalog.RestoreItem{
				{From: "dotfiles", To: "{home}/.config"},
				{From: "bashrc", To: "{home}"},
				{From: "absent", To: "{home}/.config"},
			},
			PostModes: []catalog.PostMode{{Path: "{home}/.config/dotfiles/run.sh", Mode: "0755"}},
			Services:  []string{"smbd.service"},
		},
	}
}

// seedRuns creates an older and a newer run and returns the newer one.
func seedRuns(t *testing.T, f *fixture) string {
	t.Helper()
	older := f.mkdir(t, f.dest, "DOTS", "DOTS-100-10-04-00-00-00")
	f.age(t, older, time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC))
	newer := f.mkdir(t, f.dest, "DOTS", "DOTS-200-19-07-00-00-00")
	f.age(t, newer, time.Date(2026, 7, 19, 0, 0, 0, 0, time.UTC))
	f.mkdir(t, newer, "dotfiles")
	require.NoError(t, os.WriteFile(filepath.Join(newer, "bashrc"), []byte("alias ll='ls -l'\n"), 0o644))
	return newer
}

func TestRestoreNewestRun(t *testing.T) {
	f := newFixture(t)
	newer := seedRuns(t, f)
	script := filepath.Join(f.mkdir(t, f.home, ".config", "dotfiles"), "run.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\n"), 0o600))

	code := NewRestoreCoordinator(f.deps(), dotsCategory(), RestoreOptions{NoBanner: true}).Run(context.Background())

	require.Equal(t, types.ExitSuccess, code, f.logs.String())
	assert.Equal(t, []string{
		filepath.Join(newer, "dotfiles"),
		filepath.Join(newer, "bashrc"),
	}, f.rsync.sources())
	for _, call := range f.rsync.calls {
		assert.Contains(t, call, "--delete-delay")
		assert.True(t, strings.HasPrefix(call[len(call)-1], f.home+"/"), call[len(call)-1])
	}
	assert.Equal(t, filepath.Join(f.home, ".config")+"/", f.rsync.calls[0][len(f.rsync.calls[0])-1],
		"a directory item is copied into its parent, not over it")
	assert.Contains(t, f.logs.String(), "skipped=1")

	info, err := os.Stat(script)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	assert.Equal(t, []string{"smbd.service"}, f.restart.units)

	run := f.recorder.last(t)
	assert.Equal(t, types.RunModeRestore, run.Mode)
	assert.Equal(t, newer, run.RunDir)

	logs, err := os.ReadDir(filepath.Join(f.root, "state", "logs"))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.True(t, strings.HasPrefix(logs[0].Name(), "restore-DOTS-"))
}

func TestRestoreFromExplicitDir(t *testing.T) {
	f := newFixture(t)
	seedRuns(t, f)
	older := filepath.Join(f.dest, "DOTS", "DOTS-100-10-04-00-00-00")
	f.mkdir(t, older, "dotfiles")
	f.dests = nil

	code := NewRestoreCoordinator(f.deps(), dotsCategory(), RestoreOptions{From: older, NoBanner: true, NoRestart: true}).Run(context.Background())

	require.Equal(t, types.ExitSuccess, code, f.logs.String())
	require.NotEmpty(t, f.rsync.sources())
	assert.Equal(t, filepath.Join(older, "dotfiles"), f.rsync.sources()[0])
	assert.Empty(t, f.restart.units)
}

func TestRestoreConfirmDeclined(t *testing.T) {
	f := newFixture(t)
	seedRuns(t, f)
	f.input = NewCLIProvider(strings.NewReader("n\n"), f.out)

	code := NewRestoreCoordinator(f.deps(), dotsCategory(), RestoreOptions{NoBanner: true, Confirm: true}).Run(context.Background())

	assert.Equal(t, types.ExitSuccess, code)
	assert.Contains(t, f.out.String(), "[y/N]")
	assert.Contains(t, f.out.String(), "Restore cancelled.")
	assert.Empty(t, f.rsync.calls)
	assert.Empty(t, f.restart.units)
}

func TestRestoreConfirmSkippedWithYes(t *testing.T) {
	f := newFixture(t)
	seedRuns(t, f)
	f.input = NewCLIProvider(strings.NewReader(""), f.out)

	code := NewRestoreCoordinator(f.deps(), dotsCategory(), RestoreOptions{NoBanner: true, Confirm: true, Yes: true, NoRestart: true}).Run(context.Background())

	assert.Equal(t, types.ExitSuccess, code, f.logs.String())
	assert.NotEmpty(t, f.rsync.calls)
}

func TestRestoreFailureExitCode(t *testing.T) {
	f := newFixture(t)
	newer := seedRuns(t, f)
	f.rsync.exit[filepath.Join(newer, "bashrc")] = 12

	code := NewRestoreCoordinator(f.deps(), dotsCategory(), RestoreOptions{NoBanner: true}).Run(context.Background())

	assert.Equal(t, types.ExitGenericError, code)
	assert.Equal(t, 1, f.recorder.last(t).Failures)
	assert.Equal(t, []string{"smbd.service"}, f.restart.units, "service restart is attempted after partial failures")
}

func TestRestoreManifestOnly(t *testing.T) {
	f := newFixture(t)
	newer := seedRuns(t, f)

	code := NewRestoreCoordinator(f.deps(), dotsCategory(), RestoreOptions{NoBanner: true, ManifestOnly: true}).Run(context.Background())

	assert.Equal(t, types.ExitSuccess, code)
	assert.Empty(t, f.rsync.calls)
	out := f.out.String()
	assert.Contains(t, out, filepath.Join(newer, "dotfiles")+" -> "+filepath.Join(f.home, ".config")+"\n")
	assert.Contains(t, out, "chmod 0755 "+filepath.Join(f.home, ".config", "dotfiles", "run.sh"))
	assert.Contains(t, out, "restart smbd.service")
}

func TestRestoreNoRuns(t *testing.T) {
	f := newFixture(t)

	code := NewRestoreCoordinator(f.deps(), dotsCategory(), RestoreOptions{NoBanner: true}).Run(context.Background())

	assert.Equal(t, types.ExitGenericError, code)
	assert.Contains(t, f.logs.String(), "no DOTS run")
}

func TestRestoreContentsItemMirrorsIntoTarget(t *testing.T) {
	f := newFixture(t)
	newer := seedRuns(t, f)
	cat := dotsCategory()
	cat.Restore.Items = []catalog.RestoreItem{{From: "dotfiles", To: "{home}/dotfiles", Contents: true}}
	cat.Restore.PostModes = nil

	code := NewRestoreCoordinator(f.deps(), cat, RestoreOptions{NoBanner: true, NoRestart: true}).Run(context.Background())

	require.Equal(t, types.ExitSuccess, code, f.logs.String())
	require.Len(t, f.rsync.calls, 1)
	call := f.rsync.calls[0]
	assert.Equal(t, filepath.Join(newer, "dotfiles")+"/", call[len(call)-2])
	assert.Equal(t, filepath.Join(f.home, "dotfiles")+"/", call[len(call)-1])
}

// Deletion during a restore must stay inside the restored entry: whenever
// rsync deletes, the source carries no trailing slash, so the parent
// directory named in "to" keeps its other children.
func TestRestoreShippedCatalogKeepsDeletionInsideItems(t *testing.T) {
	shipped, err := catalog.Load("")
	require.NoError(t, err)

	for _, name := range []string{"DOTS", "SSH", "GRUB"} {
		t.Run(name, func(t *testing.T) {
			cat, err := shipped.Lookup(name)
			require.NoError(t, err)
			require.NotEmpty(t, cat.Restore.Items)

			f := newFixture(t)
			for i, item := range cat.Restore.Items {
				if !strings.HasPrefix(item.To, "{home}") {
					cat.Restore.Items[i].To = filepath.Join(f.root, item.To)
				}
			}
			cat.Restore.PostModes = nil

			runDir := f.mkdir(t, f.dest, cat.Path, cat.Prefix+"-200-19-07-00-00-00")
			for _, item := range cat.Restore.Items {
				src := filepath.Join(runDir, item.From)
				if filepath.Ext(src) == ".json" {
					f.mkdir(t, filepath.Dir(src))
					require.NoError(t, os.WriteFile(src, []byte("{}\n"), 0o644))
					continue
				}
				f.mkdir(t, src)
			}

			code := NewRestoreCoordinator(f.deps(), cat, RestoreOptions{NoBanner: true, NoRestart: true}).Run(context.Background())

			require.Equal(t, types.ExitSuccess, code, f.logs.String())
			var copies [][]string
			for _, call := range f.rsync.calls {
				if len(call) > 2 {
					copies = append(copies, call)
				}
			}
			require.Len(t, copies, len(cat.Restore.Items))
			for i, call := range copies {
				require.Contains(t, call, "--delete-delay")
				src := call[len(call)-2]
				assert.False(t, strings.HasSuffix(src, "/"), "source %s would mirror over %s", src, call[len(call)-1])
				assert.Equal(t, filepath.Join(runDir, cat.Restore.Items[i].From), src)
			}
		})
	}
}
