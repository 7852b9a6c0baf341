package mounts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tis24dev/mediasave/internal/input"
	"github.com/tis24dev/mediasave/internal/logging"
	"github.com/tis24dev/mediasave/internal/types"
)

type fakeDirEntry struct {
	name string
	dir  bool
}

func (e fakeDirEntry) Name() string               { return e.name }
func (e fakeDirEntry) IsDir() bool                { return e.dir }
func (e fakeDirEntry) Type() fs.FileMode          { return 0 }
func (e fakeDirEntry) Info() (fs.FileInfo, error) { return fakeInfo{e}, nil }

type fakeInfo struct{ e fakeDirEntry }

func (i fakeInfo) Name() string       { return i.e.name }
func (i fakeInfo) Size() int64        { return 0 }
func (i fakeInfo) Mode() fs.FileMode  { return fs.ModeDir }
func (i fakeInfo) ModTime() time.Time { return time.Time{} }
func (i fakeInfo) IsDir() bool        { return i.e.dir }
func (i fakeInfo) Sys() any           { return nil }

func newTestResolver(table Table, dirs map[string][]string) *Resolver {
	logger := logging.New(types.LogLevelDebug, false)
	logger.SetOutput(&bytes.Buffer{})
	return &Resolver{
		Roots:     []string{"/run/media/u", "/media/u"},
		ReadTable: func() (Table, error) { return table, nil },
		ReadDir: func(p string) ([]os.DirEntry, error) {
			names, ok := dirs[p]
			if !ok {
				return nil, os.ErrNotExist
			}
			out := make([]os.DirEntry, 0, len(names))
			for _, n := range names {
				out = append(out, fakeDirEntry{name: n, dir: n != "file.txt"})
			}
			return out, nil
		},
		Logger: logger,
	}
}

func TestDiscoverFiltersAndKeepsScanOrder(t *testing.T) {
	table := Table{
		"/run/media/u/ZETA":   "ext4",
		"/run/media/u/ALPHA":  "exfat",
		"/run/media/u/RAM":    "tmpfs",
		"/run/media/u/CG":     "cgroup2",
		"/media/u/OVL":        "overlay",
		"/media/u/BTR":        "btrfs",
		"/media/u/SQ":         "squashfs",
		"/media/u/AUTO":       "autofs",
		"/run/media/u/unused": "",
	}
	dirs := map[string][]string{
		"/run/media/u": {"ZETA", "NOTMOUNTED", "ALPHA", "RAM", "CG", "file.txt", "unused"},
		"/media/u":     {"OVL", "BTR", "SQ", "AUTO"},
	}
	r := newTestResolver(table, dirs)

	got, err := r.Discover()
	require.NoError(t, err)
	assert.Equal(t, []Destination{
		{Path: "/run/media/u/ZETA", FSType: "ext4"},
		{Path: "/run/media/u/ALPHA", FSType: "exfat"},
		{Path: "/media/u/BTR", FSType: "btrfs"},
	}, got)
}

func TestDiscoverMissingRootsYieldsEmpty(t *testing.T) {
	r := newTestResolver(Table{}, map[string][]string{})
	got, err := r.Discover()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDiscoverMountTableError(t *testing.T) {
	r := newTestResolver(nil, nil)
	r.ReadTable = func() (Table, error) { return nil, errors.New("no proc") }
	_, err := r.Discover()
	assert.Error(t, err)
}

type scriptedPrompter struct {
	index     int
	indexErr  error
	confirmed int
	asked     int
}

func (p *scriptedPrompter) AskIndex(ctx context.Context, title string, options []string) (int, error) {
	p.asked++
	return p.index, p.indexErr
}

func (p *scriptedPrompter) WaitConfirm(ctx context.Context, message string) error {
	p.confirmed++
	return nil
}

func TestSelectNoneFails(t *testing.T) {
	p := &scriptedPrompter{}
	_, err := Select(context.Background(), nil, p, nil)
	assert.ErrorIs(t, err, ErrNoDestinationFound)
	assert.Zero(t, p.asked)
}

func TestSelectSingleNeverPrompts(t *testing.T) {
	for n := 0; n < 3; n++ {
		p := &scriptedPrompter{}
		d := Destination{Path: fmt.Sprintf("/media/u/D%d", n), FSType: "ext4"}
		got, err := Select(context.Background(), []Destination{d}, p, nil)
		require.NoError(t, err)
		assert.Equal(t, d, got)
		assert.Zero(t, p.asked)
		assert.Zero(t, p.confirmed)
	}
}

func TestSelectMultipleRequiresIndexAndConfirm(t *testing.T) {
	dests := []Destination{{Path: "/a", FSType: "ext4"}, {Path: "/b", FSType: "xfs"}}
	p := &scriptedPrompter{index: 1}
	got, err := Select(context.Background(), dests, p, nil)
	require.NoError(t, err)
	assert.Equal(t, "/b", got.Path)
	assert.Equal(t, 1, p.asked)
	assert.Equal(t, 1, p.confirmed)
}

func TestSelectInvalidAnswers(t *testing.T) {
	dests := []Destination{{Path: "/a"}, {Path: "/b"}}
	for _, perr := range []error{input.ErrNotANumber, input.ErrOutOfRange, input.ErrNoInput} {
		p := &scriptedPrompter{indexErr: fmt.Errorf("bad: %w", perr)}
		_, err := Select(context.Background(), dests, p, nil)
		assert.ErrorIs(t, err, ErrInvalidSelection)
		assert.Zero(t, p.confirmed)
	}

	p := &scriptedPrompter{index: 5}
	_, err := Select(context.Background(), dests, p, nil)
	assert.ErrorIs(t, err, ErrInvalidSelection)

	p = &scriptedPrompter{indexErr: input.ErrInputAborted}
	_, err = Select(context.Background(), dests, p, nil)
	assert.ErrorIs(t, err, input.ErrInputAborted)
	assert.NotErrorIs(t, err, ErrInvalidSelection)
}
