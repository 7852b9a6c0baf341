package backup

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/tis24dev/mediasave/internal/checks"
	"github.com/tis24dev/mediasave/internal/logging"
	"github.com/tis24dev/mediasave/internal/types"
)

func newTestLogger() *logging.Logger {
	logger := logging.New(types.LogLevelDebug, false)
	logger.SetOutput(&bytes.Buffer{})
	return logger
}

func makeRunDir(t *testing.T) string {
	t.Helper()
	runDir := filepath.Join(t.TempDir(), "SSH-289-16-10-09-30-00")
	files := map[string]string{
		"sources.txt":         "Sources\n/home/u/.ssh\n",
		".ssh/id_ed25519.pub": "ssh-ed25519 AAAA test\n",
		".ssh/config":         "Host *\n",
	}
	for name, content := range files {
		path := filepath.Join(runDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Symlink("config", filepath.Join(runDir, ".ssh", "config.link")); err != nil {
		t.Fatal(err)
	}
	return runDir
}

func listArchive(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	tr := tar.NewReader(gz)
	var names []string
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("tar next: %v", err)
		}
		names = append(names, hdr.Name)
	}
	sort.Strings(names)
	return names
}

func noTempLeft(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("temporary archive left behind: %s", e.Name())
		}
	}
}

func TestResolveCompression(t *testing.T) {
	missing := func(string) (string, error) { return "", exec.ErrNotFound }
	present := func(name string) (string, error) { return "/usr/bin/" + name, nil }

	cases := []struct {
		name    string
		comp    types.CompressionType
		look    func(string) (string, error)
		want    types.CompressionType
		wantErr bool
	}{
		{"pigz present", types.CompressionPigz, present, types.CompressionPigz, false},
		{"pigz missing", types.CompressionPigz, missing, "", true},
		{"auto with pigz", types.CompressionAuto, present, types.CompressionPigz, false},
		{"auto fallback", types.CompressionAuto, missing, types.CompressionGzip, false},
		{"gzip", types.CompressionGzip, missing, types.CompressionGzip, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := NewArchiverWithDeps(newTestLogger(), tc.comp, ArchiverDeps{LookPath: tc.look})
			got, err := a.ResolveCompression()
			if tc.wantErr {
				var mte *checks.MissingToolError
				if !errors.As(err, &mte) || mte.Tool != "pigz" {
					t.Fatalf("expected MissingToolError for pigz, got %v", err)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("ResolveCompression = %s, %v; want %s", got, err, tc.want)
			}
		})
	}
}

func TestCompressInProcessGzip(t *testing.T) {
	runDir := makeRunDir(t)
	logPath := filepath.Join(runDir, "SSH-289-16-10-09-30-00.log")
	if err := os.WriteFile(logPath, []byte("log\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	archivePath := filepath.Join(runDir, ArchiveName("SSH-289-16-10-09-30-00"))

	a := NewArchiver(newTestLogger(), types.CompressionGzip)
	res, err := a.Compress(context.Background(), runDir, archivePath, logPath)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if res.Path != archivePath || res.Size <= 0 || res.Compressor != types.CompressionGzip {
		t.Fatalf("unexpected result %+v", res)
	}

	names := listArchive(t, archivePath)
	want := []string{
		"./SSH-289-16-10-09-30-00/",
		"./SSH-289-16-10-09-30-00/.ssh/",
		"./SSH-289-16-10-09-30-00/.ssh/config",
		"./SSH-289-16-10-09-30-00/.ssh/config.link",
		"./SSH-289-16-10-09-30-00/.ssh/id_ed25519.pub",
		"./SSH-289-16-10-09-30-00/sources.txt",
	}
	if strings.Join(names, "\n") != strings.Join(want, "\n") {
		t.Fatalf("archive entries:\n%s\nwant:\n%s", strings.Join(names, "\n"), strings.Join(want, "\n"))
	}
	noTempLeft(t, runDir)
}

func TestCompressWithExternalCompressor(t *testing.T) {
	if _, err := exec.LookPath("gzip"); err != nil {
		t.Skip("gzip not available")
	}
	runDir := makeRunDir(t)
	archivePath := filepath.Join(runDir, ArchiveName(filepath.Base(runDir)))

	deps := ArchiverDeps{
		LookPath: func(name string) (string, error) { return "/usr/bin/" + name, nil },
		CommandContext: func(ctx context.Context, name string, args ...string) *exec.Cmd {
			return exec.CommandContext(ctx, "gzip", "-c")
		},
	}
	a := NewArchiverWithDeps(newTestLogger(), types.CompressionPigz, deps)
	res, err := a.Compress(context.Background(), runDir, archivePath)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if res.Compressor != types.CompressionPigz {
		t.Fatalf("compressor = %s", res.Compressor)
	}
	if names := listArchive(t, archivePath); len(names) != 6 {
		t.Fatalf("unexpected entries %v", names)
	}
}

func TestCompressFailureLeavesNoArtifact(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	runDir := makeRunDir(t)
	archivePath := filepath.Join(runDir, ArchiveName(filepath.Base(runDir)))

	deps := ArchiverDeps{
		LookPath: func(name string) (string, error) { return "/usr/bin/" + name, nil },
		CommandContext: func(ctx context.Context, name string, args ...string) *exec.Cmd {
			return exec.CommandContext(ctx, "sh", "-c", "cat >/dev/null; echo 'pigz: write error' >&2; exit 3")
		},
	}
	a := NewArchiverWithDeps(newTestLogger(), types.CompressionPigz, deps)
	_, err := a.Compress(context.Background(), runDir, archivePath)

	var ae *ArchiveError
	if !errors.As(err, &ae) {
		t.Fatalf("expected ArchiveError, got %v", err)
	}
	if ae.ExitCode != 3 {
		t.Fatalf("exit code = %d, want 3", ae.ExitCode)
	}
	if len(ae.StderrTail) == 0 || !strings.Contains(ae.StderrTail[len(ae.StderrTail)-1], "write error") {
		t.Fatalf("stderr tail = %v", ae.StderrTail)
	}
	if _, statErr := os.Stat(archivePath); !os.IsNotExist(statErr) {
		t.Fatalf("archive must not exist after failure")
	}
	noTempLeft(t, runDir)
}

func TestCompressCancelled(t *testing.T) {
	runDir := makeRunDir(t)
	archivePath := filepath.Join(runDir, ArchiveName(filepath.Base(runDir)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := NewArchiver(newTestLogger(), types.CompressionGzip)
	_, err := a.Compress(ctx, runDir, archivePath)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, statErr := os.Stat(archivePath); !os.IsNotExist(statErr) {
		t.Fatalf("archive must not exist after cancellation")
	}
	noTempLeft(t, runDir)
}

func TestCompressNoneIsRejected(t *testing.T) {
	a := NewArchiver(newTestLogger(), types.CompressionNone)
	if _, err := a.Compress(context.Background(), t.TempDir(), filepath.Join(t.TempDir(), "x.tar.gz")); err == nil {
		t.Fatal("expected error for disabled compression")
	}
}

func TestBuildPigzArgs(t *testing.T) {
	if got := strings.Join(buildPigzArgs(6, 0), " "); got != "-6 -c" {
		t.Fatalf("args = %q", got)
	}
	if got := strings.Join(buildPigzArgs(9, 4), " "); got != "-9 -p 4 -c" {
		t.Fatalf("args = %q", got)
	}
}
