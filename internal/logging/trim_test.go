package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTrimLogFileKeepsSmallFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.log")
	if err := os.WriteFile(path, []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := TrimLogFile(path, DefaultTrimBytes, DefaultTrimLines); err != nil {
		t.Fatalf("TrimLogFile: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "a\nb\nc\n" {
		t.Fatalf("small log was modified: %q", data)
	}
}

func TestTrimLogFileKeepsTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.log")
	var sb strings.Builder
	for i := 0; i < 100; i++ {
		fmt.Fprintf(&sb, "line-%03d\n", i)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := TrimLogFile(path, 100, 10); err != nil {
		t.Fatalf("TrimLogFile: %v", err)
	}
	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 10 {
		t.Fatalf("kept %d lines, want 10", len(lines))
	}
	if lines[0] != "line-090" || lines[9] != "line-099" {
		t.Fatalf("unexpected tail: first=%q last=%q", lines[0], lines[9])
	}
}

func TestTrimLogFileMissingIsNoop(t *testing.T) {
	if err := TrimLogFile(filepath.Join(t.TempDir(), "nope.log"), 1, 1); err != nil {
		t.Fatalf("missing file should be ignored, got %v", err)
	}
}

func TestRunLogPath(t *testing.T) {
	if got := RunLogPath("/mnt/usb/MAIN/BKP-x", "", "BKP-x"); got != "/mnt/usb/MAIN/BKP-x/BKP-x.log" {
		t.Errorf("default path = %q", got)
	}
	if got := RunLogPath("/mnt/usb/MAIN/BKP-x", "/var/log/ms", "BKP-x"); got != "/var/log/ms/BKP-x.log" {
		t.Errorf("log-dir path = %q", got)
	}
}
