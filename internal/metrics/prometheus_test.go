package metrics

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tis24dev/mediasave/internal/logging"
	"github.com/tis24dev/mediasave/internal/types"
)

func testLogger() *logging.Logger {
	logger := logging.New(types.LogLevelError, false)
	logger.SetOutput(&bytes.Buffer{})
	return logger
}

func TestPrometheusExporterExport(t *testing.T) {
	dir := t.TempDir()
	exporter := NewPrometheusExporter(dir+"/", testLogger())

	m := &RunMetrics{
		Category:     "SSH",
		Mode:         "backup",
		RunID:        "5f0c7a4e-2b1d-4c55-9b0e-0d1f2a3b4c5d",
		StartTime:    time.Unix(1000, 0),
		EndTime:      time.Unix(1100, 0),
		ExitCode:     1,
		Failures:     2,
		Partial:      1,
		Skipped:      3,
		Warnings:     4,
		ArchiveBytes: 4096,
	}
	if err := exporter.Export(m); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("Failed to read metrics file: %v", err)
	}
	content := string(data)
	labels := `{category="SSH",mode="backup"}`
	for _, expected := range []string{
		"mediasave_run_start_time_seconds" + labels + " 1000",
		"mediasave_run_end_time_seconds" + labels + " 1100",
		"mediasave_run_duration_seconds" + labels + " 100",
		"mediasave_run_exit_code" + labels + " 1",
		"mediasave_transfer_failures" + labels + " 2",
		"mediasave_transfer_partial" + labels + " 1",
		"mediasave_sources_skipped" + labels + " 3",
		"mediasave_log_warnings" + labels + " 4",
		"mediasave_archive_failed" + labels + " 0",
		"mediasave_archive_bytes" + labels + " 4096",
		`run_id="5f0c7a4e-2b1d-4c55-9b0e-0d1f2a3b4c5d"`,
		"# TYPE mediasave_run_exit_code gauge",
	} {
		if !strings.Contains(content, expected) {
			t.Errorf("metrics output missing %q\n%s", expected, content)
		}
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected only %s in %s, found %d entries", FileName, dir, len(entries))
	}
}

func TestPrometheusExporterNoDirectory(t *testing.T) {
	exporter := NewPrometheusExporter("", testLogger())
	if err := exporter.Export(&RunMetrics{}); err == nil {
		t.Fatal("expected error for empty directory")
	}
	var nilExporter *PrometheusExporter
	if err := nilExporter.Export(&RunMetrics{}); err != nil {
		t.Fatalf("nil exporter should be a no-op: %v", err)
	}
}
