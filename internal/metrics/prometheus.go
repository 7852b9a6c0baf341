// Package metrics exports run results in Prometheus textfile format for
// node_exporter's textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tis24dev/mediasave/internal/logging"
)

// FileName is the textfile written under the metrics directory.
const FileName = "mediasave.prom"

// RunMetrics is the snapshot exported after a run.
type RunMetrics struct {
	Category string
	Mode     string
	RunID    string

	StartTime time.Time
	EndTime   time.Time

	ExitCode      int
	Failures      int
	Partial       int
	Skipped       int
	Warnings      int
	ArchiveFailed bool
	ArchiveBytes  int64
}

// PrometheusExporter writes run metrics in Prometheus textfile format.
type PrometheusExporter struct {
	textfileDir string
	logger      *logging.Logger
}

// NewPrometheusExporter creates a new PrometheusExporter using the provided directory.
func NewPrometheusExporter(textfileDir string, logger *logging.Logger) *PrometheusExporter {
	return &PrometheusExporter{
		textfileDir: strings.TrimRight(textfileDir, "/"),
		logger:      logger,
	}
}

// Path returns the textfile location.
func (pe *PrometheusExporter) Path() string {
	return filepath.Join(pe.textfileDir, FileName)
}

// Export writes m to mediasave.prom. The file is replaced atomically.
func (pe *PrometheusExporter) Export(m *RunMetrics) error {
	if pe == nil || m == nil {
		return nil
	}
	if pe.textfileDir == "" {
		return fmt.Errorf("metrics textfile directory is empty")
	}
	if err := os.MkdirAll(pe.textfileDir, 0o755); err != nil {
		return fmt.Errorf("create metrics directory %s: %w", pe.textfileDir, err)
	}

	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"category": m.Category, "mode": m.Mode}
	gauge := func(name, help string, value float64) {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "mediasave",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
		g.Set(value)
		reg.MustRegister(g)
	}

	duration := m.EndTime.Sub(m.StartTime)
	if m.EndTime.IsZero() || duration < 0 {
		duration = 0
	}

	gauge("run_start_time_seconds", "Unix time the last run started.", unixSeconds(m.StartTime))
	gauge("run_end_time_seconds", "Unix time the last run finished.", unixSeconds(m.EndTime))
	gauge("run_duration_seconds", "Duration of the last run in seconds.", duration.Seconds())
	gauge("run_exit_code", "Process exit code of the last run.", float64(m.ExitCode))
	gauge("transfer_failures", "Sources whose copy failed in the last run.", float64(m.Failures))
	gauge("transfer_partial", "Sources copied partially in the last run.", float64(m.Partial))
	gauge("sources_skipped", "Declared sources absent on this host in the last run.", float64(m.Skipped))
	gauge("log_warnings", "Warnings logged during the last run.", float64(m.Warnings))
	gauge("archive_failed", "1 when archiving was attempted and failed.", boolFloat(m.ArchiveFailed))
	gauge("archive_bytes", "Size of the archive created by the last run.", float64(m.ArchiveBytes))

	info := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   "mediasave",
		Name:        "run_info",
		Help:        "Identifier of the last run.",
		ConstLabels: labels,
	}, []string{"run_id"})
	info.WithLabelValues(m.RunID).Set(1)
	reg.MustRegister(info)

	if err := prometheus.WriteToTextfile(pe.Path(), reg); err != nil {
		return fmt.Errorf("write metrics file %s: %w", pe.Path(), err)
	}
	pe.logger.Debug("Prometheus metrics exported to %s", pe.Path())
	return nil
}

func unixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / 1e9
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
