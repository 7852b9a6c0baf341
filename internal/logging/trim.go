package logging

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultTrimBytes is the size above which a run log is trimmed.
	DefaultTrimBytes int64 = 5 * 1024 * 1024
	// DefaultTrimLines is how many trailing lines survive a trim.
	DefaultTrimLines = 5000
)

// RunLogPath returns where the log for a run named base (e.g. "BKP-289-16-10-12-00-00")
// is written: inside runDir, or inside logDir when set.
func RunLogPath(runDir, logDir, base string) string {
	name := base + ".log"
	if logDir != "" {
		return filepath.Join(logDir, name)
	}
	return filepath.Join(runDir, name)
}

// TrimLogFile keeps only the last maxLines lines of path when the file is
// larger than maxBytes. Missing files are ignored.
func TrimLogFile(path string, maxBytes int64, maxLines int) error {
	if path == "" || maxLines <= 0 {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Size() <= maxBytes {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	ring := make([]string, 0, maxLines)
	head := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if len(ring) < maxLines {
			ring = append(ring, scanner.Text())
			continue
		}
		ring[head] = scanner.Text()
		head = (head + 1) % maxLines
	}
	scanErr := scanner.Err()
	f.Close()
	if scanErr != nil {
		return fmt.Errorf("read %s: %w", path, scanErr)
	}

	tmp := path + ".trim"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	w := bufio.NewWriter(out)
	for i := 0; i < len(ring); i++ {
		w.WriteString(ring[(head+i)%len(ring)])
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
