package orchestrator

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// ManifestName is the source list written into every run directory.
const ManifestName = "sources.txt"

// RenderManifest returns the manifest text: a "Sources" header with one path
// per line, then an "Excludes" section when there are patterns.
func RenderManifest(sources, excludes []string) []byte {
	var buf bytes.Buffer
	buf.WriteString("Sources\n")
	for _, s := range sources {
		buf.WriteString(s)
		buf.WriteByte('\n')
	}
	if len(excludes) > 0 {
		buf.WriteString("\nExcludes\n")
		for _, e := range excludes {
			buf.WriteString(e)
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

func writeManifest(runDir string, sources, excludes []string) (string, error) {
	path := filepath.Join(runDir, ManifestName)
	if err := os.WriteFile(path, RenderManifest(sources, excludes), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
