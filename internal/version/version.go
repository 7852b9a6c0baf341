// Package version reports the build version of mediasave.
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Populated at build time via -ldflags, e.g.
//
//	-X github.com/tis24dev/mediasave/internal/version.Version=v0.3.0
//	-X github.com/tis24dev/mediasave/internal/version.Commit=abcdef123
//	-X github.com/tis24dev/mediasave/internal/version.Date=2026-10-16T09:30:00Z
var (
	// Version holds the semantic version of the binary.
	Version = ""

	// Commit holds the VCS commit hash used to build the binary (optional).
	Commit = ""

	// Date holds the build timestamp (optional).
	Date = ""
)

const devVersion = "0.0.0-dev"

var readBuildInfo = debug.ReadBuildInfo

// String returns the effective version: the ldflags value, then the main
// module version from build info, then a development placeholder. A leading
// "v" is stripped.
func String() string {
	v := strings.TrimSpace(Version)

	if v == "" {
		if info, ok := readBuildInfo(); ok && info != nil {
			if mv := strings.TrimSpace(info.Main.Version); mv != "" && mv != "(devel)" {
				v = mv
			}
		}
	}

	if v == "" {
		v = devVersion
	}
	return strings.TrimPrefix(v, "v")
}

// Full returns "mediasave <version>" followed by commit and date when known.
func Full() string {
	out := "mediasave " + String()
	var extra []string
	if c := strings.TrimSpace(Commit); c != "" {
		if len(c) > 12 {
			c = c[:12]
		}
		extra = append(extra, "commit "+c)
	}
	if d := strings.TrimSpace(Date); d != "" {
		extra = append(extra, "built "+d)
	}
	if len(extra) > 0 {
		out += fmt.Sprintf(" (%s)", strings.Join(extra, ", "))
	}
	return out
}
