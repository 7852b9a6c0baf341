package mounts

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	mountinfoPath  = "/proc/self/mountinfo"
	procMountsPath = "/proc/mounts"
)

// Table maps a mountpoint to its filesystem type. When a path is mounted more
// than once the last (topmost) entry wins.
type Table map[string]string

// FSType returns the filesystem type mounted exactly at path.
func (t Table) FSType(path string) (string, bool) {
	fstype, ok := t[filepath.Clean(path)]
	return fstype, ok
}

// IsMountpoint reports whether path is an active mountpoint.
func (t Table) IsMountpoint(path string) bool {
	_, ok := t.FSType(path)
	return ok
}

// ReadTable reads /proc/self/mountinfo, falling back to /proc/mounts.
func ReadTable() (Table, error) {
	if data, err := os.ReadFile(mountinfoPath); err == nil {
		return ParseMountinfo(string(data)), nil
	}
	data, err := os.ReadFile(procMountsPath)
	if err != nil {
		return nil, err
	}
	return ParseProcMounts(string(data)), nil
}

// ParseMountinfo parses the /proc/self/mountinfo format: the mountpoint is
// field 5 and the fstype is the first field after the "-" separator.
func ParseMountinfo(data string) Table {
	t := make(Table)
	for _, line := range strings.Split(data, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 7 {
			continue
		}
		sep := -1
		for i := 6; i < len(fields); i++ {
			if fields[i] == "-" {
				sep = i
				break
			}
		}
		if sep < 0 || sep+1 >= len(fields) {
			continue
		}
		t[filepath.Clean(unescapeProcPath(fields[4]))] = fields[sep+1]
	}
	return t
}

// ParseProcMounts parses the /proc/mounts (fstab-like) format.
func ParseProcMounts(data string) Table {
	t := make(Table)
	for _, line := range strings.Split(data, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		t[filepath.Clean(unescapeProcPath(fields[1]))] = fields[2]
	}
	return t
}

// unescapeProcPath decodes the \NNN octal escapes the kernel uses for spaces,
// tabs, newlines and backslashes in mount paths.
func unescapeProcPath(s string) string {
	if !strings.Contains(s, "\\") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] == '\\' && i+3 < len(s) && isOctal(s[i+1]) && isOctal(s[i+2]) && isOctal(s[i+3]) {
			val := int(s[i+1]-'0')<<6 | int(s[i+2]-'0')<<3 | int(s[i+3]-'0')
			if val <= 255 {
				b.WriteByte(byte(val))
				i += 4
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

func isOctal(c byte) bool {
	return c >= '0' && c <= '7'
}

var deniedFSTypes = map[string]struct{}{
	"tmpfs":    {},
	"overlay":  {},
	"squashfs": {},
	"nsfs":     {},
	"proc":     {},
	"sysfs":    {},
	"devtmpfs": {},
	"ramfs":    {},
	"autofs":   {},
}

// IsPseudoFS reports whether fstype is a virtual or kernel-interface
// filesystem that must never be used as a backup destination.
func IsPseudoFS(fstype string) bool {
	fstype = strings.ToLower(strings.TrimSpace(fstype))
	if fstype == "" {
		return true
	}
	if strings.HasPrefix(fstype, "cgroup") {
		return true
	}
	_, denied := deniedFSTypes[fstype]
	return denied
}
