// Package catalog describes the backup categories: what each one copies,
// where its runs live on the destination, and how it is restored.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/tis24dev/mediasave"
)

// ErrUnknownCategory is returned by Lookup for names missing from the catalog.
var ErrUnknownCategory = errors.New("unknown category")

// Source is one declared path to copy into the run directory.
type Source struct {
	Path     string   `yaml:"path"`
	Excludes []string `yaml:"excludes"`
	// Contents copies the directory's children rather than the directory itself.
	Contents bool `yaml:"contents"`
	// Glob expands Path with filepath.Glob; each match is a separate transfer.
	Glob bool `yaml:"glob"`
	// Mode, when set, is applied to the copied entry inside the run directory.
	Mode     string `yaml:"mode"`
	Elevated *bool  `yaml:"elevated"`
}

// RestoreItem maps a path inside a run directory back onto the host. From is
// copied into the directory To, so a directory item lands at To/<base of From>.
// Contents mirrors the children of From straight into To instead; with the
// deletion pass of a restore that removes everything else under To.
type RestoreItem struct {
	From     string `yaml:"from"`
	To       string `yaml:"to"`
	Contents bool   `yaml:"contents"`
	Elevated bool   `yaml:"elevated"`
}

// PostMode is a chmod applied after a restore.
type PostMode struct {
	Path string `yaml:"path"`
	Mode string `yaml:"mode"`
}

// Restore groups the restore-side description of a category.
type Restore struct {
	Items     []RestoreItem `yaml:"items"`
	PostModes []PostMode    `yaml:"post_modes"`
	Services  []string      `yaml:"services"`
}

// Category is one backup/restore pair.
type Category struct {
	Name             string   `yaml:"name"`
	Path             string   `yaml:"path"`
	Prefix           string   `yaml:"prefix"`
	Title            string   `yaml:"title"`
	SupportsCompress bool     `yaml:"supports_compress"`
	Elevated         bool     `yaml:"elevated"`
	MinFreeGB        int      `yaml:"min_free_gb"`
	Keep             *int     `yaml:"keep"`
	Excludes         []string `yaml:"excludes"`
	Sources          []Source `yaml:"sources"`
	Restore          Restore  `yaml:"restore"`
}

// Catalog is the parsed category list.
type Catalog struct {
	Categories []Category `yaml:"categories"`
}

// Load reads the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Parse(mediasave.DefaultCatalog())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks names, prefixes and relative paths.
func (c *Catalog) Validate() error {
	if len(c.Categories) == 0 {
		return errors.New("catalog has no categories")
	}
	seen := make(map[string]struct{}, len(c.Categories))
	for i, cat := range c.Categories {
		name := strings.ToUpper(strings.TrimSpace(cat.Name))
		if name == "" {
			return fmt.Errorf("category #%d has no name", i+1)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("category %s defined twice", name)
		}
		seen[name] = struct{}{}
		if strings.TrimSpace(cat.Prefix) == "" {
			return fmt.Errorf("category %s has no prefix", name)
		}
		if strings.ContainsAny(cat.Prefix, "/ ") {
			return fmt.Errorf("category %s: prefix %q must not contain '/' or spaces", name, cat.Prefix)
		}
		clean := filepath.Clean(cat.Path)
		if cat.Path == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
			return fmt.Errorf("category %s: path %q must be relative to the destination", name, cat.Path)
		}
		for _, src := range cat.Sources {
			if strings.TrimSpace(src.Path) == "" {
				return fmt.Errorf("category %s has a source with an empty path", name)
			}
			if src.Mode != "" {
				if _, err := parseMode(src.Mode); err != nil {
					return fmt.Errorf("category %s, source %s: %w", name, src.Path, err)
				}
			}
		}
		for _, pm := range cat.Restore.PostModes {
			if _, err := parseMode(pm.Mode); err != nil {
				return fmt.Errorf("category %s, post mode %s: %w", name, pm.Path, err)
			}
		}
	}
	return nil
}

// Lookup finds a category by name, case-insensitively.
func (c *Catalog) Lookup(name string) (Category, error) {
	want := strings.ToUpper(strings.TrimSpace(name))
	for _, cat := range c.Categories {
		if strings.ToUpper(cat.Name) == want {
			return cat, nil
		}
	}
	return Category{}, fmt.Errorf("%w: %s", ErrUnknownCategory, name)
}

// Names lists category names in catalog order.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.Categories))
	for _, cat := range c.Categories {
		out = append(out, cat.Name)
	}
	return out
}

// KeepCount returns the retention count, or -1 when retention is disabled.
func (cat Category) KeepCount() int {
	if cat.Keep == nil {
		return -1
	}
	return *cat.Keep
}

// DisplayTitle returns "MAIN - Main Home Backup" style banner text.
func (cat Category) DisplayTitle() string {
	if cat.Title == "" {
		return cat.Name
	}
	return cat.Name + " - " + cases.Title(language.English).String(cat.Title)
}

// IsElevated reports whether src must be read through the privilege helper.
func (cat Category) IsElevated(src Source) bool {
	if src.Elevated != nil {
		return *src.Elevated
	}
	return cat.Elevated
}

// FileMode parses Mode. ok is false when no mode is declared.
func (src Source) FileMode() (mode os.FileMode, ok bool) {
	if src.Mode == "" {
		return 0, false
	}
	m, err := parseMode(src.Mode)
	if err != nil {
		return 0, false
	}
	return m, true
}

// FileMode parses the post-restore mode.
func (pm PostMode) FileMode() (os.FileMode, error) {
	return parseMode(pm.Mode)
}

func parseMode(s string) (os.FileMode, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 8, 32)
	if err != nil || v > 0o7777 {
		return 0, fmt.Errorf("invalid mode %q", s)
	}
	return os.FileMode(v), nil
}
