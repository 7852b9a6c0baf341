// Package config loads mediasave settings from an optional YAML file with
// MEDIASAVE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/tis24dev/mediasave/internal/types"
)

// EnvPrefix is the prefix of environment overrides (MEDIASAVE_MIN_FREE_GB, ...).
const EnvPrefix = "MEDIASAVE"

// Config holds runtime settings shared by every command.
type Config struct {
	User        string   `mapstructure:"user"`
	Home        string   `mapstructure:"home"`
	MountRoots  []string `mapstructure:"mount_roots"`
	MinFreeGB   int      `mapstructure:"min_free_gb"`
	RsyncPath   string   `mapstructure:"rsync_path"`
	SudoPath    string   `mapstructure:"sudo_path"`
	Compressor  string   `mapstructure:"compressor"`
	CatalogPath string   `mapstructure:"catalog_path"`
	HistoryDB   string   `mapstructure:"history_db"`
	MetricsDir  string   `mapstructure:"metrics_dir"`
	LogLevel    string   `mapstructure:"log_level"`
	UseTUI      bool     `mapstructure:"use_tui"`

	// ConfigFile is the file actually read, or "" when defaults were used.
	ConfigFile string `mapstructure:"-"`
}

// DefaultPath returns $XDG_CONFIG_HOME/mediasave/config.yaml.
func DefaultPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		if home, err := os.UserHomeDir(); err == nil {
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, "mediasave", "config.yaml")
}

func defaultStateDir() string {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		if home, err := os.UserHomeDir(); err == nil {
			base = filepath.Join(home, ".local", "state")
		}
	}
	return filepath.Join(base, "mediasave")
}

func currentUser() (name, home string) {
	name = os.Getenv("USER")
	home, _ = os.UserHomeDir()
	if u, err := user.Current(); err == nil {
		if name == "" {
			name = u.Username
		}
		if home == "" {
			home = u.HomeDir
		}
	}
	if home == "" && name != "" {
		home = filepath.Join("/home", name)
	}
	return name, home
}

func setDefaults(v *viper.Viper) {
	name, home := currentUser()
	v.SetDefault("user", name)
	v.SetDefault("home", home)
	v.SetDefault("mount_roots", []string{"/run/media/{user}", "/media/{user}"})
	v.SetDefault("min_free_gb", 20)
	v.SetDefault("rsync_path", "rsync")
	v.SetDefault("sudo_path", "sudo")
	v.SetDefault("compressor", string(types.CompressionPigz))
	v.SetDefault("catalog_path", "")
	v.SetDefault("history_db", filepath.Join(defaultStateDir(), "history.db"))
	v.SetDefault("metrics_dir", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("use_tui", false)
}

// Load reads path (or DefaultPath when empty). A missing default file is not
// an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("yaml")

	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = DefaultPath()
	}
	v.SetConfigFile(path)

	readFile := ""
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound), errors.Is(err, os.ErrNotExist):
			if explicit {
				return nil, fmt.Errorf("configuration file not found: %s", path)
			}
		default:
			return nil, fmt.Errorf("read configuration %s: %w", path, err)
		}
	} else {
		readFile = path
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}
	cfg.ConfigFile = readFile
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.User = strings.TrimSpace(c.User)
	c.Home = strings.TrimSpace(c.Home)
	if c.Home == "" && c.User != "" {
		c.Home = filepath.Join("/home", c.User)
	}
	roots := make([]string, 0, len(c.MountRoots))
	for _, r := range c.MountRoots {
		r = strings.TrimSpace(strings.ReplaceAll(r, "{user}", c.User))
		if r != "" {
			roots = append(roots, filepath.Clean(r))
		}
	}
	c.MountRoots = roots
}

// Validate checks values that would make every run fail.
func (c *Config) Validate() error {
	if c.User == "" {
		return errors.New("cannot determine user name (set user or MEDIASAVE_USER)")
	}
	if len(c.MountRoots) == 0 {
		return errors.New("mount_roots is empty")
	}
	if c.MinFreeGB < 0 {
		return fmt.Errorf("min_free_gb must be >= 0, got %d", c.MinFreeGB)
	}
	if _, err := types.ParseCompressionType(c.Compressor); err != nil {
		return err
	}
	return nil
}

// Compression returns the parsed compressor setting.
func (c *Config) Compression() types.CompressionType {
	ct, err := types.ParseCompressionType(c.Compressor)
	if err != nil {
		return types.CompressionPigz
	}
	return ct
}

// Level returns the parsed log level.
func (c *Config) Level() types.LogLevel {
	return types.ParseLogLevel(c.LogLevel)
}
