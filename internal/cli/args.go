package cli

import (
	"github.com/spf13/pflag"

	"github.com/tis24dev/mediasave/internal/orchestrator"
	"github.com/tis24dev/mediasave/internal/types"
)

const (
	configSourceDefault = "default path"
	configSourceFlag    = "specified via --config/-c flag"
)

// GlobalArgs are the flags shared by every subcommand.
type GlobalArgs struct {
	ConfigPath       string
	ConfigPathSource string
	LogLevel         types.LogLevel
	UseTUI           bool

	configFlag  *stringFlag
	logLevelRaw string
}

// BackupArgs holds the flags of "backup <CATEGORY>".
type BackupArgs struct {
	NoBanner     bool
	Yes          bool
	NoCompress   bool
	ManifestOnly bool
	LogDir       string
	Keep         string
}

// RestoreArgs holds the flags of "restore <CATEGORY>".
type RestoreArgs struct {
	From         string
	Confirm      bool
	Yes          bool
	NoRestart    bool
	NoBanner     bool
	ManifestOnly bool
	LogDir       string
}

func bindGlobalFlags(fs *pflag.FlagSet, a *GlobalArgs) {
	a.configFlag = newStringFlag("")
	fs.VarP(a.configFlag, "config", "c", "Path to configuration file")
	fs.StringVarP(&a.logLevelRaw, "log-level", "l", "", "Log level (debug|info|warning|error|critical)")
	fs.BoolVar(&a.UseTUI, "tui", false, "Use the terminal UI for destination selection and confirmations")
}

// resolve fills the derived fields once flags are parsed.
func (a *GlobalArgs) resolve() {
	a.ConfigPath = a.configFlag.String()
	if a.configFlag.set {
		a.ConfigPathSource = configSourceFlag
	} else {
		a.ConfigPathSource = configSourceDefault
	}
	if a.logLevelRaw != "" {
		a.LogLevel = parseLogLevel(a.logLevelRaw)
	} else {
		a.LogLevel = types.LogLevelNone // Will be overridden by config
	}
}

func bindBackupFlags(fs *pflag.FlagSet, a *BackupArgs) {
	fs.BoolVar(&a.NoBanner, "no-banner", false, "Skip the category banner")
	fs.BoolVarP(&a.Yes, "yes", "y", false, "Answer yes to every prompt")
	fs.BoolVar(&a.NoCompress, "no-compress", false, "Do not create a compressed archive")
	fs.BoolVar(&a.ManifestOnly, "manifest-only", false, "Write the run directory and source list without copying")
	fs.StringVar(&a.LogDir, "log-dir", "", "Write the run log here instead of inside the run directory")
	fs.StringVar(&a.Keep, "keep", "", "Keep only the newest N runs of this category after a successful backup")
}

func bindRestoreFlags(fs *pflag.FlagSet, a *RestoreArgs) {
	fs.StringVar(&a.From, "from", "", "Restore from this run directory instead of the newest one")
	fs.BoolVar(&a.Confirm, "confirm", false, "Ask before overwriting local files")
	fs.BoolVarP(&a.Yes, "yes", "y", false, "Answer yes to every prompt")
	fs.BoolVar(&a.NoRestart, "no-restart", false, "Do not restart the category's services")
	fs.BoolVar(&a.NoBanner, "no-banner", false, "Skip the category banner")
	fs.BoolVar(&a.ManifestOnly, "manifest-only", false, "Print what would be restored and exit")
	fs.StringVar(&a.LogDir, "log-dir", "", "Directory for the restore log")
}

func (a BackupArgs) options() orchestrator.BackupOptions {
	return orchestrator.BackupOptions{
		NoBanner:     a.NoBanner,
		Yes:          a.Yes,
		NoCompress:   a.NoCompress,
		ManifestOnly: a.ManifestOnly,
		LogDir:       a.LogDir,
		Keep:         a.Keep,
	}
}

func (a RestoreArgs) options() orchestrator.RestoreOptions {
	return orchestrator.RestoreOptions{
		From:         a.From,
		Confirm:      a.Confirm,
		Yes:          a.Yes,
		NoRestart:    a.NoRestart,
		NoBanner:     a.NoBanner,
		ManifestOnly: a.ManifestOnly,
		LogDir:       a.LogDir,
	}
}

// parseLogLevel converts string to LogLevel
func parseLogLevel(s string) types.LogLevel {
	switch s {
	case "5":
		return types.LogLevelDebug
	case "4":
		return types.LogLevelInfo
	case "3":
		return types.LogLevelWarning
	case "2":
		return types.LogLevelError
	case "1":
		return types.LogLevelCritical
	case "0":
		return types.LogLevelNone
	default:
		return types.ParseLogLevel(s)
	}
}

type stringFlag struct {
	value string
	set   bool
}

func newStringFlag(defaultValue string) *stringFlag {
	return &stringFlag{value: defaultValue}
}

func (s *stringFlag) String() string {
	return s.value
}

func (s *stringFlag) Set(val string) error {
	s.value = val
	s.set = true
	return nil
}

func (s *stringFlag) Type() string {
	return "string"
}
