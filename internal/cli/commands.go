package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/tis24dev/mediasave/internal/checks"
	"github.com/tis24dev/mediasave/internal/history"
	"github.com/tis24dev/mediasave/internal/mounts"
	"github.com/tis24dev/mediasave/internal/orchestrator"
	"github.com/tis24dev/mediasave/internal/types"
	"github.com/tis24dev/mediasave/internal/version"
)

func newBackupCommand(app *App) *cobra.Command {
	var args BackupArgs
	cmd := &cobra.Command{
		Use:   "backup <CATEGORY>",
		Short: "Copy a category to a mounted destination",
		Example: `  mediasave backup MAIN
  mediasave backup DOTS --no-banner --no-compress
  mediasave backup SSH --yes --keep 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, pos []string) error {
			if err := app.load(); err != nil {
				return err
			}
			cat, err := app.lookup(pos[0])
			if err != nil {
				return err
			}
			deps, closeFn := app.deps(args.Yes)
			defer closeFn()
			app.exitCode = orchestrator.NewBackupCoordinator(deps, cat, args.options()).Run(cmd.Context())
			return nil
		},
	}
	bindBackupFlags(cmd.Flags(), &args)
	return cmd
}

func newRestoreCommand(app *App) *cobra.Command {
	var args RestoreArgs
	cmd := &cobra.Command{
		Use:   "restore <CATEGORY>",
		Short: "Copy the newest run of a category back onto this host",
		Example: `  mediasave restore DOTS --confirm
  mediasave restore SSH --from /media/u/USB/SERV/SSH/SSH-289-16-10-09-30-00 --no-restart`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, pos []string) error {
			if err := app.load(); err != nil {
				return err
			}
			cat, err := app.lookup(pos[0])
			if err != nil {
				return err
			}
			deps, closeFn := app.deps(args.Yes)
			defer closeFn()
			app.exitCode = orchestrator.NewRestoreCoordinator(deps, cat, args.options()).Run(cmd.Context())
			return nil
		},
	}
	bindRestoreFlags(cmd.Flags(), &args)
	return cmd
}

func newDestinationsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "destinations",
		Short: "List mounted destinations and their free space",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.load(); err != nil {
				return err
			}
			dests, err := mounts.NewResolver(app.cfg.MountRoots, app.logger).Discover()
			if err != nil {
				return err
			}
			if len(dests) == 0 {
				fmt.Fprintf(app.Out, "No destination mounted under %s\n", strings.Join(app.cfg.MountRoots, ", "))
				return nil
			}
			writeDestinations(app, checks.NewChecker(app.logger), dests)
			return nil
		},
	}
}

func writeDestinations(app *App, checker *checks.Checker, dests []mounts.Destination) {
	table := uitable.New()
	table.MaxColWidth = 60
	table.AddRow("#", "PATH", "FSTYPE", "FREE", "STATUS")
	for i, d := range dests {
		free, status := "?", "unknown"
		if avail, err := checker.AvailableBytes(d.Path); err == nil {
			free = humanize.IBytes(avail)
			status = "ok"
			if avail < uint64(app.cfg.MinFreeGB)<<30 {
				status = fmt.Sprintf("below %dG", app.cfg.MinFreeGB)
			}
		}
		table.AddRow(i+1, d.Path, d.FSType, free, status)
	}
	table.RightAlign(3)
	fmt.Fprintln(app.Out, table)
}

func newHistoryCommand(app *App) *cobra.Command {
	var filter history.Filter
	var mode string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.load(); err != nil {
				return err
			}
			switch strings.ToLower(mode) {
			case "":
			case string(types.RunModeBackup), string(types.RunModeRestore):
				filter.Mode = types.RunMode(strings.ToLower(mode))
			default:
				return fmt.Errorf("unknown mode %q (backup|restore)", mode)
			}
			filter.Category = strings.ToUpper(filter.Category)

			store, err := history.Open(app.cfg.HistoryDB, app.logger)
			if err != nil {
				return err
			}
			defer store.Close()
			runs, err := store.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(app.Out, "No runs recorded.")
				return nil
			}
			writeHistory(app, runs)
			return nil
		},
	}
	cmd.Flags().StringVar(&filter.Category, "category", "", "Only show this category")
	cmd.Flags().StringVar(&mode, "mode", "", "Only show backup or restore runs")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 20, "Maximum number of runs")
	return cmd
}

func writeHistory(app *App, runs []history.Run) {
	table := uitable.New()
	table.MaxColWidth = 50
	table.AddRow("STARTED", "MODE", "CATEGORY", "EXIT", "FAILED", "PARTIAL", "SKIPPED", "ARCHIVE", "DURATION", "RUN")
	for _, r := range runs {
		archive := "-"
		switch {
		case r.ArchiveFailed:
			archive = "failed"
		case r.ArchivePath != "":
			archive = humanize.IBytes(uint64(r.ArchiveSize))
		case r.ManifestOnly:
			archive = "manifest"
		}
		table.AddRow(
			r.Started.Local().Format("2006-01-02 15:04:05"),
			r.Mode,
			r.Category,
			r.ExitCode,
			r.Failures,
			r.Partial,
			r.Skipped,
			archive,
			r.Duration().Round(time.Second),
			r.RunDir,
		)
	}
	fmt.Fprintln(app.Out, table)
}

func newCategoriesCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the backup categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.load(); err != nil {
				return err
			}
			table := uitable.New()
			table.MaxColWidth = 40
			table.AddRow("NAME", "PATH", "PREFIX", "SOURCES", "KEEP", "ARCHIVE", "TITLE")
			for _, c := range app.catalog.Categories {
				keep := "all"
				if n := c.KeepCount(); n >= 0 {
					keep = strconv.Itoa(n)
				}
				archive := "no"
				if c.SupportsCompress {
					archive = "yes"
				}
				table.AddRow(c.Name, c.Path, c.Prefix, len(c.Sources), keep, archive, c.Title)
			}
			fmt.Fprintln(app.Out, table)
			return nil
		},
	}
}

func newVersionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(app.Out, version.Full())
		},
	}
}
