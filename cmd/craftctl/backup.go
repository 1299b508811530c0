package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/BadgerOps/craftctl/internal/backup"
)

var restoreList bool

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup <name> [modifier]",
		Short: "Archive a server's world",
		Long: `Archive a server's world directory into the server directory. The archive
is named <name>_<timestamp>[.<modifier>] with the configured format's
extension. An archive is never overwritten.`,
		Example: `  craftctl backup survival
  craftctl backup survival before-update`,
		Args: cobra.RangeArgs(1, 2),
		RunE: backupRun,
	}

	return cmd
}

func backupRun(cmd *cobra.Command, args []string) error {
	if globalManager == nil || globalBackups == nil {
		return fmt.Errorf("backup engine not initialized")
	}

	target, err := existingTarget(args[0])
	if err != nil {
		return err
	}
	modifier := ""
	if len(args) > 1 {
		modifier = args[1]
	}

	a, err := globalBackups.Backup(cmd.Context(), target, modifier)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", successStyle.Render("Backed up"), a.Name, humanize.IBytes(uint64(a.Size)))
	return nil
}

func newRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <name> [index]",
		Short: "Replace a server's world with an archive",
		Long: `Replace a server's world with one of its archives. The current world is
archived first with the pre-restore modifier, and the restored world is
archived again with the post-restore modifier.

Without an index the archives are listed and one is chosen, defaulting to
the last. Use --list to only print them.`,
		Example: `  craftctl restore survival
  craftctl restore survival 2
  craftctl restore survival --list`,
		Args: cobra.RangeArgs(1, 2),
		RunE: restoreRun,
	}

	cmd.Flags().BoolVar(&restoreList, "list", false, "list archives without restoring")

	return cmd
}

func restoreRun(cmd *cobra.Command, args []string) error {
	if globalManager == nil || globalBackups == nil {
		return fmt.Errorf("backup engine not initialized")
	}
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	target, err := existingTarget(args[0])
	if err != nil {
		return err
	}
	archives, err := globalBackups.List(target)
	if err != nil {
		return err
	}

	if restoreList {
		if len(archives) == 0 {
			fmt.Fprintln(w, "No backups found")
			return nil
		}
		t := newTable("#", "Archive", "Size", "Taken")
		for i, a := range archives {
			t.add(strconv.Itoa(i), a.Name, humanize.IBytes(uint64(a.Size)), humanize.Time(a.Timestamp))
		}
		t.print(w)
		return nil
	}

	var index int
	if len(args) > 1 {
		if index, err = strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("%w: %q is not an index", backup.ErrInvalidSelection, args[1])
		}
	} else {
		if len(archives) == 0 {
			return fmt.Errorf("%w: %s has no backups", backup.ErrInvalidSelection, target.Name)
		}
		options := make([]string, len(archives))
		for i, a := range archives {
			options[i] = a.Name
		}
		if index, err = globalDecider.Select(ctx, "Which backup would you like to restore?", options, len(options)-1); err != nil {
			return err
		}
	}

	rep, err := globalBackups.Restore(ctx, target, index)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s %s (%d files, %s)\n", successStyle.Render("Restored"), rep.Restored.Name, rep.Files, humanize.IBytes(uint64(rep.Bytes)))
	if rep.PreRestore != nil {
		fmt.Fprintf(w, "%s %s\n", mutedStyle.Render("Previous world saved as"), rep.PreRestore.Name)
	}
	return nil
}

// existingTarget resolves a server name to a backup target that exists on disk
func existingTarget(name string) (backup.Target, error) {
	target, err := globalManager.Target(name)
	if err != nil {
		return target, err
	}
	ok, err := globalManager.Exists(name)
	if err != nil {
		return target, err
	}
	if !ok {
		return target, fmt.Errorf("server %s does not exist", name)
	}
	return target, nil
}
