package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/BadgerOps/craftctl/internal/store"
	"github.com/BadgerOps/craftctl/internal/versions"
)

var statusRuns int

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Display selected versions, installed jars and recent activity",
		Long: `Display the selected vanilla and snapshot versions, the server jars that
have been downloaded, and the most recent reconciliation runs and backups.`,
		Example: `  craftctl status
  craftctl status --runs 20`,
		RunE: statusRun,
	}

	cmd.Flags().IntVar(&statusRuns, "runs", 10, "number of recent update runs and backups to show")

	return cmd
}

func statusRun(cmd *cobra.Command, args []string) error {
	log := slog.Default()

	if globalStore == nil || globalVersions == nil || globalReconciler == nil {
		return fmt.Errorf("components not initialized")
	}
	w := cmd.OutOrStdout()

	log.Debug("status request", "runs", statusRuns)

	printTitle(w, "Selected Versions")
	pins := globalVersions.All()
	t := newTable("Channel", "Version", "Jar")
	for _, ch := range versions.Channels() {
		v := pins[ch]
		jar := mutedStyle.Render("-")
		if v != "" {
			jar = warningStyle.Render("missing")
			if globalReconciler.Installed(v) {
				jar = successStyle.Render("installed")
			}
		}
		t.add(ch.String(), orNone(v), jar)
	}
	t.print(w)
	fmt.Fprintln(w)

	printTitle(w, "Installed Jars")
	installed, err := globalReconciler.InstalledVersions()
	if err != nil {
		return err
	}

	if len(installed) == 0 {
		fmt.Fprintln(w, "No server jars downloaded")
	} else {
		t = newTable("Version", "Size", "Downloaded", "Verified")
		for _, v := range installed {
			a, err := globalStore.GetArtifact(v)
			if errors.Is(err, store.ErrNotFound) {
				t.add(v, mutedStyle.Render("unknown"), mutedStyle.Render("not recorded"), "")
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to read artifact %s: %w", v, err)
			}
			verified := mutedStyle.Render("never")
			if !a.LastVerified.IsZero() {
				verified = humanize.Time(a.LastVerified)
			}
			t.add(v, humanize.IBytes(uint64(a.Size)), humanize.Time(a.DownloadedAt), verified)
		}
		t.print(w)
	}
	total, err := globalStore.SumArtifactSize()
	if err != nil {
		return fmt.Errorf("failed to sum artifact sizes: %w", err)
	}
	fmt.Fprintf(w, "%s %s\n\n", mutedStyle.Render("Total recorded:"), humanize.IBytes(uint64(total)))

	printTitle(w, "Recent Updates")
	runs, err := globalStore.ListUpdateRuns("", statusRuns)
	if err != nil {
		return fmt.Errorf("failed to list update runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No update runs recorded")
	} else {
		t = newTable("When", "Channel", "From", "To", "Action", "Status")
		for _, r := range runs {
			status := successStyle.Render(r.Status)
			if r.Status == "failed" {
				status = errorStyle.Render(r.Status)
			}
			t.add(humanize.Time(r.StartTime), r.Channel, orNone(r.FromVersion), orNone(r.ToVersion), r.Action, status)
		}
		t.print(w)
	}
	fmt.Fprintln(w)

	printTitle(w, "Recent Backups")
	backups, err := globalStore.ListBackups("", statusRuns)
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(backups) == 0 {
		fmt.Fprintln(w, "No backups recorded")
		return nil
	}
	t = newTable("When", "Server", "Archive", "Format", "Size")
	for _, b := range backups {
		t.add(humanize.Time(b.CreatedAt), b.Server, filepath.Base(b.Path), b.Format, humanize.IBytes(uint64(b.Size)))
	}
	t.print(w)
	return nil
}
