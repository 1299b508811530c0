package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/BadgerOps/craftctl/internal/download"
)

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Re-hash downloaded server jars against their recorded checksums",
		Long: `Re-hash every recorded server jar and compare it with the SHA-1 and size
captured when it was downloaded. Jars that match are marked verified.
Missing or altered jars are reported and make the command fail. Records
for missing jars are dropped so the next update downloads them again.`,
		Example: `  craftctl verify`,
		Args:    cobra.NoArgs,
		RunE:    verifyRun,
	}

	return cmd
}

func verifyRun(cmd *cobra.Command, args []string) error {
	log := slog.Default()

	if globalStore == nil {
		return fmt.Errorf("store not initialized")
	}
	w := cmd.OutOrStdout()

	artifacts, err := globalStore.ListArtifacts()
	if err != nil {
		return fmt.Errorf("failed to list artifacts: %w", err)
	}
	if len(artifacts) == 0 {
		fmt.Fprintln(w, "No server jars recorded")
		return nil
	}

	failed := 0
	t := newTable("Version", "Size", "Result")
	for _, a := range artifacts {
		sum, size, err := download.HashFile(a.Path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			failed++
			if err := globalStore.DeleteArtifact(a.Version); err != nil {
				return fmt.Errorf("failed to drop record for %s: %w", a.Version, err)
			}
			t.add(a.Version, humanize.IBytes(uint64(a.Size)), errorStyle.Render("missing (record dropped)"))
			log.Warn("server jar missing, record dropped", "version", a.Version, "path", a.Path)
		case err != nil:
			failed++
			t.add(a.Version, humanize.IBytes(uint64(a.Size)), errorStyle.Render("unreadable"))
			log.Warn("failed to hash artifact", "version", a.Version, "path", a.Path, "error", err)
		case sum != a.SHA1 || size != a.Size:
			failed++
			t.add(a.Version, humanize.IBytes(uint64(size)), errorStyle.Render("checksum mismatch"))
			log.Warn("artifact checksum mismatch", "version", a.Version, "want_sha1", a.SHA1, "got_sha1", sum)
		default:
			if err := globalStore.MarkArtifactVerified(a.Version, time.Now().UTC()); err != nil {
				return fmt.Errorf("failed to mark %s verified: %w", a.Version, err)
			}
			t.add(a.Version, humanize.IBytes(uint64(size)), successStyle.Render("ok"))
		}
	}
	t.print(w)

	if failed > 0 {
		return fmt.Errorf("%d of %d server jars failed verification", failed, len(artifacts))
	}
	return nil
}
