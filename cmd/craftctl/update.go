package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BadgerOps/craftctl/internal/engine"
	"github.com/BadgerOps/craftctl/internal/versions"
)

func newUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update [vanilla|snapshot|both|legacy] [version]",
		Short: "Reconcile server jars with the version manifest",
		Long: `Compare the selected vanilla and snapshot versions with the latest ids in
the version manifest and offer to download newer jars. The selected version
only moves once its jar is on disk.

With a version argument that exact version is installed instead, and the
channel is pointed at it. Legacy updates download a specific version without
touching the tracked channels. The channel defaults to both.`,
		Example: `  craftctl update
  craftctl update snapshot
  craftctl update vanilla 1.20.1
  craftctl update legacy 1.8.9`,
		Args: cobra.MaximumNArgs(2),
		RunE: updateRun,
	}

	return cmd
}

func updateRun(cmd *cobra.Command, args []string) error {
	if globalReconciler == nil {
		return fmt.Errorf("reconciler not initialized")
	}
	ctx := cmd.Context()

	sel := engine.SelectBoth
	if len(args) > 0 {
		var err error
		if sel, err = engine.ParseSelector(args[0]); err != nil {
			return err
		}
	}
	version := ""
	if len(args) > 1 {
		version = strings.TrimSpace(args[1])
	}

	if sel == engine.SelectLegacy && version == "" {
		def := ""
		if globalVersions != nil {
			def = globalVersions.Get(versions.Vanilla)
		}
		answer, err := globalDecider.Input(ctx, "Which version would you like to download?", def)
		if err != nil {
			return err
		}
		version = strings.TrimSpace(answer)
	}

	slog.Debug("update request", "selector", sel, "version", version)

	w := cmd.OutOrStdout()
	if version != "" {
		res, err := globalReconciler.UpdateTo(ctx, sel, version)
		if err != nil {
			return err
		}
		printResult(w, *res)
		return nil
	}

	results, err := globalReconciler.Reconcile(ctx, sel, "")
	for _, r := range results {
		printResult(w, r)
	}
	return err
}
