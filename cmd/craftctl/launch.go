package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/BadgerOps/craftctl/internal/engine"
	"github.com/BadgerOps/craftctl/internal/instance"
)

func newLaunchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "launch [name] [launch-type] [version]",
		Short: "Start a server, reconciling its jar first",
		Long: `Start a server. Missing arguments are asked for: the server name, the
launch type (default, backup, restore or legacy) and, for legacy launches,
the version to run.

A default launch runs the channel named in the server's default.type marker.
A backup launch archives the world first; a restore launch replaces the world
with a chosen archive. The server jar is reconciled against the version
manifest before the server starts.`,
		Example: `  craftctl launch
  craftctl launch survival
  craftctl launch survival restore
  craftctl launch classic legacy 1.12.2`,
		Args: cobra.MaximumNArgs(3),
		RunE: launchRun,
	}

	return cmd
}

func launchRun(cmd *cobra.Command, args []string) error {
	if globalManager == nil {
		return fmt.Errorf("instance manager not initialized")
	}

	req, err := launchRequest(args)
	if err != nil {
		return err
	}

	slog.Debug("launch request", "name", req.Name, "launch_type", req.LaunchType, "version", req.Version)

	out, err := globalManager.Launch(cmd.Context(), req)
	if out != nil {
		printLaunchOutcome(cmd.OutOrStdout(), out)
	}
	return err
}

// launchRequest maps positional arguments onto a launch request
func launchRequest(args []string) (instance.LaunchRequest, error) {
	var req instance.LaunchRequest
	if len(args) > 0 {
		req.Name = args[0]
	}
	if len(args) > 1 {
		lt, err := instance.ParseLaunchType(args[1])
		if err != nil {
			return req, err
		}
		req.LaunchType = lt
	}
	if len(args) > 2 {
		req.Version = args[2]
	}
	return req, nil
}

func printLaunchOutcome(w io.Writer, out *instance.LaunchOutcome) {
	inst := out.Instance

	for _, r := range out.Results {
		printResult(w, r)
	}
	if out.Archive != nil {
		fmt.Fprintf(w, "%s %s (%s)\n", successStyle.Render("Backed up"), out.Archive.Name, humanize.IBytes(uint64(out.Archive.Size)))
	}
	if out.Restore != nil {
		fmt.Fprintf(w, "%s %s (%d files)\n", successStyle.Render("Restored"), out.Restore.Restored.Name, out.Restore.Files)
	}

	switch inst.State {
	case instance.StateStarted:
		fmt.Fprintf(w, "%s %s on %s %s (pid %d)\n",
			successStyle.Render("Started"), highlightStyle.Render(inst.Name), inst.ServerType, inst.Version, out.PID)
	case instance.StateDeclined:
		fmt.Fprintf(w, "%s %s was not created\n", warningStyle.Render("Skipped"), inst.Name)
	case instance.StateAborted:
		fmt.Fprintf(w, "%s %s was not started\n", warningStyle.Render("Stopped"), orNone(inst.Name))
	}
}

// printResult writes one reconciliation outcome
func printResult(w io.Writer, r engine.Result) {
	label := mutedStyle.Render(r.Action.String())
	switch r.Action {
	case engine.ActionDownloaded, engine.ActionPinned:
		label = successStyle.Render(r.Action.String())
	case engine.ActionMissing:
		label = warningStyle.Render(r.Action.String())
	}

	line := fmt.Sprintf("%-9s %s %s", r.Channel, label, orNone(r.Version))
	if r.Latest != "" && r.Latest != r.Version {
		line += mutedStyle.Render(fmt.Sprintf(" (latest %s)", r.Latest))
	}
	if r.Bytes > 0 {
		line += mutedStyle.Render(" " + humanize.IBytes(uint64(r.Bytes)))
	}
	fmt.Fprintln(w, line)
}
