package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BadgerOps/craftctl/internal/instance"
)

var createNoLaunch bool

func newCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a new server directory and launch it",
		Long: `Create a new server directory. The name must not already exist; a taken
name is asked for again rather than overwritten.

The new server gets backup, restore and default launch markers, an accepted
eula.txt, a server.properties file (optionally customized), the configured
operator in ops.json and whitelist.json, and the configured server icon.
The server is launched afterwards unless --no-launch is given.`,
		Example: `  craftctl create
  craftctl create survival
  craftctl create survival --no-launch`,
		Args: cobra.MaximumNArgs(1),
		RunE: createRun,
	}

	cmd.Flags().BoolVar(&createNoLaunch, "no-launch", false, "only create the server")

	return cmd
}

func createRun(cmd *cobra.Command, args []string) error {
	if globalManager == nil {
		return fmt.Errorf("instance manager not initialized")
	}

	name := ""
	if len(args) > 0 {
		name = args[0]
	}

	inst, err := globalManager.Create(cmd.Context(), name)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s in %s\n", successStyle.Render("Created"), highlightStyle.Render(inst.Name), inst.RootDir)

	if createNoLaunch {
		return nil
	}

	out, err := globalManager.Launch(cmd.Context(), instance.LaunchRequest{Name: inst.Name, LaunchType: inst.LaunchType})
	if out != nil {
		printLaunchOutcome(cmd.OutOrStdout(), out)
	}
	return err
}
