package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newServersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "servers",
		Aliases: []string{"ls"},
		Short:   "List server directories",
		Long: `List every server directory with the launch its default.type marker
selects, whether a world exists, how many backups it has, and when it was
last launched.`,
		Example: `  craftctl servers`,
		Args:    cobra.NoArgs,
		RunE:    serversRun,
	}

	return cmd
}

func serversRun(cmd *cobra.Command, args []string) error {
	if globalManager == nil {
		return fmt.Errorf("instance manager not initialized")
	}
	w := cmd.OutOrStdout()

	infos, err := globalManager.Servers()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintln(w, "No servers found")
		return nil
	}

	t := newTable("Server", "Default", "World", "Backups", "Last Launch")
	for _, info := range infos {
		world := mutedStyle.Render("none")
		if info.HasWorld {
			world = successStyle.Render("yes")
		}

		last := mutedStyle.Render("never")
		if globalStore != nil {
			launches, err := globalStore.ListLaunches(info.Name, 1)
			if err != nil {
				return fmt.Errorf("failed to list launches: %w", err)
			}
			if len(launches) > 0 {
				last = fmt.Sprintf("%s (%s)", humanize.Time(launches[0].StartedAt), launches[0].Status)
			}
		}

		t.add(highlightStyle.Render(info.Name), info.Default.String(), world, strconv.Itoa(info.Backups), last)
	}
	t.print(w)
	return nil
}
