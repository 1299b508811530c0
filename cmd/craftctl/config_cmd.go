package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
		Long: `Inspect craftctl configuration. Settings come from craftctl.yaml, then
CRAFTCTL_* variables (from the environment or a .env file), then flags.`,
		Example: `  craftctl config show`,
	}

	cmd.AddCommand(
		newConfigShowCmd(),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration in YAML format, with environment and
command-line overrides applied.`,
		Example: `  craftctl config show
  craftctl config show --config /etc/craftctl/craftctl.yaml`,
		RunE: configShowRun,
	}

	return cmd
}

func configShowRun(cmd *cobra.Command, args []string) error {
	log := slog.Default()

	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	log.Debug("showing configuration", "path", cfgPath)

	data, err := yaml.Marshal(globalCfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	w := cmd.OutOrStdout()
	printTitle(w, "Current Configuration")
	if cfgPath != "" {
		fmt.Fprintln(w, mutedStyle.Render("# loaded from "+cfgPath))
	}
	fmt.Fprintln(w, string(data))

	return nil
}
