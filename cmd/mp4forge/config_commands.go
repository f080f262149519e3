package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mp4forge/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the mp4forge configuration file",
	}
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var path string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(path)
			if target == "" {
				if flag := cmd.Flag("config"); flag != nil && strings.TrimSpace(flag.Value.String()) != "" {
					target = strings.TrimSpace(flag.Value.String())
				}
			}
			var err error
			if target == "" {
				target, err = config.DefaultConfigPath()
			} else {
				target, err = config.ExpandPath(target)
			}
			if err != nil {
				return err
			}

			if _, err := os.Stat(target); err == nil && !overwrite {
				return fmt.Errorf("config already exists at %s (use --overwrite to replace it)", target)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("check config path: %w", err)
			}

			if err := config.CreateSample(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample config to %s\n", target)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "path", "p", "", "Where to write the config (defaults to --config or the standard location)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing config file")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			source := ctx.configPath
			if source == "" {
				source = "(defaults)"
			}
			fmt.Fprintln(out, renderValueLine("Config", source))
			if cfg.BackupPath != "" {
				fmt.Fprintln(out, renderStatusLine("Version", statusWarn, "outdated config moved to "+cfg.BackupPath, shouldColorize(out)))
			}
			fmt.Fprintln(out, renderValueLine("MP4Box", cfg.MP4BoxBinary()))
			fmt.Fprintln(out, renderValueLine("State dir", cfg.Paths.StateDir))
			fmt.Fprintln(out, renderValueLine("Queue DB", cfg.Paths.QueueDB))
			fmt.Fprintln(out, renderValueLine("API bind", cfg.API.Bind))
			fmt.Fprintln(out, renderValueLine("Persistence", yesNo(cfg.Queue.Persist)))
			fmt.Fprintln(out, renderValueLine("Auto start", yesNo(cfg.Queue.AutoStart)))
			fmt.Fprintln(out, renderValueLine("Notifications", yesNo(cfg.Notifications.NtfyTopic != "")))
			fmt.Fprintln(out, "Configuration is valid")
			return nil
		},
	}
}
