package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"dynwatch/internal/config"
	"dynwatch/internal/daemonctl"
	"dynwatch/internal/store"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set notifications.ntfy_server, and platform.sessdata (or export DYNWATCH_SESSDATA) for logged-in feeds.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration and report readiness",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(ctx.configPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}

			lines := []daemonctl.StatusLine{configFileLine(path, exists)}
			lines = append(lines, databaseLine(cmd.Context(), cfg))
			lines = append(lines, daemonctl.StatusLine{
				Label:    "Polling",
				Severity: "ok",
				Detail: fmt.Sprintf("every %s, %d worker(s), %d item cap",
					cfg.PollInterval(), cfg.Polling.Workers, cfg.Polling.DynamicLimit),
			})
			lines = append(lines, daemonctl.ConfigChecks(cfg)...)
			if bind := strings.TrimSpace(cfg.API.Bind); bind != "" {
				lines = append(lines, daemonctl.StatusLine{Label: "Status API", Severity: "ok", Detail: bind})
			} else {
				lines = append(lines, daemonctl.StatusLine{Label: "Status API", Severity: "info", Detail: "Disabled"})
			}

			out := cmd.OutOrStdout()
			writeStatusSection(out, "Configuration", lines, shouldColorize(out))
			switch worstSeverity(lines) {
			case "error":
				return fmt.Errorf("configuration has errors")
			case "warn":
				fmt.Fprintln(out, "Configuration valid (with warnings)")
			default:
				fmt.Fprintln(out, "Configuration valid")
			}
			return nil
		},
	}
}

func configFileLine(path string, exists bool) daemonctl.StatusLine {
	if !exists {
		return daemonctl.StatusLine{Label: "Config file", Severity: "info", Detail: path + " (missing; defaults used)"}
	}
	return daemonctl.StatusLine{Label: "Config file", Severity: "ok", Detail: path}
}

// databaseLine opens the store to prove the schema is usable and counts
// subscriptions.
func databaseLine(ctx context.Context, cfg *config.Config) daemonctl.StatusLine {
	st, err := store.Open(cfg)
	if err != nil {
		return daemonctl.StatusLine{Label: "Database", Severity: "error", Detail: err.Error()}
	}
	defer st.Close()
	subs, err := st.List(ctx, "")
	if err != nil {
		return daemonctl.StatusLine{Label: "Database", Severity: "error", Detail: err.Error()}
	}
	return daemonctl.StatusLine{
		Label:    "Database",
		Severity: "ok",
		Detail:   fmt.Sprintf("%s (%d subscription(s))", cfg.DatabasePath(), len(subs)),
	}
}
