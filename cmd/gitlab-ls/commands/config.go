package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/gitlab-ls/config"
	"github.com/teranos/gitlab-ls/errors"
)

// ConfigCmd groups the configuration subcommands.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
	Long: `Inspect the gitlab-ls configuration.

Configuration sources (later overrides earlier):
1. Built-in defaults
2. System config (/etc/gitlab-ls/config.toml)
3. User config (<user config dir>/gitlab-ls/config.toml)
4. Project config (.gitlab-ls.toml, searched from the working directory up)
5. Environment variables (GITLAB_LS_* prefix, and GITLAB_API_PRIVATE_TOKEN)

Examples:
  gitlab-ls config show                # Effective configuration as TOML
  gitlab-ls config show --format json  # ... as JSON
  gitlab-ls config where               # Which files were read
  gitlab-ls config check               # Report unknown keys`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  "Display the effective configuration from all sources. The token is masked.",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show which config files are read",
	Args:  cobra.NoArgs,
	RunE:  runConfigWhere,
}

var configCheckCmd = &cobra.Command{
	Use:   "check [file...]",
	Short: "Validate configuration and report unknown keys",
	Long: `Validate the effective configuration and report keys that do not map
to any setting, e.g. a misspelt ttl_second. Without arguments the files that
would be loaded are checked.`,
	RunE: runConfigCheck,
}

var configFormat string

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configWhereCmd)
	ConfigCmd.AddCommand(configCheckCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	data, err := formatConfig(cfg, configFormat)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

// formatConfig renders cfg, token masked, in format.
func formatConfig(cfg *config.Config, format string) ([]byte, error) {
	switch format {
	case "toml":
		data, err := cfg.MarshalTOML()
		if err != nil {
			return nil, err
		}
		return append([]byte("# gitlab-ls configuration\n"), data...), nil
	case "json":
		data, err := json.MarshalIndent(cfg.Redacted(), "", "  ")
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal config to JSON")
		}
		return append(data, '\n'), nil
	case "yaml":
		data, err := yaml.Marshal(cfg.Redacted())
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal config to YAML")
		}
		return append([]byte("# gitlab-ls configuration\n"), data...), nil
	default:
		return nil, errors.Newf("unsupported format: %s (supported: toml, json, yaml)", format)
	}
}

func runConfigWhere(cmd *cobra.Command, args []string) error {
	rows := pterm.TableData{{"File", "Status"}}
	for _, path := range config.ConfigPaths() {
		status := "missing"
		if _, err := os.Stat(path); err == nil {
			status = "loaded"
		}
		rows = append(rows, []string{path, status})
	}
	return renderTable(cmd, rows)
}

func runConfigCheck(cmd *cobra.Command, args []string) error {
	files := args
	if len(files) == 0 {
		_, loaded, err := config.LoadWithSources()
		if err != nil {
			return err
		}
		files = loaded
	} else {
		for _, file := range files {
			if _, err := config.LoadFromFile(file); err != nil {
				return err
			}
		}
	}

	if len(files) == 0 {
		pterm.Info.Println("No config files found, using defaults")
		return nil
	}

	problems := 0
	for _, file := range files {
		unknown, err := config.UnknownKeys(file)
		if err != nil {
			return err
		}
		for _, key := range unknown {
			pterm.Warning.Printf("%s: unknown key %s\n", file, key)
		}
		problems += len(unknown)
	}
	if problems > 0 {
		return errors.Newf("found %d unknown configuration keys", problems)
	}
	pterm.Success.Printf("Configuration is valid (%d files checked)\n", len(files))
	return nil
}
