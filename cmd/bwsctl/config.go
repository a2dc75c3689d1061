package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bwscache/bwscache/internal/config"
	"github.com/bwscache/bwscache/internal/invoker"
	"github.com/bwscache/bwscache/internal/secrets"
)

// Config represents the CLI configuration file. The access token is never
// stored here.
type Config struct {
	Project      string `yaml:"project,omitempty"`
	BWSPath      string `yaml:"bws_path,omitempty"`
	OutputFormat string `yaml:"output_format,omitempty"`
}

// DefaultConfigPath returns the default config file path
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "bwsctl", "config.yaml")
}

// LoadConfig loads configuration from file
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return &cfg, nil
}

// SaveConfig saves configuration to file
func SaveConfig(cfg *Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (a *app) configPath() string {
	if a.configFile != "" {
		return a.configFile
	}
	return DefaultConfigPath()
}

func newConfigCmd(a *app) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  `Commands for viewing and managing bwsctl configuration.`,
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long: `Display the current CLI configuration.

Shows settings from flags, environment variables and the config file, and
where each one came from.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := config.Load()
			if err != nil {
				return err
			}

			path := a.configPath()
			cfg, err := LoadConfig(path)
			if err != nil {
				cfg = &Config{}
			}

			project := resolveConfigValue(cfg.Project, a.project, env.BWS.Project, "")
			bwsPath := resolveConfigValue(cfg.BWSPath, a.bwsPath, env.BWS.Path, invoker.DefaultExecutable)
			output := resolveConfigValue(cfg.OutputFormat, a.output, "", "table")
			_, tokenFromEnv, tokenErr := secrets.ResolveToken(a.token)
			tokenSource := "flag"
			if tokenFromEnv {
				tokenSource = "env"
			}

			if output == "json" {
				return printJSON(a.out, map[string]interface{}{
					"file":          path,
					"project":       project,
					"bws_path":      bwsPath,
					"output_format": output,
					"token_set":     tokenErr == nil,
				})
			}

			fmt.Fprintf(a.out, "%s\n", Bold("Configuration"))
			fmt.Fprintf(a.out, "  Config file: %s\n", path)
			fmt.Fprintln(a.out)

			fmt.Fprintf(a.out, "%s\n", Bold("Settings"))
			projectShown := project
			if projectShown == "" {
				projectShown = Dim("not set")
			}
			fmt.Fprintf(a.out, "  Project:       %s %s\n", projectShown,
				Dim("("+resolveSource(cfg.Project, a.project, env.BWS.Project)+")"))
			fmt.Fprintf(a.out, "  bws path:      %s %s\n", bwsPath,
				Dim("("+resolveSource(cfg.BWSPath, a.bwsPath, env.BWS.Path)+")"))
			fmt.Fprintf(a.out, "  Output Format: %s %s\n", output,
				Dim("("+resolveSource(cfg.OutputFormat, a.output, "")+")"))
			if tokenErr == nil {
				fmt.Fprintf(a.out, "  Token:         %s %s\n", Dim("****"), Dim("("+tokenSource+")"))
			} else {
				fmt.Fprintf(a.out, "  Token:         %s\n", Dim("not set"))
			}

			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value in the config file.

Available keys:
  project       - Default project name
  bws_path      - Path to the bws executable
  output_format - Default output format (json, table)

The access token cannot be stored; use BWS_ACCESS_TOKEN or --token.`,
		Example: `  # Set the default project
  bwsctl config set project infra

  # Use a bws binary outside PATH
  bwsctl config set bws_path /opt/bws/bws`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			path := a.configPath()

			cfg, err := LoadConfig(path)
			if err != nil {
				cfg = &Config{}
			}

			switch strings.ToLower(key) {
			case "project":
				cfg.Project = value
			case "bws_path":
				cfg.BWSPath = value
			case "output_format", "output":
				if value != "json" && value != "table" {
					return fmt.Errorf("invalid output format: %s (must be 'json' or 'table')", value)
				}
				cfg.OutputFormat = value
			case "token", "access_token":
				return fmt.Errorf("the access token is never written to disk; set %s instead", secrets.TokenEnvVar)
			default:
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if err := SaveConfig(cfg, path); err != nil {
				return err
			}

			Success(a.out, fmt.Sprintf("Set %s in %s", key, path))
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Long:  `Display the path to the configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(a.out, a.configPath())
			return nil
		},
	})

	return configCmd
}

// resolveConfigValue returns the first non-empty value from the given options
func resolveConfigValue(configValue, flagValue, envValue, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue != "" {
		return envValue
	}
	if configValue != "" {
		return configValue
	}
	return defaultValue
}

// resolveSource returns the source of the configuration value
func resolveSource(configValue, flagValue, envValue string) string {
	if flagValue != "" {
		return "flag"
	}
	if envValue != "" {
		return "env"
	}
	if configValue != "" {
		return "config"
	}
	return "default"
}
