package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// ConfigKeyDefaultBackend is the viper/config key for the default
	// record store backend.
	ConfigKeyDefaultBackend = "default_backend"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  `Get and set stackctl CLI configuration values stored in ~/.stackctl/config.yaml.`,
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigListCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value in ~/.stackctl/config.yaml.

Available keys:
  default-backend    The record store backend used when --backend is not specified.

Examples:
  stackctl config set default-backend s3`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value := args[1]

			// Normalize key names: allow dashes in CLI, store with underscores
			viperKey := normalizeConfigKey(key)

			switch viperKey {
			case ConfigKeyDefaultBackend:
				// valid
			default:
				return fmt.Errorf("unknown configuration key %q\n\nAvailable keys:\n  default-backend", key)
			}

			viper.Set(viperKey, value)
			if err := writeConfig(); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Printf("Set %s = %s\n", key, value)
			return nil
		},
	}

	return cmd
}

func newConfigGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Long: `Get a configuration value from ~/.stackctl/config.yaml.

Examples:
  stackctl config get default-backend`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			viperKey := normalizeConfigKey(key)

			value := viper.GetString(viperKey)
			if value == "" {
				fmt.Printf("%s is not set\n", key)
			} else {
				fmt.Println(value)
			}
			return nil
		},
	}

	return cmd
}

func newConfigListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all configuration values",
		Long:  `List all configuration values from ~/.stackctl/config.yaml.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			be := viper.GetString(ConfigKeyDefaultBackend)

			fmt.Println("Configuration:")
			if be != "" {
				fmt.Printf("  default-backend = %s\n", be)
			} else {
				fmt.Println("  (no values set)")
			}

			return nil
		},
	}

	return cmd
}

// writeConfig writes the current viper config to the config file.
func writeConfig() error {
	configPath := viper.ConfigFileUsed()
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir := filepath.Join(home, ".stackctl")
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		configPath = filepath.Join(configDir, "config.yaml")
	}

	return viper.WriteConfigAs(configPath)
}

// normalizeConfigKey converts CLI-style keys (with dashes) to viper-style keys (with underscores).
func normalizeConfigKey(key string) string {
	switch key {
	case "default-backend":
		return ConfigKeyDefaultBackend
	default:
		return key
	}
}
