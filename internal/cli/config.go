package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alnah/go-audiosplit/internal/config"
)

// ConfigCmd creates the config command with subcommands.
// The env parameter provides injectable dependencies for testing.
func ConfigCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration settings",
		Long: `Manage persistent configuration settings.

Configuration is stored in ~/.config/audiosplit/config.toml.
Settings can also be overridden via AUDIOSPLIT_* environment variables,
and command flags override both.

Supported settings:
` + keyHelp(),
		Example: `  audiosplit config set output-dir ~/Music/parts
  audiosplit config set segment-length 600
  audiosplit config get bitrate
  audiosplit config list`,
	}

	cmd.AddCommand(configSetCmd(env))
	cmd.AddCommand(configGetCmd(env))
	cmd.AddCommand(configListCmd(env))

	return cmd
}

// configSetCmd creates the "config set" subcommand.
func configSetCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value.

Lists (runtime-mirrors) are comma separated. The output directory is
created if it doesn't exist.`,
		Example: `  audiosplit config set output-dir ~/Music/parts
  audiosplit config set runtime-mirrors https://a.example/ffmpeg,https://b.example/ffmpeg`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(env, args[0], args[1])
		},
	}
}

// configGetCmd creates the "config get" subcommand.
func configGetCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Long: `Get a configuration value.

Prints the file value, else the environment override, or nothing if not set.`,
		Example: `  audiosplit config get output-dir`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(env, args[0])
		},
	}
}

// configListCmd creates the "config list" subcommand.
func configListCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration values",
		Long: `List all configuration values.

Shows both values from the config file and environment variable overrides.`,
		Example: `  audiosplit config list`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigList(env)
		},
	}
}

// runConfigSet handles the "config set" command.
func runConfigSet(env *Env, key, value string) error {
	if key == config.KeyOutputDir {
		expanded := config.ExpandPath(value)
		if err := config.ValidOutputDir(expanded); err != nil {
			return fmt.Errorf("invalid output-dir: %w", err)
		}
		value = expanded
	}

	if err := env.ConfigStore.Set(key, value); err != nil {
		return err
	}

	fmt.Fprintf(env.Stderr, "Set %s = %s\n", key, value)
	return nil
}

// runConfigGet handles the "config get" command.
func runConfigGet(env *Env, key string) error {
	value, err := env.ConfigStore.Get(key)
	if err != nil {
		return err
	}

	// Environment variable fallback.
	if value == "" {
		value = env.Getenv(config.EnvName(key))
	}

	if value != "" {
		fmt.Fprintln(env.Stdout, value)
	}
	return nil
}

// runConfigList handles the "config list" command.
// Output follows key order; unset keys are skipped.
func runConfigList(env *Env) error {
	data, err := env.ConfigStore.List()
	if err != nil {
		return err
	}

	var lines []string
	for _, key := range config.Keys() {
		if v, ok := data[key]; ok && v != "" {
			lines = append(lines, fmt.Sprintf("%s=%s", key, v))
			continue
		}
		if v := env.Getenv(config.EnvName(key)); v != "" {
			lines = append(lines, fmt.Sprintf("%s=%s (from env)", key, v))
		}
	}

	if len(lines) == 0 {
		fmt.Fprintln(env.Stdout, "No configuration set.")
		fmt.Fprintln(env.Stdout, "\nAvailable settings:")
		fmt.Fprint(env.Stdout, keyHelp())
		return nil
	}

	for _, line := range lines {
		fmt.Fprintln(env.Stdout, line)
	}
	return nil
}

// keyHelp lists every key with its description and environment variable.
func keyHelp() string {
	var b strings.Builder
	for _, key := range config.Keys() {
		fmt.Fprintf(&b, "  %-16s %s (env: %s)\n", key, config.Help(key), config.EnvName(key))
	}
	return b.String()
}
