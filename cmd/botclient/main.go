// Botclient connects to a bot's websocket endpoint, authenticates, and
// keeps a live model of the telemetry it streams.
//
// Usage:
//
//	botclient [command] [flags]
//
// Every flag can also be set through the environment with the BOTCLIENT_
// prefix, dashes becoming underscores (--capture-dir is
// BOTCLIENT_CAPTURE_DIR). Flags win over the environment, which wins over
// the selected profile in the configuration file.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tucoflyer/botclient/internal/config"
	"github.com/tucoflyer/botclient/internal/logging"
	"github.com/tucoflyer/botclient/internal/version"
)

const envPrefix = "BOTCLIENT"

// Global flags
var (
	configPath string
	logLevel   string
	logFile    string
)

func main() {
	defer logging.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "botclient",
	Short: "Bot telemetry client",
	Long: `A client for the bot's websocket protocol.

Connects to a bot, answers its authentication challenge, subscribes to its
telemetry and folds the stream into a live model. Sessions can be captured
to disk, replayed later and relayed to NATS.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging()
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (default is the platform config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); empty is silent")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write JSON logs to this file, rotated")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(digestCmd)
	rootCmd.AddCommand(configCmd)

	cobra.OnInitialize(initConfig)
}

// initConfig wires environment variables into every command's flags.
func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
	bindAll(rootCmd, viper.GetViper())
}

func bindAll(cmd *cobra.Command, v *viper.Viper) {
	bindFlags(cmd, v)
	for _, sub := range cmd.Commands() {
		bindAll(sub, v)
	}
}

// Bind each cobra flag to its associated viper configuration
// (environment variable)
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	set := func(flags *pflag.FlagSet) {
		flags.VisitAll(func(f *pflag.Flag) {
			// Environment variables can't have dashes in them, so bind them to their
			// equivalent keys with underscores, e.g. --capture-dir to BOTCLIENT_CAPTURE_DIR
			if strings.Contains(f.Name, "-") {
				envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
				if err := v.BindEnv(f.Name, fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
					fmt.Fprintf(os.Stderr, "Could not bind env var %s: %v\n", f.Name, err)
				}
			}
			// Apply the viper value to the flag when the flag is not set and viper
			// has a value
			if !f.Changed && v.IsSet(f.Name) {
				val := v.Get(f.Name)
				if err := flags.Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
					fmt.Fprintf(os.Stderr, "Could not set flag value for %s: %v\n", f.Name, err)
				}
			}
		})
	}
	set(cmd.Flags())
	set(cmd.PersistentFlags())
}

// initLogging sets up zap from flags, falling back to the preferences in
// the configuration file.
func initLogging() error {
	level, file := logLevel, logFile
	if level == "" || file == "" {
		if reg, err := loadRegistry(); err == nil && reg.Preferences != nil {
			if level == "" && os.Getenv(logging.LogLevelEnvVar) == "" {
				level = reg.Preferences.LogLevel
			}
			if file == "" {
				file = reg.Preferences.LogFile
			}
		}
	}
	if err := logging.InitializeWithOptions(logging.Options{Level: level, FilePath: file}); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	return nil
}

func registryPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}

func loadRegistry() (*config.Registry, error) {
	if configPath == "" {
		return config.LoadRegistry()
	}
	return config.LoadFile(configPath)
}

func saveRegistry(reg *config.Registry) (string, error) {
	path, err := registryPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	return path, reg.SaveFile(path)
}

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if versionJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(version.Get())
		}
		info := version.Get()
		fmt.Fprintf(cmd.OutOrStdout(), "botclient %s (commit: %s, %s, %s)\n",
			info.Version, info.Commit, info.GoVersion, info.Platform)
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print as JSON")
}
