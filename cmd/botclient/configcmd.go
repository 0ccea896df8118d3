package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tucoflyer/botclient/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage bot profiles and preferences",
}

var configForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with an example profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := registryPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		if _, err := saveRegistry(config.DefaultRegistry()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configShowKeys bool

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		if !configShowKeys {
			reg = maskKeys(reg)
		}
		data, err := yaml.Marshal(reg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

// maskKeys returns a copy of reg with every key replaced.
func maskKeys(reg *config.Registry) *config.Registry {
	masked := *reg
	masked.Bots = make(map[string]*config.Bot, len(reg.Bots))
	for name, bot := range reg.Bots {
		b := *bot
		if b.Key != "" {
			b.Key = "********"
		}
		masked.Bots[name] = &b
	}
	return &masked
}

var setBot struct {
	url        string
	key        string
	descriptor string
	frameRate  int
	makeDef    bool
}

var configSetBotCmd = &cobra.Command{
	Use:   "set-bot <name>",
	Short: "Add or replace a bot profile",
	Example: `  botclient config set-bot lab --url ws://10.32.0.1:8080/ws --key s3cret --default
  botclient config set-bot field --descriptor ~/field-bot.txt --frame-rate 30`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		name := args[0]
		bot := &config.Bot{
			URL:        setBot.url,
			Key:        setBot.key,
			Descriptor: setBot.descriptor,
			FrameRate:  setBot.frameRate,
		}
		if existing := reg.GetBot(name); existing != nil {
			bot.LastConnected = existing.LastConnected
		}
		if err := reg.SetBot(name, bot); err != nil {
			return err
		}
		if setBot.makeDef {
			reg.Preferences.DefaultBot = name
		}
		path, err := saveRegistry(reg)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved bot %q to %s\n", name, path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
	configShowCmd.Flags().BoolVar(&configShowKeys, "show-keys", false, "Print keys instead of masking them")

	f := configSetBotCmd.Flags()
	f.StringVar(&setBot.url, "url", "", "Websocket endpoint")
	f.StringVar(&setBot.key, "key", "", "Authentication key")
	f.StringVar(&setBot.descriptor, "descriptor", "", "Descriptor file")
	f.IntVar(&setBot.frameRate, "frame-rate", 0, "Frame notifications per second")
	f.BoolVar(&setBot.makeDef, "default", false, "Make this the default profile")

	configCmd.AddCommand(configInitCmd, configShowCmd, configSetBotCmd)
}
