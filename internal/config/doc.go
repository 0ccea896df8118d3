// Package config manages the botclient YAML configuration file.
//
// The file holds named bot profiles and application preferences. A profile
// names either a websocket URL directly or a descriptor file from which the
// URL and key are bootstrapped.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/botclient/config.yaml or $HOME/.config/botclient/config.yaml
//   - macOS: $HOME/.config/botclient/config.yaml
//   - Windows: %LOCALAPPDATA%\botclient\config.yaml
//
// # Security
//
// A profile may carry the bot's shared key. The file is written with
// user-only permissions (0600). Prefer a descriptor path for shared
// machines, since the key is then re-read from the descriptor on each
// connect and never copied into this file.
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	registry.SetBot("lab", &config.Bot{URL: "ws://10.0.0.5:8080/ws", FrameRate: 30})
//	registry.Preferences.DefaultBot = "lab"
//
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File operations are protected by a mutex to ensure atomic writes.
package config
