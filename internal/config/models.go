package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/samber/lo"
)

// ErrNoBot is returned when no profile was named and no default is set.
var ErrNoBot = errors.New("no bot selected and no default bot configured")

// Registry represents the entire user configuration file.
type Registry struct {
	Version     int             `yaml:"version"`
	Bots        map[string]*Bot `yaml:"bots,omitempty"` // Keyed by profile name
	Preferences *Preferences    `yaml:"preferences,omitempty"`
}

// Bot is one connection profile. Either URL or Descriptor must be set.
type Bot struct {
	URL           string    `yaml:"url,omitempty"`            // ws:// or wss:// endpoint
	Key           string    `yaml:"key,omitempty"`            // Shared authentication key
	Descriptor    string    `yaml:"descriptor,omitempty"`     // Path to a connection descriptor file
	FrameRate     int       `yaml:"frame_rate,omitempty"`     // Frame notifications per second, 0 for default
	LastConnected time.Time `yaml:"last_connected,omitempty"` // Last successful connection
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	DefaultBot  string `yaml:"default_bot,omitempty"`
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file,omitempty"`
	CaptureDir  string `yaml:"capture_dir,omitempty"`
	NATSURL     string `yaml:"nats_url,omitempty"`
	NATSSubject string `yaml:"nats_subject,omitempty"`
}

func defaultPreferences() *Preferences {
	return &Preferences{
		LogLevel:    "info",
		NATSSubject: "botclient",
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Bots:        make(map[string]*Bot),
		Preferences: defaultPreferences(),
	}
}

// Validate checks a profile for a usable endpoint.
func (b *Bot) Validate() error {
	if b.URL == "" && b.Descriptor == "" {
		return fmt.Errorf("bot needs a url or a descriptor")
	}
	if b.URL != "" {
		u, err := url.Parse(b.URL)
		if err != nil {
			return fmt.Errorf("invalid url %q: %w", b.URL, err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("url %q must use ws or wss", b.URL)
		}
		if u.Host == "" {
			return fmt.Errorf("url %q has no host", b.URL)
		}
	}
	if b.FrameRate < 0 {
		return fmt.Errorf("frame_rate must not be negative, got %d", b.FrameRate)
	}
	return nil
}

// GetBot retrieves a profile by name.
// Returns nil if the profile doesn't exist in the registry.
func (r *Registry) GetBot(name string) *Bot {
	return r.Bots[name]
}

// EnsureBot ensures a profile exists in the registry and returns it.
func (r *Registry) EnsureBot(name string) *Bot {
	if r.Bots == nil {
		r.Bots = make(map[string]*Bot)
	}
	if bot, exists := r.Bots[name]; exists {
		return bot
	}
	bot := &Bot{}
	r.Bots[name] = bot
	return bot
}

// SetBot validates and stores a profile, replacing any existing one. The
// first profile stored becomes the default.
func (r *Registry) SetBot(name string, bot *Bot) error {
	if name == "" {
		return fmt.Errorf("bot name must not be empty")
	}
	if err := bot.Validate(); err != nil {
		return fmt.Errorf("bot %q: %w", name, err)
	}
	if r.Bots == nil {
		r.Bots = make(map[string]*Bot)
	}
	r.Bots[name] = bot
	if r.Preferences == nil {
		r.Preferences = defaultPreferences()
	}
	if r.Preferences.DefaultBot == "" {
		r.Preferences.DefaultBot = name
	}
	return nil
}

// RemoveBot deletes a profile and clears the default if it pointed there.
func (r *Registry) RemoveBot(name string) bool {
	if _, ok := r.Bots[name]; !ok {
		return false
	}
	delete(r.Bots, name)
	if r.Preferences != nil && r.Preferences.DefaultBot == name {
		r.Preferences.DefaultBot = ""
	}
	return true
}

// MarkConnected records a successful connection time for a profile.
func (r *Registry) MarkConnected(name string, at time.Time) {
	r.EnsureBot(name).LastConnected = at
}

// ResolveBot returns the named profile, or the default one when name is
// empty.
func (r *Registry) ResolveBot(name string) (string, *Bot, error) {
	if name == "" && r.Preferences != nil {
		name = r.Preferences.DefaultBot
	}
	if name == "" {
		return "", nil, ErrNoBot
	}
	bot := r.Bots[name]
	if bot == nil {
		return "", nil, fmt.Errorf("bot %q not found in config", name)
	}
	return name, bot, nil
}

// BotNames returns the profile names in sorted order.
func (r *Registry) BotNames() []string {
	names := lo.Keys(r.Bots)
	slices.Sort(names)
	return names
}
