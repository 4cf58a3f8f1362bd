package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kongaddon/internal/features"

	"github.com/dlclark/regexp2"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "kongaddon.yaml"

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all kongaddon configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Context names the hosted item used for per-context preference keys.
	// Empty means "read it from the page title".
	Context string `yaml:"context"`

	Browser     BrowserConfig     `yaml:"browser"`
	Preferences PreferencesConfig `yaml:"preferences"`
	Classifier  ClassifierConfig  `yaml:"classifier"`
	Features    FeaturesConfig    `yaml:"features"`
	Layout      LayoutConfig      `yaml:"layout"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// BrowserConfig configures the go-rod page host.
type BrowserConfig struct {
	// DebuggerURL attaches to a running Chrome. Empty launches one.
	DebuggerURL       string `yaml:"debugger_url"`
	Headless          bool   `yaml:"headless"`
	NavigationTimeout string `yaml:"navigation_timeout"`
	// PollInterval is how often the in-page event buffer is drained.
	PollInterval string `yaml:"poll_interval"`

	Selectors SelectorConfig `yaml:"selectors"`
}

// SelectorConfig names the host page elements the add-on works against.
type SelectorConfig struct {
	MessageWindow string `yaml:"message_window"`
	Message       string `yaml:"message"`
	GameTitle     string `yaml:"game_title"`
	UnreadCount   string `yaml:"unread_count"`
	PanelAnchor   string `yaml:"panel_anchor"`
	GameFrame     string `yaml:"game_frame"`
}

// PreferencesConfig selects and configures the preference backend.
type PreferencesConfig struct {
	Backend string `yaml:"backend"` // memory, sqlite, cookie
	Path    string `yaml:"path"`    // sqlite database file
	Prefix  string `yaml:"prefix"`
	TTLDays int    `yaml:"ttl_days"`
}

// PatternConfig is one injected reference matcher.
type PatternConfig struct {
	Pattern string `yaml:"pattern"`
	// SpanGroup is the group whose extent is replaced. 0 means the whole match.
	SpanGroup    int    `yaml:"span_group"`
	PayloadGroup int    `yaml:"payload_group"`
	BaseURL      string `yaml:"base_url"`
}

// ClassifierConfig holds the three reference patterns.
type ClassifierConfig struct {
	CrossLink    PatternConfig `yaml:"cross_link"`
	ResourceLink PatternConfig `yaml:"resource_link"`
	ProfileLink  PatternConfig `yaml:"profile_link"`
	MatchTimeout string        `yaml:"match_timeout"`
}

// FeaturesConfig assigns a panel position to each feature. A negative
// position registers the feature disabled; a missing one uses the default.
type FeaturesConfig struct {
	Positions map[string]int `yaml:"positions"`
}

// LayoutConfig carries the default box dimensions and the deferred-layout policy.
type LayoutConfig struct {
	BothWidth         int    `yaml:"both_width"`
	BothHeight        int    `yaml:"both_height"`
	GameWidth         int    `yaml:"game_width"`
	ChatWidth         int    `yaml:"chat_width"`
	EnlargedChatWidth int    `yaml:"enlarged_chat_width"`
	MenuHeight        int    `yaml:"menu_height"`
	RetryInterval     string `yaml:"retry_interval"`
	MaxRetries        int    `yaml:"max_retries"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "kongaddon",
		Version: "1.5.0",

		Browser: BrowserConfig{
			Headless:          false,
			NavigationTimeout: "30s",
			PollInterval:      "100ms",
			Selectors: SelectorConfig{
				MessageWindow: "#chat_rooms_container .chat_message_window",
				Message:       ".chat-message .message",
				GameTitle:     ".gamepage_title_block > h1[itemprop='name']",
				UnreadCount:   "#profile_control_unread_message_count",
				PanelAnchor:   "#cloud_save_info_template",
				GameFrame:     "#gameiframe",
			},
		},

		Preferences: PreferencesConfig{
			Backend: "sqlite",
			Path:    ".kongaddon/prefs.db",
			Prefix:  "forth_",
			TTLDays: 30,
		},

		Classifier: ClassifierConfig{
			CrossLink: PatternConfig{
				Pattern:      `\[\[([^\[\]|]+)(?:\|([^\[\]]+))?\]\]`,
				PayloadGroup: 1,
				BaseURL:      "https://kongregate.fandom.com/wiki/",
			},
			ResourceLink: PatternConfig{
				Pattern:      `(^|\s)(/games/([\w-]+)/([\w-]+))`,
				SpanGroup:    2,
				PayloadGroup: 2,
				BaseURL:      "https://www.kongregate.com",
			},
			ProfileLink: PatternConfig{
				Pattern:      `(^|\s)(/accounts/([\w-]+))`,
				SpanGroup:    2,
				PayloadGroup: 3,
				BaseURL:      "https://www.kongregate.com/accounts/",
			},
			MatchTimeout: "50ms",
		},

		Features: FeaturesConfig{
			Positions: map[string]int{
				"quickLinks":     0,
				"lockscreen":     1,
				"unreadMessages": 2,
				"onlineplayers":  3,
				"textsize":       4,
				"brightness":     5,
				"ping":           6,
				"displayMode":    7,
			},
		},

		Layout: LayoutConfig{
			BothWidth:         1103,
			BothHeight:        700,
			GameWidth:         800,
			ChatWidth:         300,
			EnlargedChatWidth: 500,
			MenuHeight:        30,
			RetryInterval:     "100ms",
			MaxRetries:        50,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Defaults if config file doesn't exist
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("KONGADDON_DEBUGGER_URL"); url != "" {
		c.Browser.DebuggerURL = url
	}
	if path := os.Getenv("KONGADDON_PREFS_PATH"); path != "" {
		c.Preferences.Path = path
		if c.Preferences.Backend == "memory" {
			c.Preferences.Backend = "sqlite"
		}
	}
	if level := os.Getenv("KONGADDON_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetNavigationTimeout returns the page navigation timeout as a duration.
func (c *Config) GetNavigationTimeout() time.Duration {
	return parseDuration(c.Browser.NavigationTimeout, 30*time.Second)
}

// GetPollInterval returns the event buffer drain interval.
func (c *Config) GetPollInterval() time.Duration {
	return parseDuration(c.Browser.PollInterval, 100*time.Millisecond)
}

// GetMatchTimeout returns the per-pattern regexp timeout.
func (c *Config) GetMatchTimeout() time.Duration {
	return parseDuration(c.Classifier.MatchTimeout, 50*time.Millisecond)
}

// GetRetryInterval returns the deferred layout re-poll interval.
func (c *Config) GetRetryInterval() time.Duration {
	return parseDuration(c.Layout.RetryInterval, 100*time.Millisecond)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// ValidBackends lists all supported preference backends.
var ValidBackends = []string{"memory", "sqlite", "cookie"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validBackend := false
	for _, b := range ValidBackends {
		if c.Preferences.Backend == b {
			validBackend = true
			break
		}
	}
	if !validBackend {
		return fmt.Errorf("%w: preference backend %q (valid: %v)", ErrInvalid, c.Preferences.Backend, ValidBackends)
	}
	if c.Preferences.Backend == "sqlite" && c.Preferences.Path == "" {
		return fmt.Errorf("%w: sqlite backend needs preferences.path", ErrInvalid)
	}
	if c.Preferences.TTLDays <= 0 {
		return fmt.Errorf("%w: preferences.ttl_days must be positive", ErrInvalid)
	}

	patterns := map[string]PatternConfig{
		"cross_link":    c.Classifier.CrossLink,
		"resource_link": c.Classifier.ResourceLink,
		"profile_link":  c.Classifier.ProfileLink,
	}
	for name, p := range patterns {
		if p.Pattern == "" {
			continue // kind disabled
		}
		re, err := regexp2.Compile(p.Pattern, regexp2.ECMAScript)
		if err != nil {
			return fmt.Errorf("%w: classifier.%s: %v", ErrInvalid, name, err)
		}
		groups := len(re.GetGroupNumbers()) - 1
		if p.PayloadGroup < 0 || p.PayloadGroup > groups {
			return fmt.Errorf("%w: classifier.%s payload_group %d out of range (pattern has %d groups)", ErrInvalid, name, p.PayloadGroup, groups)
		}
		if p.SpanGroup < 0 || p.SpanGroup > groups {
			return fmt.Errorf("%w: classifier.%s span_group %d out of range (pattern has %d groups)", ErrInvalid, name, p.SpanGroup, groups)
		}
	}

	if c.Layout.BothWidth <= 0 || c.Layout.BothHeight <= 0 || c.Layout.GameWidth <= 0 || c.Layout.ChatWidth <= 0 {
		return fmt.Errorf("%w: layout dimensions must be positive", ErrInvalid)
	}
	if c.Layout.MaxRetries < 0 {
		return fmt.Errorf("%w: layout.max_retries must not be negative", ErrInvalid)
	}

	for name := range c.Features.Positions {
		if _, ok := features.Parse(name); !ok {
			return fmt.Errorf("%w: unknown feature %q", ErrInvalid, name)
		}
	}

	return nil
}
