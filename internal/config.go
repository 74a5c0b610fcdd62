package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gobwas/glob"

	"github.com/starford/noterefs/internal/references"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Vault      VaultConfig       `yaml:"vault"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Auth       AuthConfig       `yaml:"auth"`
	References ReferencesConfig `yaml:"references"`
	Events     EventsConfig     `yaml:"events"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.References.Validate(); err != nil {
		return err
	}
	return c.Events.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the note collection directory and the glob patterns of
// paths to leave out of it.
type VaultConfig struct {
	Path   string   `yaml:"path"`
	Ignore []string `yaml:"ignore"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Ignore, validation.Each(validation.By(validGlob))),
	)
}

func validGlob(value interface{}) error {
	pattern, _ := value.(string)
	if _, err := glob.Compile(pattern, '/'); err != nil {
		return fmt.Errorf("invalid glob %q: %w", pattern, err)
	}
	return nil
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// ReferencesConfig selects the summary sections and how often they refresh.
type ReferencesConfig struct {
	Sections []string     `yaml:"sections"`
	Delays   DelaysConfig `yaml:"delays"`
}

// DelaysConfig holds the idle delays of the refresh schedule.
type DelaysConfig struct {
	First    time.Duration `yaml:"first"`
	Init     time.Duration `yaml:"init"`
	Maintain time.Duration `yaml:"maintain"`
}

// Validate validates the references configuration.
func (c *ReferencesConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Sections, validation.Required,
			validation.Each(validation.In(string(references.SectionLinks), string(references.SectionBacklinks)))),
	); err != nil {
		return err
	}
	if err := validation.ValidateStruct(&c.Delays,
		validation.Field(&c.Delays.First, validation.Min(time.Duration(0))),
		validation.Field(&c.Delays.Init, validation.Min(time.Duration(0))),
		validation.Field(&c.Delays.Maintain, validation.Min(time.Duration(0))),
	); err != nil {
		return fmt.Errorf("delays: %w", err)
	}
	return c.Manager().Validate()
}

// Manager converts the section to the references package configuration.
func (c *ReferencesConfig) Manager() references.Config {
	sections := make([]references.Section, len(c.Sections))
	for i, s := range c.Sections {
		sections[i] = references.Section(s)
	}
	return references.Config{
		Sections: sections,
		Delays: references.Delays{
			First:    c.Delays.First,
			Init:     c.Delays.Init,
			Maintain: c.Delays.Maintain,
		},
	}
}

// EventsConfig holds SSE configuration.
type EventsConfig struct {
	// Throttle is the minimum interval between collection.updated events.
	Throttle time.Duration `yaml:"throttle"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	if c.Throttle < 0 {
		return errors.New("events: throttle must be non-negative")
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./noterefs.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		References: ReferencesConfig{
			Sections: []string{string(references.SectionLinks), string(references.SectionBacklinks)},
			Delays: DelaysConfig{
				First:    100 * time.Millisecond,
				Init:     500 * time.Millisecond,
				Maintain: 5 * time.Second,
			},
		},
		Events: EventsConfig{
			Throttle: 2 * time.Second,
		},
	}
}
