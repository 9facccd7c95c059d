package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/akimixu/mksearch/internal/scan"
	"github.com/akimixu/mksearch/internal/search"
	"github.com/akimixu/mksearch/internal/session"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app" toml:"app"`
	Workspace WorkspaceConfig   `yaml:"workspace" toml:"workspace"`
	Search    SearchConfig      `yaml:"search" toml:"search"`
	History   HistoryConfig     `yaml:"history" toml:"history"`
	Watch     WatchConfig       `yaml:"watch" toml:"watch"`
	Auth      AuthConfig        `yaml:"auth" toml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Workspace.Validate(); err != nil {
		return err
	}
	if err := c.Search.Validate(); err != nil {
		return err
	}
	if err := c.History.Validate(); err != nil {
		return err
	}
	if err := c.Watch.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level" toml:"log_level"`
	HTTP     HTTPConfig `yaml:"http" toml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port" toml:"port"`
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

// WorkspaceConfig holds the directory searches run in.
type WorkspaceConfig struct {
	Root string `yaml:"root" toml:"root"`
}

// Validate validates the workspace configuration.
func (c *WorkspaceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
	)
}

// SearchConfig holds search defaults and engine limits.
type SearchConfig struct {
	Include        string        `yaml:"include" toml:"include"`
	ExcludeFolders string        `yaml:"exclude_folders" toml:"exclude_folders"`
	CaseSensitive  bool          `yaml:"case_sensitive" toml:"case_sensitive"`
	WholeWord      bool          `yaml:"whole_word" toml:"whole_word"`
	BatchSize      int           `yaml:"batch_size" toml:"batch_size"`
	MaxPositions   int           `yaml:"max_positions" toml:"max_positions"`
	ContextWidth   int           `yaml:"context_width" toml:"context_width"`
	StopGrace      time.Duration `yaml:"stop_grace" toml:"stop_grace"`
	// MaxFileSize skips larger files. Zero means unlimited.
	MaxFileSize int64 `yaml:"max_file_size" toml:"max_file_size"`
}

// Validate validates the search configuration.
func (c *SearchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BatchSize, validation.Required, validation.Min(1), validation.Max(1000)),
		validation.Field(&c.MaxPositions, validation.Required, validation.Min(1)),
		validation.Field(&c.ContextWidth, validation.Required, validation.Min(10)),
		validation.Field(&c.StopGrace, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxFileSize, validation.Min(int64(0))),
	)
}

// EngineOptions converts the limits into engine options.
func (c *SearchConfig) EngineOptions(logger *slog.Logger) []search.Option {
	return []search.Option{
		search.WithBatchSize(c.BatchSize),
		search.WithMaxPositions(c.MaxPositions),
		search.WithContextWidth(c.ContextWidth),
		search.WithMaxFileSize(c.MaxFileSize),
		search.WithLogger(logger),
	}
}

// HistoryConfig holds the search history store configuration.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
	Limit   int    `yaml:"limit" toml:"limit"`
}

// Validate validates the history configuration.
func (c *HistoryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.Limit, validation.Min(0)),
	)
}

// WatchConfig holds workspace change notification settings.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled" toml:"enabled"`
	Throttle time.Duration `yaml:"throttle" toml:"throttle"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Throttle, validation.When(c.Enabled, validation.Required, validation.Min(10*time.Millisecond))),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode" toml:"mode"`
	Token string `yaml:"token" toml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
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

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Workspace: WorkspaceConfig{
			Root: ".",
		},
		Search: SearchConfig{
			Include:        "**/*",
			ExcludeFolders: "node_modules,.git",
			BatchSize:      search.DefaultBatchSize,
			MaxPositions:   scan.DefaultMaxPositions,
			ContextWidth:   scan.DefaultContextWidth,
			StopGrace:      session.DefaultGrace,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "./mksearch.db",
			Limit:   50,
		},
		Watch: WatchConfig{
			Throttle: 2 * time.Second,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
