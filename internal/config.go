package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/dverna/wisp/internal/layout"
	"github.com/dverna/wisp/internal/viewport"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Vault    VaultConfig       `yaml:"vault"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Auth     AuthConfig        `yaml:"auth"`
	Layout   layout.Config     `yaml:"layout"`
	Viewport ViewportConfig    `yaml:"viewport"`
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
	if err := validateLayout(&c.Layout); err != nil {
		return err
	}
	return c.Viewport.Validate()
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

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
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

// validateLayout rejects physics parameters that would destabilize or
// freeze the simulation. Zero values are allowed; the simulator fills
// in its defaults.
func validateLayout(c *layout.Config) error {
	if c.Damping < 0 || c.Damping >= 1 {
		return fmt.Errorf("layout: damping must be below 1 and non-negative, got %g", c.Damping)
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Dt, validation.Min(0.0)),
		validation.Field(&c.Repulsion, validation.Min(0.0)),
		validation.Field(&c.Stiffness, validation.Min(0.0)),
		validation.Field(&c.RestLength, validation.Min(0.0)),
		validation.Field(&c.MinDistance, validation.Min(0.0)),
		validation.Field(&c.KEThreshold, validation.Min(0.0)),
		validation.Field(&c.QuietIters, validation.Min(0)),
	)
}

// ViewportConfig holds the initial display bounds plus the camera
// parameters passed through to the viewport package.
type ViewportConfig struct {
	viewport.Config `yaml:",inline"`
	Rows            int `yaml:"rows"`
	Cols            int `yaml:"cols"`
}

// Validate validates the viewport configuration.
func (c *ViewportConfig) Validate() error {
	if c.MaxZoom != 0 && c.MaxZoom <= c.MinZoom {
		return fmt.Errorf("viewport: max_zoom %g must exceed min_zoom %g", c.MaxZoom, c.MinZoom)
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.MinZoom, validation.Min(0.0)),
		validation.Field(&c.Rows, validation.Min(0)),
		validation.Field(&c.Cols, validation.Min(0)),
	)
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
			Path: "./wisp.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Layout: layout.DefaultConfig(),
		Viewport: ViewportConfig{
			Config: viewport.DefaultConfig(),
			Rows:   24,
			Cols:   80,
		},
	}
}
