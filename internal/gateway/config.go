package gateway

import (
	"fmt"
	"net"
	"time"

	"optbrief/internal/pipeline"
)

// Config holds HTTP gateway configuration, the `gateway:` section of the
// configuration file.
type Config struct {
	Bind            string            `yaml:"bind"`
	Auth            AuthConfig        `yaml:"auth"`
	ReadTimeout     pipeline.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout    pipeline.Duration `yaml:"write_timeout,omitempty"`
	ShutdownTimeout pipeline.Duration `yaml:"shutdown_timeout,omitempty"`
}

// ApplyDefaults fills zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = pipeline.Duration(10 * time.Second)
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = pipeline.Duration(30 * time.Second)
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = pipeline.Duration(5 * time.Second)
	}
}

// Validate checks the bind address.
func (c *Config) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", c.Bind); err != nil {
		return fmt.Errorf("gateway: invalid bind address %q: %w", c.Bind, err)
	}
	return nil
}

// AuthConfig protects the API with a bearer token. The token usually
// comes from the environment via ${VAR} expansion in the configuration
// file.
type AuthConfig struct {
	Token string `yaml:"token"`
}

// IsConfigured reports whether API auth is enabled. The API routes are
// not mounted without it.
func (a AuthConfig) IsConfigured() bool {
	return a.Token != ""
}
