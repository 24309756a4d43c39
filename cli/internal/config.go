package cli

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerURLEnv overrides the server URL of the current context
const ServerURLEnv = "NOTEDESK_SERVER_URL"

// ConfigPathEnv overrides the location of the config file
const ConfigPathEnv = "NOTEDESK_CONFIG"

// Context represents a named configuration context (like kubectl contexts)
type Context struct {
	Server struct {
		URL       string        `yaml:"url"`
		Timeout   time.Duration `yaml:"timeout,omitempty"`
		RateLimit float64       `yaml:"rate_limit,omitempty"` // requests per second, 0 = unlimited
	} `yaml:"server"`
	Web struct {
		URL string `yaml:"url,omitempty"` // web app root used for note links
	} `yaml:"web,omitempty"`
	Rendering struct {
		Theme string `yaml:"theme"`
	} `yaml:"rendering"`
}

// Config represents the CLI configuration with multiple contexts
type Config struct {
	CurrentContext string              `yaml:"current-context"`
	Contexts       map[string]*Context `yaml:"contexts"`
}

// DefaultConfig returns the default configuration with a single "dev" context
func DefaultConfig() *Config {
	devContext := &Context{}
	devContext.Server.URL = "http://localhost:8000/api/"
	devContext.Server.Timeout = 30 * time.Second
	devContext.Rendering.Theme = "auto"

	return &Config{
		CurrentContext: "dev",
		Contexts: map[string]*Context{
			"dev": devContext,
		},
	}
}

// GetCurrentContext returns the current active context
func (c *Config) GetCurrentContext() (*Context, error) {
	if c.CurrentContext == "" {
		return nil, fmt.Errorf("no current context set")
	}

	ctx, ok := c.Contexts[c.CurrentContext]
	if !ok {
		return nil, fmt.Errorf("current context %q not found", c.CurrentContext)
	}

	return ctx, nil
}

// SetCurrentContext sets the current active context
func (c *Config) SetCurrentContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q does not exist", name)
	}
	c.CurrentContext = name
	return nil
}

// AddContext adds or updates a context
func (c *Config) AddContext(name string, ctx *Context) {
	if c.Contexts == nil {
		c.Contexts = make(map[string]*Context)
	}
	c.Contexts[name] = ctx
}

// DeleteContext removes a context
func (c *Config) DeleteContext(name string) error {
	if name == c.CurrentContext {
		return fmt.Errorf("cannot delete current context %q", name)
	}
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q does not exist", name)
	}
	delete(c.Contexts, name)
	return nil
}

// ServerURL returns the API base URL for the current context. The
// NOTEDESK_SERVER_URL environment variable takes precedence.
func (c *Config) ServerURL() (string, error) {
	if override := os.Getenv(ServerURLEnv); override != "" {
		return override, nil
	}
	ctx, err := c.GetCurrentContext()
	if err != nil {
		return "", err
	}
	if ctx.Server.URL == "" {
		return "", fmt.Errorf("context %q has no server url", c.CurrentContext)
	}
	return ctx.Server.URL, nil
}

// WebURL returns the web application root of the current context, or ""
// when none is configured
func (c *Config) WebURL() string {
	ctx, err := c.GetCurrentContext()
	if err != nil {
		return ""
	}
	return ctx.Web.URL
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	if path := os.Getenv(ConfigPathEnv); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".notedesk"), nil
}

// LoadConfig loads configuration from ~/.notedesk, creating it with
// defaults on first use
func LoadConfig() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		defaultConfig := DefaultConfig()
		if err := SaveConfig(defaultConfig); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return defaultConfig, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Ensure we have a valid current context
	if config.CurrentContext == "" && len(config.Contexts) > 0 {
		for name := range config.Contexts {
			config.CurrentContext = name
			break
		}
	}

	return &config, nil
}

// SaveConfig saves configuration to ~/.notedesk
func SaveConfig(config *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// validateServerURL checks that raw is an absolute http(s) URL
func validateServerURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid server url %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid server url %q: must be an absolute http or https URL", raw)
	}
	return nil
}
