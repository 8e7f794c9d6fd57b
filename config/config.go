// Package config loads tunables for cmd/p2cdemo from a YAML file with
// environment-variable overrides, following the teacher's default-then-env
// layering.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v9"
	"gopkg.in/yaml.v3"
)

// Config holds cmd/p2cdemo's runtime configuration.
type Config struct {
	ListenAddr string  `yaml:"listen_addr" env:"P2C_LISTEN_ADDR"`
	LogLevel   string  `yaml:"log_level" env:"P2C_LOG_LEVEL"`
	LogFile    string  `yaml:"log_file" env:"P2C_LOG_FILE"`

	UnderutilizedBelow float64 `yaml:"underutilized_below" env:"P2C_UNDERUTILIZED_BELOW"`
	LoadedAbove         float64 `yaml:"loaded_above" env:"P2C_LOADED_ABOVE"`
	Initial             float64 `yaml:"initial" env:"P2C_INITIAL"`
	Urgency             float64 `yaml:"urgency" env:"P2C_URGENCY"`

	BackendAddresses []string `yaml:"backend_addresses" env:"P2C_BACKEND_ADDRESSES" envSeparator:","`
}

// New loads Config from the YAML file at path (if it exists), applies
// environment-variable overrides, and validates the result. A missing file
// is not an error: defaults and environment variables still apply.
func New(path string) (*Config, error) {
	c := &Config{}
	c.setDefaults()

	if f, err := os.Open(path); err == nil {
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(c); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}

	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

func (c *Config) setDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.LogFile == "" {
		c.LogFile = "logs/p2cdemo.log"
	}
	if c.UnderutilizedBelow == 0 {
		c.UnderutilizedBelow = 1e-5
	}
	if c.LoadedAbove == 0 {
		c.LoadedAbove = 0.2
	}
	if c.Initial == 0 {
		c.Initial = 0.1
	}
	if c.Urgency == 0 {
		c.Urgency = 0.03
	}
	if len(c.BackendAddresses) == 0 {
		c.BackendAddresses = []string{"http://localhost:9001", "http://localhost:9002"}
	}
}

// Validate checks the assembled config is usable.
func (c *Config) Validate() error {
	if c.Urgency <= 0 || c.Urgency >= 1 {
		return fmt.Errorf("urgency must be in (0,1), got %v", c.Urgency)
	}
	if c.UnderutilizedBelow < 0 || c.UnderutilizedBelow >= c.LoadedAbove {
		return fmt.Errorf("underutilized_below must be < loaded_above, got %v >= %v", c.UnderutilizedBelow, c.LoadedAbove)
	}
	if c.LoadedAbove <= 0 || c.LoadedAbove > 1 {
		return fmt.Errorf("loaded_above must be in (0,1], got %v", c.LoadedAbove)
	}
	if len(c.BackendAddresses) == 0 {
		return fmt.Errorf("backend_addresses must contain at least one address")
	}
	return nil
}
