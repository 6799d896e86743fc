// Package config provides configuration management for the go-vmeter application.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all application configuration. It is read once at startup and
// treated as immutable for the life of the process.
type Config struct {
	// General settings
	LogLevel string `mapstructure:"log_level"`

	// Meter connection settings
	Meter struct {
		Host                string  `mapstructure:"host"`
		Port                int     `mapstructure:"port"`
		Scheme              string  `mapstructure:"scheme"`
		UnitID              uint8   `mapstructure:"unit_id"`
		TimeoutSeconds      float64 `mapstructure:"timeout_seconds"`
		PollIntervalSeconds float64 `mapstructure:"poll_interval_seconds"`
	} `mapstructure:"meter"`

	// Console display settings
	Display struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"display"`

	// HTTP API settings
	API struct {
		Enabled bool   `mapstructure:"enabled"`
		Host    string `mapstructure:"host"`
		Port    int    `mapstructure:"port"`
	} `mapstructure:"api"`

	// MQTT settings
	MQTT struct {
		Enabled  bool   `mapstructure:"enabled"`
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		Topic    string `mapstructure:"topic"`
		Retain   bool   `mapstructure:"retain"`

		// Home Assistant auto-discovery settings
		HomeAssistantAutoDiscovery struct {
			Enabled         bool   `mapstructure:"enabled"`
			DiscoveryPrefix string `mapstructure:"discovery_prefix"`
			DeviceName      string `mapstructure:"device_name"`
			DeviceID        string `mapstructure:"device_id"`
			RetainDiscovery bool   `mapstructure:"retain_discovery"`
		} `mapstructure:"homeassistant_auto_discovery"`
	} `mapstructure:"mqtt"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{
		LogLevel: "info",
	}

	// Default meter settings. The VM-3P75CT speaks Modbus over UDP on port
	// 502 and typically answers as unit 1; the vendor recommends polling
	// every 0.5-1.0 s.
	cfg.Meter.Host = "192.168.0.155"
	cfg.Meter.Port = 502
	cfg.Meter.Scheme = "udp"
	cfg.Meter.UnitID = 1
	cfg.Meter.TimeoutSeconds = 2.0
	cfg.Meter.PollIntervalSeconds = 1.0

	// Default display settings
	cfg.Display.Enabled = true

	// Default API settings
	cfg.API.Enabled = true
	cfg.API.Host = "0.0.0.0"
	cfg.API.Port = 8080

	// Default MQTT settings
	cfg.MQTT.Enabled = false
	cfg.MQTT.Host = "localhost"
	cfg.MQTT.Port = 1883
	cfg.MQTT.Topic = "energy/vm3p75ct"
	cfg.MQTT.Retain = false

	// Default Home Assistant auto-discovery settings
	cfg.MQTT.HomeAssistantAutoDiscovery.Enabled = false
	cfg.MQTT.HomeAssistantAutoDiscovery.DiscoveryPrefix = "homeassistant"
	cfg.MQTT.HomeAssistantAutoDiscovery.DeviceName = "VM-3P75CT"
	cfg.MQTT.HomeAssistantAutoDiscovery.DeviceID = "vm3p75ct"
	cfg.MQTT.HomeAssistantAutoDiscovery.RetainDiscovery = true

	return cfg
}

// Load reads the configuration from a file and environment variables.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Set up Viper
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Override with specific config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// Config file not found, use defaults
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			fmt.Println("No configuration file found, using defaults")
		} else {
			// Other errors (like invalid YAML) should be returned
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	// Bind environment variables
	v.SetEnvPrefix("VMETER")
	v.AutomaticEnv()

	// Unmarshal config
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for values the poller cannot run with.
func (c *Config) Validate() error {
	if c.Meter.Host == "" {
		return errors.New("meter host is required")
	}
	if c.Meter.Port <= 0 || c.Meter.Port > 65535 {
		return fmt.Errorf("invalid meter port %d", c.Meter.Port)
	}
	if c.Meter.Scheme != "udp" && c.Meter.Scheme != "tcp" {
		return fmt.Errorf("unsupported meter scheme %q (want udp or tcp)", c.Meter.Scheme)
	}
	if c.Meter.PollIntervalSeconds <= 0 {
		return fmt.Errorf("invalid poll interval %gs", c.Meter.PollIntervalSeconds)
	}
	if c.Meter.TimeoutSeconds <= 0 {
		return fmt.Errorf("invalid read timeout %gs", c.Meter.TimeoutSeconds)
	}
	return nil
}

// MeterURL returns the transport endpoint, e.g. "udp://192.168.0.155:502".
func (c *Config) MeterURL() string {
	return fmt.Sprintf("%s://%s:%d", c.Meter.Scheme, c.Meter.Host, c.Meter.Port)
}

// PollInterval returns the poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Meter.PollIntervalSeconds * float64(time.Second))
}

// ReadTimeout returns the per-read transport timeout as a duration.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Meter.TimeoutSeconds * float64(time.Second))
}

// Print displays the current configuration.
func (c *Config) Print() {
	logger := log.With().Str("component", "config").Logger()
	logger.Info().Msg("go-vmeter Configuration:")
	logger.Info().Msg("-----------------------------")
	logger.Info().Str("log_level", c.LogLevel).Msg("Log Level")

	logger.Info().
		Str("url", c.MeterURL()).
		Uint8("unit_id", c.Meter.UnitID).
		Dur("poll_interval", c.PollInterval()).
		Dur("read_timeout", c.ReadTimeout()).
		Msg("Meter")

	logger.Info().Bool("enabled", c.Display.Enabled).Msg("Display Enabled")

	logger.Info().Bool("enabled", c.API.Enabled).Msg("API Enabled")
	if c.API.Enabled {
		logger.Info().
			Str("host", c.API.Host).
			Int("port", c.API.Port).
			Msg("API Server")
	}

	logger.Info().Bool("enabled", c.MQTT.Enabled).Msg("MQTT Enabled")
	if c.MQTT.Enabled {
		logger.Info().
			Str("host", c.MQTT.Host).
			Int("port", c.MQTT.Port).
			Str("topic", c.MQTT.Topic).
			Bool("retain", c.MQTT.Retain).
			Msg("MQTT Configuration")

		ha := c.MQTT.HomeAssistantAutoDiscovery
		if ha.Enabled {
			logger.Info().
				Str("discovery_prefix", ha.DiscoveryPrefix).
				Str("device_name", ha.DeviceName).
				Str("device_id", ha.DeviceID).
				Bool("retain_discovery", ha.RetainDiscovery).
				Msg("Home Assistant auto-discovery")
		}
	}

	logger.Info().Msg("-----------------------------")
}
