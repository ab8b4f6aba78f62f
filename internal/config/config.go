package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/jgoulah/gridexporter/internal/auth"
	"github.com/jgoulah/gridexporter/internal/nep"
	"github.com/jgoulah/gridexporter/pkg/models"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultUserPoolID    = "us-west-1_9FOe8eHZU"
	DefaultClientID      = "2cubklfeh6j7qe9b46h7fs9k4t"
	DefaultListenAddress = ":8000"
	DefaultMetricsPath   = "/metrics"
	DefaultTopicPrefix   = "nep"
	DefaultSchedule      = "@hourly"
)

// Config holds the application configuration
type Config struct {
	Cognito  CognitoConfig  `yaml:"cognito"`
	API      APIConfig      `yaml:"api"`
	Exporter ExporterConfig `yaml:"exporter"`
	MQTT     MQTTConfig     `yaml:"mqtt,omitempty"`
}

// CognitoConfig identifies the user pool app client and the login
type CognitoConfig struct {
	Region     string `yaml:"region,omitempty"` // defaults to the user pool id prefix
	UserPoolID string `yaml:"user_pool_id"`
	ClientID   string `yaml:"client_id"`
	AuthFlow   string `yaml:"auth_flow"` // USER_SRP_AUTH or USER_PASSWORD_AUTH
	Username   string `yaml:"username,omitempty"`
	Password   string `yaml:"password,omitempty"`
}

// APIConfig holds the NEP endpoints and query shaping
type APIConfig struct {
	AccountURL  string        `yaml:"account_url"`
	UsageURL    string        `yaml:"usage_url"`
	Timeout     time.Duration `yaml:"timeout"`
	HistoryDays int           `yaml:"history_days"`
	Frequency   string        `yaml:"frequency"`
	Services    []string      `yaml:"services"`
}

// ExporterConfig controls the metrics HTTP server
type ExporterConfig struct {
	ListenAddress string `yaml:"listen_address"`
	MetricsPath   string `yaml:"metrics_path"`
}

// MQTTConfig holds MQTT broker configuration for the publish command
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // host:port
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
	Schedule    string `yaml:"schedule,omitempty"` // cron expression
}

// Default returns a config with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads the config file, applies environment overrides and then
// defaults. A missing file is not an error.
func Load(configPath string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case os.IsNotExist(err):
		// environment only
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg.ApplyEnv()
	cfg.ApplyDefaults()
	return &cfg, nil
}

// LoadDotEnv loads variables from a .env file into the process environment.
// Variables already set are not overwritten and a missing file is ignored.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	// may hold the account password
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

// ApplyDefaults fills every unset field with its default
func (c *Config) ApplyDefaults() {
	if c.Cognito.UserPoolID == "" {
		c.Cognito.UserPoolID = DefaultUserPoolID
	}
	if c.Cognito.ClientID == "" {
		c.Cognito.ClientID = DefaultClientID
	}
	if c.Cognito.Region == "" {
		c.Cognito.Region = auth.RegionFromPoolID(c.Cognito.UserPoolID)
	}
	if c.Cognito.AuthFlow == "" {
		c.Cognito.AuthFlow = auth.AuthFlowSRP
	}

	if c.API.AccountURL == "" {
		c.API.AccountURL = nep.DefaultAccountURL
	}
	if c.API.UsageURL == "" {
		c.API.UsageURL = nep.DefaultUsageURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = nep.DefaultTimeout
	}
	if c.API.HistoryDays == 0 {
		c.API.HistoryDays = nep.DefaultHistoryDays
	}
	if c.API.Frequency == "" {
		c.API.Frequency = nep.FrequencyMonthly
	}
	if len(c.API.Services) == 0 {
		for _, s := range models.DefaultServices {
			c.API.Services = append(c.API.Services, string(s))
		}
	}

	if c.Exporter.ListenAddress == "" {
		c.Exporter.ListenAddress = DefaultListenAddress
	}
	if c.Exporter.MetricsPath == "" {
		c.Exporter.MetricsPath = DefaultMetricsPath
	}

	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = DefaultTopicPrefix
	}
	if c.MQTT.Schedule == "" {
		c.MQTT.Schedule = DefaultSchedule
	}
}

// Validate reports the first problem that would stop the exporter from
// authenticating or querying the API
func (c *Config) Validate() error {
	if c.Cognito.Username == "" || c.Cognito.Password == "" {
		return errors.New("cognito username and password are required (set USERNAME/PASSWORD or cognito.username/cognito.password)")
	}
	if c.Cognito.UserPoolID == "" || c.Cognito.ClientID == "" {
		return errors.New("cognito user_pool_id and client_id are required")
	}
	if c.Cognito.Region == "" {
		return fmt.Errorf("cannot determine cognito region from user pool id %q", c.Cognito.UserPoolID)
	}
	if c.Cognito.AuthFlow != auth.AuthFlowSRP && c.Cognito.AuthFlow != auth.AuthFlowPassword {
		return fmt.Errorf("cognito auth_flow must be %s or %s, got %q", auth.AuthFlowSRP, auth.AuthFlowPassword, c.Cognito.AuthFlow)
	}
	if c.API.AccountURL == "" || c.API.UsageURL == "" {
		return errors.New("api account_url and usage_url are required")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api timeout must be positive, got %s", c.API.Timeout)
	}
	if c.API.HistoryDays <= 0 {
		return fmt.Errorf("api history_days must be positive, got %d", c.API.HistoryDays)
	}
	if _, err := c.ServiceList(); err != nil {
		return err
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return errors.New("MQTT broker address is required when enabled")
	}
	return nil
}

// ServiceList returns the configured services in collection order
func (c *Config) ServiceList() ([]models.Service, error) {
	services := make([]models.Service, 0, len(c.API.Services))
	seen := make(map[models.Service]bool)
	for _, name := range c.API.Services {
		s, err := models.ParseService(name)
		if err != nil {
			return nil, fmt.Errorf("api services: %w", err)
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		services = append(services, s)
	}
	if len(services) == 0 {
		return nil, errors.New("api services must not be empty")
	}
	return services, nil
}
