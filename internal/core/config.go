package core

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/jo-hoe/imagebot/internal/raster"
	"github.com/jo-hoe/imagebot/internal/session"
	"github.com/jo-hoe/imagebot/internal/transform"
)

// EnvPrefix marks environment variables that override the config file.
// Nested keys are separated by a double underscore, e.g. IMAGEBOT_LOG__LEVEL.
const EnvPrefix = "IMAGEBOT_"

const (
	defaultPort           = 8080
	defaultMaxUploadBytes = 20 << 20
)

// CommandConfig represents a generic command configuration
type CommandConfig struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:",inline"`
}

type OutputConfig struct {
	Format  string `yaml:"format" koanf:"format"`
	Quality int    `yaml:"quality" koanf:"quality"`
}

type LogConfig struct {
	Level string `yaml:"level" koanf:"level"`
	JSON  bool   `yaml:"json" koanf:"json"`
}

type ServiceConfig struct {
	Port           int                 `yaml:"port" koanf:"port"`
	WebhookSecret  string              `yaml:"webhookSecret" koanf:"webhooksecret"`
	MaxUploadBytes int64               `yaml:"maxUploadBytes" koanf:"maxuploadbytes"`
	MaxImagePixels int                 `yaml:"maxImagePixels" koanf:"maximagepixels"`
	Output         OutputConfig        `yaml:"output" koanf:"output"`
	Log            LogConfig           `yaml:"log" koanf:"log"`
	SessionStore   session.StoreConfig `yaml:"sessionStore" koanf:"sessionstore"`
	Commands       []CommandConfig     `yaml:"commands" koanf:"-"`
}

// LoadConfig loads configuration from the specified YAML file and applies
// environment overrides. An empty path skips the file.
func LoadConfig(configPath string) (*ServiceConfig, error) {
	var config ServiceConfig

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	}

	if err := applyEnvOverrides(&config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// applyEnvOverrides overlays IMAGEBOT_* environment variables onto config.
func applyEnvOverrides(config *ServiceConfig) error {
	k := koanf.New(".")
	provider := env.Provider(EnvPrefix, ".", func(key string) string {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	})
	if err := k.Load(provider, nil); err != nil {
		return err
	}
	if len(k.Keys()) == 0 {
		return nil
	}
	return k.Unmarshal("", config)
}

func applyDefaults(config *ServiceConfig) {
	if config.Port == 0 {
		config.Port = defaultPort
	}
	if config.MaxUploadBytes == 0 {
		config.MaxUploadBytes = defaultMaxUploadBytes
	}
	if config.MaxImagePixels == 0 {
		config.MaxImagePixels = raster.DefaultMaxPixels
	}
	if config.Output.Format == "" {
		config.Output.Format = raster.FormatPNG
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.SessionStore.Type == "" {
		config.SessionStore.Type = session.StoreTypeMemory
	}
}

// Validate checks the configuration without connecting to anything.
func (c *ServiceConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.MaxUploadBytes < 0 {
		return fmt.Errorf("maxUploadBytes must not be negative, got %d", c.MaxUploadBytes)
	}
	if c.MaxImagePixels < 0 {
		return fmt.Errorf("maxImagePixels must not be negative, got %d", c.MaxImagePixels)
	}
	if _, err := raster.NewEncoder(c.Output.Format, c.Output.Quality); err != nil {
		return fmt.Errorf("invalid output: %w", err)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if !slices.Contains(session.SupportedStoreTypes(), c.SessionStore.Type) {
		return fmt.Errorf("unsupported session store type: %s", c.SessionStore.Type)
	}
	if c.SessionStore.TTL < 0 {
		return fmt.Errorf("session store ttl must not be negative, got %s", c.SessionStore.TTL)
	}
	if err := validateCommands(c.Commands); err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}
	return nil
}

// validateCommands ensures all command configurations name a known command
// at most once
func validateCommands(commands []CommandConfig) error {
	seen := make(map[transform.Command]bool)

	for i, cmd := range commands {
		if cmd.Name == "" {
			return fmt.Errorf("command at index %d has empty name", i)
		}

		parsed, err := transform.ParseCommand(cmd.Name)
		if err != nil {
			return fmt.Errorf("command at index %d: %w", i, err)
		}
		if seen[parsed] {
			return fmt.Errorf("duplicate command name: %s", cmd.Name)
		}
		seen[parsed] = true
	}

	return nil
}

// TransformConfigs converts the command section for the transform registry.
func (c *ServiceConfig) TransformConfigs() []transform.CommandConfig {
	configs := make([]transform.CommandConfig, 0, len(c.Commands))
	for _, cmd := range c.Commands {
		configs = append(configs, transform.CommandConfig{Name: cmd.Name, Params: cmd.Params})
	}
	return configs
}
