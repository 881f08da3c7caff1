package core

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jo-hoe/pngcompress/internal/backend/commands"
	"github.com/jo-hoe/pngcompress/internal/backend/commandstructure"
	"gopkg.in/yaml.v3"
)

// CommandConfig represents a generic command configuration
type CommandConfig struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:",inline"`
}

type ServiceConfig struct {
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	FetchTimeout   time.Duration `yaml:"fetchTimeout"`
	MaxImageBytes  int64         `yaml:"maxImageBytes"`
	MaxImagePixels int           `yaml:"maxImagePixels"`

	MaxWidth         int `yaml:"maxWidth"`
	Quality          int `yaml:"quality"`
	CompressionLevel int `yaml:"compressionLevel"`

	SVGFallbackWidth  int `yaml:"svgFallbackWidth"`
	SVGFallbackHeight int `yaml:"svgFallbackHeight"`

	// Commands replaces the default width limit and palette pipeline when set
	Commands []CommandConfig `yaml:"commands"`
}

// DefaultConfig returns the configuration used when no config file is present
func DefaultConfig() *ServiceConfig {
	return &ServiceConfig{
		Port:              8080,
		LogLevel:          "info",
		FetchTimeout:      30 * time.Second,
		MaxImageBytes:     32 << 20,
		MaxImagePixels:    100_000_000,
		MaxWidth:          commands.DefaultMaxWidth,
		Quality:           commands.DefaultQuality,
		CompressionLevel:  commands.DefaultCompressionLevel,
		SVGFallbackWidth:  1024,
		SVGFallbackHeight: 1024,
	}
}

// LoadConfig loads configuration from the specified YAML file.
// Keys missing from the file keep their default values.
func LoadConfig(configPath string) (*ServiceConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	config := DefaultConfig()
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", configPath, err)
	}

	return config, nil
}

// Validate checks value ranges and the command list
func (c *ServiceConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.FetchTimeout < 0 {
		return fmt.Errorf("fetchTimeout must not be negative, got %s", c.FetchTimeout)
	}
	if c.MaxImageBytes < 0 {
		return fmt.Errorf("maxImageBytes must not be negative, got %d", c.MaxImageBytes)
	}
	if c.MaxImagePixels < 0 {
		return fmt.Errorf("maxImagePixels must not be negative, got %d", c.MaxImagePixels)
	}
	if c.MaxWidth <= 0 {
		return fmt.Errorf("maxWidth must be positive, got %d", c.MaxWidth)
	}
	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("quality must be between 1 and 100, got %d", c.Quality)
	}
	if c.CompressionLevel < 0 || c.CompressionLevel > 9 {
		return fmt.Errorf("compressionLevel must be between 0 and 9, got %d", c.CompressionLevel)
	}
	if c.SVGFallbackWidth < 0 || c.SVGFallbackHeight < 0 {
		return fmt.Errorf("svg fallback size must not be negative, got %dx%d", c.SVGFallbackWidth, c.SVGFallbackHeight)
	}
	if err := validateCommands(c.Commands); err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}
	return nil
}

// SlogLevel parses LogLevel; an empty value means info
func (c *ServiceConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid logLevel %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// PipelineCommands returns the configured commands, or the default pipeline
// derived from MaxWidth and Quality
func (c *ServiceConfig) PipelineCommands() []commandstructure.CommandConfig {
	if len(c.Commands) == 0 {
		return []commandstructure.CommandConfig{
			{Name: "WidthLimitCommand", Params: map[string]any{"maxWidth": c.MaxWidth}},
			{Name: "PaletteCommand", Params: map[string]any{"quality": c.Quality}},
		}
	}

	configs := make([]commandstructure.CommandConfig, len(c.Commands))
	for i, cmd := range c.Commands {
		configs[i] = commandstructure.CommandConfig{Name: cmd.Name, Params: cmd.Params}
	}
	return configs
}

// validateCommands ensures all command configurations have required fields
func validateCommands(commands []CommandConfig) error {
	seenNames := make(map[string]bool)

	for i, cmd := range commands {
		if cmd.Name == "" {
			return fmt.Errorf("command at index %d has empty name", i)
		}

		if seenNames[cmd.Name] {
			return fmt.Errorf("duplicate command name: %s", cmd.Name)
		}
		seenNames[cmd.Name] = true

		if !commandstructure.DefaultRegistry.IsRegistered(cmd.Name) {
			return fmt.Errorf("command at index %d: unknown command %s", i, cmd.Name)
		}
	}

	return nil
}
