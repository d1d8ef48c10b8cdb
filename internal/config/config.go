// Package config defines the YAML-loaded settings for the sender and
// receiver CLIs, mirroring the layering of a flag-provided path falling
// back to a sane default when no file is given.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// NetworkConfig addresses the UDP carrier. Destination and BindAddress
// are not used on a FileChannel run.
type NetworkConfig struct {
	Destination string `yaml:"destination"`
	BindAddress string `yaml:"bind_address"`
	Port        uint16 `yaml:"port"`
}

// LoggingConfig throttles progress lines on both CLIs.
type LoggingConfig struct {
	ProgressInterval uint32 `yaml:"progress_interval"`
}

// Config is the sender CLI's configuration.
type Config struct {
	Network          NetworkConfig `yaml:"network"`
	Logging          LoggingConfig `yaml:"logging"`
	BlockSize        uint16        `yaml:"block_size"`
	MetadataInterval uint32        `yaml:"metadata_interval"`
	RateLimitKbps    uint32        `yaml:"rate_limit_kbps,omitempty"`
	FilePath         string        `yaml:"file"`
	OutputFile       string        `yaml:"output_file,omitempty"`
}

// DefaultConfig mirrors a sender's DefaultConfig(): good-enough values
// for a local test run with no config file present.
func DefaultConfig() Config {
	return Config{
		Network: NetworkConfig{
			Destination: "127.0.0.1",
			Port:        9420,
		},
		Logging: LoggingConfig{
			ProgressInterval: 50,
		},
		BlockSize:        512,
		MetadataInterval: 10,
	}
}

// ReceiverConfig is the receiver CLI's configuration.
type ReceiverConfig struct {
	Network   NetworkConfig `yaml:"network"`
	Logging   LoggingConfig `yaml:"logging"`
	OutputDir string        `yaml:"output_dir"`
	InputFile string        `yaml:"input_file,omitempty"`
}

// DefaultReceiverConfig mirrors DefaultConfig for the receive side.
func DefaultReceiverConfig() ReceiverConfig {
	return ReceiverConfig{
		Network: NetworkConfig{
			BindAddress: "0.0.0.0",
			Port:        9420,
		},
		Logging: LoggingConfig{
			ProgressInterval: 50,
		},
		OutputDir: ".",
	}
}

// Load reads and parses a YAML file at path into a Config.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg, nil
}

// LoadReceiver reads and parses a YAML file at path into a ReceiverConfig.
func LoadReceiver(path string) (ReceiverConfig, error) {
	cfg := DefaultReceiverConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return ReceiverConfig{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return ReceiverConfig{}, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg, nil
}
