// Package config loads the seqneck configuration from YAML or TOML files and
// the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/seqneck/internal/neck"
	seqnn "github.com/born-ml/seqneck/internal/nn"
)

// Backend names.
const (
	BackendCPU    = "cpu"
	BackendWebGPU = "webgpu"
)

// Environment variables layered over the file.
const (
	EnvBackend    = "SEQNECK_BACKEND"
	EnvCheckpoint = "SEQNECK_CHECKPOINT"
	EnvHiddenSize = "SEQNECK_HIDDEN_SIZE"
)

// Format is a configuration file syntax.
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

// FormatFor picks the syntax from the file extension; anything other than
// .toml is read as YAML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Config is the top-level configuration.
type Config struct {
	Backend    string `yaml:"backend" toml:"backend"`
	Neck       Neck   `yaml:"neck" toml:"neck"`
	Checkpoint string `yaml:"checkpoint" toml:"checkpoint"`
}

// Neck selects and sizes the decoder.
type Neck struct {
	Type       string `yaml:"type" toml:"type"`
	InChannels int    `yaml:"in_channels" toml:"in_channels"`
	HiddenSize int    `yaml:"hidden_size" toml:"hidden_size"`
	Cell       string `yaml:"cell" toml:"cell"`
}

// Default returns the configuration used for unset fields.
func Default() Config {
	return Config{
		Backend: BackendCPU,
		Neck: Neck{
			Type:       string(neck.KindRecurrent),
			HiddenSize: neck.DefaultHiddenSize,
			Cell:       seqnn.LSTM.String(),
		},
	}
}

// Load reads path, applies defaults and environment overrides, and validates
// the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data, FormatFor(path))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data, applies defaults and environment overrides, and
// validates the result.
func Parse(data []byte, format Format) (Config, error) {
	cfg := Default()

	switch format {
	case FormatTOML:
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return Config{}, fmt.Errorf("parse toml: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse yaml: %w", err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func clean(key string) string {
	return strings.Trim(os.Getenv(key), "\"' ")
}

// ApplyEnv overrides fields from SEQNECK_* environment variables.
func (c *Config) ApplyEnv() error {
	if b := clean(EnvBackend); b != "" {
		c.Backend = strings.ToLower(b)
	}
	if ckpt := clean(EnvCheckpoint); ckpt != "" {
		c.Checkpoint = ckpt
	}
	if hs := clean(EnvHiddenSize); hs != "" {
		n, err := strconv.Atoi(hs)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvHiddenSize, err)
		}
		c.Neck.HiddenSize = n
	}
	return nil
}

// Validate checks every field and reports all problems at once.
func (c Config) Validate() error {
	var errs []error

	switch c.Backend {
	case BackendCPU, BackendWebGPU:
	default:
		errs = append(errs, fmt.Errorf("backend: unknown backend %q (want cpu or webgpu)", c.Backend))
	}

	if _, err := c.Neck.Build(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Build converts the neck section into a decoder configuration.
func (n Neck) Build() (neck.Config, error) {
	kind, err := neck.ParseKind(n.Type)
	if err != nil {
		return neck.Config{}, fmt.Errorf("neck.type: %w", err)
	}

	cell, err := seqnn.ParseCellKind(n.Cell)
	if err != nil {
		return neck.Config{}, fmt.Errorf("neck.cell: %w", err)
	}

	if n.InChannels <= 0 {
		return neck.Config{}, fmt.Errorf("neck.in_channels: must be positive, got %d", n.InChannels)
	}
	if n.HiddenSize <= 0 {
		return neck.Config{}, fmt.Errorf("neck.hidden_size: must be positive, got %d", n.HiddenSize)
	}

	return neck.Config{
		Kind:       kind,
		InChannels: n.InChannels,
		HiddenSize: n.HiddenSize,
		Cell:       cell,
	}, nil
}
