// Package config loads the cudaext configuration file
// (~/.config/cudaext/config.yaml).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	cudaext "github.com/contriboss/cuda-extension-go"
)

// Defaults
const (
	DefaultPython    = "python3"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Config holds user defaults. Command-line flags that are explicitly set
// win over every field.
type Config struct {
	// Toolkit discovery
	OverrideEnv    string `yaml:"override_env"`
	DeviceCompiler string `yaml:"device_compiler"`

	// Host toolchain
	HostCompiler     string   `yaml:"host_compiler"`
	HostFlags        []string `yaml:"host_flags"`
	Python           string   `yaml:"python"`
	BindingGenerator []string `yaml:"binding_generator"`

	BuildDir string `yaml:"build_dir"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the built-in configuration.
//
// The host compiler is $CXX when set, c++ otherwise. DeviceCompiler is left
// empty so toolkit discovery uses the platform binary name.
func Default() Config {
	host := cudaext.DefaultHostCompiler
	if cxx := os.Getenv("CXX"); cxx != "" {
		host = cxx
	}

	return Config{
		OverrideEnv:      cudaext.DefaultOverrideEnv,
		HostCompiler:     host,
		Python:           DefaultPython,
		BindingGenerator: cudaext.DefaultBindingGenerator().Command,
		BuildDir:         cudaext.DefaultBuildDir,
		LogLevel:         DefaultLogLevel,
		LogFormat:        DefaultLogFormat,
	}
}

// Path returns the default config file location, or "" when the user
// config directory is unknown.
func Path() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "cudaext", "config.yaml")
}

// Load reads path over Default. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.merge(file)
	return cfg, nil
}

// merge copies the fields set in other.
func (c *Config) merge(other Config) {
	if other.OverrideEnv != "" {
		c.OverrideEnv = other.OverrideEnv
	}
	if other.DeviceCompiler != "" {
		c.DeviceCompiler = other.DeviceCompiler
	}
	if other.HostCompiler != "" {
		c.HostCompiler = other.HostCompiler
	}
	if other.HostFlags != nil {
		c.HostFlags = other.HostFlags
	}
	if other.Python != "" {
		c.Python = other.Python
	}
	if len(other.BindingGenerator) > 0 {
		c.BindingGenerator = other.BindingGenerator
	}
	if other.BuildDir != "" {
		c.BuildDir = other.BuildDir
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
}

// LocateOptions returns the toolkit discovery options for c.
func (c Config) LocateOptions() cudaext.LocateOptions {
	return cudaext.LocateOptions{
		OverrideEnv:  c.OverrideEnv,
		CompilerName: c.DeviceCompiler,
	}
}

// Binding returns the binding generator for c.
func (c Config) Binding() *cudaext.BindingGenerator {
	gen := cudaext.DefaultBindingGenerator()
	if len(c.BindingGenerator) > 0 && !slices.Equal(c.BindingGenerator, gen.Command) {
		gen.Command = append([]string{}, c.BindingGenerator...)
		gen.Name = gen.Command[0]
		gen.Tools = []cudaext.ToolRequirement{{Name: gen.Command[0], Purpose: "binding source translator"}}
	}
	return gen
}
