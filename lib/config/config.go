// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the config file when --config is absent.
const EnvironmentVariable = "HOTSWAP_CONFIG"

// ArtifactExtension is the file extension of Go plugin artifacts.
const ArtifactExtension = ".so"

// Config is the complete hotswap configuration.
type Config struct {
	// ModuleName identifies the reloadable unit. It names the artifact
	// (<module_name>.so) and the registration symbol the coordinator
	// looks up. Default: the working directory's base name.
	ModuleName string `yaml:"module_name" json:"module_name"`

	// WatchDirectory is the source tree the build process watches.
	// Default: the working directory.
	WatchDirectory string `yaml:"watch_directory" json:"watch_directory"`

	// BuildPackage is the Go package built into the plugin, relative
	// to WatchDirectory. Default: ".".
	BuildPackage string `yaml:"build_package" json:"build_package"`

	// BuildOutputDirectory receives the artifact. Loaded copies are
	// moved into its .loaded subdirectory. Default: ./target.
	BuildOutputDirectory string `yaml:"build_output_directory" json:"build_output_directory"`

	// BuildCommand overrides the supervised build process. Empty means
	// "run this binary's watch subcommand".
	BuildCommand []string `yaml:"build_command,omitempty" json:"build_command,omitempty"`

	// BuildFlags are extra arguments passed to "go build".
	BuildFlags []string `yaml:"build_flags,omitempty" json:"build_flags,omitempty"`

	// StateDirectory holds the reload journal and the state spill
	// file. Empty disables both. Default: ./.hotswap.
	StateDirectory string `yaml:"state_directory" json:"state_directory"`

	// Debounce is the minimum quiet period before a new artifact is
	// swapped in, measured from both the previous swap and the
	// artifact's own modification time. Default: 1s.
	Debounce string `yaml:"debounce" json:"debounce"`

	// TickInterval is the period of the application tick loop.
	// Default: 16ms.
	TickInterval string `yaml:"tick_interval" json:"tick_interval"`

	// LogLevel is one of debug, info, warn, error. Default: info.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// workingDirectory is what the defaults and ${PWD} resolve against.
	workingDirectory string
}

// Default returns the configuration derived from workingDirectory.
func Default(workingDirectory string) *Config {
	return &Config{
		ModuleName:           ModuleNameFromDirectory(workingDirectory),
		WatchDirectory:       workingDirectory,
		BuildPackage:         ".",
		BuildOutputDirectory: filepath.Join(workingDirectory, "target"),
		StateDirectory:       filepath.Join(workingDirectory, ".hotswap"),
		Debounce:             "1s",
		TickInterval:         "16ms",
		LogLevel:             "info",
		workingDirectory:     workingDirectory,
	}
}

// Load reads the file named by HOTSWAP_CONFIG, or returns the defaults
// when the variable is unset.
func Load(workingDirectory string) (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		cfg := Default(workingDirectory)
		cfg.expandVariables()
		return cfg, cfg.Validate()
	}
	return LoadFile(path, workingDirectory)
}

// LoadFile reads path over the defaults for workingDirectory, expands
// variables, and validates the result.
func LoadFile(path, workingDirectory string) (*Config, error) {
	cfg := Default(workingDirectory)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := cfg.decode(path, data); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) decode(path string, data []byte) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return json.Unmarshal(jsonc.ToJSON(data), c)
	default:
		return yaml.Unmarshal(data, c)
	}
}

var variablePattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func (c *Config) expandVariables() {
	variables := map[string]string{
		"PWD":    c.workingDirectory,
		"MODULE": c.ModuleName,
		"HOME":   os.Getenv("HOME"),
	}
	c.WatchDirectory = expand(c.WatchDirectory, variables)
	c.BuildOutputDirectory = expand(c.BuildOutputDirectory, variables)
	c.StateDirectory = expand(c.StateDirectory, variables)
}

func expand(s string, variables map[string]string) string {
	return variablePattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := variablePattern.FindStringSubmatch(match)
		name, fallback := parts[1], parts[2]
		if value, ok := variables[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return fallback
	})
}

// Validate checks field values and makes relative paths absolute
// against the working directory.
func (c *Config) Validate() error {
	var errs []error

	if c.ModuleName == "" {
		errs = append(errs, errors.New("module_name is required"))
	} else if !validModuleName(c.ModuleName) {
		errs = append(errs, fmt.Errorf("module_name %q must contain only letters, digits, '-' and '_' and start with a letter", c.ModuleName))
	}
	if c.WatchDirectory == "" {
		errs = append(errs, errors.New("watch_directory is required"))
	}
	if c.BuildOutputDirectory == "" {
		errs = append(errs, errors.New("build_output_directory is required"))
	}
	if _, err := c.DebounceDuration(); err != nil {
		errs = append(errs, err)
	}
	if interval, err := c.TickDuration(); err != nil {
		errs = append(errs, err)
	} else if interval <= 0 {
		errs = append(errs, fmt.Errorf("tick_interval must be positive, got %s", c.TickInterval))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", c.LogLevel))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	c.WatchDirectory = c.absolute(c.WatchDirectory)
	c.BuildOutputDirectory = c.absolute(c.BuildOutputDirectory)
	if c.StateDirectory != "" {
		c.StateDirectory = c.absolute(c.StateDirectory)
	}
	return nil
}

func (c *Config) absolute(path string) string {
	if filepath.IsAbs(path) || c.workingDirectory == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(c.workingDirectory, path)
}

// DebounceDuration parses Debounce. Negative values are rejected.
func (c *Config) DebounceDuration() (time.Duration, error) {
	duration, err := time.ParseDuration(c.Debounce)
	if err != nil {
		return 0, fmt.Errorf("debounce: %w", err)
	}
	if duration < 0 {
		return 0, fmt.Errorf("debounce must not be negative, got %s", c.Debounce)
	}
	return duration, nil
}

// TickDuration parses TickInterval.
func (c *Config) TickDuration() (time.Duration, error) {
	duration, err := time.ParseDuration(c.TickInterval)
	if err != nil {
		return 0, fmt.Errorf("tick_interval: %w", err)
	}
	return duration, nil
}

// ArtifactPath is where the build writes the module.
func (c *Config) ArtifactPath() string {
	return filepath.Join(c.BuildOutputDirectory, c.ModuleName+ArtifactExtension)
}

// PrivateDirectory is where loaded artifacts are moved before opening.
func (c *Config) PrivateDirectory() string {
	return filepath.Join(c.BuildOutputDirectory, ".loaded")
}

// JournalPath is the reload journal file, or "" when StateDirectory is
// empty.
func (c *Config) JournalPath() string {
	if c.StateDirectory == "" {
		return ""
	}
	return filepath.Join(c.StateDirectory, "reload-journal.cbor")
}

// SpillPath is the state spill file, or "" when StateDirectory is
// empty.
func (c *Config) SpillPath() string {
	if c.StateDirectory == "" {
		return ""
	}
	return filepath.Join(c.StateDirectory, "state-spill.cbor.zst")
}

// StatusPath is the file a running process describes itself in, or ""
// when StateDirectory is empty.
func (c *Config) StatusPath() string {
	if c.StateDirectory == "" {
		return ""
	}
	return filepath.Join(c.StateDirectory, "status.cbor")
}

// EnsureDirectories creates the output, private and state directories.
func (c *Config) EnsureDirectories() error {
	for _, path := range []string{c.BuildOutputDirectory, c.PrivateDirectory(), c.StateDirectory} {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}

// ModuleNameFromDirectory derives a module name from a directory's base
// name, replacing characters that are not valid in a module name with
// '_'. Returns "module" when nothing usable remains.
func ModuleNameFromDirectory(directory string) string {
	base := filepath.Base(directory)
	var builder strings.Builder
	for _, r := range base {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '-', r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('_')
		}
	}
	name := strings.TrimLeft(builder.String(), "_-0123456789")
	if name == "" {
		return "module"
	}
	return name
}

func validModuleName(name string) bool {
	for i, r := range name {
		if r >= unicode.MaxASCII {
			return false
		}
		if i == 0 && !unicode.IsLetter(r) {
			return false
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return false
		}
	}
	return name != ""
}
