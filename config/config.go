// Package config provides standardized runtime configuration.
//
// Settings live in a TOML file with one section per environment. The
// `default` section is always loaded; a section named by the `<PREFIX>ENV`
// environment variable is merged over it, and individual environment
// variables carrying the prefix override both.
package config

import (
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	koanffs "github.com/knadh/koanf/providers/fs"

	"github.com/datapipe-labs/dp-go-common/xerrors/errclass"
	"github.com/datapipe-labs/dp-go-common/xerrors/stacktrace"
)

const (
	defaultEnv           = "default"
	defaultEnvPrefix     = "DP_"
	defaultEnvSeparator  = "_"
	defaultConfSeparator = "."
	defaultSettingsPath  = "data/settings.toml"

	envVarName = "ENV"
)

type options struct {
	defaultEnv   string
	envPrefix    string
	filepath     string
	separator    string
	envSeparator string
}

// Option is an option func for NewConfiguration.
type Option func(options *options) error

// WithDefaultEnv sets the name of the default environment.
func WithDefaultEnv(env string) Option {
	return func(options *options) error {
		options.defaultEnv = env
		return nil
	}
}

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(options *options) error {
		options.envPrefix = prefix
		return nil
	}
}

// WithFilePath sets the path to the TOML file.
func WithFilePath(path string) Option {
	return func(options *options) error {
		options.filepath = path
		return nil
	}
}

// WithSeparator sets the path separator to be used internally.
func WithSeparator(separator string) Option {
	return func(options *options) error {
		options.separator = separator
		return nil
	}
}

// WithEnvSeparator sets the environment variable separator.
func WithEnvSeparator(separator string) Option {
	return func(options *options) error {
		options.envSeparator = separator
		return nil
	}
}

// Configuration is a wrapper for koanf to hide complexity.
type Configuration struct {
	k   *koanf.Koanf
	env string
}

// NewConfigurationFromMap allows for a direct flat map to be used to create configuration.
func NewConfigurationFromMap(cfg map[string]any) (*Configuration, error) {
	k := koanf.New(defaultConfSeparator)
	if err := k.Load(
		confmap.Provider(cfg, defaultConfSeparator),
		nil,
	); err != nil {
		return nil, errclass.Mark(stacktrace.Wrap(err), errclass.Persistent)
	}
	return &Configuration{k: k, env: defaultEnv}, nil
}

// NewConfiguration parses config from the given file system and environment variables.
// Passing a nil file system skips the settings file and reads environment
// variables only.
func NewConfiguration(f fs.FS, opts ...Option) (*Configuration, error) {
	options := options{
		defaultEnv:   defaultEnv,
		envPrefix:    defaultEnvPrefix,
		separator:    defaultConfSeparator,
		envSeparator: defaultEnvSeparator,
		filepath:     defaultSettingsPath,
	}
	for _, opt := range opts {
		if err := opt(&options); err != nil {
			return nil, err
		}
	}

	if f == nil {
		return envOnlyConfig(options)
	}

	// The settings file holds the default section and all env overrides.
	top := koanf.New(defaultConfSeparator)
	if err := top.Load(koanffs.Provider(f, options.filepath), toml.Parser()); err != nil {
		return nil, errclass.Mark(stacktrace.Wrap(err), errclass.Persistent)
	}

	merged := koanf.New(defaultConfSeparator)
	if err := mergeSection(top, merged, options.defaultEnv, options.separator); err != nil {
		return nil, err
	}

	environment := os.Getenv(options.envPrefix + envVarName)
	if environment != "" {
		if err := mergeSection(top, merged, environment, options.separator); err != nil {
			return nil, err
		}
	} else {
		environment = options.defaultEnv
	}

	// Environment variables override everything from the file.
	if err := merged.Load(
		env.Provider(options.envPrefix, options.separator, envToConfig(options)),
		nil,
	); err != nil {
		return nil, errclass.Mark(stacktrace.Wrap(err), errclass.Persistent)
	}

	return &Configuration{k: merged, env: environment}, nil
}

// mergeSection layers the named section of top onto dst.
func mergeSection(top, dst *koanf.Koanf, section, separator string) error {
	if !top.Exists(section) {
		return errclass.Mark(stacktrace.Wrap(
			fmt.Errorf("settings for environment '%s' not found", section),
		), errclass.Persistent)
	}
	settings, ok := top.Get(section).(map[string]any)
	if !ok {
		return errclass.Mark(stacktrace.Wrap(
			fmt.Errorf("failed to parse settings for environment '%s'", section),
		), errclass.Persistent)
	}
	if err := dst.Load(confmap.Provider(settings, separator), nil); err != nil {
		return errclass.Mark(stacktrace.Wrap(err), errclass.Persistent)
	}
	return nil
}

func envOnlyConfig(options options) (*Configuration, error) {
	environment := os.Getenv(options.envPrefix + envVarName)
	if environment == "" {
		environment = options.defaultEnv
	}

	k := koanf.New(defaultConfSeparator)
	if err := k.Load(
		env.Provider(options.envPrefix, options.separator, envToConfig(options)),
		nil,
	); err != nil {
		return nil, errclass.Mark(stacktrace.Wrap(err), errclass.Persistent)
	}
	return &Configuration{k: k, env: environment}, nil
}

// Unmarshal sets values in struct `a` from the config rooted at `path`.
func (c Configuration) Unmarshal(path string, a any) error {
	return c.k.Unmarshal(path, a)
}

// Environment returns the value of the set environment.
func (c Configuration) Environment() string {
	return c.env
}

// envToConfig transforms environment variable names into config keys.
// For example `DP_NESTED_VALUE_A` becomes `nested.value.a`.
func envToConfig(options options) func(s string) string {
	return func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(
				strings.TrimPrefix(s, options.envPrefix),
			),
			options.envSeparator,
			options.separator,
		)
	}
}
