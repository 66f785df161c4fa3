// Package config loads the settings needed to open a runtime image: the
// heap layout profile, the engine's export names, handle overrides, a
// static symbol table and logging.
//
// Files are TOML or YAML, chosen by extension. A file only needs to list
// what differs from the defaults; the layout starts from the named profile
// and individual offsets override it:
//
//	profile = "native64"
//
//	[layout.array]
//	nrows = 32
//
//	[engine]
//	init = "jl_init"
//
//	[handles]
//	jl_nothing = "jl_nothing_value"
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/jlvalue/abi"
	"github.com/wippyai/jlvalue/engine"
	"github.com/wippyai/jlvalue/errors"
)

// Format is a configuration file syntax.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", errors.Config(fmt.Sprintf("%s: unknown config format (want .toml, .yaml or .yml)", path), nil)
}

// LogConfig selects the logger built by Config.Logger.
type LogConfig struct {
	Level       string `toml:"level" yaml:"level"`
	Development bool   `toml:"development" yaml:"development"`
	Encoding    string `toml:"encoding" yaml:"encoding"`
}

type Config struct {
	Profile string        `toml:"profile" yaml:"profile"`
	Layout  abi.Layout    `toml:"layout" yaml:"layout"`
	Engine  engine.Config `toml:"engine" yaml:"engine"`

	// Handles renames the C global a handle is read from, keyed by the
	// default name.
	Handles map[string]string `toml:"handles" yaml:"handles"`

	// Symbols supplies global addresses for images that do not export
	// them as wasm globals.
	Symbols map[string]uint32 `toml:"symbols" yaml:"symbols"`

	Log LogConfig `toml:"log" yaml:"log"`
}

// Default returns the wasm32 configuration.
func Default() Config {
	c, err := ForProfile(abi.ProfileWasm32)
	if err != nil {
		panic(err)
	}
	return c
}

// ForProfile returns the defaults for a layout profile.
func ForProfile(profile string) (Config, error) {
	l, err := abi.Profile(profile)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Profile: l.Name,
		Layout:  l,
		Engine:  engine.DefaultConfig(),
		Log:     LogConfig{Level: "warn", Encoding: "console"},
	}, nil
}

// Load reads and validates a configuration file.
func Load(path string) (Config, error) {
	format, err := FormatOf(path)
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Config("read "+path, err)
	}
	c, err := Parse(data, format)
	if err != nil {
		return Config{}, errors.Config(path, err)
	}
	return c, nil
}

type profileOnly struct {
	Profile string `toml:"profile" yaml:"profile"`
}

// Parse decodes data over the defaults of the profile it names.
func Parse(data []byte, format Format) (Config, error) {
	var p profileOnly
	if err := decode(data, format, &p, false); err != nil {
		return Config{}, err
	}
	c, err := ForProfile(p.Profile)
	if err != nil {
		return Config{}, err
	}
	if err := decode(data, format, &c, true); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func decode(data []byte, format Format, v any, strict bool) error {
	switch format {
	case FormatTOML:
		meta, err := toml.Decode(string(data), v)
		if err != nil {
			return errors.Config("parse TOML", err)
		}
		if strict {
			if keys := meta.Undecoded(); len(keys) > 0 {
				return errors.Config(fmt.Sprintf("unknown key %s", keys[0]), nil)
			}
		}
		return nil
	case FormatYAML:
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(strict)
		if err := dec.Decode(v); err != nil {
			return errors.Config("parse YAML", err)
		}
		return nil
	}
	return errors.Config(fmt.Sprintf("unknown format %q", format), nil)
}

// Encode renders c in the given format.
func (c Config) Encode(format Format) ([]byte, error) {
	switch format {
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return nil, errors.Config("encode TOML", err)
		}
		return buf.Bytes(), nil
	case FormatYAML:
		out, err := yaml.Marshal(c)
		if err != nil {
			return nil, errors.Config("encode YAML", err)
		}
		return out, nil
	}
	return nil, errors.Config(fmt.Sprintf("unknown format %q", format), nil)
}

func (c Config) Validate() error {
	if err := c.Layout.Validate(); err != nil {
		return err
	}
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return errors.Config("log level", err)
	}
	switch c.Log.Encoding {
	case "", "console", "json":
	default:
		return errors.Config(fmt.Sprintf("log encoding %q (want console or json)", c.Log.Encoding), nil)
	}
	return nil
}

// Logger builds the zap logger described by c.Log.
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, errors.Config("log level", err)
	}
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if c.Log.Encoding != "" {
		zc.Encoding = c.Log.Encoding
	}
	return zc.Build()
}
