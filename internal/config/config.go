// Package config handles application configuration and setup
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/retroenv/retrogolib/log"
	"github.com/spf13/viper"

	"github.com/goopsie/arcRedirect/pkg/arc"
	"github.com/goopsie/arcRedirect/pkg/modfiles"
	"github.com/goopsie/arcRedirect/pkg/offsets"
	"github.com/goopsie/arcRedirect/pkg/pipeline"
	"github.com/goopsie/arcRedirect/pkg/remap"
	"github.com/goopsie/arcRedirect/pkg/signature"
)

const (
	configName   = "arcredirect"
	envVarPrefix = "ARCREDIRECT"
)

// Config contains every option of the arcRedirect tools.
type Config struct {
	Log struct {
		// Enable debug output.
		Debug bool `mapstructure:"debug"`
		// Only output errors.
		Quiet bool `mapstructure:"quiet"`
	} `mapstructure:"log"`

	// Text relative offsets by name, in hex. They win over every resolver.
	Offsets map[string]string `mapstructure:"offsets"`
	// Instruction class signatures replacing the built-in ones, by name.
	Signatures map[string][]string `mapstructure:"signatures"`
	// Hex byte patterns, by name. "??" matches any byte.
	Patterns map[string]string `mapstructure:"patterns"`

	Remap struct {
		// Shared files to give their own slot during initial loading.
		Paths []remap.Target `mapstructure:"paths"`
	} `mapstructure:"remap"`

	Mods struct {
		// Root directory of the substitute files.
		Dir string `mapstructure:"dir"`
		// How long decoded substitutes stay cached.
		CacheTTL time.Duration `mapstructure:"cache_ttl"`
	} `mapstructure:"mods"`

	Pipeline struct {
		Name    string `mapstructure:"name"`
		Version string `mapstructure:"version"`
	} `mapstructure:"pipeline"`

	// Region used for the declared size of regional files, e.g. "us_en".
	Region string `mapstructure:"region"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("mods.dir", "mods")
	v.SetDefault("mods.cache_ttl", modfiles.DefaultCacheTTL)
	v.SetDefault("pipeline.name", pipeline.DefaultName)
	v.SetDefault("pipeline.version", "dev")
	v.SetDefault("region", arc.RegionUsEnglish.String())

	v.SetEnvPrefix(envVarPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file at path. An empty path searches the working
// directory and $HOME/.config/arcredirect for an arcredirect config file
// and falls back to the defaults when there is none. Options can be set
// through ARCREDIRECT_ prefixed environment variables, for example
// ARCREDIRECT_MODS_DIR.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", configName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return unmarshal(v)
}

// Read parses a config of the given type ("yaml", "toml" or "json") from r.
func Read(r io.Reader, configType string) (*Config, error) {
	v := newViper()
	v.SetConfigType(configType)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// ResolverOptions converts the offset, signature and pattern settings into
// resolver options.
func (c *Config) ResolverOptions() ([]offsets.Option, error) {
	var opts []offsets.Option

	for name, fields := range c.Signatures {
		sig, err := signature.Parse(fields)
		if err != nil {
			return nil, fmt.Errorf("signature %s: %w", name, err)
		}
		opts = append(opts, offsets.WithSignature(name, sig))
	}

	for name, hex := range c.Patterns {
		p, err := signature.ParseHex(hex)
		if err != nil {
			return nil, fmt.Errorf("pattern %s: %w", name, err)
		}
		opts = append(opts, offsets.WithPattern(name, p))
	}

	for name, s := range c.Offsets {
		offset, err := ParseOffset(s)
		if err != nil {
			return nil, fmt.Errorf("offset %s: %w", name, err)
		}
		opts = append(opts, offsets.WithOverride(name, offset))
	}

	return opts, nil
}

// PipelineConfig returns the interception pipeline settings.
func (c *Config) PipelineConfig() (pipeline.Config, error) {
	region, err := arc.ParseRegion(c.Region)
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.Config{
		Name:    c.Pipeline.Name,
		Version: c.Pipeline.Version,
		Region:  region,
		Remap:   c.Remap.Paths,
	}, nil
}

// ParseOffset parses a hex offset with or without a 0x prefix.
func ParseOffset(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	offset, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid offset %q: %w", s, err)
	}
	return offset, nil
}

// CreateLogger creates a logger with appropriate settings
func CreateLogger(debug, quiet bool) *log.Logger {
	cfg := log.DefaultConfig()
	if debug {
		cfg.Level = log.DebugLevel
	} else if quiet {
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}
