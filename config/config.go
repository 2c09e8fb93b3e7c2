package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/brettbedarf/pseudofs/internal/util"
)

// Bytes per KB
const KB = 1024

// Log verbosity as given on the command line, 1 (error) to 5 (trace).
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultLogLvl = util.InfoLevel

	DefaultFsName = "pseudofs"
	DefaultName   = "pseudofs"

	// DefaultReadOnly mounts the root with the immutable personality
	DefaultReadOnly = false

	// DefaultDirentBufferSize is the byte budget of one directory listing page
	DefaultDirentBufferSize = 8 * KB

	// DefaultWatchBufferSize is how many watch events may queue per directory
	// before new ones are dropped
	DefaultWatchBufferSize = 64

	// DefaultFileCapacity is the capacity of files created through the mount
	DefaultFileCapacity = 64 * KB

	// DefaultMaxWrite is the maximum write size per FUSE request
	DefaultMaxWrite = 128 * KB

	// DefaultAttrTimeout is the attribute cache timeout in seconds
	DefaultAttrTimeout = 1.0

	// DefaultEntryTimeout is the directory entry cache timeout in seconds
	DefaultEntryTimeout = 1.0

	// DefaultDirectIO determines whether to bypass the page cache for file reads
	DefaultDirectIO = true
)

// Config contains runtime configuration values for the pseudo filesystem.
type Config struct {
	MountOptions
	LogLvl           util.LogLevel // Internal log level (Default Info)
	ReadOnly         bool          // Root directory refuses client mutation (Default false)
	DirentBufferSize int           `validate:"gte=256"` // Bytes per directory listing page (Default 8KB)
	WatchBufferSize  int           `validate:"gte=1"`   // Queued watch events per directory (Default 64)
	FileCapacity     int           `validate:"gte=0"`   // Capacity of files created through the mount (Default 64KB)
	// NOTE: Low-level FUSE config (strongly recommend defaults unless you really know what you're doing):

	MaxWrite     int     `validate:"gte=4096"` // Maximum write size per FUSE request (Default 128KB)
	AttrTimeout  float64 `validate:"gte=0"`    // Attribute cache timeout in seconds (Default 1.0)
	EntryTimeout float64 `validate:"gte=0"`    // Directory entry cache timeout in seconds (Default 1.0)
	DirectIO     bool    // Whether to bypass page cache for file reads (Default true)
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
//
// LogLvl is the CLI verbosity (1-5), not the internal log level.
type ConfigOverride struct {
	LogLvl           *int     `yaml:"verbose,omitempty" json:"verbose,omitempty"`
	FsName           *string  `yaml:"fs_name,omitempty" json:"fs_name,omitempty"`
	Name             *string  `yaml:"name,omitempty" json:"name,omitempty"`
	Debug            *bool    `yaml:"debug,omitempty" json:"debug,omitempty"`
	AllowOther       *bool    `yaml:"allow_other,omitempty" json:"allow_other,omitempty"`
	ReadOnly         *bool    `yaml:"read_only,omitempty" json:"read_only,omitempty"`
	DirentBufferSize *int     `yaml:"dirent_buffer_size,omitempty" json:"dirent_buffer_size,omitempty"`
	WatchBufferSize  *int     `yaml:"watch_buffer_size,omitempty" json:"watch_buffer_size,omitempty"`
	FileCapacity     *int     `yaml:"file_capacity,omitempty" json:"file_capacity,omitempty"`
	MaxWrite         *int     `yaml:"max_write,omitempty" json:"max_write,omitempty"`
	AttrTimeout      *float64 `yaml:"attr_timeout,omitempty" json:"attr_timeout,omitempty"`
	EntryTimeout     *float64 `yaml:"entry_timeout,omitempty" json:"entry_timeout,omitempty"`
	DirectIO         *bool    `yaml:"direct_io,omitempty" json:"direct_io,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		MountOptions: MountOptions{
			FsName: DefaultFsName,
			Name:   DefaultName,
		},
		LogLvl:           DefaultLogLvl,
		ReadOnly:         DefaultReadOnly,
		DirentBufferSize: DefaultDirentBufferSize,
		WatchBufferSize:  DefaultWatchBufferSize,
		FileCapacity:     DefaultFileCapacity,
		MaxWrite:         DefaultMaxWrite,
		AttrTimeout:      DefaultAttrTimeout,
		EntryTimeout:     DefaultEntryTimeout,
		DirectIO:         DefaultDirectIO,
	}
}

// NewConfig returns the defaults with override applied; override may be nil.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// VerboseToLogLevel maps CLI verbosity onto a log level, clamping to 1..5.
func VerboseToLogLevel(verbose int) util.LogLevel {
	verbose = min(max(verbose, ErrorVerbose), TraceVerbose)
	lvls := [5]util.LogLevel{util.ErrorLevel, util.WarnLevel, util.InfoLevel, util.DebugLevel, util.TraceLevel}
	return lvls[verbose-1]
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.LogLvl != nil {
		c.LogLvl = VerboseToLogLevel(*override.LogLvl)
	}
	if override.FsName != nil {
		c.FsName = *override.FsName
	}
	if override.Name != nil {
		c.Name = *override.Name
	}
	if override.Debug != nil {
		c.Debug = *override.Debug
	}
	if override.AllowOther != nil {
		c.AllowOther = *override.AllowOther
	}
	if override.ReadOnly != nil {
		c.ReadOnly = *override.ReadOnly
	}
	if override.DirentBufferSize != nil {
		c.DirentBufferSize = *override.DirentBufferSize
	}
	if override.WatchBufferSize != nil {
		c.WatchBufferSize = *override.WatchBufferSize
	}
	if override.FileCapacity != nil {
		c.FileCapacity = *override.FileCapacity
	}
	if override.MaxWrite != nil {
		c.MaxWrite = *override.MaxWrite
	}
	if override.AttrTimeout != nil {
		c.AttrTimeout = *override.AttrTimeout
	}
	if override.EntryTimeout != nil {
		c.EntryTimeout = *override.EntryTimeout
	}
	if override.DirectIO != nil {
		c.DirectIO = *override.DirectIO
	}
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults
// and validating the result.
func NewConfigFromFile(path string) (*Config, error) {
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	cfg := NewConfig(override)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
