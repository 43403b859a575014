package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"remap/internal/paths"
)

// CurrentVersion is the config schema version written by Save
const CurrentVersion = 1

// Config represents the complete remap configuration
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	Naming      NamingConfig      `json:"naming" mapstructure:"naming"`
	Rename      RenameConfig      `json:"rename" mapstructure:"rename"`
	Bulk        BulkConfig        `json:"bulk" mapstructure:"bulk"`
	Decompiler  DecompilerConfig  `json:"decompiler" mapstructure:"decompiler"`
	MappingFile MappingFileConfig `json:"mappingFile" mapstructure:"mappingFile"`
	Logging     LoggingConfig     `json:"logging" mapstructure:"logging"`
}

// NamingConfig controls the synthetic names generated by bulk renames
type NamingConfig struct {
	ClassPrefix  string `json:"classPrefix" mapstructure:"classPrefix"`
	FieldPrefix  string `json:"fieldPrefix" mapstructure:"fieldPrefix"`
	MethodPrefix string `json:"methodPrefix" mapstructure:"methodPrefix"`
	Start        int    `json:"start" mapstructure:"start"`
	KeepPackages bool   `json:"keepPackages" mapstructure:"keepPackages"`
}

// RenameConfig controls identifier validation
type RenameConfig struct {
	StrictIdentifiers  bool `json:"strictIdentifiers" mapstructure:"strictIdentifiers"`
	EnforcePackagePath bool `json:"enforcePackagePath" mapstructure:"enforcePackagePath"`
}

// BulkConfig selects what bulk renames touch
type BulkConfig struct {
	// Exclude holds gitignore-style patterns matched against class internal names
	Exclude     []string `json:"exclude" mapstructure:"exclude"`
	KeepMembers []string `json:"keepMembers" mapstructure:"keepMembers"`
}

// DecompilerConfig configures the external decompiler collaborator
type DecompilerConfig struct {
	// Command is run with {class} replaced by the class internal name; stdout is the source
	Command []string `json:"command" mapstructure:"command"`
	// SourceDir holds already-decompiled sources (<dir>/a/b/C.java); used when Command is empty
	SourceDir       string `json:"sourceDir" mapstructure:"sourceDir"`
	TimeoutMs       int    `json:"timeoutMs" mapstructure:"timeoutMs"`
	RefreshOnSelect bool   `json:"refreshOnSelect" mapstructure:"refreshOnSelect"`
	RemapSource     bool   `json:"remapSource" mapstructure:"remapSource"`
}

// MappingFileConfig contains mapping export defaults
type MappingFileConfig struct {
	Format      string `json:"format" mapstructure:"format"`
	OnlyRenamed bool   `json:"onlyRenamed" mapstructure:"onlyRenamed"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string `json:"level" mapstructure:"level"`
	// File enables the <root>/.remap/logs/remap.log file log
	File bool `json:"file" mapstructure:"file"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Naming: NamingConfig{
			ClassPrefix:  "Class",
			FieldPrefix:  "field",
			MethodPrefix: "method",
			Start:        1,
			KeepPackages: true,
		},
		Rename: RenameConfig{
			StrictIdentifiers:  true,
			EnforcePackagePath: true,
		},
		Bulk: BulkConfig{
			Exclude: []string{},
			KeepMembers: []string{
				"main", "toString", "hashCode", "equals", "clone", "finalize",
				"values", "valueOf", "compareTo", "run", "call",
			},
		},
		Decompiler: DecompilerConfig{
			Command:         []string{},
			SourceDir:       "",
			TimeoutMs:       30000,
			RefreshOnSelect: true,
			RemapSource:     true,
		},
		MappingFile: MappingFileConfig{
			Format:      "text",
			OnlyRenamed: false,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  false,
		},
	}
}

// LoadConfig loads configuration from <root>/.remap/config.json over the defaults.
// REMAP_LOGGING_LEVEL overrides logging.level.
func LoadConfig(root string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(paths.GetDataDir(root))
	v.SetEnvPrefix("REMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	_ = v.BindEnv("logging.level")

	cfg := DefaultConfig()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	// Unmarshal leaves fields absent from the file at their defaults
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to <root>/.remap/config.json
func (c *Config) Save(root string) error {
	if _, err := paths.EnsureDataDir(root); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Clean(paths.GetConfigPath(root)), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.Naming.ClassPrefix == "" || c.Naming.FieldPrefix == "" || c.Naming.MethodPrefix == "" {
		return &ConfigError{Field: "naming", Message: "name prefixes cannot be empty"}
	}
	if c.Naming.Start < 0 {
		return &ConfigError{Field: "naming.start", Message: "counter start cannot be negative"}
	}
	switch c.MappingFile.Format {
	case "text", "yaml", "toml":
	default:
		return &ConfigError{Field: "mappingFile.format", Message: "format must be text, yaml or toml"}
	}
	if c.Decompiler.TimeoutMs < 0 {
		return &ConfigError{Field: "decompiler.timeoutMs", Message: "timeout cannot be negative"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
