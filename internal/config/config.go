// Package config builds the release configuration from defaults, a config file,
// the environment and command-line overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "SYMBOLPUSH_"

// Config is everything one publishing run needs
type Config struct {
	PackageName      string        `yaml:"package_name" toml:"package_name"`
	VersionCode      int64         `yaml:"version_code" toml:"version_code"`
	Track            string        `yaml:"track" toml:"track"`
	CredentialsFile  string        `yaml:"credentials_file" toml:"credentials_file"`
	Scope            string        `yaml:"scope" toml:"scope"`
	Endpoint         string        `yaml:"endpoint" toml:"endpoint"`
	NativeLibDir     string        `yaml:"native_lib_dir" toml:"native_lib_dir"`
	SymbolSuffix     string        `yaml:"symbol_suffix" toml:"symbol_suffix"`
	MappingFile      string        `yaml:"mapping_file" toml:"mapping_file"`
	MappingSHA256    string        `yaml:"mapping_sha256" toml:"mapping_sha256"`
	MappingSignature string        `yaml:"mapping_signature" toml:"mapping_signature"`
	SigningKeyring   string        `yaml:"signing_keyring" toml:"signing_keyring"`
	Timeout          time.Duration `yaml:"-" toml:"-"`
	TimeoutRaw       string        `yaml:"timeout" toml:"timeout"`
	LogLevel         string        `yaml:"log_level" toml:"log_level"`
	LogFormat        string        `yaml:"log_format" toml:"log_format"`
	DryRun           bool          `yaml:"dry_run" toml:"dry_run"`
}

// Defaults returns the configuration used when nothing overrides it
func Defaults() *Config {
	return &Config{
		PackageName:     "com.n8nmonitor.app",
		VersionCode:     9,
		Track:           "internal",
		CredentialsFile: "service-account-key.json",
		Scope:           "https://www.googleapis.com/auth/androidpublisher",
		Endpoint:        "https://androidpublisher.googleapis.com",
		NativeLibDir:    filepath.Join("app", "build", "intermediates", "merged_native_libs", "release", "out", "lib"),
		SymbolSuffix:    ".so",
		MappingFile:     filepath.Join("app", "build", "outputs", "mapping", "release", "mapping.txt"),
		LogLevel:        "info",
		LogFormat:       "console",
	}
}

// LoadOptions selects the optional files Load reads
type LoadOptions struct {
	// File is a YAML (.yml/.yaml) or TOML (.toml) config file; empty skips it
	File string
	// EnvFile is a dotenv file; a missing file is ignored
	EnvFile string
}

// Load applies defaults, the config file and the environment, then validates
func Load(opts LoadOptions) (*Config, error) {
	cfg := Defaults()

	if opts.File != "" {
		if err := loadFile(opts.File, cfg); err != nil {
			return nil, err
		}
	}

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("env file load failed (%s): %w", opts.EnvFile, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	//nolint:gosec // G304: config path is user-provided
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("config load failed (%s): unsupported extension", path)
	}
	if err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.PackageName, "PACKAGE_NAME")
	setString(&cfg.Track, "TRACK")
	setString(&cfg.CredentialsFile, "CREDENTIALS_FILE")
	setString(&cfg.Scope, "SCOPE")
	setString(&cfg.Endpoint, "ENDPOINT")
	setString(&cfg.NativeLibDir, "NATIVE_LIB_DIR")
	setString(&cfg.SymbolSuffix, "SYMBOL_SUFFIX")
	setString(&cfg.MappingFile, "MAPPING_FILE")
	setString(&cfg.MappingSHA256, "MAPPING_SHA256")
	setString(&cfg.MappingSignature, "MAPPING_SIGNATURE")
	setString(&cfg.SigningKeyring, "SIGNING_KEYRING")
	setString(&cfg.TimeoutRaw, "TIMEOUT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")

	if v := os.Getenv(EnvPrefix + "VERSION_CODE"); v != "" {
		code, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %sVERSION_CODE %q: %w", EnvPrefix, v, err)
		}
		cfg.VersionCode = code
	}

	if v := os.Getenv(EnvPrefix + "DRY_RUN"); v != "" {
		dry, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sDRY_RUN %q: %w", EnvPrefix, v, err)
		}
		cfg.DryRun = dry
	}

	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		*dst = v
	}
}

// Finalize parses derived fields and validates the result.
// Call it again after applying command-line overrides.
func (c *Config) Finalize() error {
	if c.TimeoutRaw != "" {
		d, err := time.ParseDuration(c.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", c.TimeoutRaw, err)
		}
		c.Timeout = d
	}
	return c.Validate()
}

var packageNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(\.[A-Za-z][A-Za-z0-9_]*)+$`)

// Validate checks the fields every run depends on
func (c *Config) Validate() error {
	if !packageNamePattern.MatchString(c.PackageName) {
		return fmt.Errorf("invalid package name %q", c.PackageName)
	}
	if c.VersionCode <= 0 {
		return fmt.Errorf("version code must be positive, got %d", c.VersionCode)
	}
	if c.Track == "" {
		return fmt.Errorf("track is required")
	}
	if c.CredentialsFile == "" && !c.DryRun {
		return fmt.Errorf("credentials file is required")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if (c.MappingSignature == "") != (c.SigningKeyring == "") {
		return fmt.Errorf("mapping signature and signing keyring must be set together")
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format %q: must be console or json", c.LogFormat)
	}
	return nil
}
