// Package config loads process-wide settings. Priority order: built-in
// defaults, then an optional YAML file, then DEPSTASH_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend selectors.
const (
	InstallerNPM    = "npm"
	InstallerDocker = "docker"

	ArchiverTar     = "tar"
	ArchiverBuiltin = "builtin"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30m" or "1h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// Config is the full service configuration.
type Config struct {
	// Port the HTTP server listens on.
	Port int `yaml:"port"`
	// BaseURL is the origin download links are composed from. Empty means
	// http://localhost:<port>.
	BaseURL string `yaml:"base_url"`
	// DataDir is where workspaces are provisioned. Empty means the OS
	// temp directory.
	DataDir string `yaml:"data_dir"`

	// TTL is how long an artifact stays downloadable after registration.
	TTL Duration `yaml:"ttl"`
	// SweepInterval is the period of the background eviction pass.
	SweepInterval Duration `yaml:"sweep_interval"`
	// MaxManifestBytes is the input size ceiling.
	MaxManifestBytes int64 `yaml:"max_manifest_bytes"`

	// InstallTimeout bounds one dependency install; 0 disables the bound.
	InstallTimeout Duration `yaml:"install_timeout"`
	// ArchiveTimeout bounds one archive run; 0 disables the bound.
	ArchiveTimeout Duration `yaml:"archive_timeout"`

	// Installer selects the install backend: npm (host subprocess) or
	// docker (container-isolated).
	Installer string `yaml:"installer"`
	// Archiver selects the archive backend: tar (subprocess) or builtin
	// (in-process).
	Archiver string `yaml:"archiver"`
	// NodeImage is the container image used by the docker installer.
	NodeImage string `yaml:"node_image"`

	// LogLevel is a zap level name (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:             3000,
		TTL:              Duration(time.Hour),
		SweepInterval:    Duration(30 * time.Minute),
		MaxManifestBytes: 1 << 20,
		InstallTimeout:   Duration(10 * time.Minute),
		ArchiveTimeout:   Duration(2 * time.Minute),
		Installer:        InstallerNPM,
		Archiver:         ArchiverTar,
		NodeImage:        "node:20-alpine",
		LogLevel:         "info",
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty), and environment overrides, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// EffectiveBaseURL resolves the download-link origin.
func (c Config) EffectiveBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return fmt.Sprintf("http://localhost:%d", c.Port)
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", c.TTL)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive, got %s", c.SweepInterval)
	}
	if c.MaxManifestBytes <= 0 {
		return fmt.Errorf("max_manifest_bytes must be positive, got %d", c.MaxManifestBytes)
	}
	if c.Installer != InstallerNPM && c.Installer != InstallerDocker {
		return fmt.Errorf("unknown installer %q", c.Installer)
	}
	if c.Archiver != ArchiverTar && c.Archiver != ArchiverBuiltin {
		return fmt.Errorf("unknown archiver %q", c.Archiver)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var err error
	setString("DEPSTASH_BASE_URL", &c.BaseURL)
	setString("DEPSTASH_DATA_DIR", &c.DataDir)
	setString("DEPSTASH_INSTALLER", &c.Installer)
	setString("DEPSTASH_ARCHIVER", &c.Archiver)
	setString("DEPSTASH_NODE_IMAGE", &c.NodeImage)
	setString("DEPSTASH_LOG_LEVEL", &c.LogLevel)

	if err = setInt("DEPSTASH_PORT", &c.Port); err != nil {
		return err
	}
	if err = setInt64("DEPSTASH_MAX_MANIFEST_BYTES", &c.MaxManifestBytes); err != nil {
		return err
	}
	if err = setDuration("DEPSTASH_TTL", &c.TTL); err != nil {
		return err
	}
	if err = setDuration("DEPSTASH_SWEEP_INTERVAL", &c.SweepInterval); err != nil {
		return err
	}
	if err = setDuration("DEPSTASH_INSTALL_TIMEOUT", &c.InstallTimeout); err != nil {
		return err
	}
	return setDuration("DEPSTASH_ARCHIVE_TIMEOUT", &c.ArchiveTimeout)
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setInt64(key string, dst *int64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(key string, dst *Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = Duration(d)
	return nil
}
