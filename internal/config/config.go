package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultManifestURL is the public version manifest.
const DefaultManifestURL = "https://piston-meta.mojang.com/mc/game/version_manifest_v2.json"

// Environment variables that override the config file.
const (
	EnvDataDir      = "CRAFTCTL_DATA_DIR"
	EnvManifestURL  = "CRAFTCTL_MANIFEST_URL"
	EnvJava         = "CRAFTCTL_JAVA"
	EnvBackupFormat = "CRAFTCTL_BACKUP_FORMAT"
	EnvLogLevel     = "CRAFTCTL_LOG_LEVEL"
)

// Config is the top-level configuration
type Config struct {
	Paths    PathsConfig    `yaml:"paths"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Backup   BackupConfig   `yaml:"backup"`
	Java     JavaConfig     `yaml:"java"`
	Server   ServerConfig   `yaml:"server"`
	Operator OperatorConfig `yaml:"operator"`
	Log      LogConfig      `yaml:"log"`
}

// PathsConfig holds filesystem locations. Relative directories resolve
// under DataDir.
type PathsConfig struct {
	DataDir     string `yaml:"data_dir"`
	ServersDir  string `yaml:"servers_dir"`
	VersionsDir string `yaml:"versions_dir"`
	DBPath      string `yaml:"db_path"`
	IconPath    string `yaml:"icon_path"`
}

// CatalogConfig holds version catalog settings
type CatalogConfig struct {
	ManifestURL      string   `yaml:"manifest_url"`
	Timeout          Duration `yaml:"timeout"`
	MaxMetadataBytes int64    `yaml:"max_metadata_bytes"`
}

// BackupConfig holds world archive settings
type BackupConfig struct {
	Format string `yaml:"format"`
}

// JavaConfig holds how server processes are started
type JavaConfig struct {
	Binary    string   `yaml:"binary"`
	MaxMemory string   `yaml:"max_memory"`
	ExtraArgs []string `yaml:"extra_args"`
}

// ServerConfig holds defaults for newly created servers
type ServerConfig struct {
	MOTD string `yaml:"motd"`
	Port int    `yaml:"port"`
}

// OperatorConfig names the player given operator rights on new servers
type OperatorConfig struct {
	Name string `yaml:"name"`
	UUID string `yaml:"uuid"`
}

// LogConfig holds logging defaults; flags override them
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a time.Duration written as a string like "60s" in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir:     "/var/lib/craftctl",
			ServersDir:  "servers",
			VersionsDir: "versions",
			DBPath:      "",
		},
		Catalog: CatalogConfig{
			ManifestURL:      DefaultManifestURL,
			Timeout:          Duration(60 * time.Second),
			MaxMetadataBytes: 32 << 20,
		},
		Backup: BackupConfig{
			Format: "zstd",
		},
		Java: JavaConfig{
			Binary:    "java",
			MaxMemory: "2G",
		},
		Server: ServerConfig{
			MOTD: "A Minecraft Server",
			Port: 25565,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "pretty",
		},
	}
}

// Load reads a config file from the given path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() (string, error) {
	searchPaths := []string{
		"craftctl.yaml",
		"/etc/craftctl/craftctl.yaml",
	}

	// Add user config path
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths,
			filepath.Join(home, ".config", "craftctl", "craftctl.yaml"),
		)
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", searchPaths)
}

// ApplyEnv overrides settings from CRAFTCTL_* variables. Variables set in the
// process environment win over those read from envFile; a missing envFile is
// ignored.
func (c *Config) ApplyEnv(envFile string) error {
	values := map[string]string{}
	if envFile != "" {
		fileValues, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("reading %s: %w", envFile, err)
		}
		for k, v := range fileValues {
			values[k] = v
		}
	}
	for _, key := range []string{EnvDataDir, EnvManifestURL, EnvJava, EnvBackupFormat, EnvLogLevel} {
		if v, ok := os.LookupEnv(key); ok {
			values[key] = v
		}
	}

	set := func(key string, dst *string) {
		if v := strings.TrimSpace(values[key]); v != "" {
			*dst = v
		}
	}
	set(EnvDataDir, &c.Paths.DataDir)
	set(EnvManifestURL, &c.Catalog.ManifestURL)
	set(EnvJava, &c.Java.Binary)
	set(EnvBackupFormat, &c.Backup.Format)
	set(EnvLogLevel, &c.Log.Level)
	return nil
}

// Validate checks values that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	if c.Paths.DataDir == "" {
		return fmt.Errorf("paths.data_dir is required")
	}
	if c.Catalog.ManifestURL == "" {
		return fmt.Errorf("catalog.manifest_url is required")
	}
	if c.Catalog.Timeout < 0 {
		return fmt.Errorf("catalog.timeout must not be negative")
	}
	switch strings.ToLower(c.Backup.Format) {
	case "", "zstd", "xz", "zip":
	default:
		return fmt.Errorf("backup.format %q is not one of zstd, xz, zip", c.Backup.Format)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if (c.Operator.Name == "") != (c.Operator.UUID == "") {
		return fmt.Errorf("operator.name and operator.uuid must be set together")
	}
	if c.Operator.UUID != "" {
		if _, err := uuid.Parse(c.Operator.UUID); err != nil {
			return fmt.Errorf("operator.uuid: %w", err)
		}
	}
	return nil
}

// resolve joins a relative directory onto the data directory
func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Paths.DataDir, p)
}

// ServersDir returns the absolute directory holding server instances
func (c *Config) ServersDir() string {
	return c.resolve(c.Paths.ServersDir)
}

// VersionsDir returns the absolute directory holding server jars
func (c *Config) VersionsDir() string {
	return c.resolve(c.Paths.VersionsDir)
}

// DBPath returns the history database path
func (c *Config) DBPath() string {
	if c.Paths.DBPath != "" {
		return c.resolve(c.Paths.DBPath)
	}
	return filepath.Join(c.Paths.DataDir, "craftctl.db")
}

// IconPath returns the icon copied into new servers, or "".
func (c *Config) IconPath() string {
	return c.resolve(c.Paths.IconPath)
}
