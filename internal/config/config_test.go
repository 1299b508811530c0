package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

// TestDefaultConfig verifies that DefaultConfig returns sensible defaults
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		getValue func(*Config) string
		want     string
	}{
		{"data directory", func(c *Config) string { return c.Paths.DataDir }, "/var/lib/craftctl"},
		{"servers dir", func(c *Config) string { return c.ServersDir() }, "/var/lib/craftctl/servers"},
		{"versions dir", func(c *Config) string { return c.VersionsDir() }, "/var/lib/craftctl/versions"},
		{"db path", func(c *Config) string { return c.DBPath() }, "/var/lib/craftctl/craftctl.db"},
		{"icon path", func(c *Config) string { return c.IconPath() }, ""},
		{"manifest url", func(c *Config) string { return c.Catalog.ManifestURL }, DefaultManifestURL},
		{"backup format", func(c *Config) string { return c.Backup.Format }, "zstd"},
		{"java binary", func(c *Config) string { return c.Java.Binary }, "java"},
		{"max memory", func(c *Config) string { return c.Java.MaxMemory }, "2G"},
		{"motd", func(c *Config) string { return c.Server.MOTD }, "A Minecraft Server"},
		{"log format", func(c *Config) string { return c.Log.Format }, "pretty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.getValue(cfg)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	if time.Duration(cfg.Catalog.Timeout) != 60*time.Second {
		t.Errorf("Catalog.Timeout = %v, want 60s", time.Duration(cfg.Catalog.Timeout))
	}
	if cfg.Server.Port != 25565 {
		t.Errorf("Server.Port = %d, want 25565", cfg.Server.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

// TestLoad tests loading a valid config file
func TestLoad(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "craftctl.yaml")

	configContent := `
paths:
  data_dir: "/srv/minecraft"
  servers_dir: "/srv/worlds"
  db_path: "history.db"
  icon_path: "icon.png"
catalog:
  manifest_url: "https://mirror.example.com/manifest.json"
  timeout: "15s"
backup:
  format: "xz"
java:
  binary: "/usr/lib/jvm/bin/java"
  max_memory: "6G"
  extra_args: ["-XX:+UseG1GC", "-Dfile.encoding=UTF-8"]
server:
  motd: "Weekend world"
operator:
  name: "Steve"
  uuid: "069a79f4-44e9-4726-a5be-fca90e38aaf5"
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"servers dir stays absolute", cfg.ServersDir(), "/srv/worlds"},
		{"versions dir keeps default", cfg.VersionsDir(), "/srv/minecraft/versions"},
		{"db path resolves", cfg.DBPath(), "/srv/minecraft/history.db"},
		{"icon path resolves", cfg.IconPath(), "/srv/minecraft/icon.png"},
		{"manifest url", cfg.Catalog.ManifestURL, "https://mirror.example.com/manifest.json"},
		{"backup format", cfg.Backup.Format, "xz"},
		{"java binary", cfg.Java.Binary, "/usr/lib/jvm/bin/java"},
		{"max memory", cfg.Java.MaxMemory, "6G"},
		{"motd", cfg.Server.MOTD, "Weekend world"},
		{"operator", cfg.Operator.Name, "Steve"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}

	if time.Duration(cfg.Catalog.Timeout) != 15*time.Second {
		t.Errorf("Catalog.Timeout = %v, want 15s", time.Duration(cfg.Catalog.Timeout))
	}
	if len(cfg.Java.ExtraArgs) != 2 {
		t.Errorf("ExtraArgs = %v, want 2 entries", cfg.Java.ExtraArgs)
	}
	// Unset keys keep their defaults
	if cfg.Server.Port != 25565 {
		t.Errorf("Server.Port = %d, want default 25565", cfg.Server.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() failed: %v", err)
	}
}

// TestLoadInvalidYAML tests that malformed YAML is rejected
func TestLoadInvalidYAML(t *testing.T) {
	tempDir := t.TempDir()

	tests := map[string]string{
		"broken syntax":    "paths:\n  data_dir: [unclosed\n",
		"invalid duration": "catalog:\n  timeout: \"soon\"\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			configFile := filepath.Join(tempDir, strings.ReplaceAll(name, " ", "_")+".yaml")
			if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
				t.Fatalf("failed to write config file: %v", err)
			}
			if _, err := Load(configFile); err == nil {
				t.Error("Load() succeeded, want error")
			}
		})
	}
}

// TestLoadNonexistentFile tests loading a missing file
func TestLoadNonexistentFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() succeeded, want error")
	}
	if !strings.Contains(err.Error(), "reading config file") {
		t.Errorf("error = %v, want reading config file context", err)
	}
}

// TestFindConfigFileFound checks the working directory is searched first
func TestFindConfigFileFound(t *testing.T) {
	tempDir := t.TempDir()
	chdir(t, tempDir)

	if err := os.WriteFile("craftctl.yaml", []byte("paths: {}\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	path, err := FindConfigFile()
	if err != nil {
		t.Fatalf("FindConfigFile() failed: %v", err)
	}
	if path != "craftctl.yaml" {
		t.Errorf("path = %q, want craftctl.yaml", path)
	}
}

// TestFindConfigFileNotFound checks the error lists the searched paths
func TestFindConfigFileNotFound(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())

	if _, err := os.Stat("/etc/craftctl/craftctl.yaml"); err == nil {
		t.Skip("system config present")
	}

	_, err := FindConfigFile()
	if err == nil {
		t.Fatal("FindConfigFile() succeeded, want error")
	}
	if !strings.Contains(err.Error(), "craftctl.yaml") {
		t.Errorf("error = %v, want searched paths", err)
	}
}

// TestApplyEnv checks .env values apply and the process environment wins
func TestApplyEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	content := "CRAFTCTL_DATA_DIR=/from/dotenv\nCRAFTCTL_BACKUP_FORMAT=zip\nCRAFTCTL_LOG_LEVEL=debug\n"
	if err := os.WriteFile(envFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvDataDir, "/from/process")
	t.Setenv(EnvJava, "/opt/java/bin/java")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(envFile); err != nil {
		t.Fatalf("ApplyEnv() failed: %v", err)
	}

	if cfg.Paths.DataDir != "/from/process" {
		t.Errorf("DataDir = %q, want process value", cfg.Paths.DataDir)
	}
	if cfg.Backup.Format != "zip" {
		t.Errorf("Backup.Format = %q, want zip", cfg.Backup.Format)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Java.Binary != "/opt/java/bin/java" {
		t.Errorf("Java.Binary = %q", cfg.Java.Binary)
	}
	if cfg.Catalog.ManifestURL != DefaultManifestURL {
		t.Errorf("ManifestURL changed to %q", cfg.Catalog.ManifestURL)
	}
}

// TestApplyEnvMissingFile tests that an absent .env file is ignored
func TestApplyEnvMissingFile(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("ApplyEnv() failed: %v", err)
	}
}

// TestValidate covers the rejected configurations
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.Paths.DataDir = "" }},
		{"empty manifest url", func(c *Config) { c.Catalog.ManifestURL = "" }},
		{"unknown backup format", func(c *Config) { c.Backup.Format = "rar" }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"operator without uuid", func(c *Config) { c.Operator.Name = "Steve" }},
		{"bad operator uuid", func(c *Config) { c.Operator = OperatorConfig{Name: "Steve", UUID: "steve"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() succeeded, want error")
			}
		})
	}
}

// TestDurationRoundTrip checks durations are written the way they are read
func TestDurationRoundTrip(t *testing.T) {
	out, err := yaml.Marshal(DefaultConfig().Catalog)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	if !strings.Contains(string(out), "timeout: 1m0s") {
		t.Errorf("marshaled catalog = %s", out)
	}
}

// chdir changes the working directory for the duration of the test,
// restoring the original directory on cleanup (equivalent to t.Chdir).
func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %s: %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(orig); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
