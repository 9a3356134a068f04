package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for ibex.
type Config struct {
	BackupDir string       `toml:"backup_dir"` // where the sync software keeps archives
	BaseDir   string       `toml:"base_dir"`
	LogDir    string       `toml:"log_dir"`
	LogLevel  string       `toml:"log_level"` // "debug", "info" (default), "warn" or "error"
	Export    ExportConfig `toml:"export"`
	Media     MediaConfig  `toml:"media"`
}

// ExportConfig controls where exports land and how they are rendered.
type ExportConfig struct {
	Timezone   string           `toml:"timezone"` // IANA name; empty means local time
	Sink       SinkConfig       `toml:"sink"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// SinkConfig represents configuration for an export destination.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type SinkConfig struct {
	Type string `toml:"type"` // "filesystem" (default), "memory" or "s3"

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
	S3UsePathStyle    bool   `toml:"s3_use_path_style,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used to seal exports.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// MediaConfig holds camera roll settings.
type MediaConfig struct {
	Exclude     []string `toml:"exclude"`
	ExcludeFile string   `toml:"exclude_file,omitempty"` // one pattern per line
}

// DefaultMediaExclude skips the derived images the device keeps beside the
// originals.
var DefaultMediaExclude = []string{
	"Media/PhotoData/Thumbnails",
	"Media/PhotoData/Metadata",
	"Media/PhotoData/MISC",
}

// NewConfig creates a new Config with the provided values and default paths.
func NewConfig(baseDir, backupDir string) *Config {
	return &Config{
		BackupDir: backupDir,
		BaseDir:   baseDir,
		LogDir:    filepath.Join(baseDir, "log"),
		LogLevel:  "info",
		Export: ExportConfig{
			Sink: SinkConfig{Type: "filesystem"},
			Encryption: EncryptionConfig{
				Type:           "none",
				PublicKeyPath:  filepath.Join(baseDir, "keys", "ibex.pub"),
				PrivateKeyPath: filepath.Join(baseDir, "keys", "ibex.key"),
			},
		},
		Media: MediaConfig{
			Exclude: append([]string(nil), DefaultMediaExclude...),
		},
	}
}

// Location resolves the export timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Export.Timezone == "" || c.Export.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Export.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid export timezone %q: %w", c.Export.Timezone, err)
	}
	return loc, nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads the config at path, or returns defaults when it does not exist.
// Fields left empty in the file fall back to the defaults too.
func Load(path string, defaults *Config) (*Config, error) {
	cfg, err := ReadFromFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return defaults, nil
	}
	if err != nil {
		return nil, err
	}
	cfg.fillFrom(defaults)
	return cfg, nil
}

func (c *Config) fillFrom(d *Config) {
	setIfEmpty := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	setIfEmpty(&c.BackupDir, d.BackupDir)
	setIfEmpty(&c.BaseDir, d.BaseDir)
	setIfEmpty(&c.LogDir, d.LogDir)
	setIfEmpty(&c.LogLevel, d.LogLevel)
	setIfEmpty(&c.Export.Sink.Type, d.Export.Sink.Type)
	setIfEmpty(&c.Export.Encryption.Type, d.Export.Encryption.Type)
	setIfEmpty(&c.Export.Encryption.PublicKeyPath, d.Export.Encryption.PublicKeyPath)
	setIfEmpty(&c.Export.Encryption.PrivateKeyPath, d.Export.Encryption.PrivateKeyPath)
	if c.Media.Exclude == nil {
		c.Media.Exclude = d.Media.Exclude
	}
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
