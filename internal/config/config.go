package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for filehost.
type Config struct {
	InstanceID string           `toml:"instance_id" validate:"required"`
	BaseDir    string           `toml:"base_dir" validate:"required"`
	LogDir     string           `toml:"log_dir" validate:"required"`
	UploadDir  string           `toml:"upload_dir" validate:"required"`
	Server     ServerConfig     `toml:"server"`
	Limits     LimitsConfig     `toml:"limits"`
	Database   DatabaseConfig   `toml:"database"`
	Protection ProtectionConfig `toml:"protection"`
	Filesystem FilesystemConfig `toml:"filesystem"`
	Mirror     MirrorConfig     `toml:"mirror"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string        `toml:"addr" validate:"required"`
	StaticDir       string        `toml:"static_dir,omitempty"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" validate:"gt=0"`

	// Uploads allowed per client IP per window; 0 disables the limit.
	UploadRatePerWindow int           `toml:"upload_rate_per_window" validate:"min=0"`
	UploadRateWindow    time.Duration `toml:"upload_rate_window" validate:"min=0"`
}

// LimitsConfig bounds a single upload request.
type LimitsConfig struct {
	MaxFiles    int   `toml:"max_files" validate:"gt=0"`
	MaxFileSize int64 `toml:"max_file_size" validate:"gt=0"`
}

// DatabaseConfig represents configuration for the metadata store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type        string `toml:"type" validate:"required,oneof=sqlite memory badger"`
	DataDir     string `toml:"data_dir,omitempty"` // sqlite and badger only
	AutoMigrate bool   `toml:"auto_migrate"`       // sqlite only
}

// ProtectionConfig selects where directory passwords are persisted.
type ProtectionConfig struct {
	Type string `toml:"type" validate:"required,oneof=file memory"`
	File string `toml:"file,omitempty"` // name of the side file inside the upload root
}

// FilesystemConfig holds filesystem-related settings.
type FilesystemConfig struct {
	Ignore []string `toml:"ignore"`
}

// MirrorConfig represents configuration for the upload mirror.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type MirrorConfig struct {
	Type      string        `toml:"type" validate:"required,oneof=none memory filesystem ftp s3"`
	Workers   int           `toml:"workers" validate:"min=0"`
	QueueSize int           `toml:"queue_size" validate:"min=0"`
	Timeout   time.Duration `toml:"timeout" validate:"min=0"`
	Encrypt   bool          `toml:"encrypt"`

	// Filesystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// FTP-specific fields (only used when Type == "ftp")
	FTPAddr     string `toml:"ftp_addr,omitempty"`
	FTPUser     string `toml:"ftp_user,omitempty"`
	FTPPassword string `toml:"ftp_password,omitempty"`
	FTPDir      string `toml:"ftp_dir,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for mirror encryption.
type EncryptionConfig struct {
	Type           string `toml:"type,omitempty" validate:"omitempty,oneof=age header"` // "age" (default) or "header"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// Defaults
const (
	DefaultAddr                = ":3000"
	DefaultShutdownTimeout     = 10 * time.Second
	DefaultUploadRatePerWindow = 10
	DefaultUploadRateWindow    = 15 * time.Minute
	DefaultMaxFiles            = 5
	DefaultMaxFileSize         = 50 << 20
	DefaultProtectionFile      = ".protected.json"
	DefaultMirrorWorkers       = 2
	DefaultMirrorQueueSize     = 64
	DefaultMirrorTimeout       = 5 * time.Minute
)

// NewConfig creates a Config rooted at baseDir with every default filled in.
func NewConfig(instanceID, baseDir string) *Config {
	return &Config{
		InstanceID: instanceID,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
		UploadDir:  filepath.Join(baseDir, "uploads"),
		Server: ServerConfig{
			Addr:                DefaultAddr,
			ShutdownTimeout:     DefaultShutdownTimeout,
			UploadRatePerWindow: DefaultUploadRatePerWindow,
			UploadRateWindow:    DefaultUploadRateWindow,
		},
		Limits: LimitsConfig{
			MaxFiles:    DefaultMaxFiles,
			MaxFileSize: DefaultMaxFileSize,
		},
		Database: DatabaseConfig{
			Type:        "sqlite",
			DataDir:     filepath.Join(baseDir, "data"),
			AutoMigrate: true,
		},
		Protection: ProtectionConfig{
			Type: "file",
			File: DefaultProtectionFile,
		},
		Mirror: MirrorConfig{
			Type:      "none",
			Workers:   DefaultMirrorWorkers,
			QueueSize: DefaultMirrorQueueSize,
			Timeout:   DefaultMirrorTimeout,
		},
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "filehost.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "filehost.key"),
		},
	}
}

// ApplyDefaults fills zero-valued settings that a hand-written file may omit.
func ApplyDefaults(cfg *Config) {
	if cfg.LogDir == "" && cfg.BaseDir != "" {
		cfg.LogDir = filepath.Join(cfg.BaseDir, "log")
	}
	if cfg.UploadDir == "" && cfg.BaseDir != "" {
		cfg.UploadDir = filepath.Join(cfg.BaseDir, "uploads")
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultAddr
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.UploadRatePerWindow > 0 && cfg.Server.UploadRateWindow == 0 {
		cfg.Server.UploadRateWindow = DefaultUploadRateWindow
	}
	if cfg.Limits.MaxFiles == 0 {
		cfg.Limits.MaxFiles = DefaultMaxFiles
	}
	if cfg.Limits.MaxFileSize == 0 {
		cfg.Limits.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = "sqlite"
	}
	if cfg.Protection.Type == "" {
		cfg.Protection.Type = "file"
	}
	if cfg.Protection.File == "" {
		cfg.Protection.File = DefaultProtectionFile
	}
	if cfg.Mirror.Type == "" {
		cfg.Mirror.Type = "none"
	}
	if cfg.Mirror.Workers == 0 {
		cfg.Mirror.Workers = DefaultMirrorWorkers
	}
	if cfg.Mirror.QueueSize == 0 {
		cfg.Mirror.QueueSize = DefaultMirrorQueueSize
	}
	if cfg.Mirror.Timeout == 0 {
		cfg.Mirror.Timeout = DefaultMirrorTimeout
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader. Defaults are applied but
// the result is not validated.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads and validates the Config at path.
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
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may hold mirror credentials.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
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

// Init writes cfg to a new config file at path. An existing file is never overwritten.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := Validate(cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
