package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - FILEHOST_CONFIG_PATH: config file location (default: ~/.config/filehost.toml)
//   - FILEHOST_HOME: base directory for filehost data (default: ~/.local/share/filehost)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
		"upload_dir":  filepath.Join(baseDir, "uploads"),
	}, nil
}

func getConfigPath() (string, error) {
	if path := os.Getenv("FILEHOST_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "filehost.toml"), nil
}

// getBaseDir falls back to the XDG default ~/.local/share/filehost.
func getBaseDir() (string, error) {
	if path := os.Getenv("FILEHOST_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "filehost"), nil
}
