package protection

import (
	"fmt"

	"github.com/spf13/afero"

	"filehost/internal/config"
	"filehost/internal/filehost"
)

// NewStoreFromConfig creates a ProtectionStore based on the protection config
// type. fsys is the upload root filesystem.
func NewStoreFromConfig(cfg config.ProtectionConfig, fsys afero.Fs) (filehost.ProtectionStore, error) {
	switch cfg.Type {
	case "", "file":
		name := cfg.File
		if name == "" {
			name = config.DefaultProtectionFile
		}
		return NewFileStore(fsys, name), nil
	case "memory":
		return NewMemoryStore(nil), nil
	default:
		return nil, fmt.Errorf("unknown protection type: %s", cfg.Type)
	}
}
