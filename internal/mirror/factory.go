package mirror

import (
	"context"
	"fmt"

	"filehost/internal/config"
	"filehost/internal/filehost"
)

// NewMirrorFromConfig creates a Mirror based on the mirror config type.
// It returns nil for type "none". When cfg.Encrypt is set the mirror is
// wrapped with encryptor, which must be configured.
func NewMirrorFromConfig(ctx context.Context, cfg config.MirrorConfig, encryptor filehost.Encryptor) (filehost.Mirror, error) {
	var m filehost.Mirror
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "memory":
		m = NewMemoryMirror()
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem mirror requires fs_root to be set")
		}
		fsm, err := NewFilesystemMirror(cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		m = fsm
	case "ftp":
		if cfg.FTPAddr == "" {
			return nil, fmt.Errorf("ftp mirror requires ftp_addr to be set")
		}
		m = NewFTPMirror(cfg.FTPAddr, cfg.FTPUser, cfg.FTPPassword, cfg.FTPDir, cfg.Timeout)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 mirror requires s3_bucket to be set")
		}
		s3m, err := NewS3Mirror(ctx, cfg)
		if err != nil {
			return nil, err
		}
		m = s3m
	default:
		return nil, fmt.Errorf("unknown mirror type: %s", cfg.Type)
	}

	if cfg.Encrypt {
		if encryptor == nil || !encryptor.IsConfigured() {
			return nil, fmt.Errorf("mirror encryption enabled but no key pair is configured (run 'filehost keys init')")
		}
		m = NewEncryptedMirror(m, encryptor)
	}
	return m, nil
}
