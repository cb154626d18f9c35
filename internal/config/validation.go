package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks struct tags first, then the rules that depend on the
// selected backend types.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateBackends(cfg)
}

func validateBackends(cfg *Config) error {
	switch cfg.Database.Type {
	case "sqlite", "badger":
		if cfg.Database.DataDir == "" {
			return fmt.Errorf("database: data_dir required for %s", cfg.Database.Type)
		}
	}

	if cfg.Protection.Type == "file" && strings.ContainsAny(cfg.Protection.File, `/\`) {
		return fmt.Errorf("protection: file must be a plain name, got %q", cfg.Protection.File)
	}
	if cfg.Protection.Type == "file" && !strings.HasPrefix(cfg.Protection.File, ".") {
		return fmt.Errorf("protection: file %q must start with '.' so it is never served", cfg.Protection.File)
	}

	m := cfg.Mirror
	switch m.Type {
	case "filesystem":
		if m.FSRoot == "" {
			return fmt.Errorf("mirror: fs_root required for filesystem mirror")
		}
	case "ftp":
		if m.FTPAddr == "" {
			return fmt.Errorf("mirror: ftp_addr required for ftp mirror")
		}
	case "s3":
		if m.S3Bucket == "" || m.S3Region == "" {
			return fmt.Errorf("mirror: s3_bucket and s3_region required for s3 mirror")
		}
		if (m.S3AccessKeyID == "") != (m.S3SecretAccessKey == "") {
			return fmt.Errorf("mirror: s3_access_key_id and s3_secret_access_key must be set together")
		}
	}
	if m.Type != "none" && m.Encrypt && cfg.Encryption.PublicKeyPath == "" {
		return fmt.Errorf("mirror: encrypt requires encryption.public_key_path")
	}
	return nil
}

// formatValidationError reports the first failing field.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
