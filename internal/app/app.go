// Package app wires configuration into a running filehost instance.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"filehost/internal/config"
	"filehost/internal/database"
	"filehost/internal/encryption"
	"filehost/internal/filehost"
	"filehost/internal/fs"
	"filehost/internal/metrics"
	"filehost/internal/mirror"
	"filehost/internal/protection"
	"filehost/internal/server"
)

// Options tune how an app is built.
type Options struct {
	// Level is the minimum log level; zero means Info.
	Level slog.Level
	// Quiet disables the log file and stderr output.
	Quiet bool
}

// FileHostApp is the application layer between the CLI and FileService.
// It constructs all dependencies from config and owns their lifecycle.
type FileHostApp struct {
	cfg        *config.Config
	logger     filehost.Logger
	logFile    *os.File
	fsmgr      *fs.Manager
	store      filehost.MetadataStore
	guard      *filehost.AccessGuard
	encryptor  filehost.Encryptor
	metrics    *metrics.Metrics
	dispatcher *mirror.Dispatcher
	service    *filehost.FileService
}

// NewFileHostApp creates a fully wired FileHostApp from the given config.
// The caller must call Close when done.
func NewFileHostApp(ctx context.Context, cfg *config.Config, opts Options) (*FileHostApp, error) {
	a := &FileHostApp{cfg: cfg, logger: filehost.NewNopLogger()}
	if !opts.Quiet {
		l, f, err := newLogger(cfg.LogDir, cfg.InstanceID, opts.Level)
		if err != nil {
			return nil, fmt.Errorf("creating logger: %w", err)
		}
		a.logger = &slogAdapter{l: l}
		a.logFile = f
	}

	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *FileHostApp) init(ctx context.Context) error {
	cfg := a.cfg

	fsmgr, err := fs.NewOSManager(cfg.UploadDir, cfg.Filesystem.Ignore)
	if err != nil {
		return fmt.Errorf("creating upload root: %w", err)
	}
	a.fsmgr = fsmgr

	protections, err := protection.NewStoreFromConfig(cfg.Protection, fsmgr.Fs())
	if err != nil {
		return fmt.Errorf("creating protection store: %w", err)
	}
	guard, err := filehost.NewAccessGuard(ctx, protections, a.logger)
	if err != nil {
		return fmt.Errorf("loading protected directories: %w", err)
	}
	a.guard = guard

	store, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		return fmt.Errorf("creating metadata store: %w", err)
	}
	a.store = store

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	a.encryptor = enc
	a.metrics = metrics.New()

	var queue filehost.MirrorQueue
	target, err := mirror.NewMirrorFromConfig(ctx, cfg.Mirror, enc)
	if err != nil {
		return fmt.Errorf("creating mirror: %w", err)
	}
	if target != nil {
		a.dispatcher = mirror.NewDispatcher(target, fsmgr, a.logger, a.metrics, cfg.Mirror.Workers, cfg.Mirror.QueueSize, cfg.Mirror.Timeout)
		queue = a.dispatcher
		a.logger.Info("mirror enabled", "mirror", target.Name(), "workers", cfg.Mirror.Workers)
	}

	limits := filehost.Limits{MaxFiles: cfg.Limits.MaxFiles, MaxFileSize: cfg.Limits.MaxFileSize}
	a.service = filehost.NewFileService(store, fsmgr, guard, queue, a.logger, filehost.RealClock{}, filehost.UUIDGenerator{}, limits)
	return nil
}

// Service exposes the wired FileService.
func (a *FileHostApp) Service() *filehost.FileService {
	return a.service
}

// Reconcile brings the metadata store in line with the upload root.
func (a *FileHostApp) Reconcile(ctx context.Context) (*filehost.ReconcileReport, error) {
	r := filehost.NewReconciler(a.store, a.fsmgr, a.logger, filehost.RealClock{}, filehost.UUIDGenerator{})
	return r.Reconcile(ctx)
}

// Serve reconciles the store, then serves HTTP until ctx is canceled.
func (a *FileHostApp) Serve(ctx context.Context) error {
	report, err := a.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconciling upload root: %w", err)
	}
	a.logger.Info("startup reconciliation", "kept", report.Kept, "pruned", report.Pruned, "discovered", report.Discovered)

	limits := filehost.Limits{MaxFiles: a.cfg.Limits.MaxFiles, MaxFileSize: a.cfg.Limits.MaxFileSize}
	srv := server.New(a.service, a.cfg.Server, limits, a.logger, a.metrics)
	return srv.Run(ctx)
}

// Stats returns global file and disk usage.
func (a *FileHostApp) Stats(ctx context.Context) (*filehost.Stats, error) {
	return a.service.Stats(ctx)
}

// CreateDirectory creates a directory, protecting it when password is set.
// The password doubles as the credential for a protected parent.
func (a *FileHostApp) CreateDirectory(ctx context.Context, name, password string) (string, error) {
	return a.service.CreateDirectory(ctx, name, password, secretOf(password))
}

// DeleteDirectory removes a directory tree and its records.
func (a *FileHostApp) DeleteDirectory(ctx context.Context, name, password string) error {
	return a.service.DeleteDirectory(ctx, name, secretOf(password))
}

// DirectoryPath returns where a directory lives on disk.
func (a *FileHostApp) DirectoryPath(dir string) (string, error) {
	return a.fsmgr.RealPath(dir)
}

// IsProtected reports whether a directory is governed by a password.
func (a *FileHostApp) IsProtected(dir string) (bool, error) {
	normalized, err := filehost.NormalizePath(dir)
	if err != nil {
		return false, err
	}
	return a.guard.IsProtected(normalized), nil
}

// BackupDatabase writes a consistent snapshot of the metadata store to dest.
func (a *FileHostApp) BackupDatabase(ctx context.Context, dest string) error {
	b, ok := a.store.(interface {
		BackupTo(ctx context.Context, dest string) error
	})
	if !ok {
		return fmt.Errorf("database type %q does not support backups", a.cfg.Database.Type)
	}
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("backup destination already exists: %s", dest)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("creating backup directory: %w", err)
	}
	return b.BackupTo(ctx, dest)
}

// Close stops the mirror workers after draining queued jobs, then closes
// the store and the log file.
func (a *FileHostApp) Close() error {
	var errs []error
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing metadata store: %w", err))
		}
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing log file: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Migrate applies pending schema migrations regardless of auto_migrate.
func Migrate(cfg *config.Config) error {
	dbCfg := cfg.Database
	dbCfg.AutoMigrate = true
	store, err := database.NewStoreFromConfig(dbCfg)
	if err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return store.Close()
}

// InitKeys generates the mirror encryption key pair.
func InitKeys(cfg *config.Config, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return err
	}
	if enc.IsConfigured() {
		return errors.New("encryption keys already exist")
	}
	return enc.Setup(passphrase)
}

// DecryptedName returns the output name for a mirrored file: the .age
// suffix is stripped, otherwise ".decrypted" is appended.
func DecryptedName(src string) string {
	if strings.HasSuffix(src, mirror.EncryptedSuffix) {
		return strings.TrimSuffix(src, mirror.EncryptedSuffix)
	}
	return src + ".decrypted"
}

// DecryptFile decrypts a mirrored copy at src into dest, which must not exist.
func DecryptFile(cfg *config.Config, passphrase, src, dest string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return err
	}
	dec, err := enc.Unlock(passphrase)
	if err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	if err := dec.Decrypt(in, out); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("decrypting %s: %w", src, err)
	}
	return out.Close()
}

func secretOf(password string) *string {
	if password == "" {
		return nil
	}
	return &password
}
