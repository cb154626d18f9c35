package filehost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
)

// Default upload limits.
const (
	DefaultMaxFiles    = 5
	DefaultMaxFileSize = 50 << 20
)

// Limits bounds a single upload request.
type Limits struct {
	MaxFiles    int
	MaxFileSize int64
}

// DefaultLimits returns the standard upload limits.
func DefaultLimits() Limits {
	return Limits{MaxFiles: DefaultMaxFiles, MaxFileSize: DefaultMaxFileSize}
}

// FileService coordinates filesystem mutations and metadata updates for every
// user-facing operation. Mutations always touch the filesystem first and the
// metadata store second, so a crash leaves at most an orphan file that the
// next reconciliation indexes.
//
// No locking is performed across concurrent operations on the same record or
// directory.
type FileService struct {
	store  MetadataStore
	fsmgr  FilesystemManager
	guard  *AccessGuard
	mirror MirrorQueue
	logger Logger
	clock  Clock
	idgen  IDGenerator
	limits Limits
}

// NewFileService creates a new FileService with the provided dependencies.
// A nil mirror disables mirroring.
func NewFileService(store MetadataStore, fsmgr FilesystemManager, guard *AccessGuard, mirror MirrorQueue, logger Logger, clock Clock, idgen IDGenerator, limits Limits) *FileService {
	if mirror == nil {
		mirror = NopMirrorQueue{}
	}
	if limits.MaxFiles <= 0 {
		limits.MaxFiles = DefaultMaxFiles
	}
	if limits.MaxFileSize <= 0 {
		limits.MaxFileSize = DefaultMaxFileSize
	}
	return &FileService{
		store:  store,
		fsmgr:  fsmgr,
		guard:  guard,
		mirror: mirror,
		logger: logger,
		clock:  clock,
		idgen:  idgen,
		limits: limits,
	}
}

// UploadFile is one file payload of an upload request.
type UploadFile struct {
	Name    string    // display name as sent by the client
	Size    int64     // declared size; negative when unknown
	Content io.Reader // file bytes
}

// UploadRequest groups the files uploaded to one directory.
type UploadRequest struct {
	Directory string
	Secret    *string
	Files     []UploadFile
}

// Upload validates and stores every file of the request, returning one record per file.
// All validation and the access check happen before any bytes are written.
func (s *FileService) Upload(ctx context.Context, req UploadRequest) ([]*FileRecord, error) {
	if len(req.Files) == 0 {
		return nil, ErrNoFiles
	}
	if len(req.Files) > s.limits.MaxFiles {
		return nil, fmt.Errorf("%w: %d files, at most %d allowed", ErrTooManyFiles, len(req.Files), s.limits.MaxFiles)
	}
	for _, f := range req.Files {
		if !IsAllowedExtension(Extension(f.Name)) {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, f.Name)
		}
		if f.Size > s.limits.MaxFileSize {
			return nil, fmt.Errorf("%w: %q is %d bytes", ErrPayloadTooLarge, f.Name, f.Size)
		}
	}

	dir, err := NormalizePath(req.Directory)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Check(dir, req.Secret); err != nil {
		return nil, err
	}
	if err := s.fsmgr.MkdirAll(dir); err != nil {
		return nil, fmt.Errorf("creating directory %q: %w", dir, err)
	}

	records := make([]*FileRecord, 0, len(req.Files))
	for _, f := range req.Files {
		rec, err := s.storeUpload(ctx, dir, f)
		if err != nil {
			return records, err
		}
		records = append(records, rec)
		if !s.mirror.Enqueue(MirrorJob{RecordID: rec.ID, RelativePath: rec.RelativePath, Size: rec.Size}) {
			s.logger.Debug("mirror skipped", "id", rec.ID, "path", rec.RelativePath)
		}
	}

	s.logger.Info("upload complete", "directory", dir, "count", len(records))
	return records, nil
}

// storeUpload writes one file to disk and records it.
func (s *FileService) storeUpload(ctx context.Context, dir string, f UploadFile) (*FileRecord, error) {
	originalName := DecodeOriginalName(f.Name)
	storedName := StoredName(originalName, s.idgen.Suffix())
	relativePath := JoinRelative(dir, storedName)

	written, err := s.fsmgr.WriteFile(relativePath, f.Content, s.limits.MaxFileSize)
	if err != nil {
		return nil, fmt.Errorf("writing %q: %w", originalName, err)
	}

	rec := &FileRecord{
		ID:           s.idgen.New(),
		StoredName:   storedName,
		Directory:    dir,
		RelativePath: relativePath,
		OriginalName: originalName,
		Size:         written,
		UploadedAt:   s.clock.Now(),
		Extension:    Extension(storedName),
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		if rmErr := s.fsmgr.Remove(relativePath); rmErr != nil {
			s.logger.Warn("removing unrecorded upload failed", "path", relativePath, "error", rmErr)
		}
		return nil, fmt.Errorf("recording %q: %w", originalName, err)
	}

	s.logger.Debug("file stored", "id", rec.ID, "path", relativePath, "size", written)
	return rec, nil
}

// Rename changes the display name of a file. The stored name keeps its
// uniqueness suffix; the extension is replaced only when newName carries one.
func (s *FileService) Rename(ctx context.Context, id, newName string, secret *string) (*FileRecord, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, fmt.Errorf("%w: newName", ErrMissingField)
	}

	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Check(rec.Directory, secret); err != nil {
		return nil, err
	}

	displayName := DecodeOriginalName(path.Base(strings.ReplaceAll(newName, `\`, "/")))
	ext := Extension(displayName)
	if ext == "" {
		ext = rec.Extension
		displayName += ext
	}
	if !IsAllowedExtension(ext) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, displayName)
	}

	suffix, ok := ExtractSuffix(rec.StoredName)
	if !ok {
		suffix = s.idgen.Suffix()
	}
	storedName := StoredName(displayName, suffix)
	relativePath := JoinRelative(rec.Directory, storedName)

	if relativePath != rec.RelativePath {
		if err := s.fsmgr.Rename(rec.RelativePath, relativePath); err != nil {
			return nil, s.physicalError(rec, err)
		}
	}

	update := FileUpdate{
		StoredName:   &storedName,
		RelativePath: &relativePath,
		OriginalName: &displayName,
		Extension:    &ext,
	}
	if err := s.store.Update(ctx, id, update); err != nil {
		return nil, fmt.Errorf("updating record: %w", err)
	}
	update.Apply(rec)

	s.logger.Info("file renamed", "id", id, "path", relativePath)
	return rec, nil
}

// Move relocates a file to another directory, keeping its stored name.
// The credential must grant access to both the source and the destination.
func (s *FileService) Move(ctx context.Context, id, newDir string, secret *string) (*FileRecord, error) {
	dest, err := NormalizePath(newDir)
	if err != nil {
		return nil, err
	}

	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Check(rec.Directory, secret); err != nil {
		return nil, err
	}
	if err := s.guard.Check(dest, secret); err != nil {
		return nil, err
	}
	if dest == rec.Directory {
		return rec, nil
	}

	if err := s.fsmgr.MkdirAll(dest); err != nil {
		return nil, fmt.Errorf("creating directory %q: %w", dest, err)
	}
	relativePath := JoinRelative(dest, rec.StoredName)
	if err := s.fsmgr.Rename(rec.RelativePath, relativePath); err != nil {
		return nil, s.physicalError(rec, err)
	}

	update := FileUpdate{Directory: &dest, RelativePath: &relativePath}
	if err := s.store.Update(ctx, id, update); err != nil {
		return nil, fmt.Errorf("updating record: %w", err)
	}
	update.Apply(rec)

	s.logger.Info("file moved", "id", id, "directory", dest)
	return rec, nil
}

// Delete removes a file and its record. A file already missing from disk is not an error.
func (s *FileService) Delete(ctx context.Context, id string, secret *string) error {
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.guard.Check(rec.Directory, secret); err != nil {
		return err
	}

	if err := s.fsmgr.Remove(rec.RelativePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", rec.RelativePath, err)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}

	s.logger.Info("file deleted", "id", id, "path", rec.RelativePath)
	return nil
}

// Open returns a file's record and an open handle to its bytes.
// The caller must close the handle.
func (s *FileService) Open(ctx context.Context, id string, secret *string) (*FileRecord, File, error) {
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := s.guard.Check(rec.Directory, secret); err != nil {
		return nil, nil, err
	}

	f, err := s.fsmgr.Open(rec.RelativePath)
	if err != nil {
		return nil, nil, s.physicalError(rec, err)
	}
	return rec, f, nil
}

// CreateDirectory creates a (possibly nested) directory. The parent must pass
// the access check. A non-empty password protects the new directory.
func (s *FileService) CreateDirectory(ctx context.Context, name, password string, secret *string) (string, error) {
	dir, err := NormalizePath(name)
	if err != nil {
		return "", err
	}
	if dir == "" {
		return "", fmt.Errorf("%w: directory name is empty", ErrInvalidPath)
	}
	if len(password) > MaxPasswordBytes {
		return "", fmt.Errorf("%w: at most %d bytes", ErrPasswordTooLong, MaxPasswordBytes)
	}

	if _, err := s.fsmgr.Stat(dir); err == nil {
		return "", fmt.Errorf("%w: %q", ErrDuplicateDirectory, dir)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("checking %q: %w", dir, err)
	}

	if err := s.guard.Check(ParentDirectory(dir), secret); err != nil {
		return "", err
	}
	if err := s.fsmgr.MkdirAll(dir); err != nil {
		return "", fmt.Errorf("creating directory %q: %w", dir, err)
	}
	if password != "" {
		if err := s.guard.Protect(ctx, dir, password); err != nil {
			return "", err
		}
	}

	s.logger.Info("directory created", "directory", dir, "protected", password != "")
	return dir, nil
}

// DeleteDirectory removes a directory tree, every record under it and its own
// protection entry. Protection entries of descendants are left alone.
func (s *FileService) DeleteDirectory(ctx context.Context, name string, secret *string) error {
	dir, err := NormalizePath(name)
	if err != nil {
		return err
	}
	if dir == "" {
		return fmt.Errorf("%w: cannot delete the root", ErrInvalidPath)
	}
	if err := s.guard.Check(dir, secret); err != nil {
		return err
	}

	info, err := s.fsmgr.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: directory %q", ErrNotFound, dir)
		}
		return fmt.Errorf("checking %q: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: directory %q", ErrNotFound, dir)
	}

	if err := s.fsmgr.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing directory %q: %w", dir, err)
	}
	removed, err := s.store.DeleteByPathPrefix(ctx, dir)
	if err != nil {
		return fmt.Errorf("deleting records under %q: %w", dir, err)
	}
	if err := s.guard.Unprotect(ctx, dir); err != nil {
		return err
	}

	s.logger.Info("directory deleted", "directory", dir, "records", removed)
	return nil
}

// ListFiles returns the files of exactly one directory ("" is the root, never
// "all directories"), newest first, optionally filtered by a case-insensitive
// substring of the display name.
func (s *FileService) ListFiles(ctx context.Context, directory, search string, secret *string) ([]*FileRecord, error) {
	dir, err := NormalizePath(directory)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Check(dir, secret); err != nil {
		return nil, err
	}

	var records []*FileRecord
	if query := strings.TrimSpace(search); query == "" {
		records, err = s.store.ListByDirectory(ctx, dir)
	} else {
		records, err = s.store.Scan(ctx, ScanFilter{Directory: &dir, NameContains: query})
	}
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	if records == nil {
		records = []*FileRecord{}
	}
	return records, nil
}

// ListDirectories returns the immediate subdirectories of a directory, read live from disk.
func (s *FileService) ListDirectories(ctx context.Context, directory string, secret *string) ([]string, error) {
	dir, err := NormalizePath(directory)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Check(dir, secret); err != nil {
		return nil, err
	}

	names, err := s.fsmgr.ListDirectories(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: directory %q", ErrNotFound, dir)
		}
		return nil, fmt.Errorf("listing directories: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Stats returns global file and disk usage. It is not scoped by protection.
func (s *FileService) Stats(ctx context.Context) (*Stats, error) {
	count, total, err := s.store.CountAndTotalSize(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting files: %w", err)
	}
	used, available, err := s.fsmgr.DiskUsage()
	if err != nil {
		return nil, fmt.Errorf("reading disk usage: %w", err)
	}
	return &Stats{
		TotalFiles:    count,
		TotalSize:     total,
		DiskUsed:      used,
		DiskAvailable: available,
	}, nil
}

// physicalError maps a missing stored file to ErrNotFound.
func (s *FileService) physicalError(rec *FileRecord, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: file %s missing on disk", ErrNotFound, rec.RelativePath)
	}
	return fmt.Errorf("accessing %s: %w", rec.RelativePath, err)
}
